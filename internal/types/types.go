package types

import "time"

// Operation identifies which provider capability a request targets.
type Operation string

const (
	OpChat      Operation = "chat"
	OpImage     Operation = "image"
	OpSpeech    Operation = "speech"
	OpSummarize Operation = "summarize"
)

// ParseOperation validates an operation name from the wire.
func ParseOperation(s string) (Operation, bool) {
	switch Operation(s) {
	case OpChat, OpImage, OpSpeech, OpSummarize:
		return Operation(s), true
	}
	return "", false
}

// Role tags a message with its conversational origin.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in a conversation. Immutable once
// appended to a window.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options carries caller-supplied generation parameters. Values are passed
// through to the provider unmodified; out-of-range values are the provider's
// problem and surface as an invalid-request error.
type Options struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// Image generation only.
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`

	// Speech synthesis only.
	Voice string `json:"voice,omitempty"`
}

// RequestSpec is the canonical internal representation of one outbound
// provider call. Constructed fresh per user action, never persisted.
type RequestSpec struct {
	Provider  string    `json:"provider"`
	Operation Operation `json:"operation"`

	// Chat and summarize operations.
	Messages []Message `json:"messages,omitempty"`

	// Image and speech operations.
	Prompt string `json:"prompt,omitempty"`

	Options Options `json:"options"`
	Stream  bool    `json:"stream,omitempty"`

	// Internal tracking, set by the gateway.
	RequestID  string    `json:"-"`
	SessionID  string    `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// ResultKind distinguishes the payload shape of a normalized result.
type ResultKind string

const (
	KindText        ResultKind = "text"
	KindBinaryAudio ResultKind = "binary-audio"
	KindBinaryImage ResultKind = "binary-image"
)

// Usage tracks token consumption reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the single normalized success shape produced once per
// RequestSpec. Text results carry Text; binary results carry Binary plus a
// content type tag. Persisting bytes to disk is the caller's business.
type Result struct {
	Kind        ResultKind `json:"kind"`
	Text        string     `json:"text,omitempty"`
	Binary      []byte     `json:"-"`
	ContentType string     `json:"content_type,omitempty"`

	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	Usage            Usage   `json:"usage"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}
