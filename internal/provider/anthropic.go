package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/types"
)

// Anthropic requires max_tokens on every request; this matches the vendor
// default used when the caller supplies none.
const anthropicDefaultMaxTokens = 4096

// Anthropic talks to the Anthropic Messages API. Chat and summarize only;
// no image or speech endpoints exist upstream.
type Anthropic struct {
	name   string
	cfg    config.ProviderConfig
	apiKey string
	client *http.Client
}

func NewAnthropic(name string, cfg config.ProviderConfig, apiKey string, client *http.Client) *Anthropic {
	return &Anthropic{name: name, cfg: cfg, apiKey: apiKey, client: client}
}

func (a *Anthropic) Name() string { return a.name }

func (a *Anthropic) Supports(op types.Operation) bool {
	return op == types.OpChat || op == types.OpSummarize
}

// Probe lists available models; one round trip, no side effects.
func (a *Anthropic) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return a.apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (a *Anthropic) Invoke(ctx context.Context, spec *types.RequestSpec) (*types.Result, error) {
	switch spec.Operation {
	case types.OpChat, types.OpSummarize:
	default:
		return nil, fmt.Errorf("anthropic: unsupported operation %s", spec.Operation)
	}

	resp, err := a.post(ctx, a.buildBody(spec, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.apiError(resp)
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	var content string
	for _, block := range out.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	return &types.Result{
		Kind:     types.KindText,
		Text:     content,
		Provider: a.name,
		Model:    out.Model,
		Usage: types.Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}, nil
}

// Stream opens a streaming message and relays text deltas. Anthropic SSE
// events: message_start, content_block_start, content_block_delta,
// message_delta, message_stop; only the delta and accounting events matter.
func (a *Anthropic) Stream(ctx context.Context, spec *types.RequestSpec) (*ChatStream, error) {
	resp, err := a.post(ctx, a.buildBody(spec, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, a.apiError(resp)
	}

	stream := NewChatStream(spec.Options.Model)
	go func() {
		defer resp.Body.Close()
		defer stream.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				stream.usage.PromptTokens = event.Message.Usage.InputTokens
			case "content_block_delta":
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					stream.Send(Event{Delta: event.Delta.Text})
				}
			case "message_delta":
				stream.usage.CompletionTokens = event.Usage.OutputTokens
				stream.usage.TotalTokens = stream.usage.PromptTokens + event.Usage.OutputTokens
			case "message_stop":
				stream.Send(Event{Done: true})
				return
			case "error":
				stream.Send(Event{Err: &fault.APIError{
					Provider:   a.name,
					StatusCode: http.StatusInternalServerError,
					Message:    event.Error.Message,
				}})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			stream.Send(Event{Err: fmt.Errorf("read anthropic stream: %w", err)})
			return
		}
		stream.Send(Event{Done: true})
	}()

	return stream, nil
}

// buildBody converts the canonical message list to Anthropic's shape: the
// system message travels in its own field, not in the messages array.
func (a *Anthropic) buildBody(spec *types.RequestSpec, stream bool) anthropicRequest {
	var system string
	var messages []anthropicMessage
	for _, m := range spec.Messages {
		if m.Role == types.RoleSystem {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	maxTokens := anthropicDefaultMaxTokens
	if spec.Options.MaxTokens != nil {
		maxTokens = *spec.Options.MaxTokens
	}

	return anthropicRequest{
		Model:       spec.Options.Model,
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Stream:      stream,
		Temperature: spec.Options.Temperature,
	}
}

func (a *Anthropic) post(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	a.setHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	return resp, nil
}

func (a *Anthropic) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	if a.cfg.APIVersion != "" {
		req.Header.Set("anthropic-version", a.cfg.APIVersion)
	}
	for k, v := range a.cfg.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
}

func (a *Anthropic) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	return &fault.APIError{Provider: a.name, StatusCode: resp.StatusCode, Message: msg}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicStreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
