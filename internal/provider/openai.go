package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/types"
)

// OpenAI talks to OpenAI-compatible APIs. It serves chat completions,
// image generation, and speech synthesis; summarize rides on the chat
// endpoint.
type OpenAI struct {
	name   string
	cfg    config.ProviderConfig
	apiKey string
	client *http.Client
}

func NewOpenAI(name string, cfg config.ProviderConfig, apiKey string, client *http.Client) *OpenAI {
	return &OpenAI{name: name, cfg: cfg, apiKey: apiKey, client: client}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Supports(op types.Operation) bool {
	switch op {
	case types.OpChat, types.OpSummarize, types.OpImage, types.OpSpeech:
		return true
	}
	return false
}

// Probe lists available models; one round trip, no side effects.
func (o *OpenAI) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	o.setHeaders(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", o.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return o.apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (o *OpenAI) Invoke(ctx context.Context, spec *types.RequestSpec) (*types.Result, error) {
	switch spec.Operation {
	case types.OpChat, types.OpSummarize:
		return o.chat(ctx, spec)
	case types.OpImage:
		return o.image(ctx, spec)
	case types.OpSpeech:
		return o.speech(ctx, spec)
	default:
		return nil, fmt.Errorf("openai: unsupported operation %s", spec.Operation)
	}
}

func (o *OpenAI) chat(ctx context.Context, spec *types.RequestSpec) (*types.Result, error) {
	body := openAIChatRequest{
		Model:       spec.Options.Model,
		Messages:    spec.Messages,
		Temperature: spec.Options.Temperature,
		MaxTokens:   spec.Options.MaxTokens,
	}

	resp, err := o.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.apiError(resp)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode openai chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai chat response has no choices")
	}

	return &types.Result{
		Kind:     types.KindText,
		Text:     out.Choices[0].Message.Content,
		Provider: o.name,
		Model:    out.Model,
		Usage: types.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

func (o *OpenAI) image(ctx context.Context, spec *types.RequestSpec) (*types.Result, error) {
	body := openAIImageRequest{
		Model:          spec.Options.Model,
		Prompt:         spec.Prompt,
		N:              1,
		Size:           spec.Options.Size,
		Quality:        spec.Options.Quality,
		Style:          spec.Options.Style,
		ResponseFormat: "b64_json",
	}

	resp, err := o.post(ctx, "/images/generations", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.apiError(resp)
	}

	var out openAIImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode openai image response: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai image response has no data")
	}

	raw, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	return &types.Result{
		Kind:        types.KindBinaryImage,
		Binary:      raw,
		ContentType: "image/png",
		Provider:    o.name,
		Model:       spec.Options.Model,
	}, nil
}

func (o *OpenAI) speech(ctx context.Context, spec *types.RequestSpec) (*types.Result, error) {
	body := openAISpeechRequest{
		Model: spec.Options.Model,
		Input: spec.Prompt,
		Voice: spec.Options.Voice,
	}

	resp, err := o.post(ctx, "/audio/speech", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, o.apiError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech response: %w", err)
	}

	return &types.Result{
		Kind:        types.KindBinaryAudio,
		Binary:      raw,
		ContentType: "audio/mpeg",
		Provider:    o.name,
		Model:       spec.Options.Model,
	}, nil
}

// Stream opens a streaming chat completion and relays deltas until the
// provider signals completion or fails mid-stream.
func (o *OpenAI) Stream(ctx context.Context, spec *types.RequestSpec) (*ChatStream, error) {
	body := openAIChatRequest{
		Model:         spec.Options.Model,
		Messages:      spec.Messages,
		Temperature:   spec.Options.Temperature,
		MaxTokens:     spec.Options.MaxTokens,
		Stream:        true,
		StreamOptions: &openAIStreamOptions{IncludeUsage: true},
	}

	resp, err := o.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, o.apiError(resp)
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
			if data == "[DONE]" {
				stream.Send(Event{Done: true})
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Usage != nil {
				stream.usage = types.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				stream.Send(Event{Delta: chunk.Choices[0].Delta.Content})
			}
		}

		if err := scanner.Err(); err != nil {
			stream.Send(Event{Err: fmt.Errorf("read openai stream: %w", err)})
			return
		}
		stream.Send(Event{Done: true})
	}()

	return stream, nil
}

func (o *OpenAI) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	o.setHeaders(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	return resp, nil
}

func (o *OpenAI) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	for k, v := range o.cfg.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
}

// apiError drains the body and converts a non-2xx response into a typed
// APIError carrying the provider's error message.
func (o *OpenAI) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}

	return &fault.APIError{Provider: o.name, StatusCode: resp.StatusCode, Message: msg}
}

type openAIChatRequest struct {
	Model         string               `json:"model"`
	Messages      []types.Message      `json:"messages"`
	Temperature   *float64             `json:"temperature,omitempty"`
	MaxTokens     *int                 `json:"max_tokens,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *openAIStreamOptions `json:"stream_options,omitempty"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      types.Message `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type openAIImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type openAISpeechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}
