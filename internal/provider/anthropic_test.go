package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/types"
)

func newAnthropicTest(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.ProviderConfig{
		Type:       "anthropic",
		BaseURL:    srv.URL,
		APIVersion: "2023-06-01",
		Timeout:    5 * time.Second,
	}
	return NewAnthropic("anthropic", cfg, "sk-ant-test", srv.Client())
}

func TestAnthropicChat_SystemPromoted(t *testing.T) {
	var gotBody anthropicRequest
	var gotKey, gotVersion string

	client := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&gotBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":       "claude-3-5-sonnet-20240620",
			"content":     []map[string]string{{"type": "text", "text": "Hello back"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 20, "output_tokens": 4},
		})
	})

	spec := &types.RequestSpec{
		Operation: types.OpChat,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are a helpful assistant."},
			{Role: types.RoleUser, Content: "Hello"},
		},
		Options: types.Options{Model: "claude-3-5-sonnet-20240620"},
	}

	res, err := client.Invoke(context.Background(), spec)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotKey != "sk-ant-test" {
		t.Errorf("expected x-api-key header, got %q", gotKey)
	}
	if gotVersion != "2023-06-01" {
		t.Errorf("expected anthropic-version header, got %q", gotVersion)
	}
	if gotBody.System != "You are a helpful assistant." {
		t.Errorf("system message not promoted to system field: %q", gotBody.System)
	}
	for _, m := range gotBody.Messages {
		if m.Role == "system" {
			t.Error("system role must not appear in messages array")
		}
	}
	if gotBody.MaxTokens != anthropicDefaultMaxTokens {
		t.Errorf("expected default max_tokens %d, got %d", anthropicDefaultMaxTokens, gotBody.MaxTokens)
	}
	if res.Text != "Hello back" {
		t.Errorf("expected text extraction, got %q", res.Text)
	}
	if res.Usage.TotalTokens != 24 {
		t.Errorf("expected 24 total tokens, got %d", res.Usage.TotalTokens)
	}
}

func TestAnthropicChat_MaxTokensPassedThrough(t *testing.T) {
	var gotBody anthropicRequest
	client := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   "claude-3-haiku-20240307",
			"content": []map[string]string{{"type": "text", "text": "ok"}},
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	})

	spec := &types.RequestSpec{
		Operation: types.OpChat,
		Messages:  []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Options:   types.Options{Model: "claude-3-haiku-20240307", MaxTokens: intPtr(100)},
	}

	if _, err := client.Invoke(context.Background(), spec); err != nil {
		t.Fatal(err)
	}
	if gotBody.MaxTokens != 100 {
		t.Errorf("max_tokens not passed through: got %d", gotBody.MaxTokens)
	}
}

func TestAnthropicChat_APIError(t *testing.T) {
	client := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type":  "error",
			"error": map[string]string{"type": "overloaded_error", "message": "Overloaded"},
		})
	})

	spec := &types.RequestSpec{
		Operation: types.OpChat,
		Messages:  []types.Message{{Role: types.RoleUser, Content: "hi"}},
		Options:   types.Options{Model: "claude-3-opus-20240229"},
	}

	_, err := client.Invoke(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error for 529")
	}
	if kind := fault.Classify(err); kind != fault.ProviderError {
		t.Errorf("expected ProviderError, got %s", kind)
	}
}

func TestAnthropicRejectsBinaryOps(t *testing.T) {
	client := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call should be made for unsupported operations")
	})

	for _, op := range []types.Operation{types.OpImage, types.OpSpeech} {
		if client.Supports(op) {
			t.Errorf("anthropic must not claim support for %s", op)
		}
		spec := &types.RequestSpec{Operation: op, Options: types.Options{Model: "claude-3-opus-20240229"}}
		if _, err := client.Invoke(context.Background(), spec); err == nil {
			t.Errorf("Invoke(%s) should fail", op)
		}
	}
}

func TestAnthropicStream(t *testing.T) {
	client := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":10}}}`,
			`{"type":"content_block_start","index":0}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Once"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" upon"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`,
			`{"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintf(w, "event: x\ndata: %s\n\n", e)
			flusher.Flush()
		}
	})

	spec := &types.RequestSpec{
		Operation: types.OpChat,
		Messages:  []types.Message{{Role: types.RoleUser, Content: "tell a story"}},
		Options:   types.Options{Model: "claude-3-5-sonnet-20240620"},
		Stream:    true,
	}

	stream, err := client.Stream(context.Background(), spec)
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var full string
	var done bool
	for ev := range stream.Events() {
		if ev.Err != nil {
			t.Fatalf("unexpected stream error: %v", ev.Err)
		}
		if ev.Done {
			done = true
			continue
		}
		full += ev.Delta
	}

	if !done {
		t.Error("stream never signalled done")
	}
	if full != "Once upon" {
		t.Errorf("accumulated %q, want %q", full, "Once upon")
	}
	u := stream.Usage()
	if u.PromptTokens != 10 || u.CompletionTokens != 2 || u.TotalTokens != 12 {
		t.Errorf("unexpected usage %+v", u)
	}
}
