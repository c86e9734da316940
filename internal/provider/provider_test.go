package provider

import (
	"context"
	"testing"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/types"
)

// fakeClient implements Client for routing tests.
type fakeClient struct {
	name string
	ops  []types.Operation
}

func (f *fakeClient) Name() string { return f.name }
func (f *fakeClient) Supports(op types.Operation) bool {
	for _, o := range f.ops {
		if o == op {
			return true
		}
	}
	return false
}
func (f *fakeClient) Invoke(_ context.Context, _ *types.RequestSpec) (*types.Result, error) {
	return &types.Result{Kind: types.KindText, Provider: f.name}, nil
}
func (f *fakeClient) Probe(_ context.Context) error { return nil }

func testModelsConfig() *config.ModelsConfig {
	return &config.ModelsConfig{
		Models: map[string]config.ModelMapping{
			"gpt-4o": {
				Provider:   "openai",
				Model:      "gpt-4o-2024-08-06",
				Operations: []string{"chat", "summarize"},
			},
			"dall-e-3": {
				Provider:   "openai",
				Model:      "dall-e-3",
				Operations: []string{"image"},
			},
			"claude-3-5-sonnet": {
				Provider:   "anthropic",
				Model:      "claude-3-5-sonnet-20240620",
				Operations: []string{"chat"},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	registry := NewRegistry()
	registry.Register("openai", &fakeClient{name: "openai", ops: []types.Operation{types.OpChat, types.OpImage, types.OpSummarize}})
	registry.Register("anthropic", &fakeClient{name: "anthropic", ops: []types.Operation{types.OpChat}})

	client, model, err := Resolve(testModelsConfig(), registry, "gpt-4o", types.OpChat)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if client.Name() != "openai" {
		t.Errorf("expected openai, got %s", client.Name())
	}
	if model != "gpt-4o-2024-08-06" {
		t.Errorf("expected provider-side model name, got %s", model)
	}
}

func TestResolve_UnknownModel(t *testing.T) {
	registry := NewRegistry()
	if _, _, err := Resolve(testModelsConfig(), registry, "nope", types.OpChat); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestResolve_OperationMismatch(t *testing.T) {
	registry := NewRegistry()
	registry.Register("openai", &fakeClient{name: "openai", ops: []types.Operation{types.OpChat, types.OpImage}})

	// dall-e-3 is mapped for image only.
	if _, _, err := Resolve(testModelsConfig(), registry, "dall-e-3", types.OpChat); err == nil {
		t.Error("expected error for chat on an image model")
	}
	if _, _, err := Resolve(testModelsConfig(), registry, "dall-e-3", types.OpImage); err != nil {
		t.Errorf("image on dall-e-3 should resolve: %v", err)
	}
}

func TestResolve_MissingProvider(t *testing.T) {
	registry := NewRegistry()
	// anthropic mapping exists, but no client registered.
	if _, _, err := Resolve(testModelsConfig(), registry, "claude-3-5-sonnet", types.OpChat); err == nil {
		t.Error("expected error when provider client is absent")
	}
}

func TestRegistryNames(t *testing.T) {
	registry := NewRegistry()
	registry.Register("openai", &fakeClient{name: "openai"})
	registry.Register("anthropic", &fakeClient{name: "anthropic"})

	names := registry.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %d", len(names))
	}
}
