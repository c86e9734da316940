// Package provider wraps heterogeneous vendor HTTP APIs behind one uniform
// call contract: a RequestSpec goes in, a normalized Result comes out.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/credential"
	"github.com/promptdeck/prism/internal/types"
)

// Client is the uniform contract over a vendor API. Invoke performs exactly
// one network call and never retries; retries, if anyone wants them, belong
// to the caller.
type Client interface {
	Name() string
	Supports(op types.Operation) bool

	// Invoke performs the blocking provider call for the requested operation.
	Invoke(ctx context.Context, spec *types.RequestSpec) (*types.Result, error)

	// Probe performs the lightweight credential check (list models).
	Probe(ctx context.Context) error
}

// StreamClient is implemented by providers that can stream chat deltas.
// Callers detect support via type assertion; without it they fall back to
// the synchronous Invoke.
type StreamClient interface {
	Client
	Stream(ctx context.Context, spec *types.RequestSpec) (*ChatStream, error)
}

// Registry manages provider clients by name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(name string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = c
}

func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Names returns all registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// BuildFromConfig builds provider clients from the providers config and the
// loaded credential store. Each provider gets its own http.Client; a
// configured timeout is delegated to it and surfaces as a connection
// failure when exceeded.
func BuildFromConfig(provCfg *config.ProvidersConfig, creds *credential.Store) (*Registry, error) {
	registry := NewRegistry()
	for name, cfg := range provCfg.Providers {
		cred, ok := creds.Get(name)
		if !ok {
			return nil, fmt.Errorf("provider %s: no credential loaded", name)
		}

		httpClient := &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrent,
				MaxIdleConnsPerHost: cfg.MaxConcurrent,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		var client Client
		switch cfg.Type {
		case "anthropic":
			client = NewAnthropic(name, cfg, cred.Value(), httpClient)
		case "openai":
			client = NewOpenAI(name, cfg, cred.Value(), httpClient)
		default:
			// Unknown types get the OpenAI-compatible client.
			client = NewOpenAI(name, cfg, cred.Value(), httpClient)
		}
		registry.Register(name, client)
	}
	return registry, nil
}

// Resolve finds the client and provider-side model name serving a public
// model for the given operation.
func Resolve(modelsCfg *config.ModelsConfig, registry *Registry, modelName string, op types.Operation) (Client, string, error) {
	mapping, ok := modelsCfg.Models[modelName]
	if !ok {
		return nil, "", fmt.Errorf("unknown model: %s", modelName)
	}
	if !mapping.Supports(op) {
		return nil, "", fmt.Errorf("model %s does not serve operation %s", modelName, op)
	}

	client, ok := registry.Get(mapping.Provider)
	if !ok {
		return nil, "", fmt.Errorf("no client for provider: %s", mapping.Provider)
	}
	if !client.Supports(op) {
		return nil, "", fmt.Errorf("provider %s does not serve operation %s", mapping.Provider, op)
	}
	return client, mapping.Model, nil
}
