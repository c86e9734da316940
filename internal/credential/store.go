// Package credential resolves provider API keys from the environment at
// process start and tracks their validation state.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/promptdeck/prism/internal/config"
)

// ErrMissing is returned when a provider's API key environment variable is
// absent or empty. The classifier maps it to the unauthenticated kind.
var ErrMissing = errors.New("api key not set")

// Credential holds one provider secret. The value never changes after load;
// a validated credential is trusted for the process lifetime. A key revoked
// mid-session surfaces at call time, not through periodic re-validation.
type Credential struct {
	Provider  string
	value     string
	Validated bool
}

// Value returns the raw secret.
func (c Credential) Value() string { return c.value }

// Redacted returns a loggable form of the secret.
func (c Credential) Redacted() string {
	if len(c.value) <= 8 {
		return "****"
	}
	return c.value[:4] + "..." + c.value[len(c.value)-4:]
}

// Prober performs the lightweight capability check for one provider,
// typically a list-models call. Exactly one round trip per Validate.
type Prober interface {
	Probe(ctx context.Context) error
}

// Store holds one credential per configured provider.
type Store struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// LoadFromEnv reads every configured provider's key from its named
// environment variable. A missing variable fails the whole load: an
// integration without a key is a startup-fatal condition. No network call is
// made here.
func LoadFromEnv(providers map[string]config.ProviderConfig) (*Store, error) {
	s := &Store{creds: make(map[string]Credential, len(providers))}
	for name, cfg := range providers {
		if cfg.APIKeyEnv == "" {
			return nil, fmt.Errorf("provider %s: api_key_env not configured", name)
		}
		val := os.Getenv(cfg.APIKeyEnv)
		if val == "" {
			return nil, fmt.Errorf("provider %s: env %s: %w", name, cfg.APIKeyEnv, ErrMissing)
		}
		s.creds[name] = Credential{Provider: name, value: val}
	}
	return s, nil
}

// Get returns the credential for a provider.
func (s *Store) Get(provider string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[provider]
	return c, ok
}

// Providers lists the provider names with loaded credentials.
func (s *Store) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.creds))
	for name := range s.creds {
		names = append(names, name)
	}
	return names
}

// Validate runs the prober once for the named provider and records the
// outcome. It only reports: a failed probe leaves the stored credential
// untouched apart from its Validated flag staying false.
func (s *Store) Validate(ctx context.Context, provider string, prober Prober) (bool, error) {
	s.mu.RLock()
	_, ok := s.creds[provider]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("provider %s: %w", provider, ErrMissing)
	}

	if err := prober.Probe(ctx); err != nil {
		return false, fmt.Errorf("validate %s credential: %w", provider, err)
	}

	s.mu.Lock()
	c := s.creds[provider]
	c.Validated = true
	s.creds[provider] = c
	s.mu.Unlock()
	return true, nil
}
