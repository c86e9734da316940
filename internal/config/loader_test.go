package config

import (
	"os"
	"testing"

	"github.com/promptdeck/prism/internal/types"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "0.0.0.0"
  port: 9999
session:
  window_cap: 10
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Session.WindowCap != 10 {
		t.Errorf("expected window cap 10, got %d", cfg.Session.WindowCap)
	}
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_PORT", "7777")
	defer os.Unsetenv("TEST_PORT")

	tmpFile, err := os.CreateTemp("", "test-config-env-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1 (default), got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
}

func TestModelMappingSupports(t *testing.T) {
	m := ModelMapping{
		Provider:   "openai",
		Model:      "gpt-4o",
		Operations: []string{"chat", "summarize"},
	}

	if !m.Supports(types.OpChat) {
		t.Error("expected chat to be supported")
	}
	if !m.Supports(types.OpSummarize) {
		t.Error("expected summarize to be supported")
	}
	if m.Supports(types.OpImage) {
		t.Error("image should not be supported")
	}
}

func TestLoadModelsFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "test-models-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
models:
  gpt-4o:
    provider: openai
    model: gpt-4o
    operations: [chat, summarize]
pricing:
  gpt-4o:
    input: 0.0000025
    output: 0.00001
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var models ModelsConfig
	if err := LoadFile(tmpFile.Name(), &models); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	mapping, ok := models.Models["gpt-4o"]
	if !ok {
		t.Fatal("gpt-4o mapping missing")
	}
	if mapping.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", mapping.Provider)
	}
	if price := models.Pricing["gpt-4o"]; price.Output != 0.00001 {
		t.Errorf("expected output rate 0.00001, got %v", price.Output)
	}
}
