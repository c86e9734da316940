package request

import (
	"strings"
	"testing"

	"github.com/promptdeck/prism/internal/types"
)

func TestChatMessageOrder(t *testing.T) {
	window := []types.Message{
		{Role: types.RoleUser, Content: "earlier question"},
		{Role: types.RoleAssistant, Content: "earlier answer"},
	}

	spec, err := Chat("openai", PersonaExpertProgrammer, window, "new question", types.Options{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(spec.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(spec.Messages))
	}
	if spec.Messages[0].Role != types.RoleSystem {
		t.Errorf("first message role = %q, want system", spec.Messages[0].Role)
	}
	if spec.Messages[0].Content != PersonaExpertProgrammer.Instruction() {
		t.Errorf("system content = %q", spec.Messages[0].Content)
	}
	if spec.Messages[1].Content != "earlier question" || spec.Messages[2].Content != "earlier answer" {
		t.Errorf("window not preserved in order: %+v", spec.Messages[1:3])
	}
	last := spec.Messages[3]
	if last.Role != types.RoleUser || last.Content != "new question" {
		t.Errorf("last message = %+v, want new user input", last)
	}
}

func TestChatSingleSystemMessage(t *testing.T) {
	// A window never contains system messages, but guard the builder's own
	// contribution: exactly one.
	spec, err := Chat("openai", PersonaFriendly, nil, "hi", types.Options{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var systems int
	for _, m := range spec.Messages {
		if m.Role == types.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("system message count = %d, want 1", systems)
	}
}

func TestChatOptionsPassThrough(t *testing.T) {
	temp := 1.7
	max := 42
	opts := types.Options{Model: "gpt-4o", Temperature: &temp, MaxTokens: &max}

	spec, err := Chat("openai", PersonaFriendly, nil, "hi", opts)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if spec.Options.Temperature == nil || *spec.Options.Temperature != 1.7 {
		t.Errorf("temperature not passed through unmodified")
	}
	if spec.Options.MaxTokens == nil || *spec.Options.MaxTokens != 42 {
		t.Errorf("max tokens not passed through unmodified")
	}
}

func TestChatRejectsEmptyInput(t *testing.T) {
	if _, err := Chat("openai", PersonaFriendly, nil, "", types.Options{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected error for empty user input")
	}
	if _, err := Chat("openai", PersonaFriendly, nil, "hi", types.Options{}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestParsePersona(t *testing.T) {
	tests := []struct {
		in   string
		want Persona
		ok   bool
	}{
		{"", PersonaFriendly, true},
		{"friendly", PersonaFriendly, true},
		{"expert-programmer", PersonaExpertProgrammer, true},
		{"travel-agent", PersonaTravelAgent, true},
		{"analyst", PersonaAnalyst, true},
		{"summarizer", PersonaSummarizer, true},
		{"pirate", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePersona(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePersona(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSummarizeUsesSummarizerInstruction(t *testing.T) {
	spec, err := Summarize("anthropic", "full document text", types.Options{Model: "claude-3-5-sonnet"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if spec.Operation != types.OpSummarize {
		t.Errorf("operation = %q", spec.Operation)
	}
	if spec.Messages[0].Content != PersonaSummarizer.Instruction() {
		t.Errorf("system message = %q", spec.Messages[0].Content)
	}
	if spec.Messages[1].Content != "full document text" {
		t.Errorf("document text not carried as user message")
	}
}

func TestImageAndSpeechCarryPrompt(t *testing.T) {
	img, err := Image("openai", "a red fox", types.Options{Model: "dall-e-3", Size: "1024x1024"})
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Operation != types.OpImage || img.Prompt != "a red fox" {
		t.Errorf("image spec = %+v", img)
	}

	sp, err := Speech("openai", "read this aloud", types.Options{Model: "tts-1", Voice: "alloy"})
	if err != nil {
		t.Fatalf("Speech: %v", err)
	}
	if sp.Operation != types.OpSpeech || sp.Prompt != "read this aloud" {
		t.Errorf("speech spec = %+v", sp)
	}

	if _, err := Image("openai", "", types.Options{Model: "dall-e-3"}); err == nil {
		t.Error("expected error for empty image prompt")
	}
}

func TestSocialPostPrompt(t *testing.T) {
	spec, err := SocialPost("openai", "LinkedIn", "zero-downtime deploys", types.Options{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("SocialPost: %v", err)
	}
	user := spec.Messages[1].Content
	if !strings.Contains(user, "LinkedIn") || !strings.Contains(user, "zero-downtime deploys") {
		t.Errorf("prompt missing platform or topic: %q", user)
	}
}
