// Package request assembles provider request specs from normalized inputs:
// a persona, the retained conversation window, and the new user input.
package request

import (
	"fmt"
	"time"

	"github.com/promptdeck/prism/internal/types"
)

// Persona selects a fixed system instruction from a closed set. Adding a
// persona is a table edit, not new branch logic.
type Persona string

const (
	PersonaFriendly         Persona = "friendly"
	PersonaExpertProgrammer Persona = "expert-programmer"
	PersonaTravelAgent      Persona = "travel-agent"
	PersonaAnalyst          Persona = "analyst"
	PersonaSummarizer       Persona = "summarizer"
)

var personaInstructions = map[Persona]string{
	PersonaFriendly:         "You are a helpful assistant. Provide friendly and useful responses.",
	PersonaExpertProgrammer: "You are an expert programmer. Provide detailed and advanced programming help.",
	PersonaTravelAgent:      "You are an expert travel planner. Provide the best possible itinerary to make travel as enjoyable as possible.",
	PersonaAnalyst:          "You are an expert stock market data analyst.",
	PersonaSummarizer:       "You are an expert summarizer. Summarize the document in a very concise manner highlighting key points in bulleted format.",
}

// ParsePersona validates a persona name from the wire. The empty string
// selects the friendly default.
func ParsePersona(s string) (Persona, bool) {
	if s == "" {
		return PersonaFriendly, true
	}
	p := Persona(s)
	if _, ok := personaInstructions[p]; !ok {
		return "", false
	}
	return p, true
}

// Instruction returns the persona's fixed system instruction text.
func (p Persona) Instruction() string {
	if text, ok := personaInstructions[p]; ok {
		return text
	}
	return personaInstructions[PersonaFriendly]
}

// Chat builds a chat request: exactly one persona system message first,
// then the window snapshot, then the new user message, in that order.
// Temperature and max-tokens pass through unmodified; the provider rejects
// out-of-range values itself.
func Chat(provider string, persona Persona, window []types.Message, userInput string, opts types.Options) (*types.RequestSpec, error) {
	if userInput == "" {
		return nil, fmt.Errorf("user input is empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages := make([]types.Message, 0, len(window)+2)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: persona.Instruction()})
	messages = append(messages, window...)
	messages = append(messages, types.Message{Role: types.RoleUser, Content: userInput})

	return &types.RequestSpec{
		Provider:   provider,
		Operation:  types.OpChat,
		Messages:   messages,
		Options:    opts,
		ReceivedAt: time.Now(),
	}, nil
}

// Summarize builds a single-turn summarization request over extracted
// document text. No window: summarization is stateless.
func Summarize(provider, documentText string, opts types.Options) (*types.RequestSpec, error) {
	if documentText == "" {
		return nil, fmt.Errorf("document text is empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &types.RequestSpec{
		Provider:  provider,
		Operation: types.OpSummarize,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: PersonaSummarizer.Instruction()},
			{Role: types.RoleUser, Content: documentText},
		},
		Options:    opts,
		ReceivedAt: time.Now(),
	}, nil
}

// Image builds an image generation request.
func Image(provider, prompt string, opts types.Options) (*types.RequestSpec, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt is empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &types.RequestSpec{
		Provider:   provider,
		Operation:  types.OpImage,
		Prompt:     prompt,
		Options:    opts,
		ReceivedAt: time.Now(),
	}, nil
}

// Speech builds a speech synthesis request.
func Speech(provider, input string, opts types.Options) (*types.RequestSpec, error) {
	if input == "" {
		return nil, fmt.Errorf("input text is empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &types.RequestSpec{
		Provider:   provider,
		Operation:  types.OpSpeech,
		Prompt:     input,
		Options:    opts,
		ReceivedAt: time.Now(),
	}, nil
}

// SocialPost builds the prompt for a platform-tailored social media post.
func SocialPost(provider, platform, topic string, opts types.Options) (*types.RequestSpec, error) {
	if topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	prompt := fmt.Sprintf(`You are tasked with generating a social media post for a specific platform. Your goal is to create a concise, engaging post that adheres to the platform's best practices and captures the given topic.
Social Media Platform: %s
Topic: %s

Guidelines:
1. Tailor the post to the platform, considering character limits and typical post structures.
2. Focus on the given topic, ensuring the content is relevant and informative.
3. Include appropriate hashtags, mentions, or emojis if relevant.
4. Open with a compelling hook to grab the audience's attention.
5. If applicable, include a call-to-action that encourages engagement.

Your output should be the social media post only, without any additional explanation.`, platform, topic)

	return &types.RequestSpec{
		Provider:  provider,
		Operation: types.OpChat,
		Messages: []types.Message{
			{Role: types.RoleSystem, Content: "You are a social media influencer."},
			{Role: types.RoleUser, Content: prompt},
		},
		Options:    opts,
		ReceivedAt: time.Now(),
	}, nil
}
