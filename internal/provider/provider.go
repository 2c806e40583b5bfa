package provider

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one model call: an optional system prompt followed by the
// conversation so far. JSON asks the backend for a single JSON object when
// it supports a structured output mode.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	JSON     bool      `json:"json,omitempty"`
}

// Response represents the output from the model.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for AI model interactions.
type Provider interface {
	// Chat sends a request to the model and returns its reply.
	Chat(ctx context.Context, req Request) (*Response, error)

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the provider identifier (e.g., "stub", "openai").
	Name() string
}

// Names lists the backends New understands.
func Names() []string {
	return []string{"stub", "openai", "ollama", "gemini", "anthropic", "cli"}
}
