package provider

import (
	"fmt"
	"strings"
)

// Settings selects and configures a backend.
type Settings struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	// CLIPath and CLIArgs apply to the "cli" backend only.
	CLIPath string
	CLIArgs []string
}

// New constructs the backend named in s.
func New(s Settings) (Provider, error) {
	switch strings.ToLower(s.Name) {
	case "", "stub":
		return NewStubProvider(), nil
	case "openai":
		return NewOpenAIProvider(s.APIKey, s.BaseURL, s.Model, s.EmbedModel)
	case "ollama":
		return NewOllamaProvider(s.BaseURL, s.Model, s.EmbedModel)
	case "gemini":
		return NewGeminiProvider(s.APIKey, s.Model, s.EmbedModel)
	case "anthropic":
		p, err := NewAnthropicProvider(s.APIKey, s.Model)
		if err != nil {
			return nil, err
		}
		if s.BaseURL != "" {
			p.SetBaseURL(s.BaseURL)
		}
		return p, nil
	case "cli":
		return NewCLIProvider(s.CLIPath, s.CLIArgs)
	}
	return nil, fmt.Errorf("unknown provider %q (want one of %s)", s.Name, strings.Join(Names(), ", "))
}

// NeedsKey reports whether the named backend requires an API key.
func NeedsKey(name string) bool {
	switch strings.ToLower(name) {
	case "openai", "gemini", "anthropic":
		return true
	}
	return false
}
