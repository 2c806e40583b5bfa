package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
)

type OllamaProvider struct {
	client     *api.Client
	model      string
	embedModel string
}

// NewOllamaProvider connects to baseURL, falling back to OLLAMA_HOST and then
// the local default.
func NewOllamaProvider(baseURL, model, embedModel string) (*OllamaProvider, error) {
	if model == "" {
		model = "llama3.2"
	}
	if embedModel == "" {
		embedModel = model
	}

	if baseURL == "" {
		baseURL = "http://localhost:11434"
		if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" {
			baseURL = envURL
		}
	}
	uri, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}

	return &OllamaProvider{
		client:     api.NewClient(uri, http.DefaultClient),
		model:      model,
		embedModel: embedModel,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	var apiMsgs []api.Message
	if req.System != "" {
		apiMsgs = append(apiMsgs, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		role := m.Role
		if role == "summary" {
			role = "system"
		}
		apiMsgs = append(apiMsgs, api.Message{Role: role, Content: m.Content})
	}

	creq := &api.ChatRequest{
		Model:    p.model,
		Messages: apiMsgs,
		Stream:   new(bool), // false
	}
	if req.JSON {
		creq.Format = json.RawMessage(`"json"`)
	}

	var content strings.Builder
	var usage Usage
	err := p.client.Chat(ctx, creq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			usage = Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, p.wrap(fmt.Errorf("ollama chat failed: %w", err))
	}

	return &Response{Content: content.String(), Usage: usage}, nil
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	resp, err := p.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  p.embedModel,
		Prompt: text,
	})
	if err != nil {
		return nil, p.wrap(fmt.Errorf("ollama embedding failed: %w", err))
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: %w: empty embedding from %s", ErrModelUnavailable, p.embedModel)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (p *OllamaProvider) wrap(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return fromStatus(p.Name(), se.StatusCode, nil, err)
	}
	var sep *api.StatusError
	if errors.As(err, &sep) {
		return fromStatus(p.Name(), sep.StatusCode, nil, err)
	}
	return err
}
