package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client     *genai.Client
	model      string
	embedModel string
}

func NewGeminiProvider(apiKey, model, embedModel string, opts ...option.ClientOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model == "" {
		model = "gemini-1.5-flash"
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}

	return &GeminiProvider{
		client:     client,
		model:      model,
		embedModel: embedModel,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: %w: no messages", ErrInvalidInput)
	}

	system, contents := geminiContents(req.System, req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: %w: no conversational messages", ErrInvalidInput)
	}

	gm := p.client.GenerativeModel(p.model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if req.JSON {
		gm.ResponseMIMEType = "application/json"
	}

	cs := gm.StartChat()
	cs.History = contents[:len(contents)-1]
	resp, err := cs.SendMessage(ctx, contents[len(contents)-1].Parts...)
	if err != nil {
		return nil, p.wrap(fmt.Errorf("gemini completion failed: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: %w: no candidates returned", ErrMalformedResponse)
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			content.WriteString(string(t))
		}
	}

	out := &Response{Content: content.String()}
	if md := resp.UsageMetadata; md != nil {
		out.Usage = Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return out, nil
}

// geminiContents maps messages onto alternating user/model contents.
// Adjacent messages with the same role are merged; summaries are folded into
// the system instruction.
func geminiContents(system string, msgs []Message) (string, []*genai.Content) {
	var out []*genai.Content
	for _, m := range msgs {
		role := "user"
		switch m.Role {
		case "summary", "system":
			system = strings.TrimSpace(system + "\n\nEarlier in this conversation: " + m.Content)
			continue
		case "assistant":
			role = "model"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			prev := out[n-1].Parts[0].(genai.Text)
			out[n-1].Parts[0] = prev + "\n\n" + genai.Text(m.Content)
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, out
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	em := p.client.EmbeddingModel(p.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, p.wrap(fmt.Errorf("gemini embedding failed: %w", err))
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: %w: no embedding returned", ErrModelUnavailable)
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) wrap(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fromStatus(p.Name(), gerr.Code, gerr.Header, err)
	}
	return err
}
