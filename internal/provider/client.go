package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/mnemo/internal/retry"
)

// Client wraps a Provider with bounded retry on rate limits and the two
// completion shapes the agent needs.
type Client struct {
	provider Provider
	retry    retry.Config
	log      *bolt.Logger
}

// NewClient builds a Client. A nil logger discards retry warnings.
func NewClient(p Provider, cfg retry.Config, log *bolt.Logger) *Client {
	if log == nil {
		log = bolt.New(bolt.NewConsoleHandler(io.Discard))
	}
	cfg.ShouldRetry = IsRetryable
	return &Client{provider: p, retry: cfg, log: log}
}

// Provider returns the wrapped backend.
func (c *Client) Provider() Provider { return c.provider }

// Chat sends req, retrying transient failures.
func (c *Client) Chat(ctx context.Context, req Request) (*Response, error) {
	cfg := c.retry
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.log.Warn().
			Str("provider", c.provider.Name()).
			Int("attempt", attempt).
			Str("wait", wait.String()).
			Err(err).
			Msg("model call failed, retrying")
	}

	var resp *Response
	err := retry.Do(ctx, cfg, func() error {
		var err error
		resp, err = c.provider.Chat(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CompleteText returns the model's plain-text answer to payload.
func (c *Client) CompleteText(ctx context.Context, system, payload string) (string, error) {
	resp, err := c.Chat(ctx, Request{
		System:   system,
		Messages: []Message{{Role: "user", Content: payload}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteStructured asks for a JSON object and returns it raw. Content that
// is not a JSON object yields ErrMalformedResponse.
func (c *Client) CompleteStructured(ctx context.Context, system, payload string) (json.RawMessage, error) {
	resp, err := c.Chat(ctx, Request{
		System:   system,
		Messages: []Message{{Role: "user", Content: payload}},
		JSON:     true,
	})
	if err != nil {
		return nil, err
	}
	return ExtractObject(resp.Content)
}

// Embed forwards to the backend. Embeddings are not retried; the caller
// degrades instead.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	return c.provider.Embed(ctx, text)
}

// ExtractObject pulls a single JSON object out of model output, tolerating
// code fences and surrounding prose.
func ExtractObject(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}

	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, truncate(content, 80))
		}
		s = s[start : end+1]
	}

	var obj map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: null object", ErrMalformedResponse)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
