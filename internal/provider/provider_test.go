package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOpenAIProvider(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"valence\": 0.5}", "role": "assistant"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "gpt-4o-mini", "")
	if p.Name() != "openai" {
		t.Errorf("Expected 'openai', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), Request{
		System:   "be brief",
		Messages: []Message{{Role: "user", Content: "hi"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != `{"valence": 0.5}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %v", body["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("expected system message first, got %v", first)
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", body["response_format"])
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}]}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "", "")
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("expected 3 dims, got %d", len(vec))
	}

	if _, err := p.Embed(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank text, got %v", err)
	}
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("key", server.URL, "", "")
	_, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("rate limits must be retryable")
	}
}

func TestOllamaProvider(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": {"role": "assistant", "content": "hi from ollama"}, "done": true, "eval_count": 10, "prompt_eval_count": 5}`))
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "llama3", "")
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected 'ollama', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), Request{
		System:   "sys",
		Messages: []Message{{Role: "user", Content: "hi"}},
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hi from ollama" {
		t.Errorf("Expected 'hi from ollama', got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}
	if body["format"] != "json" {
		t.Errorf("expected json format in request, got %v", body["format"])
	}
}

func TestOllamaProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding": [0.5, 0.25]}`))
	}))
	defer server.Close()

	p, _ := NewOllamaProvider(server.URL, "llama3", "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("unexpected embedding %v", vec)
	}
}

func TestAnthropicProvider(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_123",
			"content": [{"type": "text", "text": "hello from claude"}],
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("test-key", "claude-3")
	p.SetBaseURL(server.URL)
	if p.Name() != "anthropic" {
		t.Errorf("Expected 'anthropic', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), Request{
		System: "persona",
		Messages: []Message{
			{Role: "summary", Content: "we met"},
			{Role: "user", Content: "hi"},
			{Role: "user", Content: "again"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "hello from claude" {
		t.Errorf("Expected 'hello from claude', got '%s'", resp.Content)
	}
	if !strings.Contains(got.System, "persona") || !strings.Contains(got.System, "we met") {
		t.Errorf("summary should be folded into the system prompt: %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi\n\nagain" {
		t.Errorf("consecutive user turns should merge: %+v", got.Messages)
	}
}

func TestAnthropicProvider_RateLimitHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("key", "")
	p.SetBaseURL(server.URL)
	_, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter() != 2*time.Second {
		t.Errorf("expected 2s hint, got %v", rl.RetryAfter())
	}
}

func TestGeminiProvider_Name(t *testing.T) {
	// genai.NewClient does not dial on construction.
	p, err := NewGeminiProvider("fake-key", "gemini-pro", "")
	if err != nil {
		t.Logf("Skipping Gemini Name test due to client init error: %v", err)
		return
	}
	defer p.Close()
	if p.Name() != "gemini" {
		t.Errorf("Expected 'gemini', got '%s'", p.Name())
	}
	if _, err := p.Embed(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOpenAIProvider_Init(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "", "")
	if err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestStubProvider(t *testing.T) {
	p := NewStubProvider(StubReply{Content: "first"}, StubReply{Err: ErrTransient})
	if p.Name() != "stub" {
		t.Errorf("Expected 'stub', got '%s'", p.Name())
	}

	resp, err := p.Chat(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil || resp.Content != "first" {
		t.Fatalf("expected scripted reply, got %v / %v", resp, err)
	}
	if _, err := p.Chat(context.Background(), Request{}); !errors.Is(err, ErrTransient) {
		t.Errorf("expected scripted error, got %v", err)
	}
	resp, _ = p.Chat(context.Background(), Request{JSON: true})
	if resp.Content != "{}" {
		t.Errorf("exhausted script should answer JSON requests with {}, got %q", resp.Content)
	}
	if len(p.Calls()) != 3 {
		t.Errorf("expected 3 recorded calls, got %d", len(p.Calls()))
	}
}

func TestStubProvider_Cancelled(t *testing.T) {
	p := NewStubProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Chat(ctx, Request{}); err == nil {
		t.Error("Expected error on canceled context")
	}
}

func TestHashEmbed(t *testing.T) {
	a := HashEmbed("Where did I leave my keys?")
	b := HashEmbed("where did i leave my keys")
	c := HashEmbed("quantum chromodynamics lecture")

	dot := func(x, y []float32) float64 {
		var s float64
		for i := range x {
			s += float64(x[i]) * float64(y[i])
		}
		return s
	}
	if d := dot(a, b); d < 0.999 {
		t.Errorf("case and punctuation should not matter, got %f", d)
	}
	if dot(a, c) >= dot(a, b) {
		t.Error("unrelated text should be less similar")
	}
	if len(HashEmbed("")) != StubDims {
		t.Error("empty text still yields a full-width vector")
	}
}

func TestProvider_Errors(t *testing.T) {
	t.Run("OpenAI Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(500)
		}))
		defer server.Close()
		p, _ := NewOpenAIProvider("key", server.URL, "", "")
		_, err := p.Chat(context.Background(), Request{Messages: []Message{{Content: "hi"}}})
		if err == nil {
			t.Fatal("Expected error")
		}
		if IsRetryable(err) {
			t.Error("a 500 is not retried")
		}
	})

	t.Run("Anthropic Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(401)
		}))
		defer server.Close()
		p, _ := NewAnthropicProvider("key", "")
		p.SetBaseURL(server.URL)
		_, err := p.Chat(context.Background(), Request{Messages: []Message{{Content: "hi"}}})
		if err == nil {
			t.Fatal("Expected error")
		}
		if IsRetryable(err) {
			t.Error("a 401 is not retried")
		}
	})

	t.Run("Anthropic Overloaded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(529)
		}))
		defer server.Close()
		p, _ := NewAnthropicProvider("key", "")
		p.SetBaseURL(server.URL)
		_, err := p.Chat(context.Background(), Request{Messages: []Message{{Content: "hi"}}})
		if !errors.Is(err, ErrTransient) {
			t.Errorf("expected ErrTransient, got %v", err)
		}
	})

	t.Run("CLI without embeddings", func(t *testing.T) {
		p, _ := NewCLIProvider("echo", nil)
		if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"missing", "", 0},
		{"seconds", "3", 3 * time.Second},
		{"fractional", "0.5", 500 * time.Millisecond},
		{"negative", "-1", 0},
		{"date", now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			if got := parseRetryAfter(h, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		settings Settings
		want     string
		wantErr  bool
	}{
		{Settings{}, "stub", false},
		{Settings{Name: "openai", APIKey: "k"}, "openai", false},
		{Settings{Name: "openai"}, "", true},
		{Settings{Name: "ollama", BaseURL: "http://localhost:11434"}, "ollama", false},
		{Settings{Name: "anthropic", APIKey: "k", BaseURL: "http://localhost"}, "anthropic", false},
		{Settings{Name: "cli", CLIPath: "llm"}, "cli-llm", false},
		{Settings{Name: "mystery"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.settings.Name, func(t *testing.T) {
			p, err := New(tt.settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, p.Name())
			}
		})
	}
}
