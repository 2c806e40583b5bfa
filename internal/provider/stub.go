package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// StubDims is the width of stub embeddings.
const StubDims = 64

// StubReply is one scripted answer. A non-nil Err is returned instead of
// the content.
type StubReply struct {
	Content string
	Err     error
}

// StubProvider answers from a script and embeds text as a hashed bag of
// words, so similar wording yields similar vectors. It records every request.
type StubProvider struct {
	mu       sync.Mutex
	script   []StubReply
	fallback string
	calls    []Request
	embedErr error
}

func NewStubProvider(script ...StubReply) *StubProvider {
	return &StubProvider{
		script:   script,
		fallback: "I'm here. Tell me more.",
	}
}

// Push appends replies to the script.
func (m *StubProvider) Push(replies ...StubReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// FailEmbeddings makes every Embed call return err; nil restores them.
func (m *StubProvider) FailEmbeddings(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedErr = err
}

// Calls returns the requests seen so far.
func (m *StubProvider) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

func (m *StubProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if len(m.script) == 0 {
		if req.JSON {
			return &Response{Content: "{}"}, nil
		}
		return &Response{Content: m.fallback}, nil
	}

	next := m.script[0]
	m.script = m.script[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	words := len(strings.Fields(next.Content))
	return &Response{
		Content: next.Content,
		Usage:   Usage{CompletionTokens: words, TotalTokens: words},
	}, nil
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	embedErr := m.embedErr
	m.mu.Unlock()
	if embedErr != nil {
		return nil, embedErr
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	return HashEmbed(text), nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

// HashEmbed is the stub embedding: lowercase words hashed into StubDims
// buckets, then normalized.
func HashEmbed(text string) []float32 {
	vec := make([]float32, StubDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%StubDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
