// Package dialogue keeps the short-lived turn buffer that accompanies each
// reply request, folding its oldest turns into a summary when it overflows.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSummary   = "summary"

	DefaultMaxTurns       = 16
	DefaultSummarizeBatch = 8
)

// Turn is one buffered utterance.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Summarizer condenses turns into a single paragraph.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, turns []Turn) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// Compaction reports what an overflow did to the buffer.
type Compaction struct {
	Summarized bool
	Folded     int
	Trimmed    int
	Err        error
}

// Manager owns the buffer. Appends are expected to come from one turn at a
// time; reads may happen concurrently.
type Manager struct {
	mu         sync.RWMutex
	turns      []Turn
	maxTurns   int
	batch      int
	summarizer Summarizer
}

// New creates a Manager. Non-positive sizes fall back to the defaults and the
// batch never exceeds the maximum.
func New(maxTurns, batch int, s Summarizer) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if batch <= 0 {
		batch = DefaultSummarizeBatch
	}
	if batch > maxTurns {
		batch = maxTurns
	}
	return &Manager{maxTurns: maxTurns, batch: batch, summarizer: s}
}

// Append adds a user/assistant pair. On overflow the oldest batch is replaced
// by one summary turn; if summarizing fails, the turns are kept and only the
// overflow is trimmed from the front. The failure is reported in the
// Compaction.
func (m *Manager) Append(ctx context.Context, userText, assistantText string) Compaction {
	m.mu.Lock()
	m.turns = append(m.turns, Turn{Role: RoleUser, Text: userText}, Turn{Role: RoleAssistant, Text: assistantText})
	if len(m.turns) <= m.maxTurns {
		m.mu.Unlock()
		return Compaction{}
	}
	oldest := append([]Turn(nil), m.turns[:m.batch]...)
	m.mu.Unlock()

	var c Compaction
	var summary string
	if m.summarizer == nil {
		c.Err = fmt.Errorf("dialogue: no summarizer configured")
	} else {
		summary, c.Err = m.summarizer.Summarize(ctx, oldest)
		if c.Err == nil && strings.TrimSpace(summary) == "" {
			c.Err = fmt.Errorf("dialogue: empty summary")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.Err == nil {
		rest := m.turns[m.batch:]
		m.turns = append([]Turn{{Role: RoleSummary, Text: strings.TrimSpace(summary)}}, rest...)
		c.Summarized = true
		c.Folded = len(oldest)
	}

	if over := len(m.turns) - m.maxTurns; over > 0 {
		m.turns = append([]Turn(nil), m.turns[over:]...)
		c.Trimmed = over
	}
	return c
}

// Turns returns a copy of the buffer.
func (m *Manager) Turns() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Turn(nil), m.turns...)
}

// Len returns the number of buffered turns.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Context returns the buffer minus any turn whose text exactly matches one
// of the curated texts already being surfaced.
func (m *Manager) Context(curated []string) []Turn {
	skip := make(map[string]struct{}, len(curated))
	for _, c := range curated {
		skip[c] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Turn, 0, len(m.turns))
	for _, t := range m.turns {
		if _, dup := skip[t.Text]; dup {
			continue
		}
		out = append(out, t)
	}
	return out
}
