// Package ui defines the chat front-end surface and turns agent events into
// status lines.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/mnemo/internal/agent"
)

// UI receives progress while turns run.
type UI interface {
	UpdateStatus(status string)
	UpdateState(snap agent.Snapshot)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string)      {}
func (s SilentUI) UpdateState(snap agent.Snapshot) {}
func (s SilentUI) Log(msg string)                  {}

// Console writes status and log lines to w. Status lines are only shown
// when verbose.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func NewConsole(w io.Writer, verbose bool) *Console {
	return &Console{w: w, verbose: verbose}
}

func (c *Console) UpdateStatus(status string) {
	if !c.verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "· %s\n", status)
}

func (c *Console) UpdateState(snap agent.Snapshot) {
	if !c.verbose {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "· mood %s, relationship %s (%d)\n",
		snap.MoodLabel, snap.Bucket, snap.Relationship.RelationshipPoints)
}

func (c *Console) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, msg)
}

// Bind forwards the events of one conversation on bus to u as status lines.
func Bind(bus *agent.EventBus, conversation string, u UI) {
	bus.SubscribeAll(func(e agent.Event) {
		if e.Conversation != conversation {
			return
		}
		if line, ok := Describe(e); ok {
			u.UpdateStatus(line)
		}
	})
}

// Describe renders an event as a short human-readable line. Events with
// nothing worth showing report false.
func Describe(e agent.Event) (string, bool) {
	switch e.Type {
	case agent.EventTurnStart:
		return "thinking...", true
	case agent.EventMemoriesRetrieved:
		if e.Data["fallback"] == true {
			return fmt.Sprintf("nothing relevant in %v memories, recalling the latest", e.Data["considered"]), true
		}
		return fmt.Sprintf("recalled %v of %v memories", e.Data["returned"], e.Data["considered"]), true
	case agent.EventEmbeddingFailed:
		return "embedding unavailable, ranking by recency", true
	case agent.EventAppraisalFallback:
		return "appraisal unavailable, assuming a neutral tone", true
	case agent.EventContextSummarized:
		return fmt.Sprintf("summarized %v older turns", e.Data["folded"]), true
	case agent.EventSummaryFallback:
		return fmt.Sprintf("summary failed, dropped %v older turns", e.Data["dropped"]), true
	case agent.EventGuardViolation:
		return fmt.Sprintf("message rejected (%v)", e.Data["rule"]), true
	case agent.EventTurnFailed:
		return fmt.Sprintf("turn failed: %v", e.Data["error"]), true
	case agent.EventTurnComplete:
		return fmt.Sprintf("mood %v, relationship %v", e.Data["mood"], e.Data["relationship"]), true
	}
	return "", false
}
