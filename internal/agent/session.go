// Package agent runs conversational turns: it ranks memories against the
// live mood, asks the model for an appraisal and a reply, then folds the
// exchange back into mood, relationship, and memory.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/appraisal"
	"github.com/felixgeelhaar/mnemo/internal/clock"
	"github.com/felixgeelhaar/mnemo/internal/dialogue"
	"github.com/felixgeelhaar/mnemo/internal/emotion"
	"github.com/felixgeelhaar/mnemo/internal/guard"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/relationship"
)

// ErrInvalidInput wraps guard rejections.
var ErrInvalidInput = errors.New("agent: invalid input")

// Model is the language-model surface a session needs. *provider.Client
// satisfies it.
type Model interface {
	Chat(ctx context.Context, req provider.Request) (*provider.Response, error)
	CompleteText(ctx context.Context, system, payload string) (string, error)
	CompleteStructured(ctx context.Context, system, payload string) (json.RawMessage, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes a session.
type Config struct {
	Persona        string
	Retrieval      memory.Options
	MaxTurns       int
	SummarizeBatch int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Persona:        DefaultPersona,
		Retrieval:      memory.DefaultOptions(),
		MaxTurns:       dialogue.DefaultMaxTurns,
		SummarizeBatch: dialogue.DefaultSummarizeBatch,
	}
}

// Deps are the collaborators shared by every session. Nil fields get
// working defaults.
type Deps struct {
	Model    Model
	Guard    *guard.Guard
	Observer *observe.Observer
	Clock    clock.Clock
	Bus      *EventBus
}

func (d Deps) withDefaults() Deps {
	if d.Guard == nil {
		d.Guard = guard.New(guard.DefaultPolicy)
	}
	if d.Observer == nil {
		d.Observer = observe.Discard()
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Bus == nil {
		d.Bus = NewEventBus()
	}
	return d
}

// Report describes one completed turn.
type Report struct {
	Reply     string              `json:"reply"`
	Memories  []memory.Scored     `json:"memories"`
	Fallback  bool                `json:"fallback_memory"`
	Appraisal appraisal.Appraisal `json:"appraisal"`
	Mood      affect.Vector       `json:"mood"`
	Label     affect.Label        `json:"label"`
	Bucket    relationship.Bucket `json:"relationship"`
	MemoryID  string              `json:"memory_id"`
}

// Snapshot is a read-only view of a session's affective state.
type Snapshot struct {
	Conversation  string              `json:"conversation"`
	Mood          affect.Vector       `json:"mood"`
	MoodLabel     affect.Label        `json:"mood_label"`
	CentroidLabel affect.Label        `json:"centroid_label"`
	Relationship  relationship.Data   `json:"relationship"`
	Bucket        relationship.Bucket `json:"bucket"`
	Memories      int                 `json:"memories"`
	Turns         int                 `json:"turns"`
	Buffered      int                 `json:"buffered_turns"`
}

// Session is one conversation: its own mood, relationship table, memory
// bank, and dialogue buffer. Turns run one at a time.
type Session struct {
	id   string
	cfg  Config
	deps Deps

	turnMu sync.Mutex

	// stateMu guards engine, state, and turns against concurrent readers.
	stateMu sync.RWMutex
	engine  *emotion.Engine
	state   *affect.State
	turns   int

	rel       *relationship.Table
	mem       *memory.Store
	dlg       *dialogue.Manager
	appraiser *appraisal.Appraiser
}

// NewSession builds an empty conversation.
func NewSession(id string, deps Deps, cfg Config) *Session {
	deps = deps.withDefaults()
	s := &Session{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		engine:    emotion.NewEngine(),
		state:     affect.NewState(affect.Neutral),
		rel:       relationship.NewTable(),
		mem:       memory.NewStore(),
		appraiser: appraisal.New(deps.Model),
	}
	s.dlg = dialogue.New(cfg.MaxTurns, cfg.SummarizeBatch, dialogue.SummarizerFunc(s.summarize))
	return s
}

// ID returns the conversation id.
func (s *Session) ID() string { return s.id }

// RunTurn processes one user message and returns the reply.
func (s *Session) RunTurn(ctx context.Context, userID, text string) (string, error) {
	rep, err := s.Turn(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return rep.Reply, nil
}

// Turn processes one user message and reports what happened. A turn either
// completes fully or, when the reply cannot be produced, leaves memory,
// relationship, and dialogue untouched.
func (s *Session) Turn(ctx context.Context, userID, text string) (*Report, error) {
	if v := s.deps.Guard.CheckUser(userID); v != nil {
		return nil, s.reject(userID, v)
	}
	if v := s.deps.Guard.CheckInput(text); v != nil {
		return nil, s.reject(userID, v)
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	ctx, span := s.deps.Observer.StartSpan(ctx, "RunTurn",
		attribute.String("conversation", s.id),
		attribute.String("user", userID))
	defer span.End()

	tlog := s.deps.Observer.Log().With().Str("conversation", s.id).Str("user", userID).Logger()
	s.publish(EventTurnStart, userID, nil)

	now := s.deps.Clock.Now()
	s.stateMu.Lock()
	blend := s.engine.Decay(now)
	s.state.Decay(blend)
	s.stateMu.Unlock()

	// Retrieval.
	vec, err := s.deps.Model.Embed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(userID, ctx.Err())
		}
		tlog.Warn().Err(err).Msg("embedding failed, ranking without a query vector")
		s.publish(EventEmbeddingFailed, userID, map[string]any{"error": err.Error()})
		vec = nil
	}

	q := memory.Query{Embedding: vec, Now: now}
	first, _ := s.mem.Oldest()
	if hint, ok := memory.DetectTimeHint(text, now.Wall, first); ok {
		q.Hint = &hint
	}

	_, rspan := s.deps.Observer.StartSpan(ctx, "Retrieve")
	res := s.mem.Retrieve(q, s.engine, s.cfg.Retrieval)
	rspan.SetAttributes(
		attribute.Int("memories.considered", res.Considered),
		attribute.Int("memories.returned", len(res.Memories)),
		attribute.Bool("memories.fallback", res.Fallback))
	if len(res.Memories) > 0 {
		rspan.SetAttributes(attribute.Float64("memories.top_score", res.Memories[0].Score))
	}
	rspan.End()

	s.publish(EventMemoriesRetrieved, userID, map[string]any{
		"considered": res.Considered,
		"returned":   len(res.Memories),
		"skipped":    res.Skipped,
		"fallback":   res.Fallback,
	})

	// Appraisal.
	actx, aspan := s.deps.Observer.StartSpan(ctx, "Appraise")
	appr, err := s.appraiser.Appraise(actx, text)
	aspan.End()
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(userID, ctx.Err())
		}
		tlog.Warn().Err(err).Msg("appraisal failed, using neutral appraisal")
		s.publish(EventAppraisalFallback, userID, map[string]any{"error": err.Error()})
	}

	// Reply.
	rel := s.rel.Get(userID)
	s.stateMu.RLock()
	liveLabel := s.engine.Label()
	s.stateMu.RUnlock()

	req := provider.Request{
		System: replyPrompt(s.cfg.Persona, liveLabel, rel, res.Memories, now.Wall),
	}
	for _, t := range s.dlg.Context(curatedTexts(res.Memories)) {
		req.Messages = append(req.Messages, provider.Message{Role: t.Role, Content: t.Text})
	}
	req.Messages = append(req.Messages, provider.Message{Role: "user", Content: text})

	pctx, pspan := s.deps.Observer.StartSpan(ctx, "Respond")
	resp, err := s.deps.Model.Chat(pctx, req)
	pspan.End()
	if err != nil {
		tlog.Error().Err(err).Msg("reply generation failed")
		return nil, s.fail(userID, fmt.Errorf("agent: generate reply: %w", err))
	}
	reply := resp.Content

	// Fold the exchange into state.
	s.stateMu.Lock()
	s.engine.Apply(emotion.Appraise(text))
	s.state.Update(appr.Vector())
	mood, centroid, quick := s.engine.Mood(), s.state.Label(), s.engine.Label()
	s.turns++
	s.stateMu.Unlock()

	s.rel.AddInteraction(userID)
	rel = s.rel.AdjustPoints(userID, appr.Pleasantness)

	entry := memory.NewEntry(memory.Draft{
		Created:            now,
		UserText:           text,
		AssistantText:      reply,
		Embedding:          vec,
		Pleasantness:       appr.Pleasantness,
		RelationshipPoints: rel.RelationshipPoints,
		MaterialImportance: appr.MaterialImportance,
	})
	if err := entry.Stamp(mood, centroid); err != nil {
		return nil, s.fail(userID, err)
	}
	stored := s.mem.Append(entry)
	s.publish(EventMemoryStored, userID, map[string]any{"id": stored.ID, "label": string(stored.Label)})

	c := s.dlg.Append(ctx, text, reply)
	switch {
	case c.Err != nil:
		tlog.Warn().Err(c.Err).Int("dropped", c.Trimmed).Msg("summarization failed, trimmed oldest turns")
		s.publish(EventSummaryFallback, userID, map[string]any{"dropped": c.Trimmed, "error": c.Err.Error()})
	case c.Summarized:
		s.publish(EventContextSummarized, userID, map[string]any{"folded": c.Folded})
	}

	tlog.Info().
		Str("mood", string(quick)).
		Str("relationship", string(rel.Bucket())).
		Int("memories", len(res.Memories)).
		Msg("turn complete")
	s.publish(EventTurnComplete, userID, map[string]any{
		"memory_id":    stored.ID,
		"mood":         string(quick),
		"relationship": string(rel.Bucket()),
	})

	return &Report{
		Reply:     reply,
		Memories:  res.Memories,
		Fallback:  res.Fallback,
		Appraisal: appr,
		Mood:      mood,
		Label:     quick,
		Bucket:    rel.Bucket(),
		MemoryID:  stored.ID,
	}, nil
}

// Memories returns every stored memory, oldest first.
func (s *Session) Memories() []memory.Entry {
	return s.mem.Snapshot()
}

// Dialogue returns the buffered turns.
func (s *Session) Dialogue() []dialogue.Turn {
	return s.dlg.Turns()
}

// Snapshot reports the mood and the relationship with user.
func (s *Session) Snapshot(user string) Snapshot {
	s.stateMu.RLock()
	mood := s.engine.Mood()
	quick := s.engine.Label()
	centroid := s.state.Label()
	turns := s.turns
	s.stateMu.RUnlock()

	rel := s.rel.Get(user)
	return Snapshot{
		Conversation:  s.id,
		Mood:          mood,
		MoodLabel:     quick,
		CentroidLabel: centroid,
		Relationship:  rel,
		Bucket:        rel.Bucket(),
		Memories:      s.mem.Len(),
		Turns:         turns,
		Buffered:      s.dlg.Len(),
	}
}

// Turns returns the number of completed turns.
func (s *Session) Turns() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.turns
}

// Users lists everyone who has spoken in this conversation.
func (s *Session) Users() []string {
	return s.rel.Users()
}

func (s *Session) summarize(ctx context.Context, turns []dialogue.Turn) (string, error) {
	ctx, span := s.deps.Observer.StartSpan(ctx, "Summarize", attribute.Int("turns", len(turns)))
	defer span.End()
	return s.deps.Model.CompleteText(ctx, summaryPrompt, renderTurns(turns))
}

func (s *Session) reject(userID string, v *guard.Violation) error {
	s.deps.Observer.Log().Warn().
		Str("conversation", s.id).
		Str("rule", v.Rule).
		Msg("turn rejected")
	s.publish(EventGuardViolation, userID, map[string]any{"rule": v.Rule})
	return fmt.Errorf("%w: %s", ErrInvalidInput, v.Message)
}

func (s *Session) fail(userID string, err error) error {
	s.publish(EventTurnFailed, userID, map[string]any{"error": err.Error()})
	return err
}

func (s *Session) publish(t EventType, userID string, data map[string]any) {
	s.deps.Bus.Publish(Event{
		Type:         t,
		Timestamp:    s.deps.Clock.Now().Wall,
		Conversation: s.id,
		User:         userID,
		Data:         data,
	})
}
