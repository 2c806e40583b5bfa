package agent

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Registry tracks conversations, creating each session on first use. Every
// conversation gets its own engine, so concurrent conversations never share
// mood, relationships, or memories.
type Registry struct {
	mu       sync.RWMutex
	deps     Deps
	cfg      Config
	sessions map[string]*entry
}

type entry struct {
	session   *Session
	startedAt time.Time
}

// NewRegistry creates a registry whose sessions share deps and cfg.
func NewRegistry(deps Deps, cfg Config) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		cfg:      cfg,
		sessions: make(map[string]*entry),
	}
}

// Bus returns the event bus shared by every session.
func (r *Registry) Bus() *EventBus { return r.deps.Bus }

// Session returns the conversation's session, creating it if needed.
func (r *Registry) Session(conversationID string) *Session {
	r.mu.RLock()
	e, ok := r.sessions[conversationID]
	r.mu.RUnlock()
	if ok {
		return e.session
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[conversationID]; ok {
		return e.session
	}
	s := NewSession(conversationID, r.deps, r.cfg)
	r.sessions[conversationID] = &entry{session: s, startedAt: r.deps.Clock.Now().Wall}
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(conversationID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[conversationID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// RunTurn routes a message to its conversation.
func (r *Registry) RunTurn(ctx context.Context, conversationID, userID, text string) (*Report, error) {
	return r.Session(conversationID).Turn(ctx, userID, text)
}

// Conversations lists known conversation ids in the order they started.
func (r *Registry) Conversations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.sessions[ids[i]], r.sessions[ids[j]]
		if !a.startedAt.Equal(b.startedAt) {
			return a.startedAt.Before(b.startedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Close forgets a conversation and everything it remembered.
func (r *Registry) Close(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[conversationID]
	delete(r.sessions, conversationID)
	return ok
}

// Len returns the number of live conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
