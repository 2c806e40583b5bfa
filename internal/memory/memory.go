// Package memory holds the long-term memory bank and ranks its records
// against a live turn.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/clock"
	"github.com/google/uuid"
)

// ErrAlreadyStamped is returned when emotion fields are stamped twice.
var ErrAlreadyStamped = errors.New("memory: emotion fields already stamped")

// Role tags who opened the exchange a memory records.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSummary   Role = "summary"
)

// Entry is one remembered exchange.
type Entry struct {
	ID                 string       `json:"id"`
	Created            clock.Stamp  `json:"-"`
	CreatedAt          time.Time    `json:"created_at"`
	Role               Role         `json:"role"`
	UserText           string       `json:"user_text"`
	AssistantText      string       `json:"assistant_text"`
	Embedding          []float32    `json:"-"`
	Valence            float64      `json:"valence"`
	Arousal            float64      `json:"arousal"`
	Label              affect.Label `json:"label"`
	Pleasantness       int          `json:"pleasantness"`
	RelationshipPoints int          `json:"relationship_points"`
	MaterialImportance float64      `json:"material_importance"`

	stamped bool
	seq     uint64
}

// Draft carries everything known about an exchange before it is stamped.
type Draft struct {
	Created            clock.Stamp
	Role               Role
	UserText           string
	AssistantText      string
	Embedding          []float32
	Pleasantness       int
	RelationshipPoints int
	MaterialImportance float64
}

// NewEntry builds an unstamped entry with a fresh id.
func NewEntry(d Draft) *Entry {
	role := d.Role
	if role == "" {
		role = RoleUser
	}
	emb := make([]float32, len(d.Embedding))
	copy(emb, d.Embedding)

	return &Entry{
		ID:                 uuid.NewString(),
		Created:            d.Created,
		CreatedAt:          d.Created.Wall,
		Role:               role,
		UserText:           d.UserText,
		AssistantText:      d.AssistantText,
		Embedding:          emb,
		Pleasantness:       clampInt(d.Pleasantness, -10, 10),
		RelationshipPoints: clampInt(d.RelationshipPoints, -100, 100),
		MaterialImportance: affect.Clamp(d.MaterialImportance, 0, 1),
	}
}

// Stamp records the mood in effect when the memory formed. It may be
// called once, before the entry is appended.
func (e *Entry) Stamp(mood affect.Vector, label affect.Label) error {
	if e.stamped {
		return ErrAlreadyStamped
	}
	v := affect.NewVector(mood.Valence, mood.Arousal)
	e.Valence = v.Valence
	e.Arousal = v.Arousal
	e.Label = label
	e.stamped = true
	return nil
}

// Stamped reports whether Stamp has run.
func (e *Entry) Stamped() bool { return e.stamped }

// Store is the append-only memory bank. It is safe for concurrent use.
// Nothing is ever evicted; the bank lives as long as the process.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	nextSeq uint64
}

// NewStore creates an empty bank.
func NewStore() *Store {
	return &Store{}
}

// Append commits e. The stored copy is sealed against further stamping.
func (s *Store) Append(e *Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	committed := *e
	committed.Embedding = append([]float32(nil), e.Embedding...)
	committed.stamped = true
	committed.seq = s.nextSeq
	s.entries = append(s.entries, committed)
	return committed
}

// Len returns the number of memories.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of every memory in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Oldest returns the creation time of the first memory.
func (s *Store) Oldest() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	oldest := s.entries[0].CreatedAt
	for _, e := range s.entries[1:] {
		if e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
	}
	return oldest, true
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
