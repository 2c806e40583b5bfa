package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/clock"
)

func TestNewEntry_Clamps(t *testing.T) {
	e := NewEntry(Draft{
		Pleasantness:       42,
		RelationshipPoints: -300,
		MaterialImportance: 3,
	})
	if e.ID == "" {
		t.Error("expected an id")
	}
	if e.Role != RoleUser {
		t.Errorf("expected default role %q, got %q", RoleUser, e.Role)
	}
	if e.Pleasantness != 10 || e.RelationshipPoints != -100 || e.MaterialImportance != 1 {
		t.Errorf("fields not clamped: %+v", e)
	}
}

func TestEntry_StampOnce(t *testing.T) {
	e := NewEntry(Draft{UserText: "hi"})
	if err := e.Stamp(affect.NewVector(0.4, 0.6), affect.Curiosity); err != nil {
		t.Fatalf("first stamp failed: %v", err)
	}
	if e.Valence != 0.4 || e.Arousal != 0.6 || e.Label != affect.Curiosity {
		t.Errorf("stamp not applied: %+v", e)
	}
	if err := e.Stamp(affect.NewVector(-1, 0), affect.Sadness); !errors.Is(err, ErrAlreadyStamped) {
		t.Errorf("expected ErrAlreadyStamped, got %v", err)
	}
	if e.Valence != 0.4 {
		t.Error("second stamp must not mutate the entry")
	}
}

func TestStore_AppendIsolatesCopy(t *testing.T) {
	s := NewStore()
	emb := []float32{1, 0}
	e := NewEntry(Draft{UserText: "a", Embedding: emb})
	emb[0] = 99

	committed := s.Append(e)
	e.Embedding[1] = 42

	snap := s.Snapshot()
	if len(snap) != 1 || s.Len() != 1 {
		t.Fatalf("expected one memory, got %d", len(snap))
	}
	if snap[0].Embedding[0] != 1 || snap[0].Embedding[1] != 0 {
		t.Errorf("stored embedding was mutated: %v", snap[0].Embedding)
	}
	if committed.ID != e.ID {
		t.Error("committed copy should keep the id")
	}
}

func TestStore_Oldest(t *testing.T) {
	s := NewStore()
	if _, ok := s.Oldest(); ok {
		t.Error("empty store has no oldest memory")
	}
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s.Append(NewEntry(Draft{Created: clock.Stamp{Wall: base.Add(time.Hour)}}))
	s.Append(NewEntry(Draft{Created: clock.Stamp{Wall: base}}))

	got, ok := s.Oldest()
	if !ok || !got.Equal(base) {
		t.Errorf("Oldest = %v, %v; want %v", got, ok, base)
	}
}
