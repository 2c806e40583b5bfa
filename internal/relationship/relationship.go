// Package relationship tracks how each user relates to the agent.
package relationship

import (
	"math"
	"sort"
	"sync"
)

const (
	MinPoints = -100
	MaxPoints = 100
)

// Data is one user's relationship record.
type Data struct {
	UserName           string  `json:"user_name"`
	InteractionCount   int     `json:"interaction_count"`
	RelationshipPoints int     `json:"relationship_points"`
	AffinityScore      float64 `json:"affinity_score"`
}

// Bucket returns the named bucket for the record's points.
func (d Data) Bucket() Bucket {
	return Partition(d.RelationshipPoints)
}

// Table holds the records for one conversation. It is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	users map[string]*Data
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{users: make(map[string]*Data)}
}

// get must be called with mu held for writing.
func (t *Table) get(user string) *Data {
	d, ok := t.users[user]
	if !ok {
		d = &Data{UserName: user}
		t.users[user] = d
	}
	return d
}

// Get returns a copy of the user's record, creating it on first reference.
func (t *Table) Get(user string) Data {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.get(user)
}

// AddInteraction bumps the user's interaction count.
func (t *Table) AddInteraction(user string) Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.get(user)
	d.InteractionCount++
	d.AffinityScore = Affinity(d.InteractionCount)
	return *d
}

// AdjustPoints adds delta to the user's points and re-clamps the total.
func (t *Table) AdjustPoints(user string, delta int) Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.get(user)
	d.RelationshipPoints = clampPoints(d.RelationshipPoints + delta)
	return *d
}

// Users lists every known user, sorted.
func (t *Table) Users() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.users))
	for name := range t.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Affinity grows with the log of the interaction count. Zero interactions score 0.
func Affinity(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Log(float64(count))
}

func clampPoints(p int) int {
	if p < MinPoints {
		return MinPoints
	}
	if p > MaxPoints {
		return MaxPoints
	}
	return p
}
