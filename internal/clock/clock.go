// Package clock exposes wall and monotonic readings as one value so that
// elapsed-time math can prefer the monotonic counter when it is available.
package clock

import (
	"sync"
	"time"
)

// Stamp is a point in time read from a Clock.
// Mono is the monotonic offset since the clock's origin; it is only
// meaningful for stamps taken from the same clock (HasMono reports that).
type Stamp struct {
	Wall    time.Time
	Mono    time.Duration
	HasMono bool
}

// Clock yields stamps.
type Clock interface {
	Now() Stamp
}

// Elapsed returns how much time passed from then to now.
// The monotonic delta wins when both stamps carry one and it is positive;
// otherwise the wall delta is used. The result is never negative.
func Elapsed(now, then Stamp) time.Duration {
	if now.HasMono && then.HasMono {
		if d := now.Mono - then.Mono; d > 0 {
			return d
		}
	}
	d := now.Wall.Sub(then.Wall)
	if d < 0 {
		return 0
	}
	return d
}

// System reads the host clock.
type System struct {
	origin time.Time
}

// NewSystem creates a System clock whose monotonic origin is now.
func NewSystem() *System {
	return &System{origin: time.Now()}
}

func (s *System) Now() Stamp {
	now := time.Now()
	return Stamp{
		Wall:    now.Round(0),
		Mono:    now.Sub(s.origin),
		HasMono: true,
	}
}

// Manual is a controllable clock for tests and replays.
type Manual struct {
	mu   sync.Mutex
	wall time.Time
	mono time.Duration
}

// NewManual starts a Manual clock at the given wall time.
func NewManual(start time.Time) *Manual {
	return &Manual{wall: start}
}

func (m *Manual) Now() Stamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stamp{Wall: m.wall, Mono: m.mono, HasMono: true}
}

// Advance moves both readings forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = m.wall.Add(d)
	m.mono += d
}

// SetWall jumps the wall clock without touching the monotonic counter,
// the way an NTP correction would.
func (m *Manual) SetWall(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = t
}
