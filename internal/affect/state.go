package affect

const (
	// UpdateBlend is how far each incoming pulse pulls the state.
	UpdateBlend = 0.25
	// RelabelThreshold is the distance from the assigned label's centroid
	// the state must exceed before it is re-labeled.
	RelabelThreshold = 0.15
)

// State is a smoothed mood point with a sticky label.
// It is not safe for concurrent use; callers serialize access per session.
type State struct {
	vector Vector
	label  Label
}

// NewState starts at the centroid of l.
func NewState(l Label) *State {
	return &State{vector: Centroid(l), label: l}
}

func (s *State) Vector() Vector { return s.vector }
func (s *State) Label() Label   { return s.label }

// Update blends toward incoming.
func (s *State) Update(incoming Vector) {
	s.vector = s.vector.Lerp(incoming, UpdateBlend)
	s.relabel()
}

// Decay blends toward the Neutral centroid by drift.
func (s *State) Decay(drift float64) {
	if drift <= 0 {
		return
	}
	s.vector = s.vector.Lerp(Centroid(Neutral), Clamp(drift, 0, 1))
	s.relabel()
}

// relabel only moves off the current label once the state has drifted past
// the threshold; a nearer centroid alone is not enough.
func (s *State) relabel() {
	if s.vector.Dist(Centroid(s.label)) <= RelabelThreshold {
		return
	}
	s.label, _ = Nearest(s.vector)
}
