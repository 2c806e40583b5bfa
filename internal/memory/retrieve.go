package memory

import (
	"math"
	"sort"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/clock"
)

const (
	affectBaseline     = 0.05
	weightRelationship = 0.35
	weightPleasantness = 0.30
	weightArousal      = 0.20
	weightImportance   = 0.15

	// temporalFloor keeps the proximity boost from ever vetoing a memory.
	temporalFloor = 0.5
)

// Options tunes a ranking pass.
type Options struct {
	SemanticFloor float64
	MinScore      float64
	TopK          int
	HalfLife      time.Duration
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		SemanticFloor: 0.15,
		MinScore:      0,
		TopK:          5,
		HalfLife:      6 * time.Hour,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = def.TopK
	}
	if o.HalfLife <= 0 {
		o.HalfLife = def.HalfLife
	}
	return o
}

// Matcher scores a remembered mood against the live one.
type Matcher interface {
	AffectMatch(valence, arousal float64) float64
}

// Query is the live side of a ranking pass.
type Query struct {
	Embedding []float32
	Now       clock.Stamp
	Hint      *TimeHint
}

// Signals is the per-candidate tuple assembled while scoring.
type Signals struct {
	Semantic           float64
	Valence            float64
	Arousal            float64
	Pleasantness       int
	RelationshipPoints int
	MaterialImportance float64
	Created            clock.Stamp
	Affect             float64
	Decay              float64
	Match              float64
	Temporal           float64
}

// Scored is a ranked memory.
type Scored struct {
	Entry    Entry
	Signals  Signals
	Score    float64
	Fallback bool
}

// Result is the outcome of a ranking pass.
type Result struct {
	Memories   []Scored
	Considered int
	Skipped    int
	BelowFloor int
	BelowMin   int
	Fallback   bool
}

// RetrieveTop ranks every memory against q without the fallback step.
func (s *Store) RetrieveTop(q Query, m Matcher, opts Options) Result {
	return Rank(s.Snapshot(), q, m, opts)
}

// Retrieve ranks every memory against q. When nothing survives filtering
// but the bank is not empty, the most recent memory is returned alone.
func (s *Store) Retrieve(q Query, m Matcher, opts Options) Result {
	entries := s.Snapshot()
	res := Rank(entries, q, m, opts)
	if len(res.Memories) == 0 {
		if latest, ok := mostRecent(entries); ok {
			res.Memories = []Scored{{Entry: latest, Fallback: true}}
			res.Fallback = true
		}
	}
	return res
}

// Rank scores entries, drops those under the semantic floor or the minimum
// score, and returns the best TopK. Malformed candidates are skipped.
func Rank(entries []Entry, q Query, m Matcher, opts Options) Result {
	opts = opts.normalized()
	res := Result{Considered: len(entries)}

	for _, e := range entries {
		sem, ok := cosine(q.Embedding, e.Embedding)
		if !ok {
			res.Skipped++
			continue
		}
		if sem < opts.SemanticFloor {
			res.BelowFloor++
			continue
		}

		sig := Signals{
			Semantic:           sem,
			Valence:            e.Valence,
			Arousal:            e.Arousal,
			Pleasantness:       e.Pleasantness,
			RelationshipPoints: e.RelationshipPoints,
			MaterialImportance: e.MaterialImportance,
			Created:            e.Created,
		}
		sig.Affect = AffectScore(sig)
		sig.Decay = TimeDecay(clock.Elapsed(q.Now, e.Created), opts.HalfLife)
		sig.Match = 1
		if m != nil {
			sig.Match = m.AffectMatch(e.Valence, e.Arousal)
		}
		sig.Temporal = 1
		if q.Hint != nil {
			sig.Temporal = q.Hint.Boost(e.CreatedAt)
		}

		score := sig.Semantic * sig.Affect * sig.Decay * sig.Match * sig.Temporal
		if math.IsNaN(score) || math.IsInf(score, 0) {
			res.Skipped++
			continue
		}
		if score < opts.MinScore {
			res.BelowMin++
			continue
		}
		res.Memories = append(res.Memories, Scored{Entry: e, Signals: sig, Score: score})
	}

	sort.SliceStable(res.Memories, func(i, j int) bool {
		return ranksBefore(res.Memories[i].Entry, res.Memories[i].Score, res.Memories[j].Entry, res.Memories[j].Score)
	})
	if len(res.Memories) > opts.TopK {
		res.Memories = res.Memories[:opts.TopK]
	}
	return res
}

// Higher score first; ties go to the newer memory, then the later insert.
func ranksBefore(a Entry, as float64, b Entry, bs float64) bool {
	if as != bs {
		return as > bs
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.seq > b.seq
}

func mostRecent(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.CreatedAt.After(latest.CreatedAt) || (e.CreatedAt.Equal(latest.CreatedAt) && e.seq > latest.seq) {
			latest = e
		}
	}
	return latest, true
}

// AffectScore folds the intrinsic signals of a memory into one weight.
// The baseline keeps a strong semantic match from being zeroed out.
func AffectScore(s Signals) float64 {
	return affectBaseline +
		weightRelationship*affect.Clamp(float64(s.RelationshipPoints)/100, -1, 1) +
		weightPleasantness*math.Abs(affect.Clamp(float64(s.Pleasantness)/10, -1, 1)) +
		weightArousal*math.Abs(affect.Clamp(s.Arousal, -1, 1)) +
		weightImportance*affect.Clamp(s.MaterialImportance, 0, 1)
}

// TimeDecay is exp(-elapsed/halfLife).
func TimeDecay(elapsed, halfLife time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-elapsed.Seconds() / halfLife.Seconds())
}

// Cosine returns the cosine similarity of a and b, or 0 when either has no magnitude.
func Cosine(a, b []float32) float64 {
	sim, _ := cosine(a, b)
	return sim
}

// cosine reports ok=false for inputs that cannot be compared at all.
func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, true
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, false
	}
	return sim, true
}
