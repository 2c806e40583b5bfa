// Package emotion keeps the agent's running mood: it turns raw text into an
// affect pulse, smooths pulses into the live state and lets the state drift
// back toward neutral as real time passes.
package emotion

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/clock"
)

const (
	valenceSmoothing = 0.20
	arousalSmoothing = 0.15

	baselineArousal = 0.25
	valencePerHit   = 0.25

	// driftPerMinute is the neutral blend accumulated per 60s without a decay call.
	driftPerMinute = 0.02

	matchArousalWeight = 0.8
	matchNormalizer    = 1.5
)

// NeutralTarget is where Decay pulls the mood.
var NeutralTarget = affect.Vector{Valence: 0, Arousal: baselineArousal}

// Pulse is an unsmoothed appraisal reading.
type Pulse struct {
	Valence      float64 `json:"valence"`
	Arousal      float64 `json:"arousal"`
	Pleasantness int     `json:"pleasantness"`
}

// Vector returns the pulse position on the mood plane.
func (p Pulse) Vector() affect.Vector {
	return affect.NewVector(p.Valence, p.Arousal)
}

// Engine owns the live mood. It is not safe for concurrent use.
type Engine struct {
	mood      affect.Vector
	lastDecay clock.Stamp
	decayed   bool
}

// NewEngine starts at the neutral target.
func NewEngine() *Engine {
	return &Engine{mood: NeutralTarget}
}

// Mood returns the current smoothed mood.
func (e *Engine) Mood() affect.Vector {
	return e.mood
}

// Label buckets the live mood for display.
func (e *Engine) Label() affect.Label {
	return QuickLabel(e.mood)
}

// Apply smooths the live mood toward p.
func (e *Engine) Apply(p Pulse) {
	e.mood = affect.NewVector(
		e.mood.Valence+(p.Valence-e.mood.Valence)*valenceSmoothing,
		e.mood.Arousal+(p.Arousal-e.mood.Arousal)*arousalSmoothing,
	)
}

// Decay drifts the mood toward neutral in proportion to the time elapsed
// since the previous call and returns the blend it applied. The first call
// only records the baseline.
func (e *Engine) Decay(now clock.Stamp) float64 {
	if !e.decayed {
		e.lastDecay = now
		e.decayed = true
		return 0
	}
	elapsed := clock.Elapsed(now, e.lastDecay)
	e.lastDecay = now

	blend := math.Min(elapsed.Seconds()/60*driftPerMinute, 1)
	if blend <= 0 {
		return 0
	}
	e.mood = e.mood.Lerp(NeutralTarget, blend)
	return blend
}

// AffectMatch scores how close a remembered mood is to the live one, in [0,1].
func (e *Engine) AffectMatch(valence, arousal float64) float64 {
	return Similarity(e.mood, affect.Vector{Valence: valence, Arousal: arousal})
}

// Similarity is 1 for identical moods and 0 once the weighted distance
// reaches the normalizer.
func Similarity(a, b affect.Vector) float64 {
	dv := a.Valence - b.Valence
	da := (a.Arousal - b.Arousal) * matchArousalWeight
	d := math.Sqrt(dv*dv + da*da)
	return 1 - affect.Clamp(d/matchNormalizer, 0, 1)
}

// Appraise reads a pulse off text with the fixed lexicons.
func Appraise(text string) Pulse {
	if strings.TrimSpace(text) == "" {
		return Pulse{}
	}
	lower := strings.ToLower(text)

	net := countHits(lower, positiveWords) - countHits(lower, negativeWords)
	valence := affect.Clamp(float64(net)*valencePerHit, -1, 1)

	arousal := baselineArousal
	if containsAny(lower, urgencyMarkers) {
		arousal += 0.25
	}
	if containsAny(lower, lowArousalWords) {
		arousal -= 0.20
	}
	if containsAny(lower, calmingWords) {
		arousal -= 0.15
	}
	if isShouting(text) {
		arousal += 0.25
	}

	return Pulse{
		Valence:      valence,
		Arousal:      affect.Clamp(arousal, 0, 1),
		Pleasantness: int(math.Round(valence * 10)),
	}
}

// countHits counts every word present; overlapping words each count.
func countHits(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func isShouting(text string) bool {
	if utf8.RuneCountInString(text) < 4 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > 0.6
}
