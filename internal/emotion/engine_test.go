package emotion

import (
	"math"
	"testing"
	"time"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/clock"
)

func TestAppraise(t *testing.T) {
	testCases := []struct {
		name         string
		text         string
		wantValence  float64
		wantArousal  float64
		wantPleasant int
	}{
		{"love", "I love this!", 0.25, 0.5, 3},
		{"hate", "I hate this!", -0.25, 0.5, -3},
		{"empty", "", 0, 0, 0},
		{"whitespace", "   \t\n", 0, 0, 0},
		{"plain", "the report is on the table", 0, 0.25, 0},
		{"overlapping hits", "happy and glad, thanks", 0.75, 0.25, 8},
		{"mixed cancels", "good but bad", 0, 0.25, 0},
		{"saturates", "love like great good happy awesome", 1, 0.25, 10},
		{"low arousal", "so tired", 0, 0.05, 0},
		{"calming", "let me relax", 0, 0.1, 0},
		{"shouting", "WHERE IS IT", 0, 0.5, 0},
		{"short caps not shouting", "OK", 0, 0.25, 0},
		{"urgent shouting", "HELP ASAP!", 0, 0.75, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Appraise(tc.text)
			if math.Abs(p.Valence-tc.wantValence) > 1e-9 {
				t.Errorf("valence = %v, want %v", p.Valence, tc.wantValence)
			}
			if math.Abs(p.Arousal-tc.wantArousal) > 1e-9 {
				t.Errorf("arousal = %v, want %v", p.Arousal, tc.wantArousal)
			}
			if p.Pleasantness != tc.wantPleasant {
				t.Errorf("pleasantness = %d, want %d", p.Pleasantness, tc.wantPleasant)
			}
		})
	}
}

func TestEngine_Apply(t *testing.T) {
	e := NewEngine()
	e.Apply(Pulse{Valence: 1, Arousal: 1})

	m := e.Mood()
	if math.Abs(m.Valence-0.20) > 1e-9 {
		t.Errorf("valence = %v, want 0.20", m.Valence)
	}
	if math.Abs(m.Arousal-(0.25+0.75*0.15)) > 1e-9 {
		t.Errorf("arousal = %v, want %v", m.Arousal, 0.25+0.75*0.15)
	}
}

func TestEngine_DecayColdStart(t *testing.T) {
	c := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := NewEngine()
	e.Apply(Pulse{Valence: 1, Arousal: 1})
	before := e.Mood()

	if blend := e.Decay(c.Now()); blend != 0 {
		t.Errorf("first decay should be a no-op, blended %v", blend)
	}
	if e.Mood() != before {
		t.Error("first decay changed the mood")
	}
}

func TestEngine_DecayRate(t *testing.T) {
	c := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	e := NewEngine()
	e.Decay(c.Now())
	e.Apply(Pulse{Valence: 1, Arousal: 1})
	before := e.Mood()

	c.Advance(5 * time.Minute)
	blend := e.Decay(c.Now())
	if math.Abs(blend-0.10) > 1e-9 {
		t.Fatalf("blend after 5m = %v, want 0.10", blend)
	}
	want := before.Lerp(NeutralTarget, 0.10)
	if got := e.Mood(); math.Abs(got.Valence-want.Valence) > 1e-9 || math.Abs(got.Arousal-want.Arousal) > 1e-9 {
		t.Errorf("mood = %+v, want %+v", got, want)
	}

	c.Advance(24 * time.Hour)
	if blend := e.Decay(c.Now()); blend != 1 {
		t.Errorf("blend should cap at 1, got %v", blend)
	}
	if got := e.Mood(); math.Abs(got.Valence) > 1e-9 || math.Abs(got.Arousal-NeutralTarget.Arousal) > 1e-9 {
		t.Errorf("expected neutral after a day, got %+v", got)
	}
}

func TestEngine_DecayIgnoresWallJump(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)
	e := NewEngine()
	e.Decay(c.Now())

	c.Advance(5 * time.Minute)
	c.SetWall(start.Add(-48 * time.Hour))
	if blend := e.Decay(c.Now()); math.Abs(blend-0.10) > 1e-9 {
		t.Errorf("expected the 5m monotonic delta to drive decay, blended %v", blend)
	}
}

func TestAffectMatch(t *testing.T) {
	e := NewEngine()
	m := e.Mood()
	if got := e.AffectMatch(m.Valence, m.Arousal); got != 1 {
		t.Errorf("identical mood should match 1.0, got %v", got)
	}

	a := affect.Vector{Valence: -1, Arousal: 0}
	b := affect.Vector{Valence: 1, Arousal: 1}
	if got := Similarity(a, b); got != 0 {
		t.Errorf("opposite moods should match 0.0, got %v", got)
	}

	half := Similarity(affect.Vector{Valence: 0, Arousal: 0}, affect.Vector{Valence: 0.75, Arousal: 0})
	if math.Abs(half-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", half)
	}
}

func TestQuickLabel(t *testing.T) {
	testCases := []struct {
		v, a float64
		want affect.Label
	}{
		{0.8, 0.8, affect.Joy},
		{0.6, 0.2, affect.Content},
		{0.3, 0.7, affect.Anticipation},
		{0.3, 0.1, affect.Calm},
		{0.3, 0.4, affect.Curiosity},
		{-0.7, 0.9, affect.Anger},
		{-0.7, 0.2, affect.Sadness},
		{-0.3, 0.7, affect.Anxiety},
		{-0.3, 0.1, affect.Boredom},
		{-0.3, 0.4, affect.Frustration},
		{0, 0.8, affect.Surprise},
		{0, 0.25, affect.Neutral},
	}

	for _, tc := range testCases {
		if got := QuickLabel(affect.Vector{Valence: tc.v, Arousal: tc.a}); got != tc.want {
			t.Errorf("QuickLabel(%v, %v) = %s, want %s", tc.v, tc.a, got, tc.want)
		}
	}
}
