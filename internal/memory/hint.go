package memory

import (
	"math"
	"strings"
	"time"
)

const day = 24 * time.Hour

// TimeHint points retrieval at a moment implied by the query text.
type TimeHint struct {
	Phrase string
	Target time.Time
	Window time.Duration
}

// Boost returns the proximity multiplier for a memory created at t.
// It ranges from 0.5 far from the target up to 1.5 right on it.
func (h TimeHint) Boost(t time.Time) float64 {
	if h.Window <= 0 {
		return 1
	}
	dt := math.Abs(t.Sub(h.Target).Seconds())
	return temporalFloor + math.Exp(-dt/h.Window.Seconds())
}

type relativePhrase struct {
	phrase string
	offset time.Duration
	window time.Duration
}

var relativePhrases = []relativePhrase{
	{"earlier today", 3 * time.Hour, 3 * time.Hour},
	{"this morning", 6 * time.Hour, 4 * time.Hour},
	{"last night", 16 * time.Hour, 6 * time.Hour},
	{"yesterday", day, 12 * time.Hour},
	{"the other day", 3 * day, 36 * time.Hour},
	{"last week", 7 * day, 3 * day},
	{"last month", 30 * day, 10 * day},
	{"last year", 365 * day, 60 * day},
}

// These resolve to the oldest memory rather than a fixed offset.
var firstMeetingPhrases = []string{
	"first interaction",
	"first time we talked",
	"when we first met",
	"first conversation",
}

const firstMeetingWindow = time.Hour

// DetectTimeHint looks for a temporal phrase in text. first is the creation
// time of the oldest memory, or the zero time when the bank is empty.
// The longest matching phrase wins.
func DetectTimeHint(text string, now, first time.Time) (TimeHint, bool) {
	lower := strings.ToLower(text)

	var best TimeHint
	found := false
	consider := func(h TimeHint) {
		if !found || len(h.Phrase) > len(best.Phrase) {
			best, found = h, true
		}
	}

	for _, p := range relativePhrases {
		if strings.Contains(lower, p.phrase) {
			consider(TimeHint{Phrase: p.phrase, Target: now.Add(-p.offset), Window: p.window})
		}
	}
	if !first.IsZero() {
		for _, p := range firstMeetingPhrases {
			if strings.Contains(lower, p) {
				consider(TimeHint{Phrase: p, Target: first, Window: firstMeetingWindow})
			}
		}
	}
	return best, found
}
