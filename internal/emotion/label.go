package emotion

import "github.com/felixgeelhaar/mnemo/internal/affect"

// QuickLabel buckets a mood with a fixed threshold table. It is deliberately
// independent of the centroid table that tags stored memories, so the two
// labels can disagree for the same point.
func QuickLabel(v affect.Vector) affect.Label {
	switch {
	case v.Valence >= 0.5:
		if v.Arousal >= 0.6 {
			return affect.Joy
		}
		return affect.Content
	case v.Valence >= 0.2:
		switch {
		case v.Arousal >= 0.6:
			return affect.Anticipation
		case v.Arousal < 0.3:
			return affect.Calm
		default:
			return affect.Curiosity
		}
	case v.Valence <= -0.5:
		if v.Arousal >= 0.6 {
			return affect.Anger
		}
		return affect.Sadness
	case v.Valence <= -0.2:
		switch {
		case v.Arousal >= 0.6:
			return affect.Anxiety
		case v.Arousal < 0.3:
			return affect.Boredom
		default:
			return affect.Frustration
		}
	default:
		if v.Arousal >= 0.7 {
			return affect.Surprise
		}
		return affect.Neutral
	}
}
