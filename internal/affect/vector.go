// Package affect models emotional state as a point on the valence/arousal
// plane and maps such points to named labels.
package affect

import "math"

const (
	// DefaultValenceWeight and DefaultArousalWeight weight the two axes in Distance.
	DefaultValenceWeight = 1.0
	DefaultArousalWeight = 0.8
)

// Vector is a mood point. Valence lies in [-1,1] and Arousal in [0,1];
// every constructor and blend re-clamps both fields.
type Vector struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

// NewVector builds a clamped Vector. Non-finite inputs collapse to zero.
func NewVector(valence, arousal float64) Vector {
	return Vector{
		Valence: Clamp(finite(valence), -1, 1),
		Arousal: Clamp(finite(arousal), 0, 1),
	}
}

// Lerp moves v toward other by t. t is not clamped, so values outside
// [0,1] extrapolate; the result is still clamped to the valid ranges.
func (v Vector) Lerp(other Vector, t float64) Vector {
	return NewVector(
		v.Valence+(other.Valence-v.Valence)*t,
		v.Arousal+(other.Arousal-v.Arousal)*t,
	)
}

// Distance is the weighted Euclidean distance between v and other.
func (v Vector) Distance(other Vector, valenceWeight, arousalWeight float64) float64 {
	dv := (v.Valence - other.Valence) * valenceWeight
	da := (v.Arousal - other.Arousal) * arousalWeight
	return math.Sqrt(dv*dv + da*da)
}

// Dist is Distance with the default weights.
func (v Vector) Dist(other Vector) float64 {
	return v.Distance(other, DefaultValenceWeight, DefaultArousalWeight)
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
