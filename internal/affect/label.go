package affect

// Label names a region of the mood plane.
type Label string

const (
	Neutral       Label = "neutral"
	Joy           Label = "joy"
	Content       Label = "content"
	Love          Label = "love"
	Curiosity     Label = "curiosity"
	Surprise      Label = "surprise"
	Pride         Label = "pride"
	Calm          Label = "calm"
	Anticipation  Label = "anticipation"
	Fear          Label = "fear"
	Anxiety       Label = "anxiety"
	Sadness       Label = "sadness"
	Disgust       Label = "disgust"
	Anger         Label = "anger"
	Frustration   Label = "frustration"
	Shame         Label = "shame"
	Guilt         Label = "guilt"
	Boredom       Label = "boredom"
	Relief        Label = "relief"
	Determination Label = "determination"
)

type centroid struct {
	label Label
	at    Vector
}

// Scan order matters: on equal distance the earlier entry wins.
var centroids = []centroid{
	{Neutral, Vector{0, 0.25}},
	{Joy, Vector{0.8, 0.7}},
	{Content, Vector{0.6, 0.3}},
	{Love, Vector{0.9, 0.5}},
	{Curiosity, Vector{0.3, 0.6}},
	{Surprise, Vector{0.1, 0.9}},
	{Pride, Vector{0.7, 0.6}},
	{Calm, Vector{0.4, 0.1}},
	{Anticipation, Vector{0.4, 0.7}},
	{Fear, Vector{-0.7, 0.85}},
	{Anxiety, Vector{-0.5, 0.75}},
	{Sadness, Vector{-0.7, 0.2}},
	{Disgust, Vector{-0.6, 0.5}},
	{Anger, Vector{-0.8, 0.9}},
	{Frustration, Vector{-0.5, 0.6}},
	{Shame, Vector{-0.5, 0.35}},
	{Guilt, Vector{-0.4, 0.4}},
	{Boredom, Vector{-0.3, 0.05}},
	{Relief, Vector{0.5, 0.15}},
	{Determination, Vector{0.3, 0.8}},
}

// Labels returns every label in scan order.
func Labels() []Label {
	out := make([]Label, len(centroids))
	for i, c := range centroids {
		out[i] = c.label
	}
	return out
}

// Centroid returns the canonical point for l. Unknown labels map to Neutral.
func Centroid(l Label) Vector {
	for _, c := range centroids {
		if c.label == l {
			return c.at
		}
	}
	return centroids[0].at
}

// Nearest scans every centroid and returns the closest label and its distance.
func Nearest(v Vector) (Label, float64) {
	best := centroids[0].label
	bestDist := v.Dist(centroids[0].at)
	for _, c := range centroids[1:] {
		if d := v.Dist(c.at); d < bestDist {
			best, bestDist = c.label, d
		}
	}
	return best, bestDist
}
