package relationship

// Bucket is a named band of relationship points.
type Bucket string

const (
	Hatred       Bucket = "Hatred"
	Disgust      Bucket = "Disgust"
	Hostility    Bucket = "Hostility"
	Dislike      Bucket = "Dislike"
	Wariness     Bucket = "Wariness"
	Coolness     Bucket = "Coolness"
	Neutral      Bucket = "Neutral"
	Acquaintance Bucket = "Acquaintance"
	Friendly     Bucket = "Friendly"
	Fondness     Bucket = "Fondness"
	Affection    Bucket = "Affection"
	Devotion     Bucket = "Devotion"
	Love         Bucket = "Love"
)

// Each bucket owns every score up to and including its ceiling.
var buckets = []struct {
	ceiling int
	bucket  Bucket
}{
	{-80, Hatred},
	{-60, Disgust},
	{-40, Hostility},
	{-25, Dislike},
	{-15, Wariness},
	{-5, Coolness},
	{5, Neutral},
	{15, Acquaintance},
	{30, Friendly},
	{50, Fondness},
	{70, Affection},
	{90, Devotion},
	{MaxPoints, Love},
}

// Buckets returns every bucket from most negative to most positive.
func Buckets() []Bucket {
	out := make([]Bucket, len(buckets))
	for i, b := range buckets {
		out[i] = b.bucket
	}
	return out
}

// Partition maps points to their bucket. Out-of-range input is clamped first.
func Partition(points int) Bucket {
	p := clampPoints(points)
	for _, b := range buckets {
		if p <= b.ceiling {
			return b.bucket
		}
	}
	return Love
}
