// Package rating derives a product's displayed score from its raw ratings.
// Everything here is pure so it can be used inside a retry loop.
package rating

import "math"

const (
	MinScore = 0.0
	MaxScore = 5.0
)

// Result is the outcome of folding one more score into a ratings sequence.
type Result struct {
	Ratings []float64
	Rating  float64
}

// Aggregate appends score to ratings and recomputes the displayed rating.
// The input slice is never modified.
func Aggregate(ratings []float64, score float64) Result {
	next := make([]float64, len(ratings), len(ratings)+1)
	copy(next, ratings)
	next = append(next, score)

	return Result{
		Ratings: next,
		Rating:  Of(next),
	}
}

// Of returns the mean of ratings rounded to the nearest half point, or 0 for
// an empty sequence.
func Of(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}

	var sum float64
	for _, r := range ratings {
		sum += r
	}

	return RoundHalf(sum / float64(len(ratings)))
}

// RoundHalf rounds v to the nearest multiple of 0.5, with ties going up.
func RoundHalf(v float64) float64 {
	return math.Floor(v*2+0.5) / 2
}

// Valid reports whether score lies within the accepted range.
func Valid(score float64) bool {
	return score >= MinScore && score <= MaxScore && !math.IsNaN(score)
}
