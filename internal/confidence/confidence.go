// Package confidence provides the bounded scoring primitives shared by every
// heuristic in the pipeline.
//
// A score is built from a base value plus a list of named factors. Each factor
// is an independently testable function returning a bounded delta; the total
// is always clamped to [0, 1].
package confidence

import "math"

// Factor is a named contribution to a confidence score.
type Factor struct {
	Name  string  `json:"name"`
	Delta float64 `json:"delta"`
}

// Clamp bounds v to [0, 1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Bound limits a single delta to [-limit, limit].
func Bound(delta, limit float64) float64 {
	if delta > limit {
		return limit
	}
	if delta < -limit {
		return -limit
	}
	return delta
}

// Combine sums base and every factor delta and clamps the result.
func Combine(base float64, factors ...Factor) float64 {
	total := base
	for _, f := range factors {
		total += f.Delta
	}
	return Clamp(total)
}

// Ratio returns part/whole clamped to [0, 1], or 0 when whole is zero.
func Ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return Clamp(float64(part) / float64(whole))
}

// Round2 rounds a score to two decimals for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
