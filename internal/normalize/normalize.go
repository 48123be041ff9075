// Package normalize implements the linear rating normalizer: mapping a
// score range [min, max] to [-1, 1] and back.
package normalize

import "github.com/arvelius/recoengine/internal/recoerr"

// Ratings normalizes every value in r to [-1, 1] given the declared score
// range [min, max]. Fails with DivisionByZero when max - min == 0.
func Ratings[Item comparable](r map[Item]float64, min, max float64) (map[Item]float64, error) {
	if max-min == 0 {
		return nil, recoerr.New(recoerr.DivisionByZero)
	}
	out := make(map[Item]float64, len(r))
	for k, v := range r {
		out[k] = Value(v, min, max)
	}
	return out, nil
}

// Value normalizes a single rating to [-1, 1]. Callers must ensure
// max - min != 0; Ratings enforces this precondition for batches.
func Value(v, min, max float64) float64 {
	return (2*v - min - max) / (max - min)
}

// Denormalize maps a normalized value in [-1, 1] back to [min, max].
func Denormalize(v, min, max float64) float64 {
	return 0.5*((v+1)*(max-min)) + min
}
