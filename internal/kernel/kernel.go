// Package kernel implements the user-user distance and similarity kernels
// over sparse rating vectors: Manhattan, Euclidean, Minkowski, Jaccard
// (index and distance), cosine similarity, Pearson correlation, and the
// single-pass Pearson approximation used to reweight k-NN neighbors.
package kernel

import (
	"math"

	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/internal/sparse"
)

// Method identifies a user-user kernel and whether it behaves as a
// distance (smaller = closer) or a similarity (larger = closer). This
// classification selects k-NN heap direction.
type Method int

const (
	Manhattan Method = iota
	Euclidean
	Minkowski
	JaccardIndex
	JaccardDistance
	CosineSimilarity
	PearsonCorrelation
	PearsonApproximation
)

// IsSimilarity reports whether larger values of this method mean "closer".
func (m Method) IsSimilarity() bool {
	switch m {
	case JaccardIndex, CosineSimilarity, PearsonCorrelation, PearsonApproximation:
		return true
	default:
		return false
	}
}

// IsDistance reports whether smaller values of this method mean "closer".
func (m Method) IsDistance() bool { return !m.IsSimilarity() }

// ManhattanDistance returns the sum of absolute differences over common
// keys. Fails with NoMatchingRatings when a, b share no key.
func ManhattanDistance[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	entries := sparse.CommonKeys(a, b)
	if len(entries) == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sum float64
	for _, e := range entries {
		sum += math.Abs(e.A - e.B)
	}
	return sum, nil
}

// EuclideanDistance returns the L2 norm of the difference over common keys.
func EuclideanDistance[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	entries := sparse.CommonKeys(a, b)
	if len(entries) == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sum float64
	for _, e := range entries {
		d := e.A - e.B
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// MinkowskiDistance generalizes Manhattan (p=1) and Euclidean (p=2).
// p=0 is a precondition violation and panics, matching the source's
// panic-on-p=0 behavior rather than returning a recoverable error.
func MinkowskiDistance[Item comparable](a, b sparse.Ratings[Item], p float64) (float64, error) {
	if p == 0 {
		panic("kernel: MinkowskiDistance requires p >= 1, got p == 0")
	}
	entries := sparse.CommonKeys(a, b)
	if len(entries) == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sum float64
	for _, e := range entries {
		sum += math.Pow(math.Abs(e.A-e.B), p)
	}
	return math.Pow(sum, 1/p), nil
}

// JaccardIndexScore returns |a∩b|/|a∪b| over the key sets. Both maps empty
// fails; one empty (the other non-empty) returns 0, not an error.
func JaccardIndexScore[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	if len(a) == 0 && len(b) == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union), nil
}

// JaccardDistanceScore is 1 - JaccardIndexScore.
func JaccardDistanceScore[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	idx, err := JaccardIndexScore(a, b)
	if err != nil {
		return 0, err
	}
	return 1 - idx, nil
}

// Cosine returns the cosine similarity restricted to common keys: both
// norms and the dot product are computed only over the shared key set.
// Fails with NoMatchingRatings when there are no common keys, and with
// IndeterminateForm when either norm is zero (a degenerate zero vector)
// or the result is NaN/Inf. A zero dot product yields 0.
func Cosine[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	entries := sparse.CommonKeys(a, b)
	if len(entries) == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var dot, normA, normB float64
	for _, e := range entries {
		dot += e.A * e.B
		normA += e.A * e.A
		normB += e.B * e.B
	}
	if normA == 0 || normB == 0 {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	result := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	return result, nil
}

// Pearson returns the standard two-pass Pearson correlation coefficient
// over common keys. Fails when there are no common keys, the denominator
// collapses to 0, or the result is NaN/Inf.
func Pearson[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	entries := sparse.CommonKeys(a, b)
	n := len(entries)
	if n == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sumA, sumB float64
	for _, e := range entries {
		sumA += e.A
		sumB += e.B
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)

	var cov, varA, varB float64
	for _, e := range entries {
		da, db := e.A-meanA, e.B-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	denom := math.Sqrt(varA) * math.Sqrt(varB)
	if denom == 0 {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	result := cov / denom
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	return result, nil
}

// PearsonApprox computes Pearson correlation via a single-pass algebraic
// rearrangement (the sum-of-products form). It may disagree with Pearson's
// exact two-pass form up to floating-point rounding on large n, by design —
// this is the approximation the prediction engine always uses to reweight
// user-based neighbors, regardless of which method selected them.
func PearsonApprox[Item comparable](a, b sparse.Ratings[Item]) (float64, error) {
	entries := sparse.CommonKeys(a, b)
	n := len(entries)
	if n == 0 {
		return 0, recoerr.New(recoerr.NoMatchingRatings)
	}
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	for _, e := range entries {
		sumA += e.A
		sumB += e.B
		sumAB += e.A * e.B
		sumA2 += e.A * e.A
		sumB2 += e.B * e.B
	}
	fn := float64(n)
	numerator := fn*sumAB - sumA*sumB
	denominator := math.Sqrt(fn*sumA2-sumA*sumA) * math.Sqrt(fn*sumB2-sumB*sumB)
	if denominator == 0 {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, recoerr.New(recoerr.IndeterminateForm)
	}
	return result, nil
}

// Distance dispatches to the named kernel. p is only consulted for
// Minkowski.
func Distance[Item comparable](method Method, a, b sparse.Ratings[Item], p float64) (float64, error) {
	switch method {
	case Manhattan:
		return ManhattanDistance(a, b)
	case Euclidean:
		return EuclideanDistance(a, b)
	case Minkowski:
		return MinkowskiDistance(a, b, p)
	case JaccardIndex:
		return JaccardIndexScore(a, b)
	case JaccardDistance:
		return JaccardDistanceScore(a, b)
	case CosineSimilarity:
		return Cosine(a, b)
	case PearsonCorrelation:
		return Pearson(a, b)
	case PearsonApproximation:
		return PearsonApprox(a, b)
	default:
		panic("kernel: unknown Method")
	}
}
