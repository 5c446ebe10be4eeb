package auth

import (
	"fmt"
	"math"
)

// MeanVector computes the element-wise arithmetic mean of the given vectors.
// The result is deliberately NOT re-normalized: callers doing cosine
// comparison normalize at comparison time, which keeps enrollment
// idempotent under re-derivation from the same inputs.
func MeanVector(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector dimension mismatch: %d != %d", len(v), dim)
		}
		for i, f := range v {
			sums[i] += float64(f)
		}
	}

	mean := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sums {
		mean[i] = float32(s / n)
	}
	return mean, nil
}

// CosineSimilarity computes dot(a,b) / (norm(a) * norm(b)), clamped to
// [-1, 1]. Returns ErrDegenerateVector if either norm is zero so callers
// never see a NaN similarity.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim, nil
}
