package store

import "math"

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
// Invalid input (mismatched lengths, zero vectors) yields the maximum
// distance so broken rows sort last instead of poisoning search results.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}
