package store

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scale invariant", []float32{2, 0}, []float32{10, 0}, 0},
		{"mismatched lengths", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CosineDistance(tc.a, tc.b)
			if math.Abs(result-tc.expected) > 1e-9 {
				t.Errorf("CosineDistance(%v, %v) = %v; want %v", tc.a, tc.b, result, tc.expected)
			}
		})
	}
}
