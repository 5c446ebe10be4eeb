package auth

import (
	"errors"
	"math"
	"testing"
)

func TestMeanVector(t *testing.T) {
	tests := []struct {
		name     string
		vectors  [][]float32
		expected []float32
	}{
		{
			"single vector is its own mean",
			[][]float32{{1, 2, 3}},
			[]float32{1, 2, 3},
		},
		{
			"orthogonal unit vectors",
			[][]float32{{1, 0}, {0, 1}, {1, 1}},
			[]float32{2.0 / 3.0, 2.0 / 3.0},
		},
		{
			"opposite vectors cancel",
			[][]float32{{1, -1}, {-1, 1}},
			[]float32{0, 0},
		},
		{
			"negative components",
			[][]float32{{-2, 4}, {2, -2}},
			[]float32{0, 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mean, err := MeanVector(tc.vectors)
			if err != nil {
				t.Fatalf("MeanVector() error = %v", err)
			}
			if len(mean) != len(tc.expected) {
				t.Fatalf("MeanVector() dim = %d; want %d", len(mean), len(tc.expected))
			}
			for i := range mean {
				if math.Abs(float64(mean[i]-tc.expected[i])) > 1e-6 {
					t.Errorf("MeanVector()[%d] = %v; want %v", i, mean[i], tc.expected[i])
				}
			}
		})
	}
}

func TestMeanVectorNotRenormalized(t *testing.T) {
	// The mean of two unit vectors is shorter than a unit vector. It must be
	// stored as-is; normalization happens at comparison time.
	mean, err := MeanVector([][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("MeanVector() error = %v", err)
	}
	norm := math.Sqrt(float64(mean[0]*mean[0] + mean[1]*mean[1]))
	if math.Abs(norm-math.Sqrt2/2) > 1e-6 {
		t.Errorf("mean norm = %v; want %v (no re-normalization)", norm, math.Sqrt2/2)
	}
}

func TestMeanVectorErrors(t *testing.T) {
	if _, err := MeanVector(nil); err == nil {
		t.Error("MeanVector(nil) expected error, got nil")
	}
	if _, err := MeanVector([][]float32{{1, 2}, {1, 2, 3}}); err == nil {
		t.Error("MeanVector() with mismatched dims expected error, got nil")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical unit vectors", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scale invariant", []float32{2, 0}, []float32{5, 0}, 1},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, math.Sqrt2 / 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sim, err := CosineSimilarity(tc.a, tc.b)
			if err != nil {
				t.Fatalf("CosineSimilarity() error = %v", err)
			}
			if math.Abs(sim-tc.expected) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %v; want %v", tc.a, tc.b, sim, tc.expected)
			}
		})
	}
}

func TestCosineSimilarityClamped(t *testing.T) {
	// Accumulated float error on near-identical vectors must never push the
	// result above 1.
	a := make([]float32, 512)
	for i := range a {
		a[i] = 0.1
	}
	sim, err := CosineSimilarity(a, a)
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if sim > 1 {
		t.Errorf("CosineSimilarity(a, a) = %v; want <= 1", sim)
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	_, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	if !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("CosineSimilarity() with zero vector error = %v; want ErrDegenerateVector", err)
	}
	_, err = CosineSimilarity([]float32{1, 0}, []float32{0, 0})
	if !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("CosineSimilarity() with zero stored vector error = %v; want ErrDegenerateVector", err)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); err == nil {
		t.Error("CosineSimilarity() with mismatched dims expected error, got nil")
	}
	if _, err := CosineSimilarity(nil, nil); err == nil {
		t.Error("CosineSimilarity(nil, nil) expected error, got nil")
	}
}
