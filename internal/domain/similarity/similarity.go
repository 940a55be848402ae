// Package similarity scores how close two embedding vectors are.
package similarity

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1]. Missing,
// mismatched-length or zero-norm inputs yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	c := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// Score returns the cosine similarity clamped to [0, 1]. Opposed vectors are
// treated as unrelated.
func Score(a, b []float32) float64 {
	c := Cosine(a, b)
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
