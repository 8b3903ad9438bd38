// Package vector provides the small amount of vector math the quest
// engine needs to compare title embeddings.
package vector

import (
	"errors"
	"math"
)

// ErrDimensionMismatch indicates a violation of the embedding-dimension
// contract between two vectors. Callers surface this rather than retrying:
// it means the embeddings came from incompatible models.
var ErrDimensionMismatch = errors.New("vectors have different dimensions")

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero-magnitude vector yields 0 instead of dividing by zero.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
