// Package metric provides vector similarity kernels.
package metric

import (
	"errors"

	"github.com/viant/vec/search"
)

// ErrSizeMismatch is returned when two vectors have different lengths.
var ErrSizeMismatch = errors.New("vector sizes do not match")

// Magnitude calculates the magnitude (length) of a float32 slice.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// CosineSimilarity calculates the cosine similarity between two float32 slices.
// A zero-magnitude operand yields similarity 0.
func CosineSimilarity(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrSizeMismatch
	}

	m1 := Magnitude(v1)
	m2 := Magnitude(v2)

	// Avoid division by zero
	if m1 == 0 || m2 == 0 {
		return 0, nil
	}

	return 1 - cosineDistanceWithMagnitude(v1, v2, m1, m2), nil
}

// CosineDistance calculates 1 - CosineSimilarity, so that smaller is closer.
func CosineDistance(v1, v2 []float32) (float32, error) {
	sim, err := CosineSimilarity(v1, v2)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}
