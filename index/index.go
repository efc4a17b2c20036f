// Package index provides the nearest-neighbor capability behind the store:
// a common interface with a brute-force implementation (flat) and an
// accelerated graph implementation (hnsw). Both rank by descending cosine
// similarity with ties broken by ascending id and must return identical
// top-k results for the same contents.
//
// Implementations perform no internal locking; the store facade serializes
// access with its read-write lock.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// SearchResult represents a single ranked hit.
type SearchResult struct {
	// ID is the identifier of the entry (its insertion position).
	ID uint64

	// Score is the cosine similarity between the query and the entry,
	// higher is better.
	Score float32
}

// FilterFunc restricts a search to entries for which it returns true.
// A nil filter admits every entry.
type FilterFunc func(id uint64) bool

// Index is a nearest-neighbor index over append-only vectors.
type Index interface {
	// Insert adds a vector and returns its assigned id. Ids are assigned
	// sequentially starting at 0. The index retains v; callers must not
	// mutate it afterwards.
	Insert(v []float32) (uint64, error)

	// Search returns up to k entries ranked by descending cosine
	// similarity against q, ties broken by ascending id.
	Search(q []float32, k int, filter FilterFunc) ([]SearchResult, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Dimension returns the fixed vector dimensionality.
	Dimension() int

	// Name identifies the implementation.
	Name() string
}

// ValidateDimension checks a configured dimension.
func ValidateDimension(dim int) error {
	if dim <= 0 {
		return &ErrInvalidDimension{Dimension: dim}
	}
	return nil
}

// CheckVector validates a vector against the index dimension.
func CheckVector(dim int, v []float32) error {
	if len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	return nil
}

// SortResults orders results by descending score, ties by ascending id.
func SortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// Better reports whether a beats b under the ranking order
// (higher score first, lower id on ties).
func Better(a, b SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
