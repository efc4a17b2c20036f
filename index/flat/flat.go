// Package flat provides an exact brute-force implementation of the
// nearest-neighbor index. It scans every stored vector, which keeps it
// correct at any size and fast enough for small corpora.
package flat

import (
	"container/heap"

	"github.com/minutesai/semindex/index"
	"github.com/minutesai/semindex/metric"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	// It must be > 0 and is enforced for all inserts and searches.
	Dimension int
}

// Flat represents a brute-force index for vector search.
type Flat struct {
	vectors [][]float32
	opts    Options
}

// New creates a new instance of the flat index.
func New(optFns ...func(o *Options)) (*Flat, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateDimension(opts.Dimension); err != nil {
		return nil, err
	}

	return &Flat{
		vectors: make([][]float32, 0),
		opts:    opts,
	}, nil
}

// Name implements index.Index.
func (f *Flat) Name() string { return "flat" }

// Dimension implements index.Index.
func (f *Flat) Dimension() int { return f.opts.Dimension }

// Len implements index.Index.
func (f *Flat) Len() int { return len(f.vectors) }

// Insert implements index.Index.
func (f *Flat) Insert(v []float32) (uint64, error) {
	if err := index.CheckVector(f.opts.Dimension, v); err != nil {
		return 0, err
	}

	id := uint64(len(f.vectors))
	f.vectors = append(f.vectors, v)
	return id, nil
}

// Search implements index.Index.
func (f *Flat) Search(q []float32, k int, filter index.FilterFunc) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.CheckVector(f.opts.Dimension, q); err != nil {
		return nil, err
	}

	// Bounded heap keyed so the worst candidate is on top.
	best := &worstFirstHeap{}
	for id, v := range f.vectors {
		if filter != nil && !filter(uint64(id)) {
			continue
		}

		score, err := metric.CosineSimilarity(q, v)
		if err != nil {
			return nil, err
		}

		candidate := index.SearchResult{ID: uint64(id), Score: score}
		if best.Len() < k {
			heap.Push(best, candidate)
		} else if index.Better(candidate, best.items[0]) {
			best.items[0] = candidate
			heap.Fix(best, 0)
		}
	}

	results := make([]index.SearchResult, best.Len())
	copy(results, best.items)
	index.SortResults(results)
	return results, nil
}

// worstFirstHeap keeps the worst of the current top-k candidates at the root.
type worstFirstHeap struct {
	items []index.SearchResult
}

func (h *worstFirstHeap) Len() int           { return len(h.items) }
func (h *worstFirstHeap) Less(i, j int) bool { return index.Better(h.items[j], h.items[i]) }
func (h *worstFirstHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *worstFirstHeap) Push(x any) {
	h.items = append(h.items, x.(index.SearchResult))
}

func (h *worstFirstHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
