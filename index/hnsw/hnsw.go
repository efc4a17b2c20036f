// Package hnsw implements a Hierarchical Navigable Small World graph as the
// accelerated implementation of the nearest-neighbor index. It replaces the
// brute-force scan for performance only; for the same contents both
// implementations return the same top-k results.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"time"

	"github.com/minutesai/semindex/index"
	"github.com/minutesai/semindex/metric"
)

const (
	// DefaultM is the default number of bidirectional links per node.
	DefaultM = 16

	// DefaultEF is the default size of the dynamic candidate list.
	DefaultEF = 200

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// mmax0Multiplier is the multiplier for maximum connections at layer 0.
	mmax0Multiplier = 2
)

// Compile-time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// Options represents the options for configuring HNSW.
type Options struct {
	// Dimension is the fixed vector dimensionality for this index.
	Dimension int

	// M is the number of bidirectional links created for each node.
	M int

	// EF is the size of the dynamic candidate list during search.
	// Search explores at least max(EF, k) candidates.
	EF int

	// RandomSeed fixes the level generator for reproducible graphs.
	// Nil seeds from the clock.
	RandomSeed *int64
}

// DefaultOptions contains the default configuration options for HNSW.
var DefaultOptions = Options{
	M:  DefaultM,
	EF: DefaultEF,
}

type node struct {
	level int
	links [][]uint64 // per layer, ids of connected nodes
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	vectors [][]float32
	nodes   []node

	entryPoint uint64
	maxLevel   int

	layerMultiplier float64
	maxConnections  int // per layer > 0
	maxConnections0 int // layer 0
	rng             *rand.Rand

	opts Options
}

// New creates a new HNSW instance.
func New(optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := index.ValidateDimension(opts.Dimension); err != nil {
		return nil, err
	}

	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.EF <= 0 {
		opts.EF = DefaultEF
	}

	var rng *rand.Rand
	if opts.RandomSeed != nil {
		rng = rand.New(rand.NewSource(*opts.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &HNSW{
		vectors:         make([][]float32, 0),
		nodes:           make([]node, 0),
		layerMultiplier: 1.0 / math.Log(float64(opts.M)),
		maxConnections:  opts.M,
		maxConnections0: mmax0Multiplier * opts.M,
		rng:             rng,
		opts:            opts,
	}, nil
}

// Name implements index.Index.
func (h *HNSW) Name() string { return "hnsw" }

// Dimension implements index.Index.
func (h *HNSW) Dimension() int { return h.opts.Dimension }

// Len implements index.Index.
func (h *HNSW) Len() int { return len(h.vectors) }

// distance returns the cosine distance between two stored/query vectors.
// Dimensions are validated at the API boundary.
func (h *HNSW) distance(a, b []float32) float32 {
	d, _ := metric.CosineDistance(a, b)
	return d
}

func (h *HNSW) randomLevel() int {
	return int(math.Floor(-math.Log(h.rng.Float64()) * h.layerMultiplier))
}

func (h *HNSW) maxConnectionsAt(layer int) int {
	if layer == 0 {
		return h.maxConnections0
	}
	return h.maxConnections
}

// Insert implements index.Index.
func (h *HNSW) Insert(v []float32) (uint64, error) {
	if err := index.CheckVector(h.opts.Dimension, v); err != nil {
		return 0, err
	}

	id := uint64(len(h.vectors))
	level := h.randomLevel()

	h.vectors = append(h.vectors, v)
	h.nodes = append(h.nodes, node{
		level: level,
		links: make([][]uint64, level+1),
	})

	if id == 0 {
		h.entryPoint = 0
		h.maxLevel = level
		return id, nil
	}

	cur := h.entryPoint
	curDist := h.distance(v, h.vectors[cur])

	// Greedy descent through layers above the new node's level.
	for layer := h.maxLevel; layer > level; layer-- {
		cur, curDist = h.greedyClosest(v, cur, curDist, layer)
	}

	// Connect on each layer from min(maxLevel, level) down to 0.
	top := level
	if h.maxLevel < top {
		top = h.maxLevel
	}
	for layer := top; layer >= 0; layer-- {
		candidates := h.searchLayer(v, cur, h.opts.EF, layer)

		neighbors := h.selectClosest(candidates, h.opts.M)
		h.nodes[id].links[layer] = neighbors

		for _, n := range neighbors {
			h.nodes[n].links[layer] = append(h.nodes[n].links[layer], id)
			h.pruneConnections(n, layer)
		}

		if len(candidates) > 0 {
			cur = candidates[0].id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = id
	}

	return id, nil
}

// greedyClosest walks a single layer greedily towards q.
func (h *HNSW) greedyClosest(q []float32, start uint64, startDist float32, layer int) (uint64, float32) {
	cur, curDist := start, startDist
	for {
		improved := false
		for _, n := range h.nodes[cur].links[layer] {
			if d := h.distance(q, h.vectors[n]); d < curDist {
				cur, curDist = n, d
				improved = true
			}
		}
		if !improved {
			return cur, curDist
		}
	}
}

// searchLayer performs a beam search on one layer and returns up to ef
// candidates ordered by ascending distance.
func (h *HNSW) searchLayer(q []float32, entry uint64, ef int, layer int) []candidate {
	visited := map[uint64]struct{}{entry: {}}

	entryCand := candidate{id: entry, dist: h.distance(q, h.vectors[entry])}

	candidates := &candidateHeap{max: false}
	heap.Push(candidates, entryCand)

	results := &candidateHeap{max: true}
	heap.Push(results, entryCand)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(candidate)

		if results.Len() >= ef && c.dist > results.items[0].dist {
			break
		}

		for _, n := range h.nodes[c.id].links[layer] {
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}

			d := h.distance(q, h.vectors[n])
			if results.Len() < ef || d < results.items[0].dist {
				heap.Push(candidates, candidate{id: n, dist: d})
				heap.Push(results, candidate{id: n, dist: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out
}

// selectClosest picks the m nearest candidate ids.
func (h *HNSW) selectClosest(candidates []candidate, m int) []uint64 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]uint64, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}

// pruneConnections trims a node's links on one layer back to the allowed
// maximum, keeping the closest neighbors.
func (h *HNSW) pruneConnections(id uint64, layer int) {
	links := h.nodes[id].links[layer]
	maxConn := h.maxConnectionsAt(layer)
	if len(links) <= maxConn {
		return
	}

	cands := make([]candidate, len(links))
	for i, n := range links {
		cands[i] = candidate{id: n, dist: h.distance(h.vectors[id], h.vectors[n])}
	}
	sortCandidates(cands)

	kept := make([]uint64, maxConn)
	for i := range kept {
		kept[i] = cands[i].id
	}
	h.nodes[id].links[layer] = kept
}

// Search implements index.Index.
func (h *HNSW) Search(q []float32, k int, filter index.FilterFunc) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if err := index.CheckVector(h.opts.Dimension, q); err != nil {
		return nil, err
	}
	if len(h.vectors) == 0 {
		return []index.SearchResult{}, nil
	}

	// The graph cannot bound which rows a filter admits: admitted rows far
	// from the query would fall outside the beam once the corpus exceeds EF.
	// Filtered queries scan exhaustively so results stay identical to the
	// brute-force implementation.
	if filter != nil {
		return h.searchFiltered(q, k, filter)
	}

	ef := h.opts.EF
	if ef < k {
		ef = k
	}

	cur := h.entryPoint
	curDist := h.distance(q, h.vectors[cur])
	for layer := h.maxLevel; layer > 0; layer-- {
		cur, curDist = h.greedyClosest(q, cur, curDist, layer)
	}

	candidates := h.searchLayer(q, cur, ef, 0)

	// Rank survivors by true cosine similarity so the accelerated path
	// scores bit-identically to the brute-force scan.
	results := make([]index.SearchResult, 0, k)
	for _, c := range candidates {
		score, err := metric.CosineSimilarity(q, h.vectors[c.id])
		if err != nil {
			return nil, err
		}
		results = append(results, index.SearchResult{ID: c.id, Score: score})
	}

	index.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// searchFiltered scans every admitted vector, matching the brute-force
// implementation hit for hit.
func (h *HNSW) searchFiltered(q []float32, k int, filter index.FilterFunc) ([]index.SearchResult, error) {
	results := make([]index.SearchResult, 0, k)
	for id, v := range h.vectors {
		if !filter(uint64(id)) {
			continue
		}
		score, err := metric.CosineSimilarity(q, v)
		if err != nil {
			return nil, err
		}
		results = append(results, index.SearchResult{ID: uint64(id), Score: score})
	}

	index.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

type candidate struct {
	id   uint64
	dist float32
}

// candidateHeap is a binary heap of candidates; min-heap when max is false,
// max-heap when true. Ties order by id for deterministic traversal.
type candidateHeap struct {
	items []candidate
	max   bool
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.max {
		if a.dist != b.dist {
			return a.dist > b.dist
		}
		return a.id > b.id
	}
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.id < b.id
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x any) { h.items = append(h.items, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func sortCandidates(cands []candidate) {
	// Insertion sort; prune lists are short (<= 2M+1).
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0; j-- {
			a, b := cands[j-1], cands[j]
			if b.dist < a.dist || (b.dist == a.dist && b.id < a.id) {
				cands[j-1], cands[j] = b, a
			} else {
				break
			}
		}
	}
}
