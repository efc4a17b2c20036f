package semindex

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/minutesai/semindex/chunk"
	"github.com/minutesai/semindex/config"
	"github.com/minutesai/semindex/embedding"
	"github.com/minutesai/semindex/index"
	"github.com/minutesai/semindex/index/flat"
	"github.com/minutesai/semindex/index/hnsw"
	"github.com/minutesai/semindex/model"
	"github.com/minutesai/semindex/persistence"
)

// Embedder converts text into fixed-dimension vectors. *embedding.Provider
// is the standard implementation; tests may substitute their own.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is a unit of input text to be chunked, embedded and indexed.
type Document struct {
	// Text is the document content.
	Text string

	// SourceDocID identifies the originating document, e.g. a meeting
	// transcript id. It is recorded on every derived entry and can be
	// used to scope searches.
	SourceDocID string
}

// SearchHit is a single ranked search result.
type SearchHit struct {
	// ID is the entry id assigned by Add.
	ID uint64

	// Score is the cosine similarity to the query, higher is better.
	Score float32

	// Meta attributes the entry back to its source document span.
	Meta model.EntryMeta
}

// SearchOptions contains per-search options.
type SearchOptions struct {
	// SourceDocs restricts the search to entries derived from the given
	// source documents. Empty means no restriction.
	SourceDocs []string
}

// WithSourceDocs restricts a search to the given source documents.
func WithSourceDocs(ids ...string) func(o *SearchOptions) {
	return func(o *SearchOptions) {
		o.SourceDocs = append(o.SourceDocs, ids...)
	}
}

// Store is an append-only semantic index over chunked documents.
//
// All public methods are safe for concurrent use. Embedding happens outside
// the store lock, so slow backends do not block concurrent readers.
type Store struct {
	mu sync.RWMutex

	embedder Embedder
	idx      index.Index

	vectors [][]float32
	ids     []uint64
	meta    []model.EntryMeta
	nextID  uint64

	// docs maps a source document id to the rows derived from it.
	docs map[string]*roaring.Bitmap

	opts    Options
	logger  *Logger
	metrics MetricsCollector
}

// New creates an empty store bound to the given embedder. The embedder is
// fixed for the store's lifetime; entries embedded by different backends
// never mix in one store.
func New(embedder Embedder, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = NewLogger(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetricsCollector{}
	}

	if err := chunk.Validate(opts.MaxChunkChars, opts.OverlapChars); err != nil {
		return nil, translateError(err)
	}

	idx, err := newIndex(opts, embedder.Dimension())
	if err != nil {
		return nil, translateError(err)
	}

	return &Store{
		embedder: embedder,
		idx:      idx,
		docs:     make(map[string]*roaring.Bitmap),
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// FromConfig creates a store with an embedding provider selected according
// to the configuration.
func FromConfig(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*Store, error) {
	provider, err := embedding.NewProvider(ctx, cfg.ProviderOptions()...)
	if err != nil {
		return nil, translateError(err)
	}

	merged := append([]func(o *Options){func(o *Options) {
		o.MaxChunkChars = cfg.Chunking.MaxChunkChars
		o.OverlapChars = cfg.Chunking.OverlapChars
		o.Accelerated = cfg.Index.Accelerated
		o.M = cfg.Index.M
		o.EF = cfg.Index.EF
	}}, optFns...)

	return New(provider, merged...)
}

func newIndex(opts Options, dimension int) (index.Index, error) {
	if opts.Accelerated {
		return hnsw.New(func(o *hnsw.Options) {
			o.Dimension = dimension
			o.M = opts.M
			o.EF = opts.EF
		})
	}
	return flat.New(func(o *flat.Options) {
		o.Dimension = dimension
	})
}

// Size returns the number of indexed entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Backend describes the embedding backend bound to this store.
func (s *Store) Backend() model.BackendInfo {
	return model.BackendInfo{
		Name:      s.embedder.Name(),
		Dimension: s.embedder.Dimension(),
	}
}

// Add chunks, embeds and indexes the given documents as one atomic batch:
// either every derived entry is appended or none is. It returns the
// assigned entry ids in chunk order.
//
// Embedding runs before the store lock is taken, so concurrent searches
// proceed while the backend works.
func (s *Store) Add(ctx context.Context, documents []Document) ([]uint64, error) {
	start := time.Now()
	ids, err := s.add(ctx, documents)
	s.metrics.RecordAdd(len(ids), time.Since(start), err)
	s.logger.LogAdd(ctx, len(documents), len(ids), err)
	return ids, translateError(err)
}

func (s *Store) add(ctx context.Context, documents []Document) ([]uint64, error) {
	var (
		texts []string
		metas []model.EntryMeta
	)
	for i, doc := range documents {
		if doc.SourceDocID == "" {
			return nil, fmt.Errorf("%w: document %d has no source id", ErrInvalidArgument, i)
		}

		chunks, err := chunk.Split(doc.Text, s.opts.MaxChunkChars, s.opts.OverlapChars)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			texts = append(texts, c.Text)
			metas = append(metas, model.EntryMeta{
				SourceDocID: doc.SourceDocID,
				StartOffset: c.Start,
				EndOffset:   c.End,
			})
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching state so a bad vector
	// cannot leave a partial append behind.
	for _, v := range vectors {
		if err := index.CheckVector(s.idx.Dimension(), v); err != nil {
			return nil, err
		}
	}

	ids := make([]uint64, len(vectors))
	for i, v := range vectors {
		row, err := s.idx.Insert(v)
		if err != nil {
			// Unreachable after batch validation; appending stops here
			// to keep index and sidecars aligned.
			return nil, err
		}

		id := s.nextID
		s.nextID++
		ids[i] = id

		s.vectors = append(s.vectors, v)
		s.ids = append(s.ids, id)
		s.meta = append(s.meta, metas[i])

		bm, ok := s.docs[metas[i].SourceDocID]
		if !ok {
			bm = roaring.New()
			s.docs[metas[i].SourceDocID] = bm
		}
		bm.Add(uint32(row))
	}

	return ids, nil
}

// Search embeds the query and returns up to k entries ranked by descending
// cosine similarity, ties broken by ascending entry id. An empty store
// yields an empty result.
func (s *Store) Search(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) ([]SearchHit, error) {
	start := time.Now()
	hits, err := s.search(ctx, query, k, optFns...)
	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, len(hits), err)
	return hits, translateError(err)
}

func (s *Store) search(ctx context.Context, query string, k int, optFns ...func(o *SearchOptions)) ([]SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidArgument)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, index.ErrInvalidK)
	}

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if s.Size() == 0 {
		return []SearchHit{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vectors))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filter index.FilterFunc
	if len(opts.SourceDocs) > 0 {
		admitted := roaring.New()
		for _, doc := range opts.SourceDocs {
			if bm, ok := s.docs[doc]; ok {
				admitted.Or(bm)
			}
		}
		if admitted.IsEmpty() {
			return []SearchHit{}, nil
		}
		filter = func(row uint64) bool {
			return admitted.Contains(uint32(row))
		}
	}

	results, err := s.idx.Search(vectors[0], k, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			ID:    s.ids[r.ID],
			Score: r.Score,
			Meta:  s.meta[r.ID],
		}
	}
	return hits, nil
}

// Save persists the store's entries under basePath as a set of artifact
// files. Each artifact is written atomically; a crash mid-save leaves any
// previous snapshot at the same path readable.
func (s *Store) Save(ctx context.Context, basePath string) error {
	start := time.Now()
	err := s.save(basePath)
	s.metrics.RecordSave(time.Since(start), err)
	s.logger.LogSave(ctx, basePath, s.Size(), err)
	return translateError(err)
}

func (s *Store) save(basePath string) error {
	// Exclusive: a snapshot must capture a quiescent store, and holding the
	// write lock keeps save serialized with other saves of the same path.
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &model.Snapshot{
		Vectors: s.vectors,
		IDs:     s.ids,
		Meta:    s.meta,
		Backend: model.BackendInfo{
			Name:      s.embedder.Name(),
			Dimension: s.embedder.Dimension(),
		},
	}

	if g, ok := s.idx.(*hnsw.HNSW); ok {
		var buf bytes.Buffer
		if err := g.WriteGraph(&buf); err != nil {
			return err
		}
		snap.IndexBlob = buf.Bytes()
	}

	return persistence.Save(basePath, snap)
}

// Load opens a persisted store from basePath, binding it to the given
// embedder. The embedder must match the one recorded at save time; on a
// name or dimension mismatch Load returns an *IncompatibleIndexError.
func Load(ctx context.Context, embedder Embedder, basePath string, optFns ...func(o *Options)) (*Store, error) {
	start := time.Now()
	s, err := load(embedder, basePath, optFns...)

	entries := 0
	logger := NewLogger(nil)
	if s != nil {
		entries = len(s.ids)
		logger = s.logger
		s.metrics.RecordLoad(time.Since(start), err)
	}
	logger.LogLoad(ctx, basePath, entries, err)

	return s, translateError(err)
}

func load(embedder Embedder, basePath string, optFns ...func(o *Options)) (*Store, error) {
	snap, err := persistence.Load(basePath)
	if err != nil {
		return nil, err
	}

	s, err := New(embedder, optFns...)
	if err != nil {
		return nil, err
	}

	recorded := snap.Backend
	if recorded.Dimension != embedder.Dimension() ||
		(!s.opts.DimensionOnlyCompat && recorded.Name != embedder.Name()) {
		return nil, &IncompatibleIndexError{
			RecordedName:      recorded.Name,
			RecordedDimension: recorded.Dimension,
			BackendName:       embedder.Name(),
			BackendDimension:  embedder.Dimension(),
		}
	}

	if snap.IndexBlob != nil {
		g, err := hnsw.LoadGraph(bytes.NewReader(snap.IndexBlob), snap.Vectors, func(o *hnsw.Options) {
			if s.opts.Accelerated {
				o.M = s.opts.M
				o.EF = s.opts.EF
			}
		})
		if err != nil {
			return nil, err
		}
		s.idx = g
	} else {
		for _, v := range snap.Vectors {
			if _, err := s.idx.Insert(v); err != nil {
				return nil, err
			}
		}
	}

	s.vectors = snap.Vectors
	s.ids = snap.IDs
	s.meta = snap.Meta

	for row, m := range snap.Meta {
		bm, ok := s.docs[m.SourceDocID]
		if !ok {
			bm = roaring.New()
			s.docs[m.SourceDocID] = bm
		}
		bm.Add(uint32(row))
	}

	for _, id := range snap.IDs {
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}

	return s, nil
}
