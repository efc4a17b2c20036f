package semindex

import (
	"github.com/minutesai/semindex/chunk"
	"github.com/minutesai/semindex/index/hnsw"
)

// Options contains configuration options for a Store.
type Options struct {
	// MaxChunkChars is the maximum chunk size in runes.
	MaxChunkChars int

	// OverlapChars is the overlap between consecutive chunks in runes.
	// Must be smaller than MaxChunkChars.
	OverlapChars int

	// Accelerated switches the search index from the brute-force scan to
	// the graph index. Results are identical either way; only latency on
	// large corpora differs.
	Accelerated bool

	// M is the graph connectivity when Accelerated is set.
	M int

	// EF is the graph search beam width when Accelerated is set.
	EF int

	// DimensionOnlyCompat relaxes the load-time compatibility check to
	// dimensions only, ignoring the recorded backend name. Useful when a
	// backend is renamed but produces the same vector space.
	DimensionOnlyCompat bool

	// Logger is the logger for store operations. Defaults to a text
	// logger at info level.
	Logger *Logger

	// Metrics collects operational metrics. Defaults to a no-op.
	Metrics MetricsCollector
}

// DefaultOptions contains the default configuration options for a Store.
var DefaultOptions = Options{
	MaxChunkChars: chunk.DefaultMaxChars,
	OverlapChars:  chunk.DefaultOverlapChars,
	M:             hnsw.DefaultM,
	EF:            hnsw.DefaultEF,
}

// WithChunking sets the chunk size and overlap.
func WithChunking(maxChars, overlapChars int) func(o *Options) {
	return func(o *Options) {
		o.MaxChunkChars = maxChars
		o.OverlapChars = overlapChars
	}
}

// WithAccelerated enables the graph index.
func WithAccelerated() func(o *Options) {
	return func(o *Options) {
		o.Accelerated = true
	}
}

// WithHNSW enables the graph index with explicit parameters.
func WithHNSW(m, ef int) func(o *Options) {
	return func(o *Options) {
		o.Accelerated = true
		o.M = m
		o.EF = ef
	}
}

// WithDimensionOnlyCompat relaxes the load-time backend check to
// dimensions only.
func WithDimensionOnlyCompat() func(o *Options) {
	return func(o *Options) {
		o.DimensionOnlyCompat = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) func(o *Options) {
	return func(o *Options) {
		o.Metrics = mc
	}
}
