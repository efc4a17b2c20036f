// Package embedding defines the backend capability and the provider that
// selects one backend at startup and keeps it for its whole lifetime.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/minutesai/semindex/embedding/hashfall"
	"github.com/minutesai/semindex/embedding/openai"
	"github.com/minutesai/semindex/embedding/sentence"
	"github.com/minutesai/semindex/internal/retry"
)

// Backend converts text into fixed-dimension vectors. Implementations must
// be deterministic for identical inputs within a process lifetime and must
// preserve the order and count of their inputs.
type Backend interface {
	// Name identifies the backend, including its model where applicable.
	Name() string

	// Dimension returns the output vector dimensionality.
	Dimension() int

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrNoBackend is returned when no embedding backend could be constructed.
// With the hash fallback enabled this cannot happen in practice.
var ErrNoBackend = errors.New("no embedding backend available")

const (
	// DefaultMaxRetries bounds retries of transient backend failures.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the initial backoff between retries.
	DefaultRetryBackoff = 250 * time.Millisecond
)

// ProviderOptions contains configuration options for NewProvider.
type ProviderOptions struct {
	// DisableSentence skips the local sentence backend.
	DisableSentence bool

	// DisableOpenAI skips the remote API backend.
	DisableOpenAI bool

	// Sentence configures the local backend.
	Sentence []func(o *sentence.Options)

	// OpenAI configures the remote backend.
	OpenAI []func(o *openai.Options)

	// FallbackDimension sets the hash fallback dimensionality.
	FallbackDimension int

	// MaxRetries bounds retries of transient embedding failures.
	MaxRetries uint64

	// RetryBackoff is the initial backoff between retries.
	RetryBackoff time.Duration

	Logger *slog.Logger
}

// Provider wraps exactly one backend, chosen at construction, and adds
// retry and output validation on top of it. The wrapped backend never
// changes for the provider's lifetime.
type Provider struct {
	backend    Backend
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

// NewProvider selects a backend in priority order: the local sentence
// server first, then the remote API, then the hash fallback. Backends that
// fail to construct are logged and skipped, so the provider always comes up
// as long as the fallback is reachable, which it always is.
func NewProvider(ctx context.Context, optFns ...func(o *ProviderOptions)) (*Provider, error) {
	opts := ProviderOptions{
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: DefaultRetryBackoff,
		Logger:       slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	backend, err := selectBackend(ctx, &opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("embedding backend selected",
		slog.String("backend", backend.Name()),
		slog.Int("dimension", backend.Dimension()),
	)

	return NewProviderWithBackend(backend, optFns...), nil
}

// NewProviderWithBackend wraps an explicit backend, bypassing selection.
func NewProviderWithBackend(backend Backend, optFns ...func(o *ProviderOptions)) *Provider {
	opts := ProviderOptions{
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: DefaultRetryBackoff,
		Logger:       slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{
		backend:    backend,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     opts.Logger,
	}
}

func selectBackend(ctx context.Context, opts *ProviderOptions) (Backend, error) {
	if !opts.DisableSentence {
		b, err := sentence.New(ctx, opts.Sentence...)
		if err == nil {
			return b, nil
		}
		opts.Logger.Warn("sentence backend unavailable", slog.Any("error", err))
	}

	if !opts.DisableOpenAI {
		b, err := openai.New(ctx, opts.OpenAI...)
		if err == nil {
			return b, nil
		}
		opts.Logger.Warn("openai backend unavailable", slog.Any("error", err))
	}

	b, err := hashfall.New(func(o *hashfall.Options) { o.Dimension = opts.FallbackDimension })
	if err != nil {
		return nil, errors.Join(ErrNoBackend, err)
	}
	return b, nil
}

// Name returns the wrapped backend's name.
func (p *Provider) Name() string { return p.backend.Name() }

// Dimension returns the wrapped backend's dimensionality.
func (p *Provider) Dimension() int { return p.backend.Dimension() }

// Embed embeds texts through the wrapped backend, retrying transient
// failures with bounded backoff. Outputs are validated for count and
// dimension, and any all-zero vector is replaced by a small constant unit
// vector so downstream cosine scores stay well defined.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := retry.Do(ctx, p.maxRetries, p.backoff, func(ctx context.Context) error {
		out, err := p.backend.Embed(ctx, texts)
		if err != nil {
			p.logger.Warn("embedding attempt failed",
				slog.String("backend", p.backend.Name()),
				slog.Any("error", err),
			)
			return retry.Transient(err)
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts via %s: %w", len(texts), p.backend.Name(), err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend %s returned %d vectors for %d texts", p.backend.Name(), len(vectors), len(texts))
	}

	dim := p.backend.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("backend %s returned a %d-dimensional vector at position %d, want %d", p.backend.Name(), len(v), i, dim)
		}
		if isZero(v) {
			vectors[i] = epsilonVector(dim)
		}
	}

	return vectors, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// epsilonVector is the unit vector with equal components, used as a stand-in
// for degenerate all-zero embeddings.
func epsilonVector(dim int) []float32 {
	v := make([]float32, dim)
	c := float32(1 / math.Sqrt(float64(dim)))
	for i := range v {
		v[i] = c
	}
	return v
}
