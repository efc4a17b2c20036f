package embedding_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutesai/semindex/embedding"
	"github.com/minutesai/semindex/embedding/hashfall"
	"github.com/minutesai/semindex/embedding/openai"
	"github.com/minutesai/semindex/embedding/sentence"
)

// flakyBackend fails a fixed number of times before succeeding.
type flakyBackend struct {
	failures int
	calls    int
	vector   []float32
}

func (b *flakyBackend) Name() string   { return "flaky" }
func (b *flakyBackend) Dimension() int { return len(b.vector) }

func (b *flakyBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	b.calls++
	if b.calls <= b.failures {
		return nil, errors.New("transient failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = b.vector
	}
	return out, nil
}

func TestProviderFallsBackToHash(t *testing.T) {
	// Point both network backends at a dead port so selection falls
	// through to the hash fallback.
	p, err := embedding.NewProvider(context.Background(), func(o *embedding.ProviderOptions) {
		o.Sentence = []func(o *sentence.Options){
			func(o *sentence.Options) { o.Endpoint = "http://127.0.0.1:1" },
		}
		o.OpenAI = []func(o *openai.Options){
			func(o *openai.Options) { o.BaseURL = "http://127.0.0.1:1"; o.APIKey = "k" },
		}
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})
	require.NoError(t, err)

	assert.Equal(t, hashfall.Name, p.Name())
	assert.Equal(t, hashfall.DefaultDimension, p.Dimension())
}

func TestProviderRetriesTransientFailures(t *testing.T) {
	backend := &flakyBackend{failures: 2, vector: []float32{1, 0}}
	p := embedding.NewProviderWithBackend(backend, func(o *embedding.ProviderOptions) {
		o.RetryBackoff = time.Millisecond
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	vectors, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, backend.calls)
}

func TestProviderGivesUpAfterMaxRetries(t *testing.T) {
	backend := &flakyBackend{failures: 100, vector: []float32{1, 0}}
	p := embedding.NewProviderWithBackend(backend, func(o *embedding.ProviderOptions) {
		o.MaxRetries = 2
		o.RetryBackoff = time.Millisecond
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Equal(t, 3, backend.calls)
}

func TestProviderSubstitutesZeroVectors(t *testing.T) {
	backend := &flakyBackend{vector: []float32{0, 0, 0, 0}}
	p := embedding.NewProviderWithBackend(backend, func(o *embedding.ProviderOptions) {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	vectors, err := p.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, vectors[0])
}

func TestProviderEmptyInput(t *testing.T) {
	backend := &flakyBackend{vector: []float32{1}}
	p := embedding.NewProviderWithBackend(backend)

	vectors, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, backend.calls)
}

func TestProviderRejectsDimensionDrift(t *testing.T) {
	backend := &driftingBackend{}
	p := embedding.NewProviderWithBackend(backend, func(o *embedding.ProviderOptions) {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	_, err := p.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensional")
}

// driftingBackend reports one dimension but emits another.
type driftingBackend struct{}

func (driftingBackend) Name() string   { return "drift" }
func (driftingBackend) Dimension() int { return 4 }

func (driftingBackend) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2}
	}
	return out, nil
}
