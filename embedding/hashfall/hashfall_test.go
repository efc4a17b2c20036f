package hashfall

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	first, err := b.Embed(context.Background(), []string{"hello world", "cloud computing is fun"})
	require.NoError(t, err)
	second, err := b.Embed(context.Background(), []string{"hello world", "cloud computing is fun"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEmbedBatchEquivalence(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := b.Embed(context.Background(), texts)
	require.NoError(t, err)

	for i, text := range texts {
		single, err := b.Embed(context.Background(), []string{text})
		require.NoError(t, err)
		assert.Equal(t, single[0], batch[i], "text %q", text)
	}
}

func TestEmbedNonZeroUnitNorm(t *testing.T) {
	b, err := New(func(o *Options) { o.Dimension = 64 })
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{"", "x", "some longer input text"})
	require.NoError(t, err)

	for i, v := range vectors {
		require.Len(t, v, 64)
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.Greater(t, sum, 0.0, "vector %d is all zero", i)
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5, "vector %d is not unit length", i)
	}
}

func TestEmbedNormalization(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{
		"Hello World",
		"hello   world",
		"  hello\tworld  ",
		"hello there",
	})
	require.NoError(t, err)

	assert.Equal(t, vectors[0], vectors[1])
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[3])
}

func TestEmbedContextCanceled(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaults(t *testing.T) {
	b, err := New(func(o *Options) { o.Dimension = -1 })
	require.NoError(t, err)
	assert.Equal(t, DefaultDimension, b.Dimension())
	assert.Equal(t, Name, b.Name())
}
