package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutesai/semindex/testutil"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-6)
	})

	t.Run("Orthogonal", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, sim, 1e-6)
	})

	t.Run("Opposite", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, sim, 1e-6)
	})

	t.Run("ScaleInvariant", func(t *testing.T) {
		a, err := CosineSimilarity([]float32{1, 2, 3}, []float32{4, 5, 6})
		require.NoError(t, err)
		b, err := CosineSimilarity([]float32{2, 4, 6}, []float32{4, 5, 6})
		require.NoError(t, err)
		assert.InDelta(t, a, b, 1e-6)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("ZeroMagnitude", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, float32(0), sim)
	})
}

// TestCosineSimilarityMatchesReference pins the architecture-specific kernel
// to a plain float64 reference computation.
func TestCosineSimilarityMatchesReference(t *testing.T) {
	rng := testutil.NewRNG(11)
	for _, dim := range []int{1, 3, 8, 64, 257} {
		pairs := rng.RandomVectors(2, dim)

		got, err := CosineSimilarity(pairs[0], pairs[1])
		require.NoError(t, err)

		var dot, s1, s2 float64
		for i := range pairs[0] {
			dot += float64(pairs[0][i]) * float64(pairs[1][i])
			s1 += float64(pairs[0][i]) * float64(pairs[0][i])
			s2 += float64(pairs[1][i]) * float64(pairs[1][i])
		}
		want := dot / (math.Sqrt(s1) * math.Sqrt(s2))

		assert.InDelta(t, want, got, 1e-4, "dimension %d", dim)
	}
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)
}
