package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutesai/semindex/index"
)

func TestFlat(t *testing.T) {
	t.Run("Insert", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 3 })
		require.NoError(t, err)

		id, err := f.Insert([]float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)

		id, err = f.Insert([]float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		assert.Equal(t, 2, f.Len())

		_, err = f.Insert([]float32{1, 2})
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New()
		assert.IsType(t, &index.ErrInvalidDimension{}, err)
	})

	t.Run("Search", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		_, _ = f.Insert([]float32{1, 0})
		_, _ = f.Insert([]float32{0, 1})
		_, _ = f.Insert([]float32{0.9, 0.1})

		results, err := f.Search([]float32{1, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint64(0), results[0].ID)
		assert.Equal(t, uint64(2), results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("TiesByAscendingID", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		// Parallel vectors tie on cosine similarity.
		_, _ = f.Insert([]float32{0, 1})
		_, _ = f.Insert([]float32{2, 0})
		_, _ = f.Insert([]float32{1, 0})
		_, _ = f.Insert([]float32{3, 0})

		results, err := f.Search([]float32{1, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{results[0].ID, results[1].ID, results[2].ID})
	})

	t.Run("KLargerThanSize", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		_, _ = f.Insert([]float32{1, 0})

		results, err := f.Search([]float32{1, 0}, 10, nil)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("InvalidK", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		_, err = f.Search([]float32{1, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("Filter", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		_, _ = f.Insert([]float32{1, 0})
		_, _ = f.Insert([]float32{0.9, 0.1})
		_, _ = f.Insert([]float32{0.8, 0.2})

		results, err := f.Search([]float32{1, 0}, 3, func(id uint64) bool { return id != 0 })
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint64(1), results[0].ID)
		assert.Equal(t, uint64(2), results[1].ID)
	})

	t.Run("Empty", func(t *testing.T) {
		f, err := New(func(o *Options) { o.Dimension = 2 })
		require.NoError(t, err)

		results, err := f.Search([]float32{1, 0}, 5, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
