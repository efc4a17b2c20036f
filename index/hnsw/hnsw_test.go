package hnsw

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minutesai/semindex/index"
)

func newTestHNSW(t *testing.T, dim int) *HNSW {
	t.Helper()
	seed := int64(42)
	h, err := New(func(o *Options) {
		o.Dimension = dim
		o.RandomSeed = &seed
	})
	require.NoError(t, err)
	return h
}

func TestHNSW(t *testing.T) {
	t.Run("Insert", func(t *testing.T) {
		h := newTestHNSW(t, 3)

		id, err := h.Insert([]float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)

		id, err = h.Insert([]float32{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), id)
		assert.Equal(t, 2, h.Len())

		_, err = h.Insert([]float32{1, 2})
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("Search", func(t *testing.T) {
		h := newTestHNSW(t, 2)

		_, _ = h.Insert([]float32{1, 0})
		_, _ = h.Insert([]float32{0, 1})
		_, _ = h.Insert([]float32{0.9, 0.1})

		results, err := h.Search([]float32{1, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, uint64(0), results[0].ID)
		assert.Equal(t, uint64(2), results[1].ID)
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		h := newTestHNSW(t, 2)

		results, err := h.Search([]float32{1, 0}, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("InvalidK", func(t *testing.T) {
		h := newTestHNSW(t, 2)

		_, err := h.Search([]float32{1, 0}, -1, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("Filter", func(t *testing.T) {
		h := newTestHNSW(t, 2)

		_, _ = h.Insert([]float32{1, 0})
		_, _ = h.Insert([]float32{0.9, 0.1})
		_, _ = h.Insert([]float32{0.8, 0.2})

		results, err := h.Search([]float32{1, 0}, 3, func(id uint64) bool { return id == 2 })
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint64(2), results[0].ID)
	})

	t.Run("DeterministicWithSeed", func(t *testing.T) {
		build := func() *HNSW {
			h := newTestHNSW(t, 4)
			for i := 0; i < 32; i++ {
				_, err := h.Insert([]float32{float32(i), float32(i % 5), float32(i % 3), 1})
				require.NoError(t, err)
			}
			return h
		}

		a, b := build(), build()

		var bufA, bufB bytes.Buffer
		require.NoError(t, a.WriteGraph(&bufA))
		require.NoError(t, b.WriteGraph(&bufB))
		assert.Equal(t, bufA.Bytes(), bufB.Bytes())
	})
}

func TestGraphRoundTrip(t *testing.T) {
	h := newTestHNSW(t, 4)

	vectors := make([][]float32, 0, 50)
	for i := 0; i < 50; i++ {
		v := []float32{float32(i), float32((i * 7) % 11), float32((i * 3) % 5), 1}
		vectors = append(vectors, v)
		_, err := h.Insert(v)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, h.WriteGraph(&buf))

	loaded, err := LoadGraph(&buf, vectors)
	require.NoError(t, err)
	assert.Equal(t, h.Len(), loaded.Len())
	assert.Equal(t, h.Dimension(), loaded.Dimension())

	query := []float32{3, 2, 1, 1}
	want, err := h.Search(query, 10, nil)
	require.NoError(t, err)
	got, err := loaded.Search(query, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGraphLoadErrors(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		_, err := LoadGraph(bytes.NewReader(make([]byte, 64)), nil)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("CountMismatch", func(t *testing.T) {
		h := newTestHNSW(t, 2)
		_, _ = h.Insert([]float32{1, 0})

		var buf bytes.Buffer
		require.NoError(t, h.WriteGraph(&buf))

		_, err := LoadGraph(&buf, nil)
		assert.Error(t, err)
	})

	// Header layout: magic 0, version 4, dimension 8, m 12, ef 16,
	// max level 20, entry point 24, count 32.
	t.Run("EntryPointOutOfRange", func(t *testing.T) {
		h := newTestHNSW(t, 2)
		vectors := [][]float32{{1, 0}, {0, 1}}
		for _, v := range vectors {
			_, err := h.Insert(v)
			require.NoError(t, err)
		}

		var buf bytes.Buffer
		require.NoError(t, h.WriteGraph(&buf))

		raw := buf.Bytes()
		binary.LittleEndian.PutUint64(raw[24:], 99)

		_, err := LoadGraph(bytes.NewReader(raw), vectors)
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("EntryPointLevelBelowMax", func(t *testing.T) {
		h := newTestHNSW(t, 2)
		_, err := h.Insert([]float32{1, 0})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, h.WriteGraph(&buf))

		raw := buf.Bytes()
		binary.LittleEndian.PutUint32(raw[20:], 9)

		_, err = LoadGraph(bytes.NewReader(raw), [][]float32{{1, 0}})
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})

	t.Run("LinkOutOfRange", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, graphHeader{
			Magic:     graphMagic,
			Version:   graphVersion,
			Dimension: 2,
			M:         DefaultM,
			EF:        DefaultEF,
			Count:     1,
		}))
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0))) // node level
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1))) // link count
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(5))) // dangling link

		_, err := LoadGraph(&buf, [][]float32{{1, 0}})
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
}
