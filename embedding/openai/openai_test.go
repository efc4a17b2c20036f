package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer mimics an OpenAI-compatible /v1/embeddings endpoint. It
// returns the data entries in reverse order to exercise index-based
// reordering on the client.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type entry struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		data := make([]entry, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, entry{
				Index:     i,
				Embedding: []float32{float32(i), 1, float32(len(req.Input[i]))},
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewProbesService(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	b, err := New(context.Background(), func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.HTTPClient = srv.Client()
		o.RequestsPerSecond = 0
	})
	require.NoError(t, err)

	assert.Equal(t, 3, b.Dimension())
	assert.Equal(t, "openai/"+DefaultModel, b.Name())
}

func TestEmbedOrderedByIndex(t *testing.T) {
	srv := fakeServer(t)
	defer srv.Close()

	b, err := New(context.Background(), func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.HTTPClient = srv.Client()
		o.RequestsPerSecond = 0
	})
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{"ab", "cdef", "g"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 1, 2}, vectors[0])
	assert.Equal(t, []float32{1, 1, 4}, vectors[1])
	assert.Equal(t, []float32{2, 1, 1}, vectors[2])
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(context.Background(), func(o *Options) {
		o.BaseURL = srv.URL
		o.APIKey = "test-key"
		o.HTTPClient = srv.Client()
		o.RequestsPerSecond = 0
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
