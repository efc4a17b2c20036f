// Package sentence provides the local sentence-embedding backend.
//
// It speaks to an Ollama-compatible inference server running on the local
// machine. The server is probed once at construction; an unreachable server
// makes New fail so the provider factory can fall through to the next
// backend.
package sentence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is the conventional local inference server address.
	DefaultEndpoint = "http://127.0.0.1:11434"

	// DefaultModel is the default local sentence-embedding model.
	DefaultModel = "nomic-embed-text"

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// probeTimeout bounds the construction-time reachability probe.
	probeTimeout = 3 * time.Second
)

// Options contains configuration options for the local backend.
type Options struct {
	Endpoint string
	Model    string
	Timeout  time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Backend embeds text through a local inference server.
type Backend struct {
	endpoint  string
	model     string
	client    *http.Client
	dimension int
}

// New creates the local backend and probes the server with a one-element
// embedding request, which both verifies reachability and records the model
// dimension for the backend's lifetime.
func New(ctx context.Context, optFns ...func(o *Options)) (*Backend, error) {
	opts := Options{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	b := &Backend{
		endpoint: opts.Endpoint,
		model:    opts.Model,
		client:   client,
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	probe, err := b.request(probeCtx, []string{"ping"})
	if err != nil {
		return nil, fmt.Errorf("sentence backend unavailable at %s: %w", opts.Endpoint, err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		return nil, fmt.Errorf("sentence backend at %s returned an empty probe embedding", opts.Endpoint)
	}
	b.dimension = len(probe[0])

	return b, nil
}

// Name implements the backend capability.
func (b *Backend) Name() string { return "sentence/" + b.model }

// Dimension implements the backend capability.
func (b *Backend) Dimension() int { return b.dimension }

// Embed implements the backend capability.
func (b *Backend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return b.request(ctx, texts)
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (b *Backend) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: b.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding request failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d embeddings", len(texts), len(out.Embeddings))
	}

	return out.Embeddings, nil
}
