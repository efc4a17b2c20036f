// Package openai provides the remote API embedding backend.
//
// It targets any OpenAI-compatible /v1/embeddings endpoint. Requests are
// rate limited and the service is probed at construction, so an unreachable
// or unconfigured endpoint makes New fail and lets the provider factory
// fall through.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the upstream OpenAI API base.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default embedding model.
	DefaultModel = "text-embedding-3-small"

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 120 * time.Second

	// DefaultRequestsPerSecond is the default client-side rate limit.
	DefaultRequestsPerSecond = 5

	// probeTimeout bounds the construction-time reachability probe.
	probeTimeout = 5 * time.Second
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("openai backend not configured: missing API key")

// Options contains configuration options for the remote backend.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests. <= 0 disables
	// throttling.
	RequestsPerSecond float64

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Backend embeds text through a remote OpenAI-compatible API.
type Backend struct {
	baseURL   string
	apiKey    string
	model     string
	client    *http.Client
	limiter   *rate.Limiter
	dimension int
}

// New creates the remote backend. It requires an API key and probes the
// service with a one-element embedding request to verify reachability and
// record the model dimension.
func New(ctx context.Context, optFns ...func(o *Options)) (*Backend, error) {
	opts := Options{
		BaseURL:           DefaultBaseURL,
		Model:             DefaultModel,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	b := &Backend{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		client:  client,
		limiter: limiter,
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	probe, err := b.request(probeCtx, []string{"ping"})
	if err != nil {
		return nil, fmt.Errorf("openai backend unavailable at %s: %w", opts.BaseURL, err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		return nil, fmt.Errorf("openai backend at %s returned an empty probe embedding", opts.BaseURL)
	}
	b.dimension = len(probe[0])

	return b, nil
}

// Name implements the backend capability.
func (b *Backend) Name() string { return "openai/" + b.model }

// Dimension implements the backend capability.
func (b *Backend) Dimension() int { return b.dimension }

// Embed implements the backend capability.
func (b *Backend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return b.request(ctx, texts)
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (b *Backend) request(ctx context.Context, texts []string) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(embedRequest{
		Model:          b.model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

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

	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d embeddings", len(texts), len(out.Data))
	}

	// The API documents positional order via the index field; honor it.
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
