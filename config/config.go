// Package config loads engine configuration from YAML, overlaying file
// values on built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minutesai/semindex/chunk"
	"github.com/minutesai/semindex/embedding"
	"github.com/minutesai/semindex/embedding/hashfall"
	"github.com/minutesai/semindex/embedding/openai"
	"github.com/minutesai/semindex/embedding/sentence"
)

// Config is the full engine configuration.
type Config struct {
	Chunking  Chunking  `yaml:"chunking"`
	Embedding Embedding `yaml:"embedding"`
	Index     Index     `yaml:"index"`
}

// Chunking configures how documents are split before embedding.
type Chunking struct {
	MaxChunkChars int `yaml:"maxChunkChars"`
	OverlapChars  int `yaml:"overlapChars"`
}

// Embedding configures backend selection and retry behavior.
type Embedding struct {
	Sentence     Sentence      `yaml:"sentence"`
	OpenAI       OpenAI        `yaml:"openai"`
	Fallback     Fallback      `yaml:"fallback"`
	MaxRetries   uint64        `yaml:"maxRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// Sentence configures the local sentence backend.
type Sentence struct {
	Disabled bool   `yaml:"disabled"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// OpenAI configures the remote API backend. The API key is read from the
// environment variable named by APIKeyEnv, never from the file itself.
type OpenAI struct {
	Disabled          bool    `yaml:"disabled"`
	BaseURL           string  `yaml:"baseUrl"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"apiKeyEnv"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// Fallback configures the hash fallback backend.
type Fallback struct {
	Dimension int `yaml:"dimension"`
}

// Index configures the search index.
type Index struct {
	// Accelerated switches from the brute-force scan to the graph index.
	Accelerated bool `yaml:"accelerated"`
	M           int  `yaml:"m"`
	EF          int  `yaml:"ef"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chunking: Chunking{
			MaxChunkChars: chunk.DefaultMaxChars,
			OverlapChars:  chunk.DefaultOverlapChars,
		},
		Embedding: Embedding{
			Sentence: Sentence{
				Endpoint: sentence.DefaultEndpoint,
				Model:    sentence.DefaultModel,
			},
			OpenAI: OpenAI{
				BaseURL:           openai.DefaultBaseURL,
				Model:             openai.DefaultModel,
				APIKeyEnv:         "OPENAI_API_KEY",
				RequestsPerSecond: openai.DefaultRequestsPerSecond,
			},
			Fallback: Fallback{
				Dimension: hashfall.DefaultDimension,
			},
			MaxRetries:   embedding.DefaultMaxRetries,
			RetryBackoff: embedding.DefaultRetryBackoff,
		},
		Index: Index{
			Accelerated: false,
			M:           16,
			EF:          200,
		},
	}
}

// Load reads the YAML file at path and overlays it on Default. Unknown
// keys are rejected to catch typos early.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := unmarshalStrict(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := chunk.Validate(cfg.Chunking.MaxChunkChars, cfg.Chunking.OverlapChars); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func unmarshalStrict(raw []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ProviderOptions translates the embedding section into provider options.
func (c Config) ProviderOptions() []func(o *embedding.ProviderOptions) {
	e := c.Embedding
	return []func(o *embedding.ProviderOptions){
		func(o *embedding.ProviderOptions) {
			o.DisableSentence = e.Sentence.Disabled
			o.DisableOpenAI = e.OpenAI.Disabled
			o.FallbackDimension = e.Fallback.Dimension
			o.MaxRetries = e.MaxRetries
			o.RetryBackoff = e.RetryBackoff
			o.Sentence = []func(o *sentence.Options){
				func(o *sentence.Options) {
					o.Endpoint = e.Sentence.Endpoint
					o.Model = e.Sentence.Model
				},
			}
			o.OpenAI = []func(o *openai.Options){
				func(o *openai.Options) {
					o.BaseURL = e.OpenAI.BaseURL
					o.Model = e.OpenAI.Model
					o.RequestsPerSecond = e.OpenAI.RequestsPerSecond
					if e.OpenAI.APIKeyEnv != "" {
						o.APIKey = os.Getenv(e.OpenAI.APIKeyEnv)
					}
				},
			}
		},
	}
}
