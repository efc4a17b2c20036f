// Package hashfall implements the always-available embedding fallback.
//
// It maps the SHA-256 digest of normalized text to a fixed-dimension unit
// vector by expanding the digest in counter mode. The result carries no
// semantic signal, but it is deterministic across calls, processes and
// machines, requires no network or model, and keeps the engine operational
// with zero external dependencies.
package hashfall

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

const (
	// Name identifies this backend in persisted artifacts.
	Name = "hash-sha256"

	// DefaultDimension is the default output dimensionality.
	DefaultDimension = 256
)

// Options contains configuration options for the fallback backend.
type Options struct {
	// Dimension is the output vector dimensionality. Defaults to
	// DefaultDimension when <= 0.
	Dimension int
}

// Backend is the deterministic hash-derived embedding backend.
type Backend struct {
	dimension int
}

// New creates a new fallback backend. It cannot fail given sane defaults;
// the error return keeps the constructor signature uniform across backends.
func New(optFns ...func(o *Options)) (*Backend, error) {
	opts := Options{Dimension: DefaultDimension}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultDimension
	}

	return &Backend{dimension: opts.Dimension}, nil
}

// Name implements the backend capability.
func (b *Backend) Name() string { return Name }

// Dimension implements the backend capability.
func (b *Backend) Dimension() int { return b.dimension }

// Embed implements the backend capability. Output is order- and
// length-preserving, bit-identical for identical inputs, and never the
// all-zero vector.
func (b *Backend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = b.embedOne(text)
	}
	return vectors, nil
}

func (b *Backend) embedOne(text string) []float32 {
	digest := sha256.Sum256([]byte(normalize(text)))

	vec := make([]float32, b.dimension)
	var block [sha256.Size + 4]byte
	copy(block[:], digest[:])

	i := 0
	for counter := uint32(0); i < b.dimension; counter++ {
		binary.LittleEndian.PutUint32(block[sha256.Size:], counter)
		sum := sha256.Sum256(block[:])
		for off := 0; off+4 <= sha256.Size && i < b.dimension; off += 4 {
			u := binary.LittleEndian.Uint32(sum[off:])
			// Map the 32-bit word to [-1, 1).
			vec[i] = float32(float64(u)/float64(1<<32)*2 - 1)
			i++
		}
	}

	// Unit-normalize; accumulation order is fixed, so the result is
	// bit-identical across runs.
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}

// normalize lowercases and collapses whitespace so that trivially different
// renderings of the same text share a digest.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
