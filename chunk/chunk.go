// Package chunk splits documents into overlapping text windows while
// preserving exact attribution back to source offsets.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned for invalid chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

const (
	// DefaultMaxChars is the default maximum chunk size in runes.
	DefaultMaxChars = 1000

	// DefaultOverlapChars is the default overlap between consecutive chunks in runes.
	DefaultOverlapChars = 100
)

// Chunk is a bounded span of a document's text. Start and End are rune
// offsets into the whitespace-trimmed source text, with Text == trimmed[Start:End].
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Validate checks chunking parameters without splitting anything.
func Validate(maxChars, overlapChars int) error {
	if maxChars <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfig, maxChars)
	}
	if overlapChars < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlapChars)
	}
	if overlapChars >= maxChars {
		return fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d", ErrInvalidConfig, overlapChars, maxChars)
	}
	return nil
}

// Split divides text into ordered, overlapping chunks.
//
// The input is whitespace-trimmed first; offsets refer to the trimmed text.
// Chunks cover the entire trimmed input in order, no chunk exceeds maxChars
// runes, and consecutive chunks overlap by exactly overlapChars runes. The
// final chunk may be shorter than maxChars. Empty or whitespace-only input
// yields zero chunks.
func Split(text string, maxChars, overlapChars int) ([]Chunk, error) {
	if err := Validate(maxChars, overlapChars); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	runes := []rune(trimmed)
	stride := maxChars - overlapChars

	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, Chunk{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}
