package semindex

import (
	"errors"
	"fmt"

	"github.com/minutesai/semindex/chunk"
	"github.com/minutesai/semindex/embedding"
	"github.com/minutesai/semindex/index"
)

var (
	// ErrConfiguration is returned for invalid store configuration, such
	// as a chunk overlap that is not smaller than the maximum chunk size.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument is returned for invalid operation arguments,
	// such as a non-positive k or an empty query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderUnavailable is returned when no embedding backend could
	// be selected.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// IncompatibleIndexError is returned by Load when the persisted artifacts
// were produced with an embedding backend that does not match the one the
// store is being opened with.
//
// Scores from different backends live in different vector spaces, so
// mixing them would silently corrupt search results.
type IncompatibleIndexError struct {
	RecordedName      string
	RecordedDimension int
	BackendName       string
	BackendDimension  int
}

func (e *IncompatibleIndexError) Error() string {
	return fmt.Sprintf("incompatible index: persisted with backend %s (dimension %d), opened with %s (dimension %d)",
		e.RecordedName, e.RecordedDimension, e.BackendName, e.BackendDimension)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, chunk.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	var id *index.ErrInvalidDimension
	if errors.As(err, &id) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if errors.Is(err, embedding.ErrNoBackend) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	return err
}
