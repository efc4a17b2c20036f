// Package retry wraps bounded retries with Fibonacci backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Do executes task with Fibonacci backoff up to maxRetries retries.
// Only errors marked retryable via Transient are retried.
func Do(ctx context.Context, maxRetries uint64, base time.Duration, task func(ctx context.Context) error) error {
	b := retry.NewFibonacci(base)
	return retry.Do(ctx, retry.WithMaxRetries(maxRetries, b), task)
}

// Transient marks err as retryable, unless it stems from context
// cancellation, which is permanent from the caller's point of view.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return retry.RetryableError(err)
}
