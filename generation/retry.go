package generation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig bounds retry behavior for one adapter call. Rejected
// requests are never retried; availability failures are retried up to
// MaxAttempts with exponential backoff.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the default bounded retry policy.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrRejected)
		},
	}
}

// withRetry runs fn under the retry policy. A nil config means a
// single attempt.
func withRetry[T any](ctx context.Context, config *RetryConfig, op string, fn func() (T, error)) (T, error) {
	var zero T
	if config == nil {
		return fn()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s cancelled: %w", op, ctx.Err())
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}

		if attempt < config.MaxAttempts {
			select {
			case <-time.After(delay):
				delay = min(time.Duration(float64(delay)*config.BackoffFactor), config.MaxDelay)
			case <-ctx.Done():
				return zero, fmt.Errorf("%s cancelled during backoff: %w", op, ctx.Err())
			}
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded for %s: %w", config.MaxAttempts, op, lastErr)
}
