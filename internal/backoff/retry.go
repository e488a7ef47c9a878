package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrMaxAttemptsExhausted is returned when all retry attempts have been
// exhausted.
var ErrMaxAttemptsExhausted = errors.New("max retry attempts exhausted")

// Retry executes fn with exponential backoff between failed attempts,
// sleeping per policy. fn receives the current attempt number (1-indexed)
// and should return (value, nil) on success. Context cancellation is
// checked before each attempt and during the sleep, allowing graceful
// shutdown.
//
// shouldRetry, when non-nil, can stop the loop early for errors that will
// never succeed (auth, billing); returning false surfaces the error
// immediately without consuming remaining attempts.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	fn func(attempt int) (T, error),
	shouldRetry func(err error) bool,
) (T, error) {
	var zero T
	var lastErr error

	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return zero, err
		}

		if attempt < maxAttempts {
			if err := Sleep(ctx, policy, attempt); err != nil {
				return zero, err
			}
		}
	}

	return zero, errors.Join(ErrMaxAttemptsExhausted, lastErr)
}

// Sleep blocks for the computed backoff duration of the given attempt, or
// until ctx is done, whichever comes first.
func Sleep(ctx context.Context, policy Policy, attempt int) error {
	delay := Compute(policy, attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
