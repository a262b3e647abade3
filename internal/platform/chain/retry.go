package chain

import (
	"context"
	"time"
)

// RetryWithBackoff attempts fn up to maxRetries times, sleeping
// initialDelay * 2^attempt between failures. The sleep is cancellable; a
// cancelled context aborts immediately with the context error. Once
// retries are exhausted the last observed error is returned.
//
// Only transport/protocol failures are retried (see Retryable); a
// successful response carrying a valid empty result never reaches the
// retry path because it is not an error.
func RetryWithBackoff[T any](ctx context.Context, fn func(context.Context) (T, error), maxRetries int, initialDelay time.Duration) (T, error) {
	var zero T
	var lastErr error

	// Always attempt at least once; a non-positive budget must not turn
	// into a silent success that never queried anything.
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == maxRetries-1 {
			break
		}

		delay := initialDelay << uint(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
