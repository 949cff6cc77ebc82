package ingest

import (
	"context"
	"time"
)

// maxRetryDelay caps the exponential backoff so a long retry budget does not
// balloon into multi-minute sleeps against a flapping RPC endpoint.
const maxRetryDelay = 30 * time.Second

// withRetry runs fn until it succeeds, the retry budget is spent, or the
// context ends. Delays double from baseDelay up to maxRetryDelay.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt == 0 || attempt <= maxRetries; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt >= maxRetries {
			break
		}

		delay := baseDelay << uint(attempt)
		if delay <= 0 || delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
