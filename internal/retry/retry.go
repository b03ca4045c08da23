// Package retry runs an operation with capped attempts and exponential
// backoff. It is used only around network calls to external services.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy mirrors the upload loop the storage code has always used:
// four attempts starting at one second and doubling.
var DefaultPolicy = Policy{
	MaxAttempts:    4,
	InitialBackoff: time.Second,
	MaxBackoff:     16 * time.Second,
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts are exhausted or ctx is done. The last error is returned wrapped.
func Do(ctx context.Context, p Policy, name string, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		slog.Warn(
			"Operation failed, will retry.",
			"operation", name,
			"attempt", i+1,
			"maxAttempts", attempts,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "operation", name, "error", ctx.Err())
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
		}
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
