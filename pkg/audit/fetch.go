package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// fetch calls fn with a per-attempt timeout, waiting on the rate limiter
// before each attempt and retrying failures with a linear backoff. Errors
// from the collaborator are retryable; cancellation of ctx is not.
func fetch[T any](ctx context.Context, a *Auditor, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := max(a.config.FetchRetries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return zero, errors.Wrapf(err, "%s: rate limiter", name)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, a.config.FetchTimeout)
		v, err := fn(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, errors.Wrapf(ctx.Err(), "%s: aborted", name)
		}

		a.logger.Sugar().Warnw("Source request failed",
			"request", name,
			"attempt", attempt,
			"maxAttempts", attempts,
			"error", err,
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, errors.Wrapf(ctx.Err(), "%s: aborted", name)
		case <-time.After(a.config.RetryBackoff * time.Duration(attempt)):
		}
	}
	return zero, errors.Wrapf(lastErr, "%s failed after %d attempts", name, attempts)
}
