package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/metrics"
	"bookforge/internal/services"
)

const maxRetryDelay = time.Minute

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryPolicy(attempts int, base time.Duration) retryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	if base < 0 {
		base = 0
	}
	return retryPolicy{attempts: attempts, baseDelay: base, maxDelay: maxRetryDelay}
}

// delay returns the wait before attempt+1: base, base*2, base*4, ... capped.
func (p retryPolicy) delay(attempt int) time.Duration {
	if p.baseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > p.maxDelay/2 {
			return p.maxDelay
		}
		delay *= 2
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Each attempt is recorded as a provider request.
func withRetry[T any](ctx context.Context, p retryPolicy, logger *slog.Logger, kind, provider string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		started := time.Now()
		value, err := fn(ctx)
		metrics.ObserveProvider(kind, provider, started, err)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !services.Retryable(err) || ctx.Err() != nil || attempt == p.attempts {
			break
		}
		wait := p.delay(attempt)
		logging.WithContext(ctx, logger).Warn("provider call failed; retrying",
			logging.Provider(provider),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", p.attempts),
			logging.Duration("backoff", wait),
			logging.String(logging.FieldEventType, "provider_retry"),
			logging.Error(err),
		)
		if err := sleepContext(ctx, wait); err != nil {
			return zero, err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	if services.Retryable(lastErr) && p.attempts > 1 {
		return zero, fmt.Errorf("%s %s: failed after %d attempts: %w", kind, provider, p.attempts, lastErr)
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, delay time.Duration) error {
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
