package platform

import (
	"context"
	"math"
	"time"

	"github.com/artmoskal/TGHandyUtils-sub000/internal/logging"
)

// RetryConfig bounds the retry loop
type RetryConfig struct {
	MaxRetries    int     // total attempts, not extra attempts
	BackoffFactor float64 // sleep factor^attempt seconds between attempts
}

// DefaultRetryConfig matches the production retry policy
var DefaultRetryConfig = RetryConfig{MaxRetries: 3, BackoffFactor: 2.0}

// sleep is swapped out in tests to avoid real backoff waits
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry executes op up to cfg.MaxRetries times with exponential backoff.
// A non-retryable error (auth, config) fails immediately. The last error
// is surfaced after retries are exhausted. Retry is generic over any
// platform operation; it knows nothing about individual connectors.
func Retry[T any](ctx context.Context, cfg RetryConfig, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = DefaultRetryConfig.BackoffFactor
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(cfg.BackoffFactor, float64(attempt)) * float64(time.Second))
			logging.Debug("retry", "%s: attempt %d/%d after %s", name, attempt+1, cfg.MaxRetries, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Classify(err).Retryable() {
			logging.Debug("retry", "%s: permanent failure, giving up: %v", name, err)
			return zero, err
		}
		logging.Warn("retry", "%s: attempt %d/%d failed: %v", name, attempt+1, cfg.MaxRetries, err)
	}

	return zero, lastErr
}
