// Package resilience provides retry-with-backoff and circuit-breaker
// helpers used to wrap the Postgres and Redis clients, so a transient
// StoreUnavailable condition (spec.md §7) degrades gracefully instead of
// propagating to the request path. Adapted from
// go-services/shared/{retry,circuit-breaker}.go.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig mirrors the teacher's sensible defaults, tuned down
// for a store/cache client rather than an outbound HTTP call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation is a unit of work that may be retried.
type Operation func(ctx context.Context) error

// Do executes op, retrying with exponential backoff on error until
// MaxRetries is exhausted or ctx is cancelled.
func Do(ctx context.Context, cfg RetryConfig, op Operation) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := op(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay(attempt, cfg)):
		}
	}

	return errors.Join(errors.New("operation failed after retries"), lastErr)
}

func delay(attempt int, cfg RetryConfig) time.Duration {
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.BackoffFactor, float64(attempt)))
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if cfg.Jitter {
		d += time.Duration(rand.Float64() * float64(d) * 0.1)
	}
	return d
}
