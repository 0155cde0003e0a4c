package store

import (
	"context"

	"github.com/sasank-in/ml-drift-pipeline/internal/resilience"
)

// guard wraps a single Postgres/SQLite call with retry-with-backoff inside a
// circuit breaker, per internal/resilience's stated purpose: a transient
// StoreUnavailable condition (spec.md §7) gets a few backed-off attempts
// before the adapter gives up, and once a run of failures trips the
// breaker, further calls fail fast instead of piling up against a database
// that's already down.
type guard struct {
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

func newGuard() guard {
	return guard{
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.DefaultRetryConfig(),
	}
}

// run executes op, retrying transient failures per g.retry and short-
// circuiting via g.breaker once it has opened. Callers wrap the returned
// error in models.ErrStoreUnavailable themselves, same as before this was
// introduced, so the error surface at the Store interface is unchanged.
func (g guard) run(ctx context.Context, op resilience.Operation) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, g.retry, op)
	})
}
