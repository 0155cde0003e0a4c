package queue

import (
	"context"

	"github.com/sasank-in/ml-drift-pipeline/internal/resilience"
)

// guard wraps a single Redis call with retry-with-backoff inside a circuit
// breaker, the Redis half of internal/resilience's stated purpose (the
// Postgres half lives in internal/store/guard.go): a transient
// StoreUnavailable condition (spec.md §7) gets a few backed-off attempts
// before the caller sees an error, and a run of failures trips the breaker
// so calls fail fast instead of piling up against a Redis that's down.
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

func (g guard) run(ctx context.Context, op resilience.Operation) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, g.retry, op)
	})
}
