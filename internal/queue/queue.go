// Package queue wraps the Redis-backed FIFO queues and cache keys that glue
// the four services together: data_queue, stream_queue, prediction_buffer,
// and retraining_queue (LPUSH/RPOP), plus the active_model, model_update,
// and reference_data cache keys. Grounded on
// go-api-gateway/internal/database/coordinator.go's CacheSet/CacheGet/Redis
// initialization, generalized from its single "dc.redis" client to the
// named queue/cache keys original_source/shared/redis_client.py operates
// against.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
)

// Queue names, fixed by spec.md §6.
const (
	DataQueue         = "data_queue"
	StreamQueue       = "stream_queue"
	PredictionBuffer  = "prediction_buffer"
	RetrainingQueue   = "retraining_queue"
)

// Cache keys, fixed by spec.md §6.
const (
	ActiveModelKey   = "active_model"
	ModelUpdateKey   = "model_update"
	ReferenceDataKey = "reference_data"
)

// ErrEmpty is returned by Pop when a queue has no elements, matching
// redis.Nil on RPOP so callers can treat it as "nothing to do" rather than
// a failure.
var ErrEmpty = errors.New("queue: empty")

// Client wraps a *redis.Client with the named push/pop/cache operations the
// pipeline's services need.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
	tracer trace.Tracer
	res    guard
}

// New opens a Redis client against cfg and verifies connectivity with a
// PING, following coordinator.go's initRedis pattern.
func New(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr(),
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, logger: logger.Named("queue"), tracer: otel.Tracer("queue"), res: newGuard()}, nil
}

// Push JSON-encodes v and LPUSHes it onto queueName, mirroring the Python
// services' redis_client.lpush(queue, json.dumps(item)) calls.
func (c *Client) Push(ctx context.Context, queueName string, v any) error {
	ctx, span := c.tracer.Start(ctx, "queue.push")
	defer span.End()
	span.SetAttributes(attribute.String("queue", queueName))

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal queue payload: %w", err)
	}
	if err := c.res.run(ctx, func(ctx context.Context) error {
		return c.rdb.LPush(ctx, queueName, payload).Err()
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("lpush %s: %w", queueName, err)
	}
	return nil
}

// Pop RPOPs one element from queueName and decodes it into dest. Returns
// ErrEmpty if the queue had nothing to pop.
func (c *Client) Pop(ctx context.Context, queueName string, dest any) error {
	ctx, span := c.tracer.Start(ctx, "queue.pop")
	defer span.End()
	span.SetAttributes(attribute.String("queue", queueName))

	var raw []byte
	var empty bool
	err := c.res.run(ctx, func(ctx context.Context) error {
		b, err := c.rdb.RPop(ctx, queueName).Bytes()
		if errors.Is(err, redis.Nil) {
			empty = true
			return nil
		}
		raw = b
		return err
	})
	if empty {
		return ErrEmpty
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("rpop %s: %w", queueName, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal queue payload: %w", err)
	}
	return nil
}

// Len reports the current length of queueName, backing the ingestion
// /stats endpoint's queue depth figures.
func (c *Client) Len(ctx context.Context, queueName string) (int64, error) {
	var n int64
	err := c.res.run(ctx, func(ctx context.Context) error {
		var err error
		n, err = c.rdb.LLen(ctx, queueName).Result()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", queueName, err)
	}
	return n, nil
}

// DrainUpTo pops at most n items from queueName, passing each raw payload
// to fn, and stops early with a nil error once the queue is empty — the Go
// equivalent of the Python
// workers' "loop popping until empty or window_size reached" pattern (e.g.
// RetrainingWorker.get_training_data, DriftMonitor.collect_recent_data).
func (c *Client) DrainUpTo(ctx context.Context, queueName string, n int, fn func(raw []byte) error) (int, error) {
	drained := 0
	for i := 0; i < n; i++ {
		var raw []byte
		var empty bool
		err := c.res.run(ctx, func(ctx context.Context) error {
			b, err := c.rdb.RPop(ctx, queueName).Bytes()
			if errors.Is(err, redis.Nil) {
				empty = true
				return nil
			}
			raw = b
			return err
		})
		if empty {
			break
		}
		if err != nil {
			return drained, fmt.Errorf("rpop %s: %w", queueName, err)
		}
		if err := fn(raw); err != nil {
			return drained, err
		}
		drained++
	}
	return drained, nil
}

// CacheSet JSON-encodes v and writes it to key, optionally with a TTL
// (ttl<=0 means no expiry), mirroring coordinator.go's CacheSet.
func (c *Client) CacheSet(ctx context.Context, key string, v any, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "queue.cache_set")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	if err := c.res.run(ctx, func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, payload, ttl).Err()
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// CacheGet decodes the value at key into dest. Returns (false, nil) if the
// key does not exist.
func (c *Client) CacheGet(ctx context.Context, key string, dest any) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "queue.cache_get")
	defer span.End()
	span.SetAttributes(attribute.String("key", key))

	var raw []byte
	var miss bool
	err := c.res.run(ctx, func(ctx context.Context) error {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		raw = b
		return err
	})
	if miss {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("unmarshal cache payload: %w", err)
	}
	return true, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
