// Package ingestion implements the Ingestion service (spec.md §4.1): a
// thin queue adapter that validates incoming batches/stream samples and
// appends them to data_queue/stream_queue. It never touches the
// persistent store — at-least-once delivery is acceptable, per spec.md
// §4.1's durability note. Grounded on
// go-api-gateway/internal/services/database.go's constructor/logger
// pattern.
package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
)

// Enqueuer is the subset of queue.Client the ingestion service depends on,
// kept as an interface so tests can substitute an in-memory fake.
type Enqueuer interface {
	Push(ctx context.Context, queueName string, v any) error
	Len(ctx context.Context, queueName string) (int64, error)
}

// Service validates and enqueues ingestion traffic.
type Service struct {
	queue  Enqueuer
	logger *zap.Logger

	dimMu sync.Mutex
	dim   int // 0 until the first accepted batch establishes D (spec.md §4.1)
}

// New builds an ingestion Service.
func New(q Enqueuer, logger *zap.Logger) *Service {
	return &Service{queue: q, logger: logger.Named("ingestion")}
}

// IngestBatch validates batch and appends it to data_queue, returning the
// number of rows enqueued. Validation follows spec.md §4.1: non-empty,
// rectangular, labels (if present) parallel to features, and row width
// fixed at D once the first batch establishes it.
func (s *Service) IngestBatch(ctx context.Context, batch models.Batch) (int, error) {
	d, err := validateBatch(batch)
	if err != nil {
		return 0, err
	}
	if err := s.checkDimension(d); err != nil {
		return 0, err
	}

	batch.Timestamp = time.Now()
	if err := s.queue.Push(ctx, queue.DataQueue, batch); err != nil {
		return 0, fmt.Errorf("enqueue batch: %w", err)
	}
	return len(batch.Features), nil
}

// IngestStream validates and appends a single sample to stream_queue.
func (s *Service) IngestStream(ctx context.Context, sample models.StreamSample) error {
	if len(sample.Features) == 0 {
		return models.ErrInvalidShape
	}
	if err := s.queue.Push(ctx, queue.StreamQueue, sample); err != nil {
		return fmt.Errorf("enqueue stream sample: %w", err)
	}
	return nil
}

// Stats reports the best-effort instantaneous queue depths, per spec.md
// §4.1's Stats() operation.
func (s *Service) Stats(ctx context.Context) (batchQueueSize, streamQueueSize int64, err error) {
	batchQueueSize, err = s.queue.Len(ctx, queue.DataQueue)
	if err != nil {
		return 0, 0, fmt.Errorf("data_queue length: %w", err)
	}
	streamQueueSize, err = s.queue.Len(ctx, queue.StreamQueue)
	if err != nil {
		return 0, 0, fmt.Errorf("stream_queue length: %w", err)
	}
	return batchQueueSize, streamQueueSize, nil
}

// validateBatch enforces spec.md §4.1: non-empty matrix, rectangular rows,
// labels (if present) parallel to features. Returns the batch's row width
// so the caller can check it against the established dimension.
func validateBatch(batch models.Batch) (int, error) {
	if len(batch.Features) == 0 {
		return 0, models.ErrInvalidShape
	}
	d := len(batch.Features[0])
	if d == 0 {
		return 0, models.ErrInvalidShape
	}
	for _, row := range batch.Features {
		if len(row) != d {
			return 0, models.ErrInvalidShape
		}
	}
	if batch.Labels != nil && len(batch.Labels) != len(batch.Features) {
		return 0, models.ErrInvalidShape
	}
	return d, nil
}

// checkDimension enforces spec.md §4.1's "equals D once D is fixed" rule
// across separate IngestBatch calls: the first accepted batch establishes
// D, and every later batch must match it or be rejected.
func (s *Service) checkDimension(d int) error {
	s.dimMu.Lock()
	defer s.dimMu.Unlock()
	if s.dim == 0 {
		s.dim = d
		return nil
	}
	if s.dim != d {
		return models.ErrInvalidShape
	}
	return nil
}
