package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
)

type fakeEnqueuer struct {
	pushed map[string][]any
	lens   map[string]int64
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{pushed: make(map[string][]any), lens: make(map[string]int64)}
}

func (f *fakeEnqueuer) Push(_ context.Context, queueName string, v any) error {
	f.pushed[queueName] = append(f.pushed[queueName], v)
	f.lens[queueName]++
	return nil
}

func (f *fakeEnqueuer) Len(_ context.Context, queueName string) (int64, error) {
	return f.lens[queueName], nil
}

func TestIngestBatch_ValidBatchEnqueuesAndReturnsCount(t *testing.T) {
	fake := newFakeEnqueuer()
	svc := New(fake, zap.NewNop())

	n, err := svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2, 3}, {4, 5, 6}},
		Labels:   []int{0, 1},
		BatchID:  "b1",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, fake.pushed[queue.DataQueue], 1)
}

func TestIngestBatch_EmptyMatrixReturnsInvalidShape(t *testing.T) {
	svc := New(newFakeEnqueuer(), zap.NewNop())

	_, err := svc.IngestBatch(context.Background(), models.Batch{})

	require.ErrorIs(t, err, models.ErrInvalidShape)
}

func TestIngestBatch_MixedLengthRowsReturnsInvalidShape(t *testing.T) {
	svc := New(newFakeEnqueuer(), zap.NewNop())

	_, err := svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2, 3}, {4, 5}},
	})

	require.ErrorIs(t, err, models.ErrInvalidShape)
}

func TestIngestBatch_LabelsNotParallelReturnsInvalidShape(t *testing.T) {
	svc := New(newFakeEnqueuer(), zap.NewNop())

	_, err := svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2}, {3, 4}},
		Labels:   []int{0},
	})

	require.ErrorIs(t, err, models.ErrInvalidShape)
}

func TestIngestBatch_SecondCallWithDifferentWidthReturnsInvalidShape(t *testing.T) {
	svc := New(newFakeEnqueuer(), zap.NewNop())

	n, err := svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2, 3}, {4, 5, 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2}, {3, 4}},
	})
	require.ErrorIs(t, err, models.ErrInvalidShape)
}

func TestIngestBatch_SecondCallWithSameWidthSucceeds(t *testing.T) {
	fake := newFakeEnqueuer()
	svc := New(fake, zap.NewNop())

	_, err := svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{1, 2, 3}},
	})
	require.NoError(t, err)

	_, err = svc.IngestBatch(context.Background(), models.Batch{
		Features: []models.FeatureVector{{4, 5, 6}, {7, 8, 9}},
	})
	require.NoError(t, err)
	assert.Len(t, fake.pushed[queue.DataQueue], 2)
}

func TestIngestStream_EmptyFeaturesReturnsInvalidShape(t *testing.T) {
	svc := New(newFakeEnqueuer(), zap.NewNop())

	err := svc.IngestStream(context.Background(), models.StreamSample{})

	require.ErrorIs(t, err, models.ErrInvalidShape)
}

func TestStats_ReportsQueueDepths(t *testing.T) {
	fake := newFakeEnqueuer()
	svc := New(fake, zap.NewNop())
	_, _ = svc.IngestBatch(context.Background(), models.Batch{Features: []models.FeatureVector{{1}}})
	_ = svc.IngestStream(context.Background(), models.StreamSample{Features: models.FeatureVector{1}})

	batchSize, streamSize, err := svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), batchSize)
	assert.Equal(t, int64(1), streamSize)
}
