package prediction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

type stubTrainer struct {
	numFeatures int
}

func (s *stubTrainer) Fit([][]float64, []int, int, int64) (models.TrainingMetrics, error) {
	return models.TrainingMetrics{}, nil
}

func (s *stubTrainer) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	return out, nil
}

func (s *stubTrainer) PredictProba(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != s.numFeatures {
			return nil, models.ErrDimensionMismatch
		}
		out[i] = []float64{0.3, 0.7}
	}
	return out, nil
}

func (s *stubTrainer) Save(string) error { return nil }
func (s *stubTrainer) Load(string) error { return nil }

var _ trainer.Trainer = (*stubTrainer)(nil)

type fakeStore struct {
	active    *models.ModelRegistryEntry
	predicted []models.PredictionRecord
}

func (f *fakeStore) LogPrediction(_ context.Context, rec models.PredictionRecord) error {
	f.predicted = append(f.predicted, rec)
	return nil
}

func (f *fakeStore) GetActiveModel(_ context.Context) (*models.ModelRegistryEntry, error) {
	return f.active, nil
}

type fakeCache struct {
	pushed [][]any
}

func (f *fakeCache) Push(_ context.Context, queueName string, v any) error {
	f.pushed = append(f.pushed, []any{queueName, v})
	return nil
}

func (f *fakeCache) CacheGet(context.Context, string, any) (bool, error) {
	return false, nil
}

func newTestService(active *models.ModelRegistryEntry, numFeatures int) (*Service, *fakeStore) {
	st := &fakeStore{active: active}
	cache := &fakeCache{}
	loader := func(path string) (trainer.Trainer, error) {
		return &stubTrainer{numFeatures: numFeatures}, nil
	}
	return New(st, cache, loader, "prediction-test", zap.NewNop()), st
}

func TestPredict_NoModelReturnsErrNoModel(t *testing.T) {
	svc, _ := newTestService(nil, 2)

	_, err := svc.Predict(context.Background(), [][]float64{{1, 2}})

	require.ErrorIs(t, err, models.ErrNoModel)
}

func TestPredict_LazyLoadsAndServes(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v_20260101_000000", ModelPath: "models/model_v1.gob"}
	svc, st := newTestService(active, 2)

	resp, err := svc.Predict(context.Background(), [][]float64{{1, 2}, {3, 4}})

	require.NoError(t, err)
	assert.Equal(t, "v_20260101_000000", resp.ModelVersion)
	assert.Len(t, resp.Predictions, 2)
	assert.Len(t, st.predicted, 2)
}

func TestPredict_DimensionMismatchReturnsError(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v1", ModelPath: "models/model_v1.gob"}
	svc, _ := newTestService(active, 3)

	_, err := svc.Predict(context.Background(), [][]float64{{1, 2}})

	require.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestPredict_EveryResponseSharesOneModelVersion(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v1", ModelPath: "models/model_v1.gob"}
	svc, _ := newTestService(active, 2)

	resp, err := svc.Predict(context.Background(), [][]float64{{1, 2}, {3, 4}, {5, 6}})

	require.NoError(t, err)
	for range resp.Predictions {
		assert.Equal(t, "v1", resp.ModelVersion)
	}
}

func TestReloadModel_IsIdempotent(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v1", ModelPath: "models/model_v1.gob"}
	svc, _ := newTestService(active, 2)

	v1, err := svc.ReloadModel(context.Background())
	require.NoError(t, err)
	v2, err := svc.ReloadModel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestPredictBatch_ChunksProduceEquivalentResult(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v1", ModelPath: "models/model_v1.gob"}
	svc, _ := newTestService(active, 1)

	matrix := [][]float64{{1}, {2}, {3}, {4}, {5}}
	whole, err := svc.Predict(context.Background(), matrix)
	require.NoError(t, err)

	svc2, _ := newTestService(active, 1)
	chunked, err := svc2.PredictBatch(context.Background(), matrix, 2)
	require.NoError(t, err)

	assert.Equal(t, len(whole.Predictions), len(chunked.Predictions))
	assert.Equal(t, 5, chunked.TotalSamples)
}

func TestPredict_RecordsNonNegativePredictionTime(t *testing.T) {
	active := &models.ModelRegistryEntry{ModelVersion: "v1", ModelPath: "models/model_v1.gob"}
	svc, _ := newTestService(active, 1)

	resp, err := svc.Predict(context.Background(), [][]float64{{1}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.PredictionTime, 0.0)
}
