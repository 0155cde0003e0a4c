package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.db")
	s, err := NewSQLiteStore(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_GetActiveModel_EmptyRegistryReturnsNil(t *testing.T) {
	s := newTestSQLiteStore(t)

	entry, err := s.GetActiveModel(context.Background())

	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLiteStore_RegisterAndDeployModel_PromotesExactlyOneRow(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, v := range []string{"v_20260101_000000", "v_20260101_000100"} {
		require.NoError(t, s.RegisterModel(ctx, models.ModelRegistryEntry{
			Timestamp:    time.Now(),
			ModelVersion: v,
			ModelPath:    "models/" + v + ".gob",
			Metrics:      models.TrainingMetrics{Accuracy: 0.8},
			Status:       models.ModelTrained,
		}))
	}

	require.NoError(t, s.DeployModel(ctx, "v_20260101_000000"))
	require.NoError(t, s.DeployModel(ctx, "v_20260101_000100"))

	active, err := s.GetActiveModel(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "v_20260101_000100", active.ModelVersion)
	assert.True(t, active.Deployed)

	count, err := s.CountModelRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLiteStore_DeployModel_UnknownVersionFails(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.DeployModel(context.Background(), "v_does_not_exist")

	assert.Error(t, err)
}

func TestSQLiteStore_LatestAccuracy_ReflectsMostRecentRegistryRow(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestAccuracy(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RegisterModel(ctx, models.ModelRegistryEntry{
		Timestamp:    time.Now(),
		ModelVersion: "v_20260101_000000",
		ModelPath:    "models/v_20260101_000000.gob",
		Metrics:      models.TrainingMetrics{Accuracy: 0.91},
		Status:       models.ModelTrained,
	}))

	accuracy, ok, err := s.LatestAccuracy(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.91, accuracy, 1e-9)
}

func TestSQLiteStore_LogAndGetRecentPredictions(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.LogPrediction(ctx, models.PredictionRecord{
			Timestamp:    time.Now().Add(time.Duration(i) * time.Second),
			Features:     models.FeatureVector{float64(i), float64(i) * 2},
			Prediction:   i % 2,
			Probability:  0.5,
			ModelVersion: "v_20260101_000000",
			ServiceID:    "prediction-1",
		}))
	}

	recent, err := s.GetRecentPredictions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSQLiteStore_LogDriftEventAndTrainingJob(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogDriftEvent(ctx, models.DriftEvent{
		Timestamp:        time.Now(),
		DriftDetected:    true,
		DriftScore:       0.4,
		AffectedFeatures: []string{"f0"},
		ActionTaken:      models.ActionRetrainingTriggered,
	}))

	require.NoError(t, s.LogTrainingJob(ctx, models.TrainingJob{
		Timestamp:     time.Now(),
		JobID:         "job-1",
		Status:        models.JobStarted,
		TriggerReason: models.TriggerDriftDetected,
	}))

	require.NoError(t, s.LogTrainingJob(ctx, models.TrainingJob{
		Timestamp:     time.Now(),
		JobID:         "job-1",
		Status:        models.JobCompleted,
		TriggerReason: models.TriggerDriftDetected,
		Metrics:       &models.TrainingMetrics{Accuracy: 0.77},
		ModelVersion:  "v_20260101_000000",
	}))
}
