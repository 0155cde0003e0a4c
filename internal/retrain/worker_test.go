package retrain

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

type fakeStore struct {
	jobs     []models.TrainingJob
	registry []models.ModelRegistryEntry
	deployed string
}

func (f *fakeStore) LogTrainingJob(_ context.Context, job models.TrainingJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeStore) RegisterModel(_ context.Context, entry models.ModelRegistryEntry) error {
	f.registry = append(f.registry, entry)
	return nil
}

func (f *fakeStore) DeployModel(_ context.Context, modelVersion string) error {
	f.deployed = modelVersion
	return nil
}

type fakeQueue struct {
	dataQueue [][]byte
	cacheSets map[string]any
}

func (f *fakeQueue) Pop(context.Context, string, any) error { return queue.ErrEmpty }

func (f *fakeQueue) DrainUpTo(_ context.Context, queueName string, n int, fn func(raw []byte) error) (int, error) {
	drained := 0
	for drained < n && len(f.dataQueue) > 0 {
		raw := f.dataQueue[0]
		f.dataQueue = f.dataQueue[1:]
		if err := fn(raw); err != nil {
			return drained, err
		}
		drained++
	}
	return drained, nil
}

func (f *fakeQueue) CacheSet(_ context.Context, key string, v any, _ time.Duration) error {
	if f.cacheSets == nil {
		f.cacheSets = make(map[string]any)
	}
	f.cacheSets[key] = v
	return nil
}

type fakeNotifier struct {
	published []models.ModelUpdate
}

func (f *fakeNotifier) Publish(update models.ModelUpdate) error {
	f.published = append(f.published, update)
	return nil
}

type fakeTrainer struct {
	fitErr error
}

func (f *fakeTrainer) Fit(X [][]float64, y []int, _ int, _ int64) (models.TrainingMetrics, error) {
	if f.fitErr != nil {
		return models.TrainingMetrics{}, f.fitErr
	}
	return models.TrainingMetrics{Accuracy: 0.9, SamplesCount: len(X)}, nil
}
func (f *fakeTrainer) Predict(X [][]float64) ([]int, error)             { return make([]int, len(X)), nil }
func (f *fakeTrainer) PredictProba(X [][]float64) ([][]float64, error)  { return nil, nil }
func (f *fakeTrainer) Save(string) error                                { return nil }
func (f *fakeTrainer) Load(string) error                                { return nil }

var _ trainer.Trainer = (*fakeTrainer)(nil)

func batchRaw(t *testing.T, features [][]float64, labels []int) []byte {
	t.Helper()
	raw, err := json.Marshal(models.Batch{Features: toVectors(features), Labels: labels})
	require.NoError(t, err)
	return raw
}

func toVectors(rows [][]float64) []models.FeatureVector {
	out := make([]models.FeatureVector, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func TestProcessJob_NoTrainingDataFailsJob(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	notifier := &fakeNotifier{}
	w := New(Config{WindowSize: 10, PollInterval: time.Second}, st, q, notifier, func() trainer.Trainer { return &fakeTrainer{} }, zap.NewNop())

	err := w.ProcessJob(context.Background(), models.RetrainJob{Trigger: "manual"})

	require.Error(t, err)
	require.Len(t, st.jobs, 2)
	assert.Equal(t, models.JobStarted, st.jobs[0].Status)
	assert.Equal(t, models.JobFailed, st.jobs[1].Status)
	assert.Empty(t, st.registry)
	assert.Empty(t, st.deployed)
}

func TestProcessJob_SuccessRegistersAndDeploysModel(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{dataQueue: [][]byte{batchRaw(t, [][]float64{{1, 2}, {3, 4}}, []int{0, 1})}}
	notifier := &fakeNotifier{}
	w := New(Config{WindowSize: 10, CVFolds: 0, PollInterval: time.Second, ModelDir: t.TempDir()}, st, q, notifier, func() trainer.Trainer { return &fakeTrainer{} }, zap.NewNop())

	err := w.ProcessJob(context.Background(), models.RetrainJob{Trigger: "drift_detected"})

	require.NoError(t, err)
	require.Len(t, st.registry, 1)
	assert.False(t, st.registry[0].Deployed)
	assert.Equal(t, st.registry[0].ModelVersion, st.deployed)
	require.Len(t, st.jobs, 2)
	assert.Equal(t, models.JobCompleted, st.jobs[1].Status)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, st.deployed, notifier.published[0].Version)
	assert.Contains(t, q.cacheSets, queue.ModelUpdateKey)
}

func TestProcessJob_TrainerFailureMarksJobFailedAndLeavesModelUnchanged(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{dataQueue: [][]byte{batchRaw(t, [][]float64{{1, 2}}, []int{0})}}
	notifier := &fakeNotifier{}
	w := New(Config{WindowSize: 10, PollInterval: time.Second}, st, q, notifier, func() trainer.Trainer {
		return &fakeTrainer{fitErr: assert.AnError}
	}, zap.NewNop())

	err := w.ProcessJob(context.Background(), models.RetrainJob{Trigger: "manual"})

	require.Error(t, err)
	assert.Empty(t, st.registry)
	assert.Empty(t, st.deployed)
	assert.Equal(t, models.JobFailed, st.jobs[len(st.jobs)-1].Status)
}
