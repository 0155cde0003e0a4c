package drift

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
)

type fakeStore struct {
	events []models.DriftEvent
}

func (f *fakeStore) LogDriftEvent(_ context.Context, ev models.DriftEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fakeQueue struct {
	reference [][]float64
	buffered  [][]byte
	pushed    []any
}

func (f *fakeQueue) CacheGet(_ context.Context, key string, dest any) (bool, error) {
	if key != queue.ReferenceDataKey || f.reference == nil {
		return false, nil
	}
	raw, _ := json.Marshal(f.reference)
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeQueue) DrainUpTo(_ context.Context, queueName string, n int, fn func(raw []byte) error) (int, error) {
	drained := 0
	for drained < n && len(f.buffered) > 0 {
		raw := f.buffered[0]
		f.buffered = f.buffered[1:]
		if err := fn(raw); err != nil {
			return drained, err
		}
		drained++
	}
	return drained, nil
}

func (f *fakeQueue) Push(_ context.Context, queueName string, v any) error {
	f.pushed = append(f.pushed, v)
	return nil
}

func bufferedRaw(t *testing.T, features [][]float64) []byte {
	t.Helper()
	raw, err := json.Marshal(models.BufferedPrediction{Features: features, Predicted: make([]int, len(features))})
	require.NoError(t, err)
	return raw
}

func driftCfg() config.DriftConfig {
	return config.DriftConfig{
		CheckIntervalSeconds: 300,
		WindowSize:           10,
		MinSamples:           2,
		Threshold:            0.05,
	}
}

func TestTick_NoReferenceDataSkips(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{}
	m := New(driftCfg(), st, q, zap.NewNop())

	require.NoError(t, m.Tick(context.Background()))

	assert.Empty(t, st.events)
}

func TestTick_InsufficientSamplesSkips(t *testing.T) {
	st := &fakeStore{}
	q := &fakeQueue{reference: [][]float64{{1, 2}, {3, 4}}, buffered: [][]byte{bufferedRaw(t, [][]float64{{1, 2}})}}
	m := New(driftCfg(), st, q, zap.NewNop())

	require.NoError(t, m.Tick(context.Background()))

	assert.Empty(t, st.events)
}

func TestTick_NoDriftPersistsEventWithoutRetrain(t *testing.T) {
	reference := make([][]float64, 0, 100)
	for i := 0; i < 100; i++ {
		reference = append(reference, []float64{float64(i % 10), float64(i % 5)})
	}
	current := make([][]float64, 0, 50)
	for i := 0; i < 50; i++ {
		current = append(current, []float64{float64(i % 10), float64(i % 5)})
	}

	st := &fakeStore{}
	q := &fakeQueue{reference: reference, buffered: [][]byte{bufferedRaw(t, current)}}
	m := New(driftCfg(), st, q, zap.NewNop())

	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, st.events, 1)
	assert.False(t, st.events[0].DriftDetected)
	assert.Equal(t, models.ActionNone, st.events[0].ActionTaken)
	assert.Empty(t, q.pushed)
}

func TestTick_DriftDetectedEnqueuesRetrainJob(t *testing.T) {
	reference := make([][]float64, 0, 200)
	for i := 0; i < 200; i++ {
		reference = append(reference, []float64{float64(i % 10)})
	}
	shifted := make([][]float64, 0, 200)
	for i := 0; i < 200; i++ {
		shifted = append(shifted, []float64{float64(i%10) + 500})
	}

	st := &fakeStore{}
	q := &fakeQueue{reference: reference, buffered: [][]byte{bufferedRaw(t, shifted)}}
	cfg := driftCfg()
	cfg.WindowSize = 200
	m := New(cfg, st, q, zap.NewNop())

	require.NoError(t, m.Tick(context.Background()))

	require.Len(t, st.events, 1)
	assert.True(t, st.events[0].DriftDetected)
	assert.Equal(t, models.ActionRetrainingTriggered, st.events[0].ActionTaken)
	require.Len(t, q.pushed, 1)
	job, ok := q.pushed[0].(models.RetrainJob)
	require.True(t, ok)
	assert.Equal(t, "drift_detected", job.Trigger)
}
