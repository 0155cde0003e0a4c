package trainer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

func linearlySeparableDataset() ([][]float64, []int) {
	X := make([][]float64, 0, 200)
	y := make([]int, 0, 200)
	for i := 0; i < 100; i++ {
		X = append(X, []float64{float64(i) * 0.01, 0.1})
		y = append(y, 0)
		X = append(X, []float64{float64(i)*0.01 + 10, 0.1})
		y = append(y, 1)
	}
	return X, y
}

func TestLogisticRegression_FitLearnsSeparableClasses(t *testing.T) {
	X, y := linearlySeparableDataset()

	model := NewLogisticRegression()
	metrics, err := model.Fit(X, y, 5, 42)
	require.NoError(t, err)

	assert.Greater(t, metrics.Accuracy, 0.9)
	assert.Equal(t, len(X), metrics.SamplesCount)
	assert.GreaterOrEqual(t, metrics.CVMean, 0.0)
}

func TestLogisticRegression_PredictWithoutFitReturnsErrNoModel(t *testing.T) {
	model := NewLogisticRegression()
	_, err := model.Predict([][]float64{{1, 2}})
	require.ErrorIs(t, err, models.ErrNoModel)
}

func TestLogisticRegression_SaveLoadRoundTrip(t *testing.T) {
	X, y := linearlySeparableDataset()
	model := NewLogisticRegression()
	_, err := model.Fit(X, y, 0, 7)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, model.Save(path))

	restored := NewLogisticRegression()
	require.NoError(t, restored.Load(path))

	want, err := model.Predict(X[:10])
	require.NoError(t, err)
	got, err := restored.Predict(X[:10])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLogisticRegression_PredictDimensionMismatch(t *testing.T) {
	X, y := linearlySeparableDataset()
	model := NewLogisticRegression()
	_, err := model.Fit(X, y, 0, 1)
	require.NoError(t, err)

	_, err = model.Predict([][]float64{{1, 2, 3}})
	require.Error(t, err)
}
