package driftstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureTest_IdenticalDistributionsNoDrift(t *testing.T) {
	reference := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	current := append([]float64(nil), reference...)

	m := FeatureTest(reference, current, 0.05)

	assert.False(t, m.DriftDetected)
	assert.InDelta(t, 0, m.PSI, 1e-9)
	assert.InDelta(t, 0, m.MeanShift, 1e-9)
	assert.Equal(t, 1.0, m.KSPValue)
}

func TestFeatureTest_ShiftedDistributionDetectsDrift(t *testing.T) {
	reference := make([]float64, 200)
	current := make([]float64, 200)
	for i := range reference {
		reference[i] = float64(i)
		current[i] = float64(i) + 500
	}

	m := FeatureTest(reference, current, 0.05)

	assert.True(t, m.DriftDetected)
	assert.Greater(t, m.MeanShift, meanShiftThreshold)
}

func TestPopulationStabilityIndex_DegenerateReferenceReturnsZero(t *testing.T) {
	reference := []float64{5, 5, 5, 5, 5}
	current := []float64{1, 2, 3, 4, 5}

	psi := populationStabilityIndex(reference, current, psiBins)

	assert.Equal(t, 0.0, psi)
}

func TestDetect_AggregatesAcrossFeatures(t *testing.T) {
	reference := map[string][]float64{
		"f0": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"f1": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}
	current := map[string][]float64{
		"f0": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"f1": {101, 102, 103, 104, 105, 106, 107, 108, 109, 110},
	}

	metrics := Detect(reference, current, []string{"f0", "f1"}, 0.05)

	require.Len(t, metrics.Features, 2)
	assert.False(t, metrics.Features["f0"].DriftDetected)
	assert.True(t, metrics.Features["f1"].DriftDetected)
	assert.Equal(t, 1, metrics.Summary.FeaturesWithDrift)
	assert.Equal(t, 50.0, metrics.Summary.DriftPercentage)
	assert.True(t, Overall(metrics))
}

func TestOverall_ExceedsTwentyPercentThreshold(t *testing.T) {
	metrics := Detect(
		map[string][]float64{"a": {1, 2, 3}, "b": {1, 2, 3}, "c": {1, 2, 3}},
		map[string][]float64{"a": {101, 102, 103}, "b": {101, 102, 103}, "c": {1, 2, 3}},
		[]string{"a", "b", "c"},
		0.05,
	)

	assert.True(t, Overall(metrics))
}
