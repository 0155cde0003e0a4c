package models

import "time"

// PredictionRecord is a single persisted prediction served by the
// Prediction service.
type PredictionRecord struct {
	ID            int64         `json:"id,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Features      FeatureVector `json:"features"`
	Prediction    int           `json:"prediction"`
	Probability   float64       `json:"probability"`
	TrueLabel     *int          `json:"true_label,omitempty"`
	ModelVersion  string        `json:"model_version"`
	ServiceID     string        `json:"service_id"`
}

// BufferedPrediction is the record appended to prediction_buffer for the
// DriftMonitor to drain: the whole matrix served by one Predict call, one
// prediction per row, matching original_source/services/prediction_service
// pushing a full batch per request rather than per individual row.
type BufferedPrediction struct {
	Features  [][]float64 `json:"features"`
	Predicted []int       `json:"predictions"`
	Timestamp time.Time   `json:"timestamp"`
}

// PredictRequest is the decoded body of POST /predict and /predict/batch.
type PredictRequest struct {
	Features  RawFeatures `json:"features"`
	BatchSize int         `json:"batch_size,omitempty"`
}

// RawFeatures accepts either a 1-D ([]float64) or 2-D ([][]float64) JSON
// feature payload, normalized by UnmarshalJSON into a 2-D matrix.
type RawFeatures struct {
	Matrix [][]float64
	WasRow bool // true if the original payload was a single 1-D row
}

// PredictResponse is the JSON body returned by /predict and /predict/batch.
type PredictResponse struct {
	Status          string      `json:"status"`
	Predictions     []int       `json:"predictions"`
	Probabilities   [][]float64 `json:"probabilities"`
	PredictionTime  float64     `json:"prediction_time"`
	ModelVersion    string      `json:"model_version"`
	TotalSamples    int         `json:"total_samples,omitempty"`
}
