package models

import "time"

// TrainingJobStatus enumerates a TrainingJob's lifecycle state.
type TrainingJobStatus string

const (
	JobStarted   TrainingJobStatus = "started"
	JobCompleted TrainingJobStatus = "completed"
	JobFailed    TrainingJobStatus = "failed"
)

// TrainingJobTrigger enumerates why a TrainingJob was started.
type TrainingJobTrigger string

const (
	TriggerManual        TrainingJobTrigger = "manual"
	TriggerDriftDetected TrainingJobTrigger = "drift_detected"
)

// TrainingMetrics is the scalar metrics bundle a Trainer.Fit call returns.
type TrainingMetrics struct {
	Accuracy      float64 `json:"accuracy"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1Score       float64 `json:"f1_score"`
	CVMean        float64 `json:"cv_mean"`
	CVStd         float64 `json:"cv_std"`
	TrainingTime  float64 `json:"training_time"`
	SamplesCount  int     `json:"samples_count"`
}

// TrainingJob is a persisted record of one RetrainingWorker invocation.
type TrainingJob struct {
	ID            int64               `json:"id,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	JobID         string              `json:"job_id"`
	Status        TrainingJobStatus   `json:"status"`
	TriggerReason TrainingJobTrigger  `json:"trigger_reason"`
	Metrics       *TrainingMetrics    `json:"metrics,omitempty"`
	ModelVersion  string              `json:"model_version,omitempty"`
	TrackingID    string              `json:"tracking_id,omitempty"`
}

// ModelRegistryStatus enumerates a ModelRegistryEntry's lifecycle state.
type ModelRegistryStatus string

const (
	ModelTrained ModelRegistryStatus = "trained"
	ModelActive  ModelRegistryStatus = "active"
)

// ModelRegistryEntry is a persisted row in model_registry. Invariant: at
// most one entry has Deployed == true at any instant.
type ModelRegistryEntry struct {
	ID           int64               `json:"id,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	ModelVersion string              `json:"model_version"`
	ModelPath    string              `json:"model_path"`
	Metrics      TrainingMetrics     `json:"metrics"`
	Status       ModelRegistryStatus `json:"status"`
	Deployed     bool                `json:"deployed"`
}

// ModelUpdate is the payload published to the model_update cache key and
// the model.updates NATS subject when RetrainingWorker promotes a model.
type ModelUpdate struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
