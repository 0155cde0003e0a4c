package models

import "time"

// ActionTaken enumerates what a DriftEvent caused the pipeline to do.
type ActionTaken string

const (
	ActionNone                ActionTaken = "none"
	ActionRetrainingTriggered ActionTaken = "retraining_triggered"
)

// FeatureDriftMetric holds the per-feature statistics computed by the
// drift test for a single column.
type FeatureDriftMetric struct {
	KSStatistic   float64 `json:"ks_statistic"`
	KSPValue      float64 `json:"ks_pvalue"`
	PSI           float64 `json:"psi"`
	MeanShift     float64 `json:"mean_shift"`
	DriftDetected bool    `json:"drift_detected"`
}

// DriftMetrics is the full per-feature map plus the aggregate summary,
// persisted as the drift_events.drift_metrics_json column.
type DriftMetrics struct {
	Features map[string]FeatureDriftMetric `json:"features"`
	Summary  DriftSummary                  `json:"summary"`
}

// DriftSummary aggregates the per-feature results.
type DriftSummary struct {
	TotalFeatures      int     `json:"total_features"`
	FeaturesWithDrift  int     `json:"features_with_drift"`
	DriftPercentage    float64 `json:"drift_percentage"`
}

// DriftEvent is a persisted record of one DriftMonitor tick's outcome.
type DriftEvent struct {
	ID                int64        `json:"id,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
	DriftDetected     bool         `json:"drift_detected"`
	DriftScore        float64      `json:"drift_score"`
	AffectedFeatures  []string     `json:"affected_features"`
	DriftMetrics      DriftMetrics `json:"drift_metrics"`
	ActionTaken       ActionTaken  `json:"action_taken"`
}

// RetrainJob is the payload enqueued onto retraining_queue by DriftMonitor
// (or an external "manual" caller).
type RetrainJob struct {
	Trigger      string       `json:"trigger"`
	DriftMetrics DriftMetrics `json:"drift_metrics,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}
