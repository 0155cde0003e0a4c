// Package models defines the data types shared across the ingestion,
// prediction, drift-monitor, and retraining-worker services.
package models

import "time"

// FeatureVector is an ordered sequence of real numbers of fixed dimension D.
// D is established at first ingestion and is invariant thereafter.
type FeatureVector []float64

// LabelledSample pairs a FeatureVector with an integer class label.
type LabelledSample struct {
	Features FeatureVector
	Label    int
}

// Batch is an ordered sequence of FeatureVectors, an optional parallel
// sequence of labels, and a client-supplied batch identifier.
type Batch struct {
	Features  []FeatureVector `json:"features"`
	Labels    []int           `json:"labels,omitempty"`
	BatchID   string          `json:"batch_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Dim returns the feature dimension of the batch, or 0 if empty.
func (b Batch) Dim() int {
	if len(b.Features) == 0 {
		return 0
	}
	return len(b.Features[0])
}

// StreamSample is a single unlabelled (or labelled) telemetry sample
// appended to stream_queue.
type StreamSample struct {
	Features FeatureVector `json:"features"`
	Label    *int          `json:"label,omitempty"`
}
