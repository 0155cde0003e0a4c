// Package drift implements DriftMonitor (spec.md §4.3): a long-running
// periodic task that samples prediction_buffer, runs the statistical drift
// test against a reference dataset, persists a DriftEvent, and enqueues a
// retrain job when drift is detected. Grounded on
// original_source/services/drift_monitor/monitor.py's DriftMonitor loop
// (load_reference_data/collect_recent_data/check_drift/trigger_retraining),
// reimplemented as a cooperatively-cancellable goroutine loop instead of a
// Python thread with time.sleep.
package drift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/driftstats"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
)

// Store is the subset of store.Store the monitor depends on.
type Store interface {
	LogDriftEvent(ctx context.Context, ev models.DriftEvent) error
}

// Queue is the subset of queue.Client the monitor depends on.
type Queue interface {
	CacheGet(ctx context.Context, key string, dest any) (bool, error)
	DrainUpTo(ctx context.Context, queueName string, n int, fn func(raw []byte) error) (int, error)
	Push(ctx context.Context, queueName string, v any) error
}

// Monitor runs the periodic drift-detection tick.
type Monitor struct {
	cfg   config.DriftConfig
	store Store
	queue Queue

	reference [][]float64 // N x D, nil until loaded
	logger    *zap.Logger
}

// New builds a Monitor.
func New(cfg config.DriftConfig, st Store, q Queue, logger *zap.Logger) *Monitor {
	return &Monitor{cfg: cfg, store: st, queue: q, logger: logger.Named("drift-monitor")}
}

// Run blocks, ticking every cfg.CheckInterval() until ctx is cancelled
// (the cooperative stop flag spec.md §5 calls for). A per-iteration panic
// recovery is deliberately omitted here — errors are returned and logged,
// never panicked, matching the Python loop's try/except-and-continue shape.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("drift monitor started")
	ticker := time.NewTicker(m.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("drift monitor stopped")
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				m.logger.Error("drift check failed", zap.Error(err))
			}
		}
	}
}

// Tick runs exactly one drift-detection cycle, mirroring monitor.py's
// check_drift: load reference lazily, drain the buffer, skip if
// insufficient, else detect and persist.
func (m *Monitor) Tick(ctx context.Context) error {
	if m.reference == nil {
		if err := m.loadReference(ctx); err != nil {
			return err
		}
		if m.reference == nil {
			m.logger.Warn("no reference data found, skipping tick")
			return nil
		}
	}

	recent, err := m.collectRecent(ctx)
	if err != nil {
		return fmt.Errorf("collect recent predictions: %w", err)
	}
	if len(recent) < m.cfg.MinSamples {
		m.logger.Debug("insufficient data for drift check", zap.Int("samples", len(recent)))
		return nil
	}

	featureNames := columnNames(len(m.reference[0]))
	refCols := toColumns(m.reference, featureNames)
	curCols := toColumns(recent, featureNames)

	driftMetrics := driftstats.Detect(refCols, curCols, featureNames, m.cfg.Threshold)
	detected := driftstats.Overall(driftMetrics)
	driftScore := driftMetrics.Summary.DriftPercentage / 100.0

	action := models.ActionNone
	if detected {
		action = models.ActionRetrainingTriggered
	}

	event := models.DriftEvent{
		Timestamp:        time.Now(),
		DriftDetected:    detected,
		DriftScore:       driftScore,
		AffectedFeatures: affectedFeatures(driftMetrics),
		DriftMetrics:     driftMetrics,
		ActionTaken:      action,
	}

	if err := m.store.LogDriftEvent(ctx, event); err != nil {
		m.logger.Warn("log_drift_event failed", zap.Error(err))
	}

	if detected {
		m.logger.Warn("drift detected", zap.Float64("score", driftScore), zap.Int("affected_features", len(event.AffectedFeatures)))
		if err := m.queue.Push(ctx, queue.RetrainingQueue, models.RetrainJob{
			Trigger:      "drift_detected",
			DriftMetrics: driftMetrics,
			Timestamp:    time.Now(),
		}); err != nil {
			m.logger.Error("failed to enqueue retrain job", zap.Error(err))
		} else {
			m.logger.Info("retraining job triggered")
		}
	} else {
		m.logger.Info("no drift detected", zap.Float64("score", driftScore))
	}

	return nil
}

func (m *Monitor) loadReference(ctx context.Context) error {
	m.logger.Info("loading reference data")
	var ref [][]float64
	hit, err := m.queue.CacheGet(ctx, queue.ReferenceDataKey, &ref)
	if err != nil {
		return fmt.Errorf("cache get reference_data: %w", err)
	}
	if !hit || len(ref) == 0 {
		return nil
	}
	m.reference = ref
	m.logger.Info("reference data loaded", zap.Int("rows", len(ref)), zap.Int("cols", len(ref[0])))
	return nil
}

// collectRecent drains up to window_size BufferedPrediction entries,
// flattening every row across entries into one matrix — mirroring
// monitor.py's buffer.extend(item['features']) over popped batches.
func (m *Monitor) collectRecent(ctx context.Context) ([][]float64, error) {
	var recent [][]float64
	_, err := m.queue.DrainUpTo(ctx, queue.PredictionBuffer, m.cfg.WindowSize, func(raw []byte) error {
		var bp models.BufferedPrediction
		if err := json.Unmarshal(raw, &bp); err != nil {
			return fmt.Errorf("unmarshal buffered prediction: %w", err)
		}
		recent = append(recent, bp.Features...)
		return nil
	})
	if err != nil && !errors.Is(err, queue.ErrEmpty) {
		return nil, err
	}
	return recent, nil
}

func columnNames(d int) []string {
	names := make([]string, d)
	for i := range names {
		names[i] = fmt.Sprintf("feature_%d", i)
	}
	return names
}

func toColumns(matrix [][]float64, names []string) map[string][]float64 {
	cols := make(map[string][]float64, len(names))
	for i, name := range names {
		col := make([]float64, len(matrix))
		for r, row := range matrix {
			if i < len(row) {
				col[r] = row[i]
			}
		}
		cols[name] = col
	}
	return cols
}

func affectedFeatures(m models.DriftMetrics) []string {
	var out []string
	for name, fm := range m.Features {
		if fm.DriftDetected {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
