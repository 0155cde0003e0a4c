// Package store implements the persistent record side of the pipeline:
// predictions, drift_events, training_jobs, model_registry, and
// feature_store, behind a single interface with two adapters (Postgres and
// SQLite), per spec.md §9's design note.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Store is the abstract persistence interface the core depends on. It
// exposes the seven operations spec.md §9 names (log_prediction,
// log_drift, log_training_job, register_model, deploy_model,
// get_active_model, get_recent_predictions) plus CountModelRegistry,
// LatestAccuracy and Close.
type Store interface {
	LogPrediction(ctx context.Context, rec models.PredictionRecord) error
	LogDriftEvent(ctx context.Context, ev models.DriftEvent) error
	LogTrainingJob(ctx context.Context, job models.TrainingJob) error
	RegisterModel(ctx context.Context, entry models.ModelRegistryEntry) error

	// DeployModel atomically sets deployed=false on every other row and
	// deployed=true on the row identified by modelVersion, in a single
	// transaction (spec.md §3 invariant: at most one deployed row).
	DeployModel(ctx context.Context, modelVersion string) error

	// GetActiveModel returns the row with deployed=true, or (nil, nil) if
	// none exists yet (cold start, spec.md §8 scenario 1).
	GetActiveModel(ctx context.Context) (*models.ModelRegistryEntry, error)

	GetRecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)

	// CountModelRegistry and LatestAccuracy back the "models trained" /
	// "latest accuracy" admin figures spec.md §9 resolves in favor of the
	// registry-based reading (not training_jobs).
	CountModelRegistry(ctx context.Context) (int, error)
	LatestAccuracy(ctx context.Context) (float64, bool, error)

	Close() error
}

// New builds the configured Store adapter: Postgres when
// cfg.UsePostgres is true (the default), SQLite otherwise. Mirrors
// original_source/shared/database.py's USE_POSTGRES branch, and
// go-api-gateway/internal/database/coordinator.go's single entrypoint
// construction.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	if cfg.UsePostgres {
		return NewPostgresStore(ctx, cfg, logger)
	}
	return NewSQLiteStore(ctx, cfg.SQLitePath, logger)
}

// The DDL in postgres.go's and sqlite.go's migrate differs only in column
// types and defaults (JSONB vs TEXT, BOOLEAN vs INTEGER, TIMESTAMPTZ vs
// TEXT) per spec.md §9's "mixes sqlite and postgres paths" note — the core
// never branches on backend beyond the adapters. tablesComment records the
// shared table layout.
const tablesComment = `
predictions(id, timestamp, features_json, prediction, probability, true_label, model_version, service_id)
drift_events(id, timestamp, drift_detected, drift_score, affected_features_json, drift_metrics_json, action_taken)
training_jobs(id, timestamp, job_id UNIQUE, status, accuracy, f1_score, precision_score, recall_score, training_time, samples_count, model_version, trigger_reason, mlflow_run_id)
model_registry(id, timestamp, model_version UNIQUE, model_path, metrics_json, status, deployed)
feature_store(id, timestamp, feature_name, feature_value, entity_id, feature_group)
`
