package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/config"
	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// PostgresStore is the production Store adapter, backed by a pgxpool pool.
// Grounded on go-api-gateway/internal/database/coordinator.go's connection
// handling and tracing conventions.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
	res    guard
}

// NewPostgresStore opens a pool against cfg and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger.Named("postgres-store"), tracer: otel.Tracer("store.postgres"), res: newGuard()}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			features_json JSONB NOT NULL,
			prediction INTEGER NOT NULL,
			probability DOUBLE PRECISION,
			true_label INTEGER,
			model_version TEXT,
			service_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS drift_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			drift_detected BOOLEAN NOT NULL,
			drift_score DOUBLE PRECISION,
			affected_features_json JSONB,
			drift_metrics_json JSONB,
			action_taken TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS training_jobs (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			job_id TEXT UNIQUE,
			status TEXT,
			accuracy DOUBLE PRECISION,
			f1_score DOUBLE PRECISION,
			precision_score DOUBLE PRECISION,
			recall_score DOUBLE PRECISION,
			training_time DOUBLE PRECISION,
			samples_count INTEGER,
			model_version TEXT,
			trigger_reason TEXT,
			mlflow_run_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS model_registry (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			model_version TEXT UNIQUE,
			model_path TEXT,
			metrics_json JSONB,
			status TEXT,
			deployed BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS feature_store (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			feature_name TEXT,
			feature_value DOUBLE PRECISION,
			entity_id TEXT,
			feature_group TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) LogPrediction(ctx context.Context, rec models.PredictionRecord) error {
	ctx, span := s.tracer.Start(ctx, "log_prediction")
	defer span.End()

	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO predictions (timestamp, features_json, prediction, probability, true_label, model_version, service_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.Timestamp, featuresJSON, rec.Prediction, rec.Probability, rec.TrueLabel, rec.ModelVersion, rec.ServiceID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("log_prediction failed", zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) LogDriftEvent(ctx context.Context, ev models.DriftEvent) error {
	ctx, span := s.tracer.Start(ctx, "log_drift_event")
	defer span.End()
	span.SetAttributes(attribute.Bool("drift_detected", ev.DriftDetected))

	affected, err := json.Marshal(ev.AffectedFeatures)
	if err != nil {
		return fmt.Errorf("marshal affected features: %w", err)
	}
	metrics, err := json.Marshal(ev.DriftMetrics)
	if err != nil {
		return fmt.Errorf("marshal drift metrics: %w", err)
	}

	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO drift_events (timestamp, drift_detected, drift_score, affected_features_json, drift_metrics_json, action_taken)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.Timestamp, ev.DriftDetected, ev.DriftScore, affected, metrics, string(ev.ActionTaken))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) LogTrainingJob(ctx context.Context, job models.TrainingJob) error {
	ctx, span := s.tracer.Start(ctx, "log_training_job")
	defer span.End()

	var accuracy, f1, precision, recall, trainingTime *float64
	var samples *int
	if job.Metrics != nil {
		accuracy = &job.Metrics.Accuracy
		f1 = &job.Metrics.F1Score
		precision = &job.Metrics.Precision
		recall = &job.Metrics.Recall
		trainingTime = &job.Metrics.TrainingTime
		samples = &job.Metrics.SamplesCount
	}

	err := s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO training_jobs (timestamp, job_id, status, accuracy, f1_score, precision_score, recall_score, training_time, samples_count, model_version, trigger_reason, mlflow_run_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (job_id) DO UPDATE SET
				status = EXCLUDED.status,
				accuracy = EXCLUDED.accuracy,
				f1_score = EXCLUDED.f1_score,
				precision_score = EXCLUDED.precision_score,
				recall_score = EXCLUDED.recall_score,
				training_time = EXCLUDED.training_time,
				samples_count = EXCLUDED.samples_count,
				model_version = EXCLUDED.model_version,
				trigger_reason = EXCLUDED.trigger_reason,
				mlflow_run_id = EXCLUDED.mlflow_run_id`,
			job.Timestamp, job.JobID, string(job.Status), accuracy, f1, precision, recall, trainingTime, samples,
			job.ModelVersion, string(job.TriggerReason), nullableString(job.TrackingID))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) RegisterModel(ctx context.Context, entry models.ModelRegistryEntry) error {
	ctx, span := s.tracer.Start(ctx, "register_model")
	defer span.End()

	metricsJSON, err := json.Marshal(entry.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO model_registry (timestamp, model_version, model_path, metrics_json, status, deployed)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.Timestamp, entry.ModelVersion, entry.ModelPath, metricsJSON, string(entry.Status), entry.Deployed)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// DeployModel flips deployed=false on every row and deployed=true on
// modelVersion's row in one transaction, satisfying spec.md §3's invariant
// and §4.4's "atomic... single transaction" requirement.
func (s *PostgresStore) DeployModel(ctx context.Context, modelVersion string) error {
	ctx, span := s.tracer.Start(ctx, "deploy_model")
	defer span.End()
	span.SetAttributes(attribute.String("model_version", modelVersion))

	var rowsAffected int64
	err := s.res.run(ctx, func(ctx context.Context) error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if _, err := tx.Exec(ctx, `UPDATE model_registry SET deployed = false WHERE deployed = true`); err != nil {
			return fmt.Errorf("undeploy previous: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE model_registry SET deployed = true, status = $2 WHERE model_version = $1`,
			modelVersion, string(models.ModelActive))
		if err != nil {
			return fmt.Errorf("deploy new: %w", err)
		}
		rowsAffected = tag.RowsAffected()
		if rowsAffected == 0 {
			return nil // deferred Rollback keeps the current deployment
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("model version %q not found in registry", modelVersion)
	}
	return nil
}

func (s *PostgresStore) GetActiveModel(ctx context.Context) (*models.ModelRegistryEntry, error) {
	ctx, span := s.tracer.Start(ctx, "get_active_model")
	defer span.End()

	var entry models.ModelRegistryEntry
	var metricsJSON []byte
	var status string
	var noRows bool
	err := s.res.run(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT id, timestamp, model_version, model_path, metrics_json, status, deployed
			FROM model_registry WHERE deployed = true ORDER BY timestamp DESC LIMIT 1`)
		err := row.Scan(&entry.ID, &entry.Timestamp, &entry.ModelVersion, &entry.ModelPath, &metricsJSON, &status, &entry.Deployed)
		if err == pgx.ErrNoRows {
			noRows = true
			return nil
		}
		return err
	})
	if noRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	entry.Status = models.ModelRegistryStatus(status)
	if err := json.Unmarshal(metricsJSON, &entry.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) GetRecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "get_recent_predictions")
	defer span.End()

	var out []models.PredictionRecord
	err := s.res.run(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := s.pool.Query(ctx, `
			SELECT id, timestamp, features_json, prediction, probability, true_label, model_version, service_id
			FROM predictions ORDER BY timestamp DESC LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.PredictionRecord
			var featuresJSON []byte
			if err := rows.Scan(&rec.ID, &rec.Timestamp, &featuresJSON, &rec.Prediction, &rec.Probability, &rec.TrueLabel, &rec.ModelVersion, &rec.ServiceID); err != nil {
				return fmt.Errorf("scan prediction row: %w", err)
			}
			if err := json.Unmarshal(featuresJSON, &rec.Features); err != nil {
				return fmt.Errorf("unmarshal features: %w", err)
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return out, nil
}

// CountModelRegistry backs "models trained" per spec.md §9's resolution in
// favor of the registry-based reading over training_jobs.
func (s *PostgresStore) CountModelRegistry(ctx context.Context) (int, error) {
	var count int
	err := s.res.run(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM model_registry`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return count, nil
}

// LatestAccuracy backs "latest accuracy" per the same resolution: the most
// recent model_registry row's metrics.accuracy, not training_jobs.accuracy.
func (s *PostgresStore) LatestAccuracy(ctx context.Context) (float64, bool, error) {
	var metricsJSON []byte
	var noRows bool
	err := s.res.run(ctx, func(ctx context.Context) error {
		err := s.pool.QueryRow(ctx, `SELECT metrics_json FROM model_registry ORDER BY timestamp DESC LIMIT 1`).Scan(&metricsJSON)
		if err == pgx.ErrNoRows {
			noRows = true
			return nil
		}
		return err
	})
	if noRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	var metrics models.TrainingMetrics
	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return 0, false, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return metrics.Accuracy, true, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
