package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// SQLiteStore is the lightweight Store adapter used when
// USE_POSTGRES=false, matching original_source/shared/database.py's
// single-file SQLite layout. Writes are serialized by the store's own mutex
// (and the pool is capped at one connection) since sqlite3 does not support
// concurrent writers well.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
	tracer trace.Tracer
	res    guard
}

// NewSQLiteStore opens (creating if absent) the sqlite file at path and
// ensures the schema exists.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.Named("sqlite-store"), tracer: otel.Tracer("store.sqlite"), res: newGuard()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			features_json TEXT NOT NULL,
			prediction INTEGER NOT NULL,
			probability REAL,
			true_label INTEGER,
			model_version TEXT,
			service_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS drift_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			drift_detected INTEGER NOT NULL,
			drift_score REAL,
			affected_features_json TEXT,
			drift_metrics_json TEXT,
			action_taken TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS training_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			job_id TEXT UNIQUE,
			status TEXT,
			accuracy REAL,
			f1_score REAL,
			precision_score REAL,
			recall_score REAL,
			training_time REAL,
			samples_count INTEGER,
			model_version TEXT,
			trigger_reason TEXT,
			mlflow_run_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS model_registry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			model_version TEXT UNIQUE,
			model_path TEXT,
			metrics_json TEXT,
			status TEXT,
			deployed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS feature_store (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			feature_name TEXT,
			feature_value REAL,
			entity_id TEXT,
			feature_group TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) LogPrediction(ctx context.Context, rec models.PredictionRecord) error {
	_, span := s.tracer.Start(ctx, "log_prediction")
	defer span.End()

	featuresJSON, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO predictions (timestamp, features_json, prediction, probability, true_label, model_version, service_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Timestamp.Format(time.RFC3339Nano), string(featuresJSON), rec.Prediction, rec.Probability, rec.TrueLabel, rec.ModelVersion, rec.ServiceID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LogDriftEvent(ctx context.Context, ev models.DriftEvent) error {
	_, span := s.tracer.Start(ctx, "log_drift_event")
	defer span.End()

	affected, err := json.Marshal(ev.AffectedFeatures)
	if err != nil {
		return fmt.Errorf("marshal affected features: %w", err)
	}
	metrics, err := json.Marshal(ev.DriftMetrics)
	if err != nil {
		return fmt.Errorf("marshal drift metrics: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO drift_events (timestamp, drift_detected, drift_score, affected_features_json, drift_metrics_json, action_taken)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ev.Timestamp.Format(time.RFC3339Nano), boolToInt(ev.DriftDetected), ev.DriftScore, string(affected), string(metrics), string(ev.ActionTaken))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) LogTrainingJob(ctx context.Context, job models.TrainingJob) error {
	_, span := s.tracer.Start(ctx, "log_training_job")
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

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO training_jobs (timestamp, job_id, status, accuracy, f1_score, precision_score, recall_score, training_time, samples_count, model_version, trigger_reason, mlflow_run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(job_id) DO UPDATE SET
				status=excluded.status, accuracy=excluded.accuracy, f1_score=excluded.f1_score,
				precision_score=excluded.precision_score, recall_score=excluded.recall_score,
				training_time=excluded.training_time, samples_count=excluded.samples_count,
				model_version=excluded.model_version, trigger_reason=excluded.trigger_reason,
				mlflow_run_id=excluded.mlflow_run_id`,
			job.Timestamp.Format(time.RFC3339Nano), job.JobID, string(job.Status), accuracy, f1, precision, recall, trainingTime, samples,
			job.ModelVersion, string(job.TriggerReason), nullableString(job.TrackingID))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) RegisterModel(ctx context.Context, entry models.ModelRegistryEntry) error {
	_, span := s.tracer.Start(ctx, "register_model")
	defer span.End()

	metricsJSON, err := json.Marshal(entry.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.res.run(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO model_registry (timestamp, model_version, model_path, metrics_json, status, deployed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entry.Timestamp.Format(time.RFC3339Nano), entry.ModelVersion, entry.ModelPath, string(metricsJSON), string(entry.Status), boolToInt(entry.Deployed))
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// DeployModel runs both UPDATEs inside a single sql.Tx, the SQLite
// equivalent of postgres.go's transactional promotion.
func (s *SQLiteStore) DeployModel(ctx context.Context, modelVersion string) error {
	_, span := s.tracer.Start(ctx, "deploy_model")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.res.run(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx, `UPDATE model_registry SET deployed = 0 WHERE deployed = 1`); err != nil {
			return fmt.Errorf("undeploy previous: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE model_registry SET deployed = 1, status = ? WHERE model_version = ?`,
			string(models.ModelActive), modelVersion)
		if err != nil {
			return fmt.Errorf("deploy new: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return nil // deferred Rollback keeps the current deployment
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return fmt.Errorf("model version %q not found in registry", modelVersion)
	}
	return nil
}

func (s *SQLiteStore) GetActiveModel(ctx context.Context) (*models.ModelRegistryEntry, error) {
	_, span := s.tracer.Start(ctx, "get_active_model")
	defer span.End()

	var entry models.ModelRegistryEntry
	var timestamp, metricsJSON, status string
	var deployed int
	var noRows bool
	err := s.res.run(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, timestamp, model_version, model_path, metrics_json, status, deployed
			FROM model_registry WHERE deployed = 1 ORDER BY timestamp DESC LIMIT 1`)
		err := row.Scan(&entry.ID, &timestamp, &entry.ModelVersion, &entry.ModelPath, &metricsJSON, &status, &deployed)
		if err == sql.ErrNoRows {
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
	entry.Deployed = deployed != 0
	if entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &entry.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) GetRecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	_, span := s.tracer.Start(ctx, "get_recent_predictions")
	defer span.End()

	var out []models.PredictionRecord
	err := s.res.run(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, timestamp, features_json, prediction, probability, true_label, model_version, service_id
			FROM predictions ORDER BY timestamp DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec models.PredictionRecord
			var timestamp, featuresJSON string
			if err := rows.Scan(&rec.ID, &timestamp, &featuresJSON, &rec.Prediction, &rec.Probability, &rec.TrueLabel, &rec.ModelVersion, &rec.ServiceID); err != nil {
				return fmt.Errorf("scan prediction row: %w", err)
			}
			if rec.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
				return fmt.Errorf("parse timestamp: %w", err)
			}
			if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
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

func (s *SQLiteStore) CountModelRegistry(ctx context.Context) (int, error) {
	var count int
	err := s.res.run(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM model_registry`).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return count, nil
}

func (s *SQLiteStore) LatestAccuracy(ctx context.Context) (float64, bool, error) {
	var metricsJSON string
	var noRows bool
	err := s.res.run(ctx, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, `SELECT metrics_json FROM model_registry ORDER BY timestamp DESC LIMIT 1`).Scan(&metricsJSON)
		if err == sql.ErrNoRows {
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
	if err := json.Unmarshal([]byte(metricsJSON), &metrics); err != nil {
		return 0, false, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return metrics.Accuracy, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
