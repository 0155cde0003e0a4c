// Package retrain implements RetrainingWorker (spec.md §4.4): a long-
// running loop that consumes retraining_queue, pulls training data from
// data_queue, fits a model, registers it, and atomically promotes it into
// the serving path. Grounded on
// original_source/services/retraining_worker/worker.py's
// RetrainingWorker.process_job/get_training_data/run.
package retrain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

// Store is the subset of store.Store the worker depends on.
type Store interface {
	LogTrainingJob(ctx context.Context, job models.TrainingJob) error
	RegisterModel(ctx context.Context, entry models.ModelRegistryEntry) error
	DeployModel(ctx context.Context, modelVersion string) error
}

// Queue is the subset of queue.Client the worker depends on.
type Queue interface {
	Pop(ctx context.Context, queueName string, dest any) error
	DrainUpTo(ctx context.Context, queueName string, n int, fn func(raw []byte) error) (int, error)
	CacheSet(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Notifier is the subset of notify.Publisher the worker depends on.
type Notifier interface {
	Publish(update models.ModelUpdate) error
}

// TrainerFactory builds a fresh, untrained Trainer for one job.
type TrainerFactory func() trainer.Trainer

// Worker processes retraining jobs one at a time.
type Worker struct {
	windowSize   int
	cvFolds      int
	seed         int64
	pollInterval time.Duration

	store       Store
	queue       Queue
	notifier    Notifier
	newTrainer  TrainerFactory
	modelDir    string
	logger      *zap.Logger
}

// Config bundles the worker's tunables, taken from config.RetrainConfig
// plus the drift window size it shares with data_queue draining.
type Config struct {
	WindowSize   int
	CVFolds      int
	Seed         int64
	PollInterval time.Duration
	ModelDir     string
}

// New builds a retraining Worker.
func New(cfg Config, st Store, q Queue, notifier Notifier, newTrainer TrainerFactory, logger *zap.Logger) *Worker {
	if cfg.ModelDir == "" {
		cfg.ModelDir = "models"
	}
	return &Worker{
		windowSize:   cfg.WindowSize,
		cvFolds:      cfg.CVFolds,
		seed:         cfg.Seed,
		pollInterval: cfg.PollInterval,
		store:        st,
		queue:        q,
		notifier:     notifier,
		newTrainer:   newTrainer,
		modelDir:     cfg.ModelDir,
		logger:       logger.Named("retraining-worker"),
	}
}

// Run blocks, polling retraining_queue until ctx is cancelled. Mirrors
// worker.py's run(): poll, sleep pollInterval if empty, sleep 30s on error.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("retraining worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retraining worker stopped")
			return
		default:
		}

		var job models.RetrainJob
		err := w.queue.Pop(ctx, queue.RetrainingQueue, &job)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			sleep(ctx, w.pollInterval)
		case err != nil:
			w.logger.Error("worker error", zap.Error(err))
			sleep(ctx, 30*time.Second)
		default:
			if err := w.ProcessJob(ctx, job); err != nil {
				w.logger.Error("process_job failed", zap.Error(err))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ProcessJob runs one retraining job end to end, per spec.md §4.4 steps
// 1-5.
func (w *Worker) ProcessJob(ctx context.Context, job models.RetrainJob) error {
	jobID := uuid.NewString()
	w.logger.Info("processing retraining job", zap.String("job_id", jobID))

	trigger := models.TriggerManual
	if job.Trigger == "drift_detected" {
		trigger = models.TriggerDriftDetected
	}

	if err := w.store.LogTrainingJob(ctx, models.TrainingJob{
		Timestamp:     time.Now(),
		JobID:         jobID,
		Status:        models.JobStarted,
		TriggerReason: trigger,
	}); err != nil {
		w.logger.Warn("log_training_job(started) failed", zap.Error(err))
	}

	X, y, err := w.collectTrainingData(ctx)
	if err != nil {
		return w.failJob(ctx, jobID, trigger, fmt.Errorf("collect training data: %w", err))
	}
	if len(X) == 0 {
		w.logger.Error("no training data available")
		return w.failJob(ctx, jobID, trigger, errors.New("no training data available"))
	}

	m := w.newTrainer()
	metrics, err := m.Fit(X, y, w.cvFolds, w.seed)
	if err != nil {
		return w.failJob(ctx, jobID, trigger, fmt.Errorf("%w: %v", models.ErrTrainerFailure, err))
	}

	modelVersion := trainer.NewModelVersion(time.Now())
	modelPath := fmt.Sprintf("%s/model_%s.gob", w.modelDir, modelVersion)
	if err := m.Save(modelPath); err != nil {
		return w.failJob(ctx, jobID, trigger, fmt.Errorf("save model artifact: %w", err))
	}

	if err := w.store.RegisterModel(ctx, models.ModelRegistryEntry{
		Timestamp:    time.Now(),
		ModelVersion: modelVersion,
		ModelPath:    modelPath,
		Metrics:      metrics,
		Status:       models.ModelTrained,
		Deployed:     false,
	}); err != nil {
		return w.failJob(ctx, jobID, trigger, fmt.Errorf("register_model: %w", err))
	}

	// Atomic promotion per spec.md §4.4 step 4: the registry never has more
	// than one deployed=true row, even if this crashes right after.
	if err := w.store.DeployModel(ctx, modelVersion); err != nil {
		return w.failJob(ctx, jobID, trigger, fmt.Errorf("deploy_model: %w", err))
	}

	if err := w.store.LogTrainingJob(ctx, models.TrainingJob{
		Timestamp:     time.Now(),
		JobID:         jobID,
		Status:        models.JobCompleted,
		TriggerReason: trigger,
		Metrics:       &metrics,
		ModelVersion:  modelVersion,
	}); err != nil {
		w.logger.Warn("log_training_job(completed) failed", zap.Error(err))
	}

	update := models.ModelUpdate{Version: modelVersion, Timestamp: time.Now()}
	if err := w.queue.CacheSet(ctx, queue.ModelUpdateKey, update, 0); err != nil {
		w.logger.Warn("publish model_update cache key failed", zap.Error(err))
	}
	if err := w.queue.CacheSet(ctx, queue.ReferenceDataKey, X, 0); err != nil {
		w.logger.Warn("re-anchor reference_data cache key failed", zap.Error(err))
	}
	if err := w.notifier.Publish(update); err != nil {
		w.logger.Warn("publish model.updates nats subject failed", zap.Error(err))
	}

	w.logger.Info("retraining completed", zap.String("model_version", modelVersion), zap.Float64("accuracy", metrics.Accuracy))
	return nil
}

func (w *Worker) failJob(ctx context.Context, jobID string, trigger models.TrainingJobTrigger, cause error) error {
	w.logger.Error("retraining failed", zap.Error(cause))
	if err := w.store.LogTrainingJob(ctx, models.TrainingJob{
		Timestamp:     time.Now(),
		JobID:         jobID,
		Status:        models.JobFailed,
		TriggerReason: trigger,
	}); err != nil {
		w.logger.Warn("log_training_job(failed) failed", zap.Error(err))
	}
	return cause
}

// collectTrainingData drains up to windowSize batches from data_queue,
// flattening each into parallel X/y arrays, mirroring worker.py's
// get_training_data. A batch with no labels (or labels not parallel to its
// features) is skipped whole: neither its features nor labels enter X/y.
func (w *Worker) collectTrainingData(ctx context.Context) ([][]float64, []int, error) {
	var X [][]float64
	var y []int

	_, err := w.queue.DrainUpTo(ctx, queue.DataQueue, w.windowSize, func(raw []byte) error {
		var batch models.Batch
		if err := json.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("unmarshal batch: %w", err)
		}
		if len(batch.Labels) != len(batch.Features) {
			return nil
		}
		for i, f := range batch.Features {
			X = append(X, f)
			y = append(y, batch.Labels[i])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}
