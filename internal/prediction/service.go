// Package prediction implements the Prediction service (spec.md §4.2):
// serves predictions from the currently-active model via an atomic
// in-memory handle, appends served traffic to prediction_buffer, and
// persists PredictionRecords. The atomic.Pointer[loadedModel] replaces the
// source's process-wide mutable current_model global per spec.md §9's
// design note.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
	"github.com/sasank-in/ml-drift-pipeline/internal/queue"
	"github.com/sasank-in/ml-drift-pipeline/internal/trainer"
)

// Store is the subset of store.Store the prediction service depends on.
type Store interface {
	LogPrediction(ctx context.Context, rec models.PredictionRecord) error
	GetActiveModel(ctx context.Context) (*models.ModelRegistryEntry, error)
}

// Cache is the subset of queue.Client the prediction service depends on.
type Cache interface {
	Push(ctx context.Context, queueName string, v any) error
	CacheGet(ctx context.Context, key string, dest any) (bool, error)
}

// ModelLoader constructs an empty Trainer and loads fitted parameters from
// path, isolating the service from the concrete Trainer implementation.
type ModelLoader func(path string) (trainer.Trainer, error)

type loadedModel struct {
	entry models.ModelRegistryEntry
	model trainer.Trainer
}

// Service serves predictions from an atomically-swapped model handle.
type Service struct {
	handle atomic.Pointer[loadedModel]

	store     Store
	cache     Cache
	loadModel ModelLoader
	serviceID string
	logger    *zap.Logger
}

// New builds a prediction Service with no model loaded; the first Predict
// call (or an explicit ReloadModel) performs the lazy load.
func New(st Store, cache Cache, loader ModelLoader, serviceID string, logger *zap.Logger) *Service {
	return &Service{store: st, cache: cache, loadModel: loader, serviceID: serviceID, logger: logger.Named("prediction")}
}

// ReloadModel reloads from the active-model pointer / registry and swaps
// the result into the handle, per spec.md §4.2. If the reload fails, the
// previously loaded model stays in the handle. Idempotent: repeated calls
// just re-resolve the same (or a newer) active version.
func (s *Service) ReloadModel(ctx context.Context) (string, error) {
	lm, err := s.resolveActiveModel(ctx)
	if err != nil {
		return "", err
	}
	s.handle.Store(lm)
	return lm.entry.ModelVersion, nil
}

// resolveActiveModel reads the active-model pointer (cache) first, falling
// back to the registry's deployed=true row, then materializes the artifact,
// per spec.md §4.2's "Model load" paragraph.
func (s *Service) resolveActiveModel(ctx context.Context) (*loadedModel, error) {
	var entry models.ModelRegistryEntry

	var cached models.ModelRegistryEntry
	hit, err := s.cache.CacheGet(ctx, queue.ActiveModelKey, &cached)
	if err == nil && hit {
		entry = cached
	} else {
		active, err := s.store.GetActiveModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrNoModel, err)
		}
		if active == nil {
			return nil, models.ErrNoModel
		}
		entry = *active
	}

	model, err := s.loadModel(entry.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrArtifactLoadFailure, err)
	}

	return &loadedModel{entry: entry, model: model}, nil
}

// current returns the active handle, lazily loading it once if unset, per
// spec.md §4.2's "On NoModel the service attempts a one-shot lazy load".
func (s *Service) current(ctx context.Context) (*loadedModel, error) {
	if lm := s.handle.Load(); lm != nil {
		return lm, nil
	}
	lm, err := s.resolveActiveModel(ctx)
	if err != nil {
		return nil, err
	}
	s.handle.Store(lm)
	return lm, nil
}

// Predict serves predictions for matrix, persisting a PredictionRecord per
// row and appending one record to prediction_buffer. Every row in the
// response is produced by the same model handle, satisfying spec.md §5's
// linearizability invariant (in-flight calls finish with their acquired
// version even if ReloadModel swaps the handle mid-call).
func (s *Service) Predict(ctx context.Context, matrix [][]float64) (models.PredictResponse, error) {
	if len(matrix) == 0 {
		return models.PredictResponse{}, models.ErrInvalidShape
	}

	lm, err := s.current(ctx)
	if err != nil {
		return models.PredictResponse{}, err
	}

	start := time.Now()
	probs, err := lm.model.PredictProba(matrix)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return models.PredictResponse{}, err
		}
		return models.PredictResponse{}, fmt.Errorf("%w: %v", models.ErrTrainerFailure, err)
	}
	preds := make([]int, len(probs))
	for i, row := range probs {
		preds[i] = argmaxRow(row)
	}
	elapsed := time.Since(start).Seconds()

	now := time.Now()
	for i, row := range matrix {
		rec := models.PredictionRecord{
			Timestamp:    now,
			Features:     row,
			Prediction:   preds[i],
			Probability:  maxProb(probs[i]),
			ModelVersion: lm.entry.ModelVersion,
			ServiceID:    s.serviceID,
		}
		if err := s.store.LogPrediction(ctx, rec); err != nil {
			s.logger.Warn("log_prediction failed, continuing to serve", zap.Error(err))
		}
	}

	if err := s.cache.Push(ctx, queue.PredictionBuffer, models.BufferedPrediction{
		Features:  matrix,
		Predicted: preds,
		Timestamp: now,
	}); err != nil {
		s.logger.Warn("append to prediction_buffer failed", zap.Error(err))
	}

	return models.PredictResponse{
		Status:         "success",
		Predictions:    preds,
		Probabilities:  probs,
		PredictionTime: elapsed,
		ModelVersion:   lm.entry.ModelVersion,
		TotalSamples:   len(matrix),
	}, nil
}

// PredictBatch runs Predict in chunks of chunkSize rows at a time — an
// internal memory optimization only; the response is equivalent to one
// Predict call over the whole matrix, per spec.md §4.2.
func (s *Service) PredictBatch(ctx context.Context, matrix [][]float64, chunkSize int) (models.PredictResponse, error) {
	if chunkSize <= 0 || chunkSize >= len(matrix) {
		return s.Predict(ctx, matrix)
	}

	var predictions []int
	var probabilities [][]float64
	var modelVersion string
	var totalTime float64

	for start := 0; start < len(matrix); start += chunkSize {
		end := start + chunkSize
		if end > len(matrix) {
			end = len(matrix)
		}
		resp, err := s.Predict(ctx, matrix[start:end])
		if err != nil {
			return models.PredictResponse{}, err
		}
		predictions = append(predictions, resp.Predictions...)
		probabilities = append(probabilities, resp.Probabilities...)
		modelVersion = resp.ModelVersion
		totalTime += resp.PredictionTime
	}

	return models.PredictResponse{
		Status:         "success",
		Predictions:    predictions,
		Probabilities:  probabilities,
		PredictionTime: totalTime,
		ModelVersion:   modelVersion,
		TotalSamples:   len(matrix),
	}, nil
}

func argmaxRow(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func maxProb(row []float64) float64 {
	var max float64
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	return max
}
