// Package trainer implements the model-fitting contract RetrainingWorker
// drives: Fit, Predict, PredictProba, Save, Load. Grounded on
// original_source/ml/training/trainer.py's ModelTrainer (metrics bundle,
// model_version format, cross-validation), reimplemented as a multinomial
// logistic regression trained by batch gradient descent since no machine
// learning library (scikit-learn's RandomForestClassifier equivalent)
// appears anywhere in the retrieved example pack.
package trainer

import (
	"time"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Trainer is the opaque model-fitting contract the retraining worker uses.
// Implementations own their own parameters; callers never inspect them.
type Trainer interface {
	// Fit trains on X/y and returns the resulting metrics bundle, matching
	// trainer.py's train() return shape.
	Fit(X [][]float64, y []int, cvFolds int, seed int64) (models.TrainingMetrics, error)

	// Predict returns one class label per row of X.
	Predict(X [][]float64) ([]int, error)

	// PredictProba returns one probability distribution over classes per
	// row of X.
	PredictProba(X [][]float64) ([][]float64, error)

	// Save persists the fitted parameters to path.
	Save(path string) error

	// Load restores fitted parameters from path.
	Load(path string) error
}

// NewModelVersion formats a model version the way trainer.py's
// f"v_{datetime.now().strftime('%Y%m%d_%H%M%S')}" does.
func NewModelVersion(at time.Time) string {
	return "v_" + at.Format("20060102_150405")
}
