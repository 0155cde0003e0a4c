package trainer

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// LogisticRegression is a multinomial (softmax) classifier trained by batch
// gradient descent with L2 regularization, standing in for trainer.py's
// RandomForestClassifier. Parameters are plain matrices so Save/Load can
// use gob rather than a model-specific serialization format.
type LogisticRegression struct {
	Weights    [][]float64 // [class][feature]
	Bias       []float64   // [class]
	NumClasses int
	NumFeatures int

	learningRate float64
	l2           float64
	epochs       int
}

var _ Trainer = (*LogisticRegression)(nil)

// NewLogisticRegression builds an untrained classifier with fixed
// hyperparameters — deliberately simple since the point is a deterministic,
// dependency-free stand-in, not a tuned model.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		learningRate: 0.1,
		l2:           1e-4,
		epochs:       300,
	}
}

// gobModel is the on-disk representation Save/Load operate on.
type gobModel struct {
	Weights     [][]float64
	Bias        []float64
	NumClasses  int
	NumFeatures int
	SavedAt     time.Time
}

// Fit trains the classifier via batch gradient descent on the full dataset,
// then reports cvFolds-fold cross-validated accuracy (cv_mean/cv_std)
// alongside the in-sample metrics, matching trainer.py's metrics bundle
// shape. seed makes both the fold split and weight initialization
// deterministic.
func (m *LogisticRegression) Fit(X [][]float64, y []int, cvFolds int, seed int64) (models.TrainingMetrics, error) {
	start := time.Now()

	if len(X) == 0 {
		return models.TrainingMetrics{}, errors.New("trainer: empty training set")
	}
	if len(X) != len(y) {
		return models.TrainingMetrics{}, fmt.Errorf("trainer: X has %d rows, y has %d labels", len(X), len(y))
	}

	numClasses := maxLabel(y) + 1
	if numClasses < 2 {
		numClasses = 2
	}
	numFeatures := len(X[0])

	rng := rand.New(rand.NewSource(seed))

	var cvAccuracies []float64
	if cvFolds > 1 && len(X) >= cvFolds {
		var err error
		cvAccuracies, err = crossValidate(X, y, numClasses, numFeatures, cvFolds, seed, m.learningRate, m.l2, m.epochs)
		if err != nil {
			return models.TrainingMetrics{}, err
		}
	}

	m.Weights, m.Bias = initParams(rng, numClasses, numFeatures)
	m.NumClasses = numClasses
	m.NumFeatures = numFeatures
	gradientDescent(m.Weights, m.Bias, X, y, numClasses, m.learningRate, m.l2, m.epochs)

	preds, err := m.Predict(X)
	if err != nil {
		return models.TrainingMetrics{}, err
	}

	accuracy, precision, recall, f1 := classificationMetrics(y, preds, numClasses)
	cvMean, cvStd := meanStd(cvAccuracies)

	return models.TrainingMetrics{
		Accuracy:     accuracy,
		Precision:    precision,
		Recall:       recall,
		F1Score:      f1,
		CVMean:       cvMean,
		CVStd:        cvStd,
		TrainingTime: time.Since(start).Seconds(),
		SamplesCount: len(X),
	}, nil
}

func (m *LogisticRegression) Predict(X [][]float64) ([]int, error) {
	probs, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	preds := make([]int, len(probs))
	for i, row := range probs {
		preds[i] = argmax(row)
	}
	return preds, nil
}

func (m *LogisticRegression) PredictProba(X [][]float64) ([][]float64, error) {
	if m.Weights == nil {
		return nil, models.ErrNoModel
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != m.NumFeatures {
			return nil, fmt.Errorf("%w: expected %d features, got %d", models.ErrDimensionMismatch, m.NumFeatures, len(row))
		}
		out[i] = softmax(logits(m.Weights, m.Bias, row))
	}
	return out, nil
}

func (m *LogisticRegression) Save(path string) error {
	if m.Weights == nil {
		return errors.New("trainer: no fitted model to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir model dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(gobModel{
		Weights:     m.Weights,
		Bias:        m.Bias,
		NumClasses:  m.NumClasses,
		NumFeatures: m.NumFeatures,
		SavedAt:     time.Now(),
	})
}

func (m *LogisticRegression) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrArtifactLoadFailure, err)
	}
	defer f.Close()

	var gm gobModel
	if err := gob.NewDecoder(f).Decode(&gm); err != nil {
		return fmt.Errorf("%w: %v", models.ErrArtifactLoadFailure, err)
	}

	m.Weights = gm.Weights
	m.Bias = gm.Bias
	m.NumClasses = gm.NumClasses
	m.NumFeatures = gm.NumFeatures
	return nil
}

func initParams(rng *rand.Rand, numClasses, numFeatures int) ([][]float64, []float64) {
	weights := make([][]float64, numClasses)
	for c := range weights {
		weights[c] = make([]float64, numFeatures)
		for f := range weights[c] {
			weights[c][f] = rng.NormFloat64() * 0.01
		}
	}
	return weights, make([]float64, numClasses)
}

func logits(weights [][]float64, bias []float64, row []float64) []float64 {
	out := make([]float64, len(weights))
	for c := range weights {
		sum := bias[c]
		for f, x := range row {
			sum += weights[c][f] * x
		}
		out[c] = sum
	}
	return out
}

func softmax(z []float64) []float64 {
	max := z[0]
	for _, v := range z {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

// gradientDescent performs batch (full-dataset) gradient descent on the
// softmax cross-entropy loss with L2 weight decay, mutating weights/bias
// in place.
func gradientDescent(weights [][]float64, bias []float64, X [][]float64, y []int, numClasses int, lr, l2 float64, epochs int) {
	n := len(X)
	numFeatures := len(X[0])

	gradW := make([][]float64, numClasses)
	for c := range gradW {
		gradW[c] = make([]float64, numFeatures)
	}
	gradB := make([]float64, numClasses)

	for epoch := 0; epoch < epochs; epoch++ {
		for c := range gradW {
			for f := range gradW[c] {
				gradW[c][f] = 0
			}
		}
		for c := range gradB {
			gradB[c] = 0
		}

		for i, row := range X {
			probs := softmax(logits(weights, bias, row))
			probs[y[i]] -= 1 // dL/dz for the true class

			for c := 0; c < numClasses; c++ {
				for f, x := range row {
					gradW[c][f] += probs[c] * x
				}
				gradB[c] += probs[c]
			}
		}

		invN := 1.0 / float64(n)
		for c := 0; c < numClasses; c++ {
			for f := 0; f < numFeatures; f++ {
				grad := gradW[c][f]*invN + l2*weights[c][f]
				weights[c][f] -= lr * grad
			}
			bias[c] -= lr * gradB[c] * invN
		}
	}
}

// crossValidate splits X/y into cvFolds contiguous folds (after a
// seed-deterministic shuffle) and reports per-fold holdout accuracy,
// mirroring trainer.py's cross_val_score(cv=5).
func crossValidate(X [][]float64, y []int, numClasses, numFeatures, folds int, seed int64, lr, l2 float64, epochs int) ([]float64, error) {
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	foldSize := n / folds
	if foldSize == 0 {
		return nil, nil
	}

	accuracies := make([]float64, 0, folds)
	for k := 0; k < folds; k++ {
		start := k * foldSize
		end := start + foldSize
		if k == folds-1 {
			end = n
		}

		var trainX, testX [][]float64
		var trainY, testY []int
		for i, pos := range idx {
			if i >= start && i < end {
				testX = append(testX, X[pos])
				testY = append(testY, y[pos])
			} else {
				trainX = append(trainX, X[pos])
				trainY = append(trainY, y[pos])
			}
		}
		if len(trainX) == 0 || len(testX) == 0 {
			continue
		}

		w, b := initParams(rand.New(rand.NewSource(seed+int64(k))), numClasses, numFeatures)
		gradientDescent(w, b, trainX, trainY, numClasses, lr, l2, epochs)

		correct := 0
		for i, row := range testX {
			if argmax(softmax(logits(w, b, row))) == testY[i] {
				correct++
			}
		}
		accuracies = append(accuracies, float64(correct)/float64(len(testX)))
	}
	return accuracies, nil
}

// classificationMetrics computes accuracy and weighted precision/recall/f1
// across numClasses, matching trainer.py's
// precision_score(..., average='weighted', zero_division=0) semantics.
func classificationMetrics(yTrue, yPred []int, numClasses int) (accuracy, precision, recall, f1 float64) {
	tp := make([]int, numClasses)
	fp := make([]int, numClasses)
	fn := make([]int, numClasses)
	support := make([]int, numClasses)

	correct := 0
	for i := range yTrue {
		support[yTrue[i]]++
		if yTrue[i] == yPred[i] {
			correct++
			tp[yTrue[i]]++
		} else {
			fp[yPred[i]]++
			fn[yTrue[i]]++
		}
	}
	accuracy = float64(correct) / float64(len(yTrue))

	var wPrecision, wRecall, wF1 float64
	total := len(yTrue)
	for c := 0; c < numClasses; c++ {
		if support[c] == 0 {
			continue
		}
		var p, r float64
		if tp[c]+fp[c] > 0 {
			p = float64(tp[c]) / float64(tp[c]+fp[c])
		}
		if tp[c]+fn[c] > 0 {
			r = float64(tp[c]) / float64(tp[c]+fn[c])
		}
		var fscore float64
		if p+r > 0 {
			fscore = 2 * p * r / (p + r)
		}
		weight := float64(support[c]) / float64(total)
		wPrecision += p * weight
		wRecall += r * weight
		wF1 += fscore * weight
	}
	return accuracy, wPrecision, wRecall, wF1
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))

	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return m, math.Sqrt(sumSq / float64(len(xs)))
}

func maxLabel(y []int) int {
	max := 0
	for _, v := range y {
		if v > max {
			max = v
		}
	}
	return max
}
