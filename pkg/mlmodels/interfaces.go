// Package mlmodels provides the model families behind the comparison stage:
// from-scratch tree, ensemble, linear and instance-based estimators sharing
// small capability interfaces, plus the fixed catalogs the comparison draws
// candidates from.
package mlmodels

import "errors"

// ErrNotFitted is returned by prediction methods called before Fit.
var ErrNotFitted = errors.New("model is not fitted")

// Classifier is the minimal classification contract. Fit learns from a dense
// feature matrix and string class labels; a fresh estimator is used per fit.
type Classifier interface {
	Fit(X [][]float64, y []string) error
	Predict(X [][]float64) ([]string, error)
}

// Regressor is the minimal regression contract.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// ProbabilityEstimator is implemented by classifiers that can report
// per-class probabilities. Callers check for it instead of assuming it.
type ProbabilityEstimator interface {
	PredictProba(X [][]float64) ([]map[string]float64, error)
	Classes() []string
}

// FeatureImportanceProvider is implemented by models with a native notion of
// feature importance (the tree family). Importances align with the fitted
// feature order and sum to 1.
type FeatureImportanceProvider interface {
	FeatureImportances() []float64
}

// ClassWeighter is implemented by classifiers that can reweight classes,
// used when the comparison runs with imbalance handling on.
type ClassWeighter interface {
	SetClassWeights(weights map[string]float64)
}

// HyperparameterReporter exposes the live hyperparameters of a fitted model,
// used by the tuning stage to seed its defaults.
type HyperparameterReporter interface {
	Hyperparameters() map[string]float64
}

// BalancedClassWeights computes sklearn-style balanced weights:
// n_samples / (n_classes * count(class)).
func BalancedClassWeights(y []string) map[string]float64 {
	counts := make(map[string]int)
	for _, c := range y {
		counts[c]++
	}
	weights := make(map[string]float64, len(counts))
	n := float64(len(y))
	k := float64(len(counts))
	for c, cnt := range counts {
		weights[c] = n / (k * float64(cnt))
	}
	return weights
}
