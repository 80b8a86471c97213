package mlmodels

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// AdaBoostClassifier implements SAMME boosting over shallow decision trees.
type AdaBoostClassifier struct {
	NEstimators int   `json:"n_estimators"`
	MaxDepth    int   `json:"max_depth"`
	Seed        int64 `json:"seed"`

	classWeights map[string]float64
	classes      []string
	trees        []*DecisionTreeClassifier
	alphas       []float64
	nFeatures    int
}

// NewAdaBoostClassifier returns a boosted classifier over decision stumps.
func NewAdaBoostClassifier(nEstimators int, seed int64) *AdaBoostClassifier {
	return &AdaBoostClassifier{NEstimators: nEstimators, MaxDepth: 1, Seed: seed}
}

// Hyperparameters reports the live ensemble settings.
func (a *AdaBoostClassifier) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators": float64(a.NEstimators),
		"max_depth":    float64(a.MaxDepth),
	}
}

// SetClassWeights sets per-class sample weights applied at the next Fit.
func (a *AdaBoostClassifier) SetClassWeights(weights map[string]float64) {
	a.classWeights = weights
}

// Fit runs the boosting rounds, reweighting misclassified samples.
func (a *AdaBoostClassifier) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(a.NEstimators, 50)
	a.nFeatures = len(X[0])
	a.classes = uniqueSorted(y)
	k := float64(len(a.classes))

	weights := make([]float64, len(y))
	for i, c := range y {
		weights[i] = 1
		if w, ok := a.classWeights[c]; ok {
			weights[i] = w
		}
	}
	normalizeWeights(weights)

	a.trees = a.trees[:0]
	a.alphas = a.alphas[:0]
	for m := 0; m < n; m++ {
		tree := NewDecisionTreeClassifier(a.MaxDepth, a.Seed+int64(m))
		if err := tree.fitWeighted(X, y, weights); err != nil {
			return fmt.Errorf("boosting round %d: %w", m, err)
		}
		preds, err := tree.Predict(X)
		if err != nil {
			return fmt.Errorf("boosting round %d: %w", m, err)
		}
		var errRate float64
		for i := range y {
			if preds[i] != y[i] {
				errRate += weights[i]
			}
		}
		if errRate <= 0 {
			// perfect learner dominates the vote
			a.trees = append(a.trees, tree)
			a.alphas = append(a.alphas, math.Log((1-1e-10)/1e-10)+math.Log(k-1))
			break
		}
		if k > 1 && errRate >= 1-1/k {
			break
		}
		alpha := math.Log((1-errRate)/errRate) + math.Log(k-1)
		a.trees = append(a.trees, tree)
		a.alphas = append(a.alphas, alpha)
		for i := range weights {
			if preds[i] != y[i] {
				weights[i] *= math.Exp(alpha)
			}
		}
		normalizeWeights(weights)
	}
	if len(a.trees) == 0 {
		// no usable round; keep a single unweighted tree as fallback
		tree := NewDecisionTreeClassifier(a.MaxDepth, a.Seed)
		if err := tree.Fit(X, y); err != nil {
			return err
		}
		a.trees = append(a.trees, tree)
		a.alphas = append(a.alphas, 1)
	}
	return nil
}

func (a *AdaBoostClassifier) votes(X [][]float64) ([]map[string]float64, error) {
	if len(a.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]map[string]float64, len(X))
	for i := range out {
		out[i] = make(map[string]float64, len(a.classes))
	}
	for m, tree := range a.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			out[i][p] += a.alphas[m]
		}
	}
	return out, nil
}

// Predict returns the class with the highest weighted vote.
func (a *AdaBoostClassifier) Predict(X [][]float64) ([]string, error) {
	votes, err := a.votes(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(X))
	for i, v := range votes {
		best, bestW := "", math.Inf(-1)
		for _, c := range a.classes {
			if v[c] > bestW {
				best, bestW = c, v[c]
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba normalizes the weighted votes.
func (a *AdaBoostClassifier) PredictProba(X [][]float64) ([]map[string]float64, error) {
	votes, err := a.votes(X)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]float64, len(X))
	for i, v := range votes {
		probs := make(map[string]float64, len(a.classes))
		var total float64
		for _, c := range a.classes {
			total += v[c]
		}
		for _, c := range a.classes {
			if total > 0 {
				probs[c] = v[c] / total
			}
		}
		out[i] = probs
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (a *AdaBoostClassifier) Classes() []string {
	return append([]string(nil), a.classes...)
}

// FeatureImportances averages the per-round tree importances, weighted by
// the round's vote weight.
func (a *AdaBoostClassifier) FeatureImportances() []float64 {
	out := make([]float64, a.nFeatures)
	for m, tree := range a.trees {
		for i, v := range tree.FeatureImportances() {
			out[i] += a.alphas[m] * v
		}
	}
	normalize(out)
	return out
}

// AdaBoostRegressor implements AdaBoost.R2 with linear loss over depth-3
// regression trees and weighted-median prediction.
type AdaBoostRegressor struct {
	NEstimators int   `json:"n_estimators"`
	MaxDepth    int   `json:"max_depth"`
	Seed        int64 `json:"seed"`

	trees     []*DecisionTreeRegressor
	logBetas  []float64
	nFeatures int
}

// NewAdaBoostRegressor returns a boosted regressor.
func NewAdaBoostRegressor(nEstimators int, seed int64) *AdaBoostRegressor {
	return &AdaBoostRegressor{NEstimators: nEstimators, MaxDepth: 3, Seed: seed}
}

// Hyperparameters reports the live ensemble settings.
func (a *AdaBoostRegressor) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators": float64(a.NEstimators),
		"max_depth":    float64(a.MaxDepth),
	}
}

// Fit runs the boosting rounds over weighted bootstrap resamples.
func (a *AdaBoostRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(a.NEstimators, 50)
	a.nFeatures = len(X[0])
	rng := rand.New(rand.NewSource(a.Seed))

	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1 / float64(len(y))
	}

	a.trees = a.trees[:0]
	a.logBetas = a.logBetas[:0]
	for m := 0; m < n; m++ {
		bX, bY := weightedResample(X, y, weights, rng)
		tree := NewDecisionTreeRegressor(a.MaxDepth, a.Seed+int64(m))
		if err := tree.Fit(bX, bY); err != nil {
			return fmt.Errorf("boosting round %d: %w", m, err)
		}
		preds, err := tree.Predict(X)
		if err != nil {
			return fmt.Errorf("boosting round %d: %w", m, err)
		}
		var maxErr float64
		absErr := make([]float64, len(y))
		for i := range y {
			absErr[i] = math.Abs(y[i] - preds[i])
			if absErr[i] > maxErr {
				maxErr = absErr[i]
			}
		}
		if maxErr == 0 {
			a.trees = append(a.trees, tree)
			a.logBetas = append(a.logBetas, math.Log(1/1e-10))
			break
		}
		var loss float64
		for i := range y {
			loss += weights[i] * absErr[i] / maxErr
		}
		if loss >= 0.5 {
			break
		}
		beta := loss / (1 - loss)
		a.trees = append(a.trees, tree)
		a.logBetas = append(a.logBetas, math.Log(1/beta))
		for i := range weights {
			weights[i] *= math.Pow(beta, 1-absErr[i]/maxErr)
		}
		normalizeWeights(weights)
	}
	if len(a.trees) == 0 {
		tree := NewDecisionTreeRegressor(a.MaxDepth, a.Seed)
		if err := tree.Fit(X, y); err != nil {
			return err
		}
		a.trees = append(a.trees, tree)
		a.logBetas = append(a.logBetas, 1)
	}
	return nil
}

// Predict returns the weighted median of the per-tree predictions.
func (a *AdaBoostRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(a.trees) == 0 {
		return nil, ErrNotFitted
	}
	all := make([][]float64, len(a.trees))
	for m, tree := range a.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		all[m] = preds
	}
	out := make([]float64, len(X))
	for i := range X {
		out[i] = weightedMedian(all, a.logBetas, i)
	}
	return out, nil
}

// FeatureImportances averages the per-round tree importances.
func (a *AdaBoostRegressor) FeatureImportances() []float64 {
	out := make([]float64, a.nFeatures)
	for m, tree := range a.trees {
		for i, v := range tree.FeatureImportances() {
			out[i] += a.logBetas[m] * v
		}
	}
	normalize(out)
	return out
}

func weightedResample(X [][]float64, y, weights []float64, rng *rand.Rand) ([][]float64, []float64) {
	cdf := make([]float64, len(weights))
	var total float64
	for i, w := range weights {
		total += w
		cdf[i] = total
	}
	bX := make([][]float64, len(X))
	bY := make([]float64, len(y))
	for i := range bX {
		r := rng.Float64() * total
		j := sort.SearchFloat64s(cdf, r)
		if j >= len(X) {
			j = len(X) - 1
		}
		bX[i] = X[j]
		bY[i] = y[j]
	}
	return bX, bY
}

func weightedMedian(all [][]float64, weights []float64, col int) float64 {
	type pair struct {
		value  float64
		weight float64
	}
	pairs := make([]pair, len(all))
	var total float64
	for m := range all {
		pairs[m] = pair{all[m][col], weights[m]}
		total += weights[m]
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].value < pairs[b].value })
	var cum float64
	for _, p := range pairs {
		cum += p.weight
		if cum >= total/2 {
			return p.value
		}
	}
	return pairs[len(pairs)-1].value
}

func normalizeWeights(weights []float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return
	}
	for i := range weights {
		weights[i] /= total
	}
}
