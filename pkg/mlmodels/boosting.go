package mlmodels

import (
	"fmt"
	"math"
)

// GradientBoostingRegressor fits shallow regression trees to the residuals
// of a running prediction, shrunk by the learning rate.
type GradientBoostingRegressor struct {
	NEstimators  int     `json:"n_estimators"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`

	basePrediction float64
	trees          []*DecisionTreeRegressor
	nFeatures      int
}

// NewGradientBoostingRegressor returns a boosted ensemble with the usual
// defaults: shrinkage 0.1, depth-3 trees.
func NewGradientBoostingRegressor(nEstimators, maxDepth int, seed int64) *GradientBoostingRegressor {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &GradientBoostingRegressor{
		NEstimators:  nEstimators,
		MaxDepth:     maxDepth,
		LearningRate: 0.1,
		Seed:         seed,
	}
}

// Hyperparameters reports the live ensemble settings.
func (g *GradientBoostingRegressor) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators":  float64(g.NEstimators),
		"max_depth":     float64(g.MaxDepth),
		"learning_rate": g.LearningRate,
	}
}

// Fit runs the boosting iterations.
func (g *GradientBoostingRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(g.NEstimators, 100)
	g.nFeatures = len(X[0])

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.basePrediction = sum / float64(len(y))

	current := make([]float64, len(y))
	for i := range current {
		current[i] = g.basePrediction
	}
	residual := make([]float64, len(y))
	g.trees = make([]*DecisionTreeRegressor, 0, n)
	for m := 0; m < n; m++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := NewDecisionTreeRegressor(g.MaxDepth, g.Seed+int64(m))
		if err := tree.Fit(X, residual); err != nil {
			return fmt.Errorf("boosting iteration %d: %w", m, err)
		}
		preds, err := tree.Predict(X)
		if err != nil {
			return fmt.Errorf("boosting iteration %d: %w", m, err)
		}
		for i, p := range preds {
			current[i] += g.LearningRate * p
		}
		g.trees = append(g.trees, tree)
	}
	return nil
}

// Predict sums the shrunk tree contributions over the base prediction.
func (g *GradientBoostingRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(g.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i := range out {
		out[i] = g.basePrediction
	}
	for _, tree := range g.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			out[i] += g.LearningRate * p
		}
	}
	return out, nil
}

// FeatureImportances averages the per-tree importances.
func (g *GradientBoostingRegressor) FeatureImportances() []float64 {
	out := make([]float64, g.nFeatures)
	if len(g.trees) == 0 {
		return out
	}
	for _, tree := range g.trees {
		for i, v := range tree.FeatureImportances() {
			out[i] += v
		}
	}
	normalize(out)
	return out
}

// GradientBoostingClassifier boosts one binary log-loss ensemble per class
// and predicts by the highest normalized score.
type GradientBoostingClassifier struct {
	NEstimators  int     `json:"n_estimators"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`

	classWeights map[string]float64
	classes      []string
	baseScores   []float64
	trees        [][]*DecisionTreeRegressor
	nFeatures    int
}

// NewGradientBoostingClassifier returns a boosted classifier with shrinkage
// 0.1 and depth-3 trees.
func NewGradientBoostingClassifier(nEstimators, maxDepth int, seed int64) *GradientBoostingClassifier {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &GradientBoostingClassifier{
		NEstimators:  nEstimators,
		MaxDepth:     maxDepth,
		LearningRate: 0.1,
		Seed:         seed,
	}
}

// Hyperparameters reports the live ensemble settings.
func (g *GradientBoostingClassifier) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators":  float64(g.NEstimators),
		"max_depth":     float64(g.MaxDepth),
		"learning_rate": g.LearningRate,
	}
}

// SetClassWeights sets per-class sample weights applied at the next Fit.
func (g *GradientBoostingClassifier) SetClassWeights(weights map[string]float64) {
	g.classWeights = weights
}

// Fit runs the per-class boosting iterations.
func (g *GradientBoostingClassifier) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(g.NEstimators, 100)
	g.nFeatures = len(X[0])
	g.classes = uniqueSorted(y)
	g.baseScores = make([]float64, len(g.classes))
	g.trees = make([][]*DecisionTreeRegressor, len(g.classes))

	weights := make([]float64, len(y))
	for i, c := range y {
		weights[i] = 1
		if w, ok := g.classWeights[c]; ok {
			weights[i] = w
		}
	}

	for k, class := range g.classes {
		target := make([]float64, len(y))
		var positives float64
		for i, c := range y {
			if c == class {
				target[i] = 1
				positives++
			}
		}
		p := clampProb(positives / float64(len(y)))
		g.baseScores[k] = math.Log(p / (1 - p))

		score := make([]float64, len(y))
		for i := range score {
			score[i] = g.baseScores[k]
		}
		residual := make([]float64, len(y))
		g.trees[k] = make([]*DecisionTreeRegressor, 0, n)
		for m := 0; m < n; m++ {
			for i := range residual {
				residual[i] = target[i] - sigmoid(score[i])
			}
			tree := NewDecisionTreeRegressor(g.MaxDepth, g.Seed+int64(k*n+m))
			if err := tree.fitWeighted(X, residual, weights); err != nil {
				return fmt.Errorf("boosting class %s iteration %d: %w", class, m, err)
			}
			preds, err := tree.Predict(X)
			if err != nil {
				return fmt.Errorf("boosting class %s iteration %d: %w", class, m, err)
			}
			for i, pr := range preds {
				score[i] += g.LearningRate * pr
			}
			g.trees[k] = append(g.trees[k], tree)
		}
	}
	return nil
}

func (g *GradientBoostingClassifier) scores(X [][]float64) ([][]float64, error) {
	if len(g.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, len(g.classes))
	}
	for k := range g.classes {
		for i := range X {
			out[i][k] = g.baseScores[k]
		}
		for _, tree := range g.trees[k] {
			preds, err := tree.Predict(X)
			if err != nil {
				return nil, err
			}
			for i, p := range preds {
				out[i][k] += g.LearningRate * p
			}
		}
	}
	return out, nil
}

// Predict returns the class with the highest score.
func (g *GradientBoostingClassifier) Predict(X [][]float64) ([]string, error) {
	scores, err := g.scores(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(X))
	for i, row := range scores {
		best, bestS := 0, math.Inf(-1)
		for k, s := range row {
			if s > bestS {
				best, bestS = k, s
			}
		}
		out[i] = g.classes[best]
	}
	return out, nil
}

// PredictProba normalizes the per-class sigmoid scores.
func (g *GradientBoostingClassifier) PredictProba(X [][]float64) ([]map[string]float64, error) {
	scores, err := g.scores(X)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]float64, len(X))
	for i, row := range scores {
		probs := make(map[string]float64, len(g.classes))
		var total float64
		for k, s := range row {
			p := sigmoid(s)
			probs[g.classes[k]] = p
			total += p
		}
		if total > 0 {
			for c := range probs {
				probs[c] /= total
			}
		}
		out[i] = probs
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (g *GradientBoostingClassifier) Classes() []string {
	return append([]string(nil), g.classes...)
}

// FeatureImportances averages the importances over every tree.
func (g *GradientBoostingClassifier) FeatureImportances() []float64 {
	out := make([]float64, g.nFeatures)
	for _, classTrees := range g.trees {
		for _, tree := range classTrees {
			for i, v := range tree.FeatureImportances() {
				out[i] += v
			}
		}
	}
	normalize(out)
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampProb(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
