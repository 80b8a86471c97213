package mlmodels

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// RandomForestClassifier bags seeded decision trees over bootstrap samples
// with sqrt feature subsampling. Trees fit concurrently; prediction averages
// leaf class distributions.
type RandomForestClassifier struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`

	bootstrap    bool
	randomSplits bool

	classWeights map[string]float64
	trees        []*DecisionTreeClassifier
	classes      []string
	nFeatures    int
}

// NewRandomForestClassifier returns a forest with the given size and depth
// cap (0 for unlimited).
func NewRandomForestClassifier(nEstimators, maxDepth int, seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{
		NEstimators:     nEstimators,
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		Seed:            seed,
		bootstrap:       true,
	}
}

// NewExtraTreesClassifier returns an extremely randomized forest: no
// bootstrap, random split thresholds.
func NewExtraTreesClassifier(nEstimators, maxDepth int, seed int64) *RandomForestClassifier {
	f := NewRandomForestClassifier(nEstimators, maxDepth, seed)
	f.bootstrap = false
	f.randomSplits = true
	return f
}

// SetClassWeights sets per-class sample weights applied at the next Fit.
func (f *RandomForestClassifier) SetClassWeights(weights map[string]float64) {
	f.classWeights = weights
}

// Hyperparameters reports the live ensemble settings.
func (f *RandomForestClassifier) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators":      float64(f.NEstimators),
		"max_depth":         float64(f.MaxDepth),
		"min_samples_split": float64(f.MinSamplesSplit),
	}
}

// Fit grows every tree of the ensemble.
func (f *RandomForestClassifier) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(f.NEstimators, 100)
	f.nFeatures = len(X[0])
	f.classes = uniqueSorted(y)
	f.trees = make([]*DecisionTreeClassifier, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for b := 0; b < n; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			tree := NewDecisionTreeClassifier(f.MaxDepth, f.Seed+int64(b))
			tree.MinSamplesSplit = f.MinSamplesSplit
			tree.randomSplits = f.randomSplits
			tree.maxFeatures = sqrtFeatures
			tree.SetClassWeights(f.classWeights)
			bX, bY := bootstrapClassification(X, y, f.bootstrap, f.Seed+int64(b))
			errs[b] = tree.Fit(bX, bY)
			f.trees[b] = tree
		}(b)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("fitting tree: %w", err)
		}
	}
	return nil
}

// Predict returns the class with the highest averaged probability.
func (f *RandomForestClassifier) Predict(X [][]float64) ([]string, error) {
	probs, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(X))
	for i, p := range probs {
		best, bestP := "", -1.0
		for _, c := range f.classes {
			if p[c] > bestP {
				best, bestP = c, p[c]
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba averages the per-tree class distributions.
func (f *RandomForestClassifier) PredictProba(X [][]float64) ([]map[string]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]map[string]float64, len(X))
	for i := range out {
		out[i] = make(map[string]float64, len(f.classes))
	}
	for _, tree := range f.trees {
		probs, err := tree.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i, p := range probs {
			for c, v := range p {
				out[i][c] += v
			}
		}
	}
	n := float64(len(f.trees))
	for i := range out {
		for c := range out[i] {
			out[i][c] /= n
		}
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (f *RandomForestClassifier) Classes() []string {
	return append([]string(nil), f.classes...)
}

// FeatureImportances averages the per-tree importances.
func (f *RandomForestClassifier) FeatureImportances() []float64 {
	out := make([]float64, f.nFeatures)
	if len(f.trees) == 0 {
		return out
	}
	for _, tree := range f.trees {
		for i, v := range tree.FeatureImportances() {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return out
}

// RandomForestRegressor bags seeded regression trees over bootstrap samples.
type RandomForestRegressor struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	Seed            int64 `json:"seed"`

	bootstrap    bool
	randomSplits bool

	trees     []*DecisionTreeRegressor
	nFeatures int
}

// NewRandomForestRegressor returns a forest with the given size and depth
// cap (0 for unlimited).
func NewRandomForestRegressor(nEstimators, maxDepth int, seed int64) *RandomForestRegressor {
	return &RandomForestRegressor{
		NEstimators:     nEstimators,
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		Seed:            seed,
		bootstrap:       true,
	}
}

// NewExtraTreesRegressor returns an extremely randomized regression forest.
func NewExtraTreesRegressor(nEstimators, maxDepth int, seed int64) *RandomForestRegressor {
	f := NewRandomForestRegressor(nEstimators, maxDepth, seed)
	f.bootstrap = false
	f.randomSplits = true
	return f
}

// Hyperparameters reports the live ensemble settings.
func (f *RandomForestRegressor) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"n_estimators":      float64(f.NEstimators),
		"max_depth":         float64(f.MaxDepth),
		"min_samples_split": float64(f.MinSamplesSplit),
	}
}

// Fit grows every tree of the ensemble.
func (f *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	n := defaultInt(f.NEstimators, 100)
	f.nFeatures = len(X[0])
	f.trees = make([]*DecisionTreeRegressor, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for b := 0; b < n; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			tree := NewDecisionTreeRegressor(f.MaxDepth, f.Seed+int64(b))
			tree.MinSamplesSplit = f.MinSamplesSplit
			tree.randomSplits = f.randomSplits
			bX, bY := bootstrapRegression(X, y, f.bootstrap, f.Seed+int64(b))
			errs[b] = tree.Fit(bX, bY)
			f.trees[b] = tree
		}(b)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("fitting tree: %w", err)
		}
	}
	return nil
}

// Predict averages the per-tree predictions.
func (f *RandomForestRegressor) Predict(X [][]float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for _, tree := range f.trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return out, nil
}

// FeatureImportances averages the per-tree importances.
func (f *RandomForestRegressor) FeatureImportances() []float64 {
	out := make([]float64, f.nFeatures)
	if len(f.trees) == 0 {
		return out
	}
	for _, tree := range f.trees {
		for i, v := range tree.FeatureImportances() {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.trees))
	}
	return out
}

func sqrtFeatures(n int) int {
	k := int(math.Sqrt(float64(n)))
	if k < 1 {
		return 1
	}
	return k
}

func bootstrapClassification(X [][]float64, y []string, resample bool, seed int64) ([][]float64, []string) {
	if !resample {
		return X, y
	}
	rng := rand.New(rand.NewSource(seed))
	bX := make([][]float64, len(X))
	bY := make([]string, len(y))
	for i := range bX {
		j := rng.Intn(len(X))
		bX[i] = X[j]
		bY[i] = y[j]
	}
	return bX, bY
}

func bootstrapRegression(X [][]float64, y []float64, resample bool, seed int64) ([][]float64, []float64) {
	if !resample {
		return X, y
	}
	rng := rand.New(rand.NewSource(seed))
	bX := make([][]float64, len(X))
	bY := make([]float64, len(y))
	for i := range bX {
		j := rng.Intn(len(X))
		bX[i] = X[j]
		bY[i] = y[j]
	}
	return bX, bY
}
