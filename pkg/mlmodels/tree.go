package mlmodels

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a fitted decision tree. Leaves carry the weighted
// class counts (classification) or the mean target (regression).
type treeNode struct {
	Feature     int                `json:"feature"`
	Threshold   float64            `json:"threshold"`
	Left        *treeNode          `json:"left,omitempty"`
	Right       *treeNode          `json:"right,omitempty"`
	IsLeaf      bool               `json:"is_leaf"`
	ClassCounts map[string]float64 `json:"class_counts,omitempty"`
	Prediction  string             `json:"prediction,omitempty"`
	Value       float64            `json:"value"`
	Samples     float64            `json:"samples"`
}

const unlimitedDepth = 1 << 20

// DecisionTreeClassifier is a CART-style classifier with weighted gini
// splits and midpoint thresholds.
type DecisionTreeClassifier struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`

	// randomSplits switches to extremely randomized thresholds; maxFeatures
	// limits the features considered per split. Both are set by the
	// ensemble wrappers.
	randomSplits bool
	maxFeatures  func(n int) int

	classWeights map[string]float64
	root         *treeNode
	classes      []string
	nFeatures    int
	importances  []float64
	rng          *rand.Rand
}

// NewDecisionTreeClassifier returns a classifier with the given depth cap
// (0 for unlimited) and a fixed seed.
func NewDecisionTreeClassifier(maxDepth int, seed int64) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{MaxDepth: maxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: seed}
}

// SetClassWeights sets per-class sample weights applied at the next Fit.
func (t *DecisionTreeClassifier) SetClassWeights(weights map[string]float64) {
	t.classWeights = weights
}

// Hyperparameters reports the live tree settings.
func (t *DecisionTreeClassifier) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"max_depth":         float64(t.MaxDepth),
		"min_samples_split": float64(t.MinSamplesSplit),
	}
}

// Fit grows the tree on the given samples.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	weights := make([]float64, len(y))
	for i, c := range y {
		weights[i] = 1
		if w, ok := t.classWeights[c]; ok {
			weights[i] = w
		}
	}
	return t.fitWeighted(X, y, weights)
}

func (t *DecisionTreeClassifier) fitWeighted(X [][]float64, y []string, weights []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	t.nFeatures = len(X[0])
	t.classes = uniqueSorted(y)
	t.importances = make([]float64, t.nFeatures)
	t.rng = rand.New(rand.NewSource(t.Seed))

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	b := &treeBuilder{
		X:               X,
		weights:         weights,
		maxDepth:        depthOrUnlimited(t.MaxDepth),
		minSamplesSplit: defaultInt(t.MinSamplesSplit, 2),
		minSamplesLeaf:  defaultInt(t.MinSamplesLeaf, 1),
		randomSplits:    t.randomSplits,
		maxFeatures:     t.maxFeatures,
		rng:             t.rng,
		importances:     t.importances,
		labels:          y,
	}
	t.root = b.build(indices, 0)
	normalize(t.importances)
	return nil
}

// Predict returns the majority-class label per sample.
func (t *DecisionTreeClassifier) Predict(X [][]float64) ([]string, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	out := make([]string, len(X))
	for i, x := range X {
		if len(x) != t.nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(x), t.nFeatures)
		}
		out[i] = traverse(t.root, x).Prediction
	}
	return out, nil
}

// PredictProba returns per-class probabilities from leaf class counts.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) ([]map[string]float64, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	out := make([]map[string]float64, len(X))
	for i, x := range X {
		leaf := traverse(t.root, x)
		probs := make(map[string]float64, len(t.classes))
		var total float64
		for _, w := range leaf.ClassCounts {
			total += w
		}
		for _, c := range t.classes {
			if total > 0 {
				probs[c] = leaf.ClassCounts[c] / total
			}
		}
		out[i] = probs
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (t *DecisionTreeClassifier) Classes() []string {
	return append([]string(nil), t.classes...)
}

// FeatureImportances returns normalized impurity-decrease importances.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// DecisionTreeRegressor is a CART-style regressor with variance-reduction
// splits.
type DecisionTreeRegressor struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	Seed            int64 `json:"seed"`

	randomSplits bool
	maxFeatures  func(n int) int

	root        *treeNode
	nFeatures   int
	importances []float64
	rng         *rand.Rand
}

// NewDecisionTreeRegressor returns a regressor with the given depth cap
// (0 for unlimited) and a fixed seed.
func NewDecisionTreeRegressor(maxDepth int, seed int64) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{MaxDepth: maxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: seed}
}

// Hyperparameters reports the live tree settings.
func (t *DecisionTreeRegressor) Hyperparameters() map[string]float64 {
	return map[string]float64{
		"max_depth":         float64(t.MaxDepth),
		"min_samples_split": float64(t.MinSamplesSplit),
	}
}

// Fit grows the tree on the given samples.
func (t *DecisionTreeRegressor) Fit(X [][]float64, y []float64) error {
	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	return t.fitWeighted(X, y, weights)
}

func (t *DecisionTreeRegressor) fitWeighted(X [][]float64, y []float64, weights []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	t.nFeatures = len(X[0])
	t.importances = make([]float64, t.nFeatures)
	t.rng = rand.New(rand.NewSource(t.Seed))

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	b := &treeBuilder{
		X:               X,
		weights:         weights,
		maxDepth:        depthOrUnlimited(t.MaxDepth),
		minSamplesSplit: defaultInt(t.MinSamplesSplit, 2),
		minSamplesLeaf:  defaultInt(t.MinSamplesLeaf, 1),
		randomSplits:    t.randomSplits,
		maxFeatures:     t.maxFeatures,
		rng:             t.rng,
		importances:     t.importances,
		targets:         y,
	}
	t.root = b.build(indices, 0)
	normalize(t.importances)
	return nil
}

// Predict returns the leaf mean per sample.
func (t *DecisionTreeRegressor) Predict(X [][]float64) ([]float64, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != t.nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(x), t.nFeatures)
		}
		out[i] = traverse(t.root, x).Value
	}
	return out, nil
}

// FeatureImportances returns normalized impurity-decrease importances.
func (t *DecisionTreeRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// treeBuilder holds the shared recursion state. Exactly one of labels or
// targets is set: labels for gini splits, targets for variance splits.
type treeBuilder struct {
	X               [][]float64
	weights         []float64
	labels          []string
	targets         []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	randomSplits    bool
	maxFeatures     func(n int) int
	rng             *rand.Rand
	importances     []float64
}

func (b *treeBuilder) build(indices []int, depth int) *treeNode {
	node := b.makeLeaf(indices)
	if depth >= b.maxDepth || len(indices) < b.minSamplesSplit || b.impurity(indices) < 1e-12 {
		return node
	}

	feature, threshold, gain := b.findBestSplit(indices)
	if gain <= 1e-12 {
		return node
	}

	var left, right []int
	for _, i := range indices {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
		return node
	}

	b.importances[feature] += gain
	node.IsLeaf = false
	node.Feature = feature
	node.Threshold = threshold
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

func (b *treeBuilder) makeLeaf(indices []int) *treeNode {
	node := &treeNode{IsLeaf: true}
	if b.labels != nil {
		counts := make(map[string]float64)
		for _, i := range indices {
			counts[b.labels[i]] += b.weights[i]
			node.Samples += b.weights[i]
		}
		node.ClassCounts = counts
		best, bestW := "", -1.0
		for _, c := range uniqueSorted(labelsAt(b.labels, indices)) {
			if counts[c] > bestW {
				best, bestW = c, counts[c]
			}
		}
		node.Prediction = best
		return node
	}
	var sum, wsum float64
	for _, i := range indices {
		sum += b.targets[i] * b.weights[i]
		wsum += b.weights[i]
	}
	node.Samples = wsum
	if wsum > 0 {
		node.Value = sum / wsum
	}
	return node
}

// impurity is weighted gini for classification, weighted variance for
// regression.
func (b *treeBuilder) impurity(indices []int) float64 {
	if b.labels != nil {
		counts := make(map[string]float64)
		var total float64
		for _, i := range indices {
			counts[b.labels[i]] += b.weights[i]
			total += b.weights[i]
		}
		if total == 0 {
			return 0
		}
		gini := 1.0
		for _, w := range counts {
			p := w / total
			gini -= p * p
		}
		return gini
	}
	var sum, sqSum, total float64
	for _, i := range indices {
		sum += b.targets[i] * b.weights[i]
		sqSum += b.targets[i] * b.targets[i] * b.weights[i]
		total += b.weights[i]
	}
	if total == 0 {
		return 0
	}
	mean := sum / total
	return sqSum/total - mean*mean
}

func (b *treeBuilder) weight(indices []int) float64 {
	var total float64
	for _, i := range indices {
		total += b.weights[i]
	}
	return total
}

func (b *treeBuilder) findBestSplit(indices []int) (int, float64, float64) {
	parentImpurity := b.impurity(indices)
	parentWeight := b.weight(indices)

	nFeatures := len(b.X[0])
	features := make([]int, nFeatures)
	for i := range features {
		features[i] = i
	}
	if b.maxFeatures != nil {
		k := b.maxFeatures(nFeatures)
		if k < 1 {
			k = 1
		}
		if k < nFeatures {
			b.rng.Shuffle(nFeatures, func(i, j int) {
				features[i], features[j] = features[j], features[i]
			})
			features = features[:k]
		}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for _, f := range features {
		for _, threshold := range b.thresholds(indices, f) {
			var left, right []int
			for _, i := range indices {
				if b.X[i][f] <= threshold {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
				continue
			}
			wl, wr := b.weight(left), b.weight(right)
			gain := parentWeight*parentImpurity - wl*b.impurity(left) - wr*b.impurity(right)
			if gain > bestGain {
				bestFeature, bestThreshold, bestGain = f, threshold, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

// thresholds returns candidate split points: midpoints between sorted unique
// values, or a single uniform random point for extremely randomized trees.
func (b *treeBuilder) thresholds(indices []int, feature int) []float64 {
	min, max := math.Inf(1), math.Inf(-1)
	seen := make(map[float64]struct{}, len(indices))
	for _, i := range indices {
		v := b.X[i][feature]
		seen[v] = struct{}{}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if len(seen) < 2 {
		return nil
	}
	if b.randomSplits {
		return []float64{min + b.rng.Float64()*(max-min)}
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)
	mids := make([]float64, len(values)-1)
	for i := 0; i < len(values)-1; i++ {
		mids[i] = (values[i] + values[i+1]) / 2
	}
	return mids
}

func traverse(node *treeNode, x []float64) *treeNode {
	for !node.IsLeaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func checkTrainingData(nX, nY int) error {
	if nX == 0 {
		return fmt.Errorf("no training samples")
	}
	if nX != nY {
		return fmt.Errorf("feature/target length mismatch: %d vs %d", nX, nY)
	}
	return nil
}

func uniqueSorted(y []string) []string {
	seen := make(map[string]struct{}, len(y))
	for _, c := range y {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func labelsAt(y []string, indices []int) []string {
	out := make([]string, len(indices))
	for j, i := range indices {
		out[j] = y[i]
	}
	return out
}

func normalize(values []float64) {
	var total float64
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}

func depthOrUnlimited(d int) int {
	if d <= 0 {
		return unlimitedDepth
	}
	return d
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
