package mlmodels

import (
	"math"
	"sort"
)

// KNNClassifier predicts by majority vote among the k nearest training
// samples under Euclidean distance.
type KNNClassifier struct {
	K int `json:"k"`

	X       [][]float64
	y       []string
	classes []string
}

// NewKNNClassifier returns a classifier with the given neighborhood size.
func NewKNNClassifier(k int) *KNNClassifier {
	return &KNNClassifier{K: k}
}

// Hyperparameters reports the live settings.
func (m *KNNClassifier) Hyperparameters() map[string]float64 {
	return map[string]float64{"n_neighbors": float64(m.K)}
}

// Fit memorizes the training data.
func (m *KNNClassifier) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	m.X = X
	m.y = y
	m.classes = uniqueSorted(y)
	return nil
}

// Predict returns the majority class among the nearest neighbors.
func (m *KNNClassifier) Predict(X [][]float64) ([]string, error) {
	probs, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(X))
	for i, p := range probs {
		best, bestP := "", -1.0
		for _, c := range m.classes {
			if p[c] > bestP {
				best, bestP = c, p[c]
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba returns the neighbor vote fractions.
func (m *KNNClassifier) PredictProba(X [][]float64) ([]map[string]float64, error) {
	if m.X == nil {
		return nil, ErrNotFitted
	}
	k := m.effectiveK()
	out := make([]map[string]float64, len(X))
	for i, x := range X {
		votes := make(map[string]float64, len(m.classes))
		for _, j := range nearest(m.X, x, k) {
			votes[m.y[j]]++
		}
		for c := range votes {
			votes[c] /= float64(k)
		}
		for _, c := range m.classes {
			if _, ok := votes[c]; !ok {
				votes[c] = 0
			}
		}
		out[i] = votes
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (m *KNNClassifier) Classes() []string {
	return append([]string(nil), m.classes...)
}

func (m *KNNClassifier) effectiveK() int {
	k := defaultInt(m.K, 5)
	if k > len(m.X) {
		k = len(m.X)
	}
	return k
}

// KNNRegressor predicts the mean target of the k nearest training samples.
type KNNRegressor struct {
	K int `json:"k"`

	X [][]float64
	y []float64
}

// NewKNNRegressor returns a regressor with the given neighborhood size.
func NewKNNRegressor(k int) *KNNRegressor {
	return &KNNRegressor{K: k}
}

// Hyperparameters reports the live settings.
func (m *KNNRegressor) Hyperparameters() map[string]float64 {
	return map[string]float64{"n_neighbors": float64(m.K)}
}

// Fit memorizes the training data.
func (m *KNNRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	m.X = X
	m.y = y
	return nil
}

// Predict returns the neighborhood mean per sample.
func (m *KNNRegressor) Predict(X [][]float64) ([]float64, error) {
	if m.X == nil {
		return nil, ErrNotFitted
	}
	k := defaultInt(m.K, 5)
	if k > len(m.X) {
		k = len(m.X)
	}
	out := make([]float64, len(X))
	for i, x := range X {
		var sum float64
		for _, j := range nearest(m.X, x, k) {
			sum += m.y[j]
		}
		out[i] = sum / float64(k)
	}
	return out, nil
}

// nearest returns the indices of the k training samples closest to x, ties
// broken by lower index for determinism.
func nearest(train [][]float64, x []float64, k int) []int {
	type entry struct {
		index int
		dist  float64
	}
	entries := make([]entry, len(train))
	for j, row := range train {
		var d float64
		for f := range row {
			diff := row[f] - x[f]
			d += diff * diff
		}
		entries[j] = entry{j, d}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].dist != entries[b].dist {
			return entries[a].dist < entries[b].dist
		}
		return entries[a].index < entries[b].index
	})
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = entries[i].index
	}
	return out
}

// GaussianNB is a naive Bayes classifier with per-class Gaussian feature
// likelihoods.
type GaussianNB struct {
	classes []string
	priors  map[string]float64
	means   map[string][]float64
	vars    map[string][]float64
}

// NewGaussianNB returns an unfitted naive Bayes classifier.
func NewGaussianNB() *GaussianNB {
	return &GaussianNB{}
}

// Fit estimates per-class feature means and variances.
func (m *GaussianNB) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	p := len(X[0])
	m.classes = uniqueSorted(y)
	m.priors = make(map[string]float64, len(m.classes))
	m.means = make(map[string][]float64, len(m.classes))
	m.vars = make(map[string][]float64, len(m.classes))

	counts := make(map[string]int)
	for _, c := range y {
		counts[c]++
	}
	for _, c := range m.classes {
		m.priors[c] = float64(counts[c]) / float64(len(y))
		m.means[c] = make([]float64, p)
		m.vars[c] = make([]float64, p)
	}
	for i, row := range X {
		for j, v := range row {
			m.means[y[i]][j] += v
		}
	}
	for _, c := range m.classes {
		for j := range m.means[c] {
			m.means[c][j] /= float64(counts[c])
		}
	}
	for i, row := range X {
		for j, v := range row {
			d := v - m.means[y[i]][j]
			m.vars[y[i]][j] += d * d
		}
	}
	// variance smoothing keeps constant features from zeroing likelihoods
	const eps = 1e-9
	for _, c := range m.classes {
		for j := range m.vars[c] {
			m.vars[c][j] = m.vars[c][j]/float64(counts[c]) + eps
		}
	}
	return nil
}

func (m *GaussianNB) logPosteriors(x []float64) map[string]float64 {
	out := make(map[string]float64, len(m.classes))
	for _, c := range m.classes {
		logP := math.Log(m.priors[c])
		for j, v := range x {
			variance := m.vars[c][j]
			diff := v - m.means[c][j]
			logP += -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
		}
		out[c] = logP
	}
	return out
}

// Predict returns the maximum-posterior class per sample.
func (m *GaussianNB) Predict(X [][]float64) ([]string, error) {
	if m.classes == nil {
		return nil, ErrNotFitted
	}
	out := make([]string, len(X))
	for i, x := range X {
		posts := m.logPosteriors(x)
		best, bestP := "", math.Inf(-1)
		for _, c := range m.classes {
			if posts[c] > bestP {
				best, bestP = c, posts[c]
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba returns normalized posterior probabilities.
func (m *GaussianNB) PredictProba(X [][]float64) ([]map[string]float64, error) {
	if m.classes == nil {
		return nil, ErrNotFitted
	}
	out := make([]map[string]float64, len(X))
	for i, x := range X {
		posts := m.logPosteriors(x)
		maxLog := math.Inf(-1)
		for _, v := range posts {
			if v > maxLog {
				maxLog = v
			}
		}
		probs := make(map[string]float64, len(m.classes))
		var total float64
		for c, v := range posts {
			probs[c] = math.Exp(v - maxLog)
			total += probs[c]
		}
		for c := range probs {
			probs[c] /= total
		}
		out[i] = probs
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (m *GaussianNB) Classes() []string {
	return append([]string(nil), m.classes...)
}
