package mlmodels

import (
	"math"
)

// LogisticRegression is a softmax classifier trained by batch gradient
// descent. Inputs are expected standardized, which the preprocessing plan
// guarantees for numeric columns.
type LogisticRegression struct {
	MaxIter      int     `json:"max_iter"`
	LearningRate float64 `json:"learning_rate"`

	classWeights map[string]float64
	classes      []string
	weights      [][]float64 // one row per class, intercept first
	nFeatures    int
}

// NewLogisticRegression returns a classifier capped at maxIter descent
// steps.
func NewLogisticRegression(maxIter int) *LogisticRegression {
	return &LogisticRegression{MaxIter: maxIter, LearningRate: 0.1}
}

// Hyperparameters reports the live settings.
func (l *LogisticRegression) Hyperparameters() map[string]float64 {
	return map[string]float64{"max_iter": float64(l.MaxIter)}
}

// SetClassWeights sets per-class sample weights applied at the next Fit.
func (l *LogisticRegression) SetClassWeights(weights map[string]float64) {
	l.classWeights = weights
}

// Fit runs gradient descent on the weighted cross-entropy.
func (l *LogisticRegression) Fit(X [][]float64, y []string) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}
	l.nFeatures = len(X[0])
	l.classes = uniqueSorted(y)
	k := len(l.classes)
	classIdx := make(map[string]int, k)
	for i, c := range l.classes {
		classIdx[c] = i
	}

	sampleWeights := make([]float64, len(y))
	for i, c := range y {
		sampleWeights[i] = 1
		if w, ok := l.classWeights[c]; ok {
			sampleWeights[i] = w
		}
	}

	l.weights = make([][]float64, k)
	for c := range l.weights {
		l.weights[c] = make([]float64, l.nFeatures+1)
	}
	grad := make([][]float64, k)
	for c := range grad {
		grad[c] = make([]float64, l.nFeatures+1)
	}

	maxIter := defaultInt(l.MaxIter, 1000)
	n := float64(len(X))
	for iter := 0; iter < maxIter; iter++ {
		for c := range grad {
			for j := range grad[c] {
				grad[c][j] = 0
			}
		}
		for i, x := range X {
			probs := l.softmax(x)
			target := classIdx[y[i]]
			for c := 0; c < k; c++ {
				indicator := 0.0
				if c == target {
					indicator = 1
				}
				g := sampleWeights[i] * (probs[c] - indicator)
				grad[c][0] += g
				for j, v := range x {
					grad[c][j+1] += g * v
				}
			}
		}
		for c := 0; c < k; c++ {
			for j := range l.weights[c] {
				l.weights[c][j] -= l.LearningRate * grad[c][j] / n
			}
		}
	}
	return nil
}

func (l *LogisticRegression) softmax(x []float64) []float64 {
	scores := make([]float64, len(l.weights))
	maxScore := math.Inf(-1)
	for c, w := range l.weights {
		s := w[0]
		for j, v := range x {
			s += w[j+1] * v
		}
		scores[c] = s
		if s > maxScore {
			maxScore = s
		}
	}
	var total float64
	for c, s := range scores {
		scores[c] = math.Exp(s - maxScore)
		total += scores[c]
	}
	for c := range scores {
		scores[c] /= total
	}
	return scores
}

// Predict returns the highest-probability class per sample.
func (l *LogisticRegression) Predict(X [][]float64) ([]string, error) {
	if l.weights == nil {
		return nil, ErrNotFitted
	}
	out := make([]string, len(X))
	for i, x := range X {
		probs := l.softmax(x)
		best, bestP := 0, -1.0
		for c, p := range probs {
			if p > bestP {
				best, bestP = c, p
			}
		}
		out[i] = l.classes[best]
	}
	return out, nil
}

// PredictProba returns the softmax probabilities per sample.
func (l *LogisticRegression) PredictProba(X [][]float64) ([]map[string]float64, error) {
	if l.weights == nil {
		return nil, ErrNotFitted
	}
	out := make([]map[string]float64, len(X))
	for i, x := range X {
		probs := l.softmax(x)
		m := make(map[string]float64, len(l.classes))
		for c, p := range probs {
			m[l.classes[c]] = p
		}
		out[i] = m
	}
	return out, nil
}

// Classes returns the fitted class labels, sorted.
func (l *LogisticRegression) Classes() []string {
	return append([]string(nil), l.classes...)
}
