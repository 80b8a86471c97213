package compare

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YacoubouKya/climrisk/pkg/evaluate"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
)

// cross-validation guardrails: past either limit CV is forced off
const (
	cvMaxRows  = 10000
	cvMaxBytes = 5 << 20
)

// kFoldIndices shuffles row indices and cuts them into k folds; the last
// fold absorbs the remainder.
func kFoldIndices(n, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("need at least %d rows for %d folds, got %d", k, k, n)
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	foldSize := n / k
	folds := make([][]int, k)
	for f := 0; f < k; f++ {
		start := f * foldSize
		end := start + foldSize
		if f == k-1 {
			end = n
		}
		folds[f] = indices[start:end]
	}
	return folds, nil
}

func crossValidateClassifier(cfg mlmodels.Config, in TrainInput) ([]float64, error) {
	k := in.CVFolds
	if k < 2 {
		k = 5
	}
	folds, err := kFoldIndices(len(in.XTrain), k, in.Seed)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, k)
	for f, holdout := range folds {
		inFold := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inFold[i] = true
		}
		var fX [][]float64
		var fy []string
		for i := range in.XTrain {
			if !inFold[i] {
				fX = append(fX, in.XTrain[i])
				fy = append(fy, in.YTrainLabels[i])
			}
		}
		model := cfg.NewClassifier()
		if len(in.ClassWeights) > 0 {
			if cw, ok := model.(mlmodels.ClassWeighter); ok {
				cw.SetClassWeights(in.ClassWeights)
			}
		}
		if err := model.Fit(fX, fy); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		var hX [][]float64
		var hy []string
		for _, i := range holdout {
			hX = append(hX, in.XTrain[i])
			hy = append(hy, in.YTrainLabels[i])
		}
		preds, err := model.Predict(hX)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		m, err := evaluate.EvaluateClassification(hy, preds)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, m.Accuracy)
	}
	return scores, nil
}

func crossValidateRegressor(cfg mlmodels.Config, in TrainInput) ([]float64, error) {
	k := in.CVFolds
	if k < 2 {
		k = 5
	}
	folds, err := kFoldIndices(len(in.XTrain), k, in.Seed)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, k)
	for f, holdout := range folds {
		inFold := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inFold[i] = true
		}
		var fX [][]float64
		var fy []float64
		for i := range in.XTrain {
			if !inFold[i] {
				fX = append(fX, in.XTrain[i])
				fy = append(fy, in.YTrainValues[i])
			}
		}
		model := cfg.NewRegressor()
		if err := model.Fit(fX, fy); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		var hX [][]float64
		var hy []float64
		for _, i := range holdout {
			hX = append(hX, in.XTrain[i])
			hy = append(hy, in.YTrainValues[i])
		}
		preds, err := model.Predict(hX)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		m, err := evaluate.EvaluateRegression(hy, preds)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, m.R2)
	}
	return scores, nil
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
