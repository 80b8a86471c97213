package evaluate

import (
	"fmt"
	"math"
	"strings"
)

// RegressionMetrics holds the regression metric surface. R2 is the primary
// comparison score; RMSE the secondary.
type RegressionMetrics struct {
	R2       float64 `json:"r2"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
	MSE      float64 `json:"mse"`
	MAPE     float64 `json:"mape"`
	MaxError float64 `json:"max_error"`
	Samples  int     `json:"samples"`
}

// EvaluateRegression compares predictions against true values.
func EvaluateRegression(yTrue, yPred []float64) (*RegressionMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("length mismatch: %d true vs %d predicted", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no samples to evaluate")
	}

	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot, absSum, maxErr, mapeSum float64
	mapeCount := 0
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		ssRes += diff * diff
		ssTot += (yTrue[i] - mean) * (yTrue[i] - mean)
		abs := math.Abs(diff)
		absSum += abs
		if abs > maxErr {
			maxErr = abs
		}
		if yTrue[i] != 0 {
			mapeSum += abs / math.Abs(yTrue[i])
			mapeCount++
		}
	}

	n := float64(len(yTrue))
	m := &RegressionMetrics{
		MSE:      ssRes / n,
		MAE:      absSum / n,
		MaxError: maxErr,
		Samples:  len(yTrue),
	}
	m.RMSE = math.Sqrt(m.MSE)
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	}
	if mapeCount > 0 {
		m.MAPE = 100 * mapeSum / float64(mapeCount)
	}
	return m, nil
}

// Format renders a short metric report.
func (m *RegressionMetrics) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "R2:   %.4f\n", m.R2)
	fmt.Fprintf(&b, "RMSE: %.4f\n", m.RMSE)
	fmt.Fprintf(&b, "MAE:  %.4f\n", m.MAE)
	fmt.Fprintf(&b, "MAPE: %.2f%%\n", m.MAPE)
	return b.String()
}
