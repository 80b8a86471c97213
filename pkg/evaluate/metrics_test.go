package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateClassification(t *testing.T) {
	t.Run("Perfect predictions", func(t *testing.T) {
		yTrue := []string{"a", "b", "a", "b"}
		m, err := EvaluateClassification(yTrue, yTrue)
		require.NoError(t, err)

		assert.Equal(t, 1.0, m.Accuracy)
		assert.Equal(t, 1.0, m.WeightedF1)
		assert.Equal(t, 1.0, m.MacroF1)
		assert.Equal(t, 2, m.ConfusionMatrix["a"]["a"])
		assert.Equal(t, 0, m.ConfusionMatrix["a"]["b"])
	})

	t.Run("Mixed predictions", func(t *testing.T) {
		yTrue := []string{"a", "a", "b", "b"}
		yPred := []string{"a", "b", "b", "b"}
		m, err := EvaluateClassification(yTrue, yPred)
		require.NoError(t, err)

		assert.Equal(t, 0.75, m.Accuracy)
		// class a: precision 1, recall 0.5, f1 2/3; class b: precision 2/3, recall 1, f1 0.8
		assert.InDelta(t, 2.0/3.0, m.F1Score["a"], 1e-9)
		assert.InDelta(t, 0.8, m.F1Score["b"], 1e-9)
		assert.InDelta(t, (2.0/3.0*2+0.8*2)/4, m.WeightedF1, 1e-9)
		assert.Equal(t, 2, m.Support["a"])
	})

	t.Run("Length mismatch rejected", func(t *testing.T) {
		_, err := EvaluateClassification([]string{"a"}, []string{"a", "b"})
		assert.Error(t, err)
	})

	t.Run("Empty input rejected", func(t *testing.T) {
		_, err := EvaluateClassification(nil, nil)
		assert.Error(t, err)
	})
}

func TestEvaluateRegression(t *testing.T) {
	t.Run("Perfect predictions", func(t *testing.T) {
		y := []float64{1, 2, 3, 4}
		m, err := EvaluateRegression(y, y)
		require.NoError(t, err)

		assert.Equal(t, 1.0, m.R2)
		assert.Equal(t, 0.0, m.RMSE)
		assert.Equal(t, 0.0, m.MAE)
	})

	t.Run("Known errors", func(t *testing.T) {
		yTrue := []float64{1, 2, 3, 4}
		yPred := []float64{2, 2, 3, 4}
		m, err := EvaluateRegression(yTrue, yPred)
		require.NoError(t, err)

		assert.InDelta(t, 0.25, m.MSE, 1e-9)
		assert.InDelta(t, 0.5, m.RMSE, 1e-9)
		assert.InDelta(t, 0.25, m.MAE, 1e-9)
		assert.Equal(t, 1.0, m.MaxError)
		assert.Less(t, m.R2, 1.0)
	})

	t.Run("Constant target gives zero R2", func(t *testing.T) {
		m, err := EvaluateRegression([]float64{5, 5, 5}, []float64{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, 0.0, m.R2)
	})
}
