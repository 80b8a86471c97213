package tuning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YacoubouKya/climrisk/pkg/compare"
	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

func comparisonRun(t *testing.T, selected []string) *compare.ComparisonRun {
	t.Helper()
	n := 40
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i)
		x2[i] = float64((i * 7) % 11)
		if i < 20 {
			label[i] = "low"
		} else {
			label[i] = "high"
		}
	}
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("exposure", x1),
		dataset.NewNumericSeries("noise", x2),
		dataset.NewStringSeries("risk", label),
	)
	require.NoError(t, err)

	run, err := compare.NewOrchestrator().Run(context.Background(), tbl, compare.Options{
		Target:         "risk",
		FastMode:       true,
		SelectedModels: selected,
	})
	require.NoError(t, err)
	return run
}

func TestDefaultsFrom(t *testing.T) {
	t.Run("Tree ensemble exposes live hyperparameters", func(t *testing.T) {
		run := comparisonRun(t, []string{"Random Forest"})
		best := run.Best()
		require.NotNil(t, best)

		defaults, err := DefaultsFrom(best)
		require.NoError(t, err)
		// fast-mode forest settings come straight from the fitted model
		assert.Equal(t, 50, defaults.NEstimators)
		assert.Equal(t, 10, defaults.MaxDepth)
		assert.Equal(t, 2, defaults.MinSamplesSplit)
	})

	t.Run("Non-ensemble family rejected", func(t *testing.T) {
		run := comparisonRun(t, []string{"Logistic Regression"})
		best := run.Best()
		require.NotNil(t, best)

		_, err := DefaultsFrom(best)
		assert.ErrorIs(t, err, ErrUnsupportedFamily)
	})

	t.Run("Failed result rejected", func(t *testing.T) {
		_, err := DefaultsFrom(&compare.TrainResult{Success: false})
		assert.Error(t, err)
	})
}

func TestRefine(t *testing.T) {
	run := comparisonRun(t, []string{"Random Forest"})
	best := run.Best()
	require.NotNil(t, best)

	t.Run("Retrains and reports the delta", func(t *testing.T) {
		res, err := Refine(run, best, Params{NEstimators: 30, MaxDepth: 5, MinSamplesSplit: 2})
		require.NoError(t, err)

		assert.Equal(t, "Random Forest", res.ModelName)
		assert.Equal(t, best.TestScore, res.BaselineScore)
		assert.InDelta(t, res.RefinedScore-res.BaselineScore, res.Delta, 1e-12)
		assert.True(t, res.Result.Success)
		assert.Contains(t, []Verdict{VerdictImproved, VerdictComparable, VerdictWorse}, res.Verdict)
	})

	t.Run("Identical parameters are comparable", func(t *testing.T) {
		defaults, err := DefaultsFrom(best)
		require.NoError(t, err)

		res, err := Refine(run, best, defaults)
		require.NoError(t, err)
		// same family, same seed, same knobs: same score
		assert.InDelta(t, 0.0, res.Delta, 1e-9)
		assert.Equal(t, VerdictComparable, res.Verdict)
	})

	t.Run("Unsupported family rejected", func(t *testing.T) {
		logregRun := comparisonRun(t, []string{"Logistic Regression"})
		_, err := Refine(logregRun, logregRun.Best(), Params{NEstimators: 10})
		assert.ErrorIs(t, err, ErrUnsupportedFamily)
	})
}
