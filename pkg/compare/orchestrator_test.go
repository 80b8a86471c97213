package compare

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
)

// 40 rows, label determined by the first feature
func classificationTable(t *testing.T) *dataset.Table {
	t.Helper()
	n := 40
	x1 := make([]float64, n)
	x2 := make([]float64, n)
	region := make([]string, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		x1[i] = float64(i)
		x2[i] = float64((i * 7) % 11)
		if i%2 == 0 {
			region[i] = "north"
		} else {
			region[i] = "south"
		}
		if i < 20 {
			label[i] = "low"
		} else {
			label[i] = "high"
		}
	}
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("exposure", x1),
		dataset.NewNumericSeries("noise", x2),
		dataset.NewStringSeries("region", region),
		dataset.NewStringSeries("risk", label),
	)
	require.NoError(t, err)
	return tbl
}

// y = 2*a + 3*b + 1, fully determined
func regressionTable(t *testing.T) *dataset.Table {
	t.Helper()
	n := 40
	a := make([]float64, n)
	b := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i)
		b[i] = float64((i * 3) % 13)
		y[i] = 2*a[i] + 3*b[i] + 1
	}
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("a", a),
		dataset.NewNumericSeries("b", b),
		dataset.NewNumericSeries("y", y),
	)
	require.NoError(t, err)
	return tbl
}

func TestRunClassification(t *testing.T) {
	tbl := classificationTable(t)
	run, err := NewOrchestrator().Run(context.Background(), tbl, Options{
		Target:        "risk",
		FastMode:      true,
		CrossValidate: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, preprocess.TaskClassification, run.Task)
	assert.True(t, run.UsedStratify)
	assert.Len(t, run.Results, 5)

	for _, res := range run.Results {
		assert.True(t, res.Success, res.ModelName)
		assert.Empty(t, res.Error, res.ModelName)
		assert.Equal(t, "accuracy", res.MetricName)
		assert.GreaterOrEqual(t, res.TestScore, 0.0)
		assert.LessOrEqual(t, res.TestScore, 1.0)
		assert.Greater(t, res.TrainingTime, time.Duration(0))
		assert.NotEmpty(t, res.CVScores, res.ModelName)
	}

	best := run.Best()
	require.NotNil(t, best)
	assert.GreaterOrEqual(t, best.TestScore, 0.8)

	ranked := run.Ranked()
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Success && ranked[i].Success {
			assert.GreaterOrEqual(t, ranked[i-1].TestScore, ranked[i].TestScore)
		}
	}

	// one-hot region columns made it into the feature space
	assert.Contains(t, run.FeatureNames, "region_north")
}

func TestRunRegression(t *testing.T) {
	tbl := regressionTable(t)
	run, err := NewOrchestrator().Run(context.Background(), tbl, Options{
		Target:   "y",
		FastMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, preprocess.TaskRegression, run.Task)
	assert.False(t, run.UsedStratify)
	assert.Len(t, run.Results, 6)

	var linear *TrainResult
	for i := range run.Results {
		res := &run.Results[i]
		assert.True(t, res.Success, res.ModelName)
		assert.Equal(t, "r2", res.MetricName)
		if res.ModelName == "Linear Regression" {
			linear = res
		}
	}
	require.NotNil(t, linear)
	assert.InDelta(t, 1.0, linear.TestScore, 1e-6)
	assert.InDelta(t, 0.0, linear.SecondaryMetric, 1e-6)

	best := run.Best()
	require.NotNil(t, best)
	assert.GreaterOrEqual(t, best.TestScore, 0.9)
}

func TestRunDisablesCVOnLargeDataset(t *testing.T) {
	// past the row limit, requested cross-validation is forced off
	n := 10001
	a := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i % 97)
		y[i] = 2*a[i] + 1
	}
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("a", a),
		dataset.NewNumericSeries("y", y),
	)
	require.NoError(t, err)

	run, err := NewOrchestrator().Run(context.Background(), tbl, Options{
		Target:         "y",
		CrossValidate:  true,
		SelectedModels: []string{"Linear Regression"},
	})
	require.NoError(t, err)

	assert.True(t, run.CVDisabled)
	found := false
	for _, w := range run.Warnings {
		if strings.Contains(w, "cross-validation disabled") {
			found = true
		}
	}
	assert.True(t, found, "expected a cross-validation warning, got %v", run.Warnings)

	require.Len(t, run.Results, 1)
	assert.True(t, run.Results[0].Success)
	assert.Empty(t, run.Results[0].CVScores)
}

func TestRunValidationCollectsAllErrors(t *testing.T) {
	// an all-missing target and no feature columns, reported together
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("y", []float64{math.NaN(), math.NaN(), math.NaN()}),
	)
	require.NoError(t, err)

	_, err = NewOrchestrator().Run(context.Background(), tbl, Options{Target: "y"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Report.Errors), 2)
}

func TestValidateSmallDatasetWarns(t *testing.T) {
	// a tiny but well-formed table passes validation with a warning
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("x", []float64{1, 2, 3}),
		dataset.NewNumericSeries("y", []float64{1, 0, 1}),
	)
	require.NoError(t, err)

	report := ValidateForModeling(tbl, "y")
	assert.True(t, report.OK())
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "only 3 rows") {
			found = true
		}
	}
	assert.True(t, found, "expected a small-dataset warning, got %v", report.Warnings)
}

func TestRunStratifiedFallback(t *testing.T) {
	// one singleton class forces the unstratified fallback
	n := 13
	x := make([]float64, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		if i < 6 {
			label[i] = "low"
		} else {
			label[i] = "high"
		}
	}
	label[n-1] = "rare"
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("x", x),
		dataset.NewStringSeries("risk", label),
	)
	require.NoError(t, err)

	run, err := NewOrchestrator().Run(context.Background(), tbl, Options{
		Target:         "risk",
		FastMode:       true,
		SelectedModels: []string{"Decision Tree"},
	})
	require.NoError(t, err)

	assert.False(t, run.UsedStratify)
	require.NotEmpty(t, run.Warnings)
	assert.Contains(t, run.Warnings[len(run.Warnings)-1], "falling back")
}

func TestRunModelSelection(t *testing.T) {
	tbl := classificationTable(t)
	orch := NewOrchestrator()

	t.Run("Subset keeps catalog order", func(t *testing.T) {
		run, err := orch.Run(context.Background(), tbl, Options{
			Target:         "risk",
			FastMode:       true,
			SelectedModels: []string{"Decision Tree", "Random Forest"},
		})
		require.NoError(t, err)
		require.Len(t, run.Results, 2)
		assert.Equal(t, "Random Forest", run.Results[0].ModelName)
		assert.Equal(t, "Decision Tree", run.Results[1].ModelName)
	})

	t.Run("Unknown selection rejected", func(t *testing.T) {
		_, err := orch.Run(context.Background(), tbl, Options{
			Target:         "risk",
			SelectedModels: []string{"No Such Model"},
		})
		assert.Error(t, err)
	})
}

func TestRunHandleImbalance(t *testing.T) {
	n := 40
	x := make([]float64, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		x[i] = float64(i)
		if i < 34 {
			label[i] = "common"
		} else {
			label[i] = "rare"
		}
	}
	tbl, err := dataset.NewTable(
		dataset.NewNumericSeries("x", x),
		dataset.NewStringSeries("risk", label),
	)
	require.NoError(t, err)

	run, err := NewOrchestrator().Run(context.Background(), tbl, Options{
		Target:          "risk",
		FastMode:        true,
		HandleImbalance: true,
		SelectedModels:  []string{"Decision Tree"},
	})
	require.NoError(t, err)

	// imbalance handling skips stratification and sets balanced weights
	assert.False(t, run.UsedStratify)
	require.NotEmpty(t, run.ClassWeights)
	assert.Greater(t, run.ClassWeights["rare"], run.ClassWeights["common"])
	assert.True(t, run.Results[0].Success)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOrchestrator().Run(ctx, classificationTable(t), Options{
		Target:   "risk",
		FastMode: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingClassifier struct{ onPredict bool }

func (f *failingClassifier) Fit(X [][]float64, y []string) error {
	if f.onPredict {
		return nil
	}
	return fmt.Errorf("synthetic fit failure")
}

func (f *failingClassifier) Predict(X [][]float64) ([]string, error) {
	return nil, fmt.Errorf("synthetic predict failure")
}

type panickingClassifier struct{}

func (p *panickingClassifier) Fit(X [][]float64, y []string) error { panic("synthetic panic") }
func (p *panickingClassifier) Predict(X [][]float64) ([]string, error) {
	return nil, nil
}

func TestTrainAndScoreIsolatesFailures(t *testing.T) {
	in := TrainInput{
		XTrain:       [][]float64{{1}, {2}, {3}, {4}},
		XTest:        [][]float64{{5}},
		YTrainLabels: []string{"a", "a", "b", "b"},
		YTestLabels:  []string{"b"},
		FeatureNames: []string{"x"},
		Task:         preprocess.TaskClassification,
	}

	t.Run("Fit error becomes a failed result", func(t *testing.T) {
		cfg := mlmodels.Config{Name: "Broken", NewClassifier: func() mlmodels.Classifier {
			return &failingClassifier{}
		}}
		res := TrainAndScore(cfg, in)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "synthetic fit failure")
		assert.Zero(t, res.TestScore)
	})

	t.Run("Predict error becomes a failed result", func(t *testing.T) {
		cfg := mlmodels.Config{Name: "Broken", NewClassifier: func() mlmodels.Classifier {
			return &failingClassifier{onPredict: true}
		}}
		res := TrainAndScore(cfg, in)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "synthetic predict failure")
	})

	t.Run("Panic becomes a failed result", func(t *testing.T) {
		cfg := mlmodels.Config{Name: "Panicky", NewClassifier: func() mlmodels.Classifier {
			return &panickingClassifier{}
		}}
		res := TrainAndScore(cfg, in)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "panic")
	})
}

func TestSplits(t *testing.T) {
	t.Run("Train test split is deterministic", func(t *testing.T) {
		a, err := TrainTestSplit(20, 0.25, 42)
		require.NoError(t, err)
		b, err := TrainTestSplit(20, 0.25, 42)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a.TestRows, 5)
		assert.Len(t, a.TrainRows, 15)
	})

	t.Run("Stratified split keeps class balance", func(t *testing.T) {
		labels := make([]string, 20)
		for i := range labels {
			if i < 12 {
				labels[i] = "a"
			} else {
				labels[i] = "b"
			}
		}
		split, err := StratifiedSplit(labels, 0.25, 42)
		require.NoError(t, err)

		testCounts := map[string]int{}
		for _, i := range split.TestRows {
			testCounts[labels[i]]++
		}
		assert.Equal(t, 3, testCounts["a"])
		assert.Equal(t, 2, testCounts["b"])
	})

	t.Run("Singleton class rejected", func(t *testing.T) {
		_, err := StratifiedSplit([]string{"a", "a", "b"}, 0.25, 42)
		assert.Error(t, err)
	})
}

func TestKFoldIndices(t *testing.T) {
	folds, err := kFoldIndices(23, 5, 42)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	total := 0
	seen := map[int]bool{}
	for _, f := range folds {
		total += len(f)
		for _, i := range f {
			assert.False(t, seen[i])
			seen[i] = true
		}
	}
	assert.Equal(t, 23, total)
	// last fold absorbs the remainder
	assert.Len(t, folds[4], 7)
}

func TestRunSingleModel(t *testing.T) {
	t.Run("Random forest with time-ordered validation", func(t *testing.T) {
		n := 40
		times := make([]time.Time, n)
		a := make([]float64, n)
		y := make([]float64, n)
		for i := 0; i < n; i++ {
			times[i] = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
			a[i] = float64(i)
			y[i] = 2*a[i] + 5
		}
		tbl, err := dataset.NewTable(
			dataset.NewTimeSeries("date", times),
			dataset.NewNumericSeries("a", a),
			dataset.NewNumericSeries("y", y),
		)
		require.NoError(t, err)

		run, err := NewOrchestrator().RunSingleModel(context.Background(), tbl, SingleOptions{
			Options:      Options{Target: "y", DateColumn: "date"},
			Family:       mlmodels.FamilyRandomForest,
			NEstimators:  20,
			MaxDepth:     5,
			TimeSeriesCV: true,
		})
		require.NoError(t, err)

		require.Len(t, run.Results, 1)
		res := run.Results[0]
		assert.True(t, res.Success)
		assert.Equal(t, "Random Forest", res.ModelName)
		assert.Len(t, res.CVScores, 3)
	})

	t.Run("Unsupported family rejected", func(t *testing.T) {
		tbl := classificationTable(t)
		_, err := NewOrchestrator().RunSingleModel(context.Background(), tbl, SingleOptions{
			Options: Options{Target: "risk"},
			Family:  mlmodels.FamilyKNN,
		})
		assert.Error(t, err)
	})
}
