package preprocess

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

func TestDetectTaskType(t *testing.T) {
	t.Run("String target is classification", func(t *testing.T) {
		target := dataset.NewStringSeries("risk", []string{"low", "high", "low"})
		task, err := DetectTaskType(target)
		require.NoError(t, err)
		assert.Equal(t, TaskClassification, task)
	})

	t.Run("Numeric codes are classification", func(t *testing.T) {
		// 3 distinct values over 100 rows: ratio 0.03
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i % 3)
		}
		task, err := DetectTaskType(dataset.NewNumericSeries("class", values))
		require.NoError(t, err)
		assert.Equal(t, TaskClassification, task)
	})

	t.Run("Continuous target is regression", func(t *testing.T) {
		values := make([]float64, 100)
		for i := range values {
			values[i] = float64(i) * 1.5
		}
		task, err := DetectTaskType(dataset.NewNumericSeries("temp", values))
		require.NoError(t, err)
		assert.Equal(t, TaskRegression, task)
	})

	t.Run("Few distinct but high ratio is regression", func(t *testing.T) {
		// 5 distinct over 10 rows: ratio 0.5 fails the second test
		task, err := DetectTaskType(dataset.NewNumericSeries("v",
			[]float64{1, 2, 3, 4, 5, 1, 2, 3, 4, 5}))
		require.NoError(t, err)
		assert.Equal(t, TaskRegression, task)
	})

	t.Run("Ratio counts missing cells", func(t *testing.T) {
		// 12 distinct over 110 valid rows (ratio 0.109) but 220 total
		// rows (ratio 0.055): the full length decides, so codes with
		// many gaps still read as classification
		values := make([]float64, 220)
		for i := range values {
			if i < 110 {
				values[i] = float64(i%12 + 1)
			} else {
				values[i] = math.NaN()
			}
		}
		task, err := DetectTaskType(dataset.NewNumericSeries("zone", values))
		require.NoError(t, err)
		assert.Equal(t, TaskClassification, task)
	})

	t.Run("Empty target rejected", func(t *testing.T) {
		_, err := DetectTaskType(dataset.NewNumericSeries("empty", nil))
		assert.ErrorIs(t, err, ErrEmptyTarget)
	})

	t.Run("All-missing target rejected", func(t *testing.T) {
		_, err := DetectTaskType(dataset.NewNumericSeries("nan",
			[]float64{math.NaN(), math.NaN()}))
		assert.ErrorIs(t, err, ErrEmptyTarget)
	})
}

func TestBuildPlan(t *testing.T) {
	t.Run("Empty table rejected", func(t *testing.T) {
		tbl, err := dataset.NewTable()
		require.NoError(t, err)
		_, err = BuildPlan(tbl, DefaultOptions())
		assert.ErrorIs(t, err, ErrEmptyFeatures)
	})

	t.Run("Numeric median impute and scale", func(t *testing.T) {
		tbl, err := dataset.NewTable(
			dataset.NewNumericSeries("temp", []float64{1, 2, 3, math.NaN()}),
		)
		require.NoError(t, err)

		plan, err := BuildPlan(tbl, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, plan.Numeric, 1)
		assert.Equal(t, 2.0, plan.Numeric[0].Median)
		assert.True(t, plan.Numeric[0].Scaled)

		X, err := plan.Transform(tbl)
		require.NoError(t, err)
		// imputed column is {1,2,3,2}: mean 2, every row finite
		assert.InDelta(t, 0.0, X[1][0], 1e-9)
		assert.InDelta(t, 0.0, X[3][0], 1e-9)
		assert.InDelta(t, -X[2][0], X[0][0], 1e-9)
	})

	t.Run("Zero-variance column scales by one", func(t *testing.T) {
		tbl, err := dataset.NewTable(
			dataset.NewNumericSeries("flat", []float64{7, 7, 7}),
		)
		require.NoError(t, err)

		plan, err := BuildPlan(tbl, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1.0, plan.Numeric[0].Scale)

		X, err := plan.Transform(tbl)
		require.NoError(t, err)
		for _, row := range X {
			assert.False(t, math.IsNaN(row[0]))
			assert.Equal(t, 0.0, row[0])
		}
	})

	t.Run("Categorical one-hot with missing imputation", func(t *testing.T) {
		tbl, err := dataset.NewTable(
			dataset.NewStringSeries("city", []string{"lyon", "", "nice", "lyon"}),
		)
		require.NoError(t, err)

		plan, err := BuildPlan(tbl, DefaultOptions())
		require.NoError(t, err)
		require.Len(t, plan.Categorical, 1)
		assert.Equal(t, []string{"lyon", "missing", "nice"}, plan.Categorical[0].Categories)
		assert.Equal(t, []string{"city_lyon", "city_missing", "city_nice"}, plan.FeatureNames())

		X, err := plan.Transform(tbl)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0, 0}, X[0])
		assert.Equal(t, []float64{0, 1, 0}, X[1])
	})

	t.Run("Unknown category encodes to all zeros", func(t *testing.T) {
		train, err := dataset.NewTable(
			dataset.NewStringSeries("city", []string{"lyon", "nice"}),
		)
		require.NoError(t, err)
		plan, err := BuildPlan(train, DefaultOptions())
		require.NoError(t, err)

		test, err := dataset.NewTable(
			dataset.NewStringSeries("city", []string{"brest"}),
		)
		require.NoError(t, err)

		X, err := plan.Transform(test)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, X[0])
	})

	t.Run("Category cap keeps the most frequent", func(t *testing.T) {
		values := make([]string, 0, 120)
		for i := 0; i < 60; i++ {
			values = append(values, fmt.Sprintf("rare_%d", i))
		}
		for i := 0; i < 60; i++ {
			values = append(values, "common")
		}
		tbl, err := dataset.NewTable(dataset.NewStringSeries("tag", values))
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.DropHighCardinality = false
		plan, err := BuildPlan(tbl, opts)
		require.NoError(t, err)
		require.Len(t, plan.Categorical, 1)
		assert.Len(t, plan.Categorical[0].Categories, 50)
		assert.Contains(t, plan.Categorical[0].Categories, "common")
	})

	t.Run("High cardinality columns dropped", func(t *testing.T) {
		values := make([]string, 150)
		for i := range values {
			values[i] = fmt.Sprintf("id_%d", i)
		}
		tbl, err := dataset.NewTable(
			dataset.NewStringSeries("station_id", values),
			dataset.NewNumericSeries("temp", make([]float64, 150)),
		)
		require.NoError(t, err)

		plan, err := BuildPlan(tbl, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, plan.Categorical)
		assert.Equal(t, []string{"station_id"}, plan.Dropped)
		assert.Len(t, plan.Numeric, 1)
	})

	t.Run("Frozen statistics applied to unseen rows", func(t *testing.T) {
		train, err := dataset.NewTable(
			dataset.NewNumericSeries("v", []float64{0, 10}),
		)
		require.NoError(t, err)
		opts := DefaultOptions()
		opts.ScaleNumeric = false
		plan, err := BuildPlan(train, opts)
		require.NoError(t, err)

		test, err := dataset.NewTable(
			dataset.NewNumericSeries("v", []float64{math.NaN()}),
		)
		require.NoError(t, err)
		X, err := plan.Transform(test)
		require.NoError(t, err)
		// train median, not anything derived from the test rows
		assert.Equal(t, plan.Numeric[0].Median, X[0][0])
	})
}
