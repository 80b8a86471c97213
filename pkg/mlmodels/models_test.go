package mlmodels

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two well-separated clusters
func separableData() ([][]float64, []string) {
	X := [][]float64{
		{1.0, 1.2}, {0.8, 1.0}, {1.2, 0.9}, {0.9, 1.1}, {1.1, 1.0},
		{5.0, 5.2}, {4.8, 5.0}, {5.2, 4.9}, {4.9, 5.1}, {5.1, 5.0},
	}
	y := []string{"low", "low", "low", "low", "low", "high", "high", "high", "high", "high"}
	return X, y
}

// y = 2*x0 + 3*x1 + 1
func linearData() ([][]float64, []float64) {
	X := [][]float64{
		{1, 2}, {2, 1}, {3, 3}, {4, 2}, {5, 5},
		{6, 1}, {7, 4}, {8, 2}, {9, 3}, {10, 6},
	}
	y := make([]float64, len(X))
	for i, row := range X {
		y[i] = 2*row[0] + 3*row[1] + 1
	}
	return X, y
}

func TestDecisionTreeClassifier(t *testing.T) {
	t.Run("Learns a separable boundary", func(t *testing.T) {
		X, y := separableData()
		tree := NewDecisionTreeClassifier(5, 42)
		require.NoError(t, tree.Fit(X, y))

		preds, err := tree.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, y, preds)

		preds, err = tree.Predict([][]float64{{0.5, 0.5}, {6, 6}})
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "high"}, preds)
	})

	t.Run("Probabilities sum to one", func(t *testing.T) {
		X, y := separableData()
		tree := NewDecisionTreeClassifier(5, 42)
		require.NoError(t, tree.Fit(X, y))

		probs, err := tree.PredictProba([][]float64{{1, 1}})
		require.NoError(t, err)
		var total float64
		for _, p := range probs[0] {
			total += p
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("Feature importances normalized", func(t *testing.T) {
		X, y := separableData()
		tree := NewDecisionTreeClassifier(5, 42)
		require.NoError(t, tree.Fit(X, y))

		imps := tree.FeatureImportances()
		require.Len(t, imps, 2)
		var total float64
		for _, v := range imps {
			total += v
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("Predict before fit rejected", func(t *testing.T) {
		tree := NewDecisionTreeClassifier(5, 42)
		_, err := tree.Predict([][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrNotFitted)
	})

	t.Run("Mismatched lengths rejected", func(t *testing.T) {
		tree := NewDecisionTreeClassifier(5, 42)
		assert.Error(t, tree.Fit([][]float64{{1}}, []string{"a", "b"}))
	})
}

func TestDecisionTreeRegressor(t *testing.T) {
	X, y := linearData()
	tree := NewDecisionTreeRegressor(0, 42)
	require.NoError(t, tree.Fit(X, y))

	preds, err := tree.Predict(X)
	require.NoError(t, err)
	// deep tree memorizes distinct training samples
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 1e-9)
	}
}

func TestRandomForest(t *testing.T) {
	t.Run("Classifier fits and votes", func(t *testing.T) {
		X, y := separableData()
		forest := NewRandomForestClassifier(20, 5, 42)
		require.NoError(t, forest.Fit(X, y))

		preds, err := forest.Predict([][]float64{{1, 1}, {5, 5}})
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "high"}, preds)

		probs, err := forest.PredictProba([][]float64{{1, 1}})
		require.NoError(t, err)
		assert.Greater(t, probs[0]["low"], probs[0]["high"])
	})

	t.Run("Deterministic for a fixed seed", func(t *testing.T) {
		X, y := separableData()
		a := NewRandomForestClassifier(10, 5, 42)
		b := NewRandomForestClassifier(10, 5, 42)
		require.NoError(t, a.Fit(X, y))
		require.NoError(t, b.Fit(X, y))

		pa, err := a.PredictProba(X)
		require.NoError(t, err)
		pb, err := b.PredictProba(X)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	})

	t.Run("Regressor averages trees", func(t *testing.T) {
		X, y := linearData()
		forest := NewRandomForestRegressor(20, 0, 42)
		require.NoError(t, forest.Fit(X, y))

		preds, err := forest.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 15.0)
		}
	})

	t.Run("Extra trees variant fits", func(t *testing.T) {
		X, y := separableData()
		forest := NewExtraTreesClassifier(20, 5, 42)
		require.NoError(t, forest.Fit(X, y))
		preds, err := forest.Predict([][]float64{{0.5, 0.5}, {6, 6}})
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "high"}, preds)
	})
}

func TestGradientBoosting(t *testing.T) {
	t.Run("Regressor reduces residuals", func(t *testing.T) {
		X, y := linearData()
		gb := NewGradientBoostingRegressor(100, 3, 42)
		require.NoError(t, gb.Fit(X, y))

		preds, err := gb.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 5.0)
		}
	})

	t.Run("Classifier separates clusters", func(t *testing.T) {
		X, y := separableData()
		gb := NewGradientBoostingClassifier(30, 3, 42)
		require.NoError(t, gb.Fit(X, y))

		preds, err := gb.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, y, preds)

		probs, err := gb.PredictProba([][]float64{{1, 1}})
		require.NoError(t, err)
		var total float64
		for _, p := range probs[0] {
			total += p
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})
}

func TestAdaBoost(t *testing.T) {
	t.Run("Classifier separates clusters", func(t *testing.T) {
		X, y := separableData()
		ada := NewAdaBoostClassifier(20, 42)
		require.NoError(t, ada.Fit(X, y))

		preds, err := ada.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, y, preds)
	})

	t.Run("Regressor tracks the target", func(t *testing.T) {
		X, y := linearData()
		ada := NewAdaBoostRegressor(20, 42)
		require.NoError(t, ada.Fit(X, y))

		preds, err := ada.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 15.0)
		}
	})
}

func TestLinearModels(t *testing.T) {
	t.Run("OLS recovers exact coefficients", func(t *testing.T) {
		X, y := linearData()
		lr := NewLinearRegression()
		require.NoError(t, lr.Fit(X, y))

		coefs := lr.Coefficients()
		assert.InDelta(t, 2.0, coefs[0], 1e-6)
		assert.InDelta(t, 3.0, coefs[1], 1e-6)

		preds, err := lr.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 1e-6)
		}
	})

	t.Run("Ridge shrinks toward OLS for small alpha", func(t *testing.T) {
		X, y := linearData()
		ridge := NewRidge(0.001)
		require.NoError(t, ridge.Fit(X, y))

		preds, err := ridge.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 0.1)
		}
	})

	t.Run("Lasso with tiny penalty approximates OLS", func(t *testing.T) {
		X, y := linearData()
		lasso := NewLasso(0.001)
		require.NoError(t, lasso.Fit(X, y))

		preds, err := lasso.Predict(X)
		require.NoError(t, err)
		for i := range y {
			assert.InDelta(t, y[i], preds[i], 0.5)
		}
	})

	t.Run("Lasso with huge penalty zeroes coefficients", func(t *testing.T) {
		X, y := linearData()
		lasso := NewLasso(1e6)
		require.NoError(t, lasso.Fit(X, y))

		preds, err := lasso.Predict(X)
		require.NoError(t, err)
		mean := meanOf(y)
		for _, p := range preds {
			assert.InDelta(t, mean, p, 1e-6)
		}
	})
}

func TestLogisticRegression(t *testing.T) {
	X, y := separableData()
	lr := NewLogisticRegression(500)
	require.NoError(t, lr.Fit(X, y))

	preds, err := lr.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y, preds)

	probs, err := lr.PredictProba([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.Greater(t, probs[0]["low"], 0.5)
}

func TestKNNAndNaiveBayes(t *testing.T) {
	t.Run("KNN classifier", func(t *testing.T) {
		X, y := separableData()
		knn := NewKNNClassifier(3)
		require.NoError(t, knn.Fit(X, y))

		preds, err := knn.Predict([][]float64{{1, 1}, {5, 5}})
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "high"}, preds)
	})

	t.Run("KNN regressor", func(t *testing.T) {
		X := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
		y := []float64{1, 2, 3, 10, 11, 12}
		knn := NewKNNRegressor(3)
		require.NoError(t, knn.Fit(X, y))

		preds, err := knn.Predict([][]float64{{2}, {11}})
		require.NoError(t, err)
		assert.InDelta(t, 2.0, preds[0], 1e-9)
		assert.InDelta(t, 11.0, preds[1], 1e-9)
	})

	t.Run("Gaussian naive Bayes", func(t *testing.T) {
		X, y := separableData()
		nb := NewGaussianNB()
		require.NoError(t, nb.Fit(X, y))

		preds, err := nb.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, y, preds)

		probs, err := nb.PredictProba([][]float64{{5, 5}})
		require.NoError(t, err)
		assert.Greater(t, probs[0]["high"], 0.9)
	})
}

func TestBalancedClassWeights(t *testing.T) {
	y := []string{"a", "a", "a", "b"}
	weights := BalancedClassWeights(y)
	assert.InDelta(t, 4.0/(2*3), weights["a"], 1e-9)
	assert.InDelta(t, 4.0/(2*1), weights["b"], 1e-9)
}

func TestClassWeightsShiftTheBoundary(t *testing.T) {
	// 8 "no" vs 2 "yes" samples; upweighting "yes" must not break fitting
	X := [][]float64{
		{0}, {0.1}, {0.2}, {0.3}, {0.4}, {0.5}, {0.6}, {0.7},
		{5}, {5.1},
	}
	y := []string{"no", "no", "no", "no", "no", "no", "no", "no", "yes", "yes"}

	tree := NewDecisionTreeClassifier(5, 42)
	tree.SetClassWeights(BalancedClassWeights(y))
	require.NoError(t, tree.Fit(X, y))

	preds, err := tree.Predict([][]float64{{5.05}})
	require.NoError(t, err)
	assert.Equal(t, "yes", preds[0])
}

func TestCatalog(t *testing.T) {
	catalog := NewDefaultCatalog()

	t.Run("Classification catalogs", func(t *testing.T) {
		full := catalog.Classification(false)
		require.Len(t, full, 8)
		assert.Equal(t, "Random Forest", full[0].Name)
		assert.Equal(t, FamilyRandomForest, full[0].Family)
		assert.Equal(t, "Naive Bayes", full[7].Name)
		for _, cfg := range full {
			require.NotNil(t, cfg.NewClassifier, cfg.Name)
			assert.Nil(t, cfg.NewRegressor, cfg.Name)
		}

		fast := catalog.Classification(true)
		assert.Len(t, fast, 5)
	})

	t.Run("Regression catalogs", func(t *testing.T) {
		full := catalog.Regression(false)
		require.Len(t, full, 9)
		assert.Equal(t, "Linear Regression", full[2].Name)
		for _, cfg := range full {
			require.NotNil(t, cfg.NewRegressor, cfg.Name)
			assert.Nil(t, cfg.NewClassifier, cfg.Name)
		}

		fast := catalog.Regression(true)
		assert.Len(t, fast, 6)
	})

	t.Run("Constructors produce fresh estimators", func(t *testing.T) {
		cfg := catalog.Classification(false)[0]
		a := cfg.NewClassifier()
		b := cfg.NewClassifier()
		assert.NotSame(t, a, b)
	})

	t.Run("Capability interfaces", func(t *testing.T) {
		X, y := separableData()
		for _, cfg := range catalog.Classification(true) {
			model := cfg.NewClassifier()
			require.NoError(t, model.Fit(X, y), cfg.Name)
			if cfg.Family.IsTreeEnsemble() || cfg.Family == FamilyDecisionTree {
				_, ok := model.(FeatureImportanceProvider)
				assert.True(t, ok, cfg.Name)
			}
			if _, ok := model.(ProbabilityEstimator); ok {
				probs, err := model.(ProbabilityEstimator).PredictProba(X)
				require.NoError(t, err, cfg.Name)
				assert.Len(t, probs, len(X))
			}
		}
	})

	t.Run("Tree ensemble families", func(t *testing.T) {
		assert.True(t, FamilyRandomForest.IsTreeEnsemble())
		assert.True(t, FamilyExtraTrees.IsTreeEnsemble())
		assert.True(t, FamilyGradientBoosting.IsTreeEnsemble())
		assert.False(t, FamilyLogisticRegression.IsTreeEnsemble())
		assert.False(t, FamilyKNN.IsTreeEnsemble())
	})
}

func TestTreeHandlesConstantFeatures(t *testing.T) {
	X := [][]float64{{1, 0}, {1, 0}, {1, 1}, {1, 1}}
	y := []string{"a", "a", "b", "b"}
	tree := NewDecisionTreeClassifier(5, 42)
	require.NoError(t, tree.Fit(X, y))

	preds, err := tree.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y, preds)

	imps := tree.FeatureImportances()
	assert.Equal(t, 0.0, imps[0])
	assert.InDelta(t, 1.0, imps[1], 1e-9)
}

func TestRegressionMeanFallback(t *testing.T) {
	// constant target: every model should predict the constant
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{7, 7, 7, 7}

	gb := NewGradientBoostingRegressor(10, 3, 42)
	require.NoError(t, gb.Fit(X, y))
	preds, err := gb.Predict(X)
	require.NoError(t, err)
	for _, p := range preds {
		assert.False(t, math.IsNaN(p))
		assert.InDelta(t, 7.0, p, 1e-9)
	}
}
