package mlmodels

// DefaultSeed is the fixed seed shared by every seeded estimator, so a
// comparison run is reproducible end to end.
const DefaultSeed = 42

// Catalog produces the fixed candidate lists the comparison stage draws
// from. Order matters: ties on the comparison score resolve to the earlier
// entry.
type Catalog struct {
	seed int64
}

// NewCatalog returns a catalog seeding every estimator from the given seed.
func NewCatalog(seed int64) *Catalog {
	return &Catalog{seed: seed}
}

// NewDefaultCatalog returns a catalog with the standard fixed seed.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(DefaultSeed)
}

// Classification returns the classification candidates. Fast mode trades
// capacity for speed: fewer trees, capped depth, fewer solver iterations.
func (c *Catalog) Classification(fastMode bool) []Config {
	seed := c.seed
	if fastMode {
		return []Config{
			{Name: "Random Forest", Family: FamilyRandomForest, NewClassifier: func() Classifier {
				return NewRandomForestClassifier(50, 10, seed)
			}},
			{Name: "Gradient Boosting", Family: FamilyGradientBoosting, NewClassifier: func() Classifier {
				return NewGradientBoostingClassifier(50, 3, seed)
			}},
			{Name: "Logistic Regression", Family: FamilyLogisticRegression, NewClassifier: func() Classifier {
				return NewLogisticRegression(500)
			}},
			{Name: "Decision Tree", Family: FamilyDecisionTree, NewClassifier: func() Classifier {
				return NewDecisionTreeClassifier(10, seed)
			}},
			{Name: "Extra Trees", Family: FamilyExtraTrees, NewClassifier: func() Classifier {
				return NewExtraTreesClassifier(50, 10, seed)
			}},
		}
	}
	return []Config{
		{Name: "Random Forest", Family: FamilyRandomForest, NewClassifier: func() Classifier {
			return NewRandomForestClassifier(100, 0, seed)
		}},
		{Name: "Gradient Boosting", Family: FamilyGradientBoosting, NewClassifier: func() Classifier {
			return NewGradientBoostingClassifier(100, 3, seed)
		}},
		{Name: "Logistic Regression", Family: FamilyLogisticRegression, NewClassifier: func() Classifier {
			return NewLogisticRegression(1000)
		}},
		{Name: "Decision Tree", Family: FamilyDecisionTree, NewClassifier: func() Classifier {
			return NewDecisionTreeClassifier(0, seed)
		}},
		{Name: "Extra Trees", Family: FamilyExtraTrees, NewClassifier: func() Classifier {
			return NewExtraTreesClassifier(100, 0, seed)
		}},
		{Name: "AdaBoost", Family: FamilyAdaBoost, NewClassifier: func() Classifier {
			return NewAdaBoostClassifier(50, seed)
		}},
		{Name: "K-Nearest Neighbors", Family: FamilyKNN, NewClassifier: func() Classifier {
			return NewKNNClassifier(5)
		}},
		{Name: "Naive Bayes", Family: FamilyNaiveBayes, NewClassifier: func() Classifier {
			return NewGaussianNB()
		}},
	}
}

// Regression returns the regression candidates.
func (c *Catalog) Regression(fastMode bool) []Config {
	seed := c.seed
	if fastMode {
		return []Config{
			{Name: "Random Forest", Family: FamilyRandomForest, NewRegressor: func() Regressor {
				return NewRandomForestRegressor(50, 10, seed)
			}},
			{Name: "Gradient Boosting", Family: FamilyGradientBoosting, NewRegressor: func() Regressor {
				return NewGradientBoostingRegressor(50, 3, seed)
			}},
			{Name: "Linear Regression", Family: FamilyLinearRegression, NewRegressor: func() Regressor {
				return NewLinearRegression()
			}},
			{Name: "Ridge", Family: FamilyRidge, NewRegressor: func() Regressor {
				return NewRidge(1.0)
			}},
			{Name: "Decision Tree", Family: FamilyDecisionTree, NewRegressor: func() Regressor {
				return NewDecisionTreeRegressor(10, seed)
			}},
			{Name: "Extra Trees", Family: FamilyExtraTrees, NewRegressor: func() Regressor {
				return NewExtraTreesRegressor(50, 10, seed)
			}},
		}
	}
	return []Config{
		{Name: "Random Forest", Family: FamilyRandomForest, NewRegressor: func() Regressor {
			return NewRandomForestRegressor(100, 0, seed)
		}},
		{Name: "Gradient Boosting", Family: FamilyGradientBoosting, NewRegressor: func() Regressor {
			return NewGradientBoostingRegressor(100, 3, seed)
		}},
		{Name: "Linear Regression", Family: FamilyLinearRegression, NewRegressor: func() Regressor {
			return NewLinearRegression()
		}},
		{Name: "Ridge", Family: FamilyRidge, NewRegressor: func() Regressor {
			return NewRidge(1.0)
		}},
		{Name: "Lasso", Family: FamilyLasso, NewRegressor: func() Regressor {
			return NewLasso(1.0)
		}},
		{Name: "Decision Tree", Family: FamilyDecisionTree, NewRegressor: func() Regressor {
			return NewDecisionTreeRegressor(0, seed)
		}},
		{Name: "Extra Trees", Family: FamilyExtraTrees, NewRegressor: func() Regressor {
			return NewExtraTreesRegressor(100, 0, seed)
		}},
		{Name: "AdaBoost", Family: FamilyAdaBoost, NewRegressor: func() Regressor {
			return NewAdaBoostRegressor(50, seed)
		}},
		{Name: "K-Nearest Neighbors", Family: FamilyKNN, NewRegressor: func() Regressor {
			return NewKNNRegressor(5)
		}},
	}
}
