package mlmodels

// Family identifies a model family. Dispatch throughout the pipeline keys on
// this tag, never on display names.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyRandomForest
	FamilyGradientBoosting
	FamilyLogisticRegression
	FamilyDecisionTree
	FamilyExtraTrees
	FamilyAdaBoost
	FamilyKNN
	FamilyNaiveBayes
	FamilyLinearRegression
	FamilyRidge
	FamilyLasso
)

// String returns the family's display name.
func (f Family) String() string {
	switch f {
	case FamilyRandomForest:
		return "Random Forest"
	case FamilyGradientBoosting:
		return "Gradient Boosting"
	case FamilyLogisticRegression:
		return "Logistic Regression"
	case FamilyDecisionTree:
		return "Decision Tree"
	case FamilyExtraTrees:
		return "Extra Trees"
	case FamilyAdaBoost:
		return "AdaBoost"
	case FamilyKNN:
		return "K-Nearest Neighbors"
	case FamilyNaiveBayes:
		return "Naive Bayes"
	case FamilyLinearRegression:
		return "Linear Regression"
	case FamilyRidge:
		return "Ridge"
	case FamilyLasso:
		return "Lasso"
	default:
		return "Unknown"
	}
}

// IsTreeEnsemble reports whether the family is a tree ensemble, the only
// families the tuning stage currently supports.
func (f Family) IsTreeEnsemble() bool {
	switch f {
	case FamilyRandomForest, FamilyExtraTrees, FamilyGradientBoosting:
		return true
	}
	return false
}

// Config is an immutable model template: a family tag, a display name and
// constructors producing a fresh estimator per fit. Exactly one constructor
// is set, matching the catalog's task.
type Config struct {
	Name          string
	Family        Family
	NewClassifier func() Classifier
	NewRegressor  func() Regressor
}
