package compare

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/YacoubouKya/climrisk/pkg/evaluate"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
)

// FeatureImportance pairs a feature name with its normalized importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TrainResult is the immutable record of one model's attempt. Failures keep
// Success false, a non-empty Error and zeroed scores; they never abort the
// comparison.
type TrainResult struct {
	ModelName           string          `json:"model_name"`
	Family              mlmodels.Family `json:"family"`
	Success             bool            `json:"success"`
	Error               string          `json:"error,omitempty"`
	MetricName          string          `json:"metric_name"`
	SecondaryMetricName string          `json:"secondary_metric_name"`
	TrainScore          float64         `json:"train_score"`
	TestScore           float64         `json:"test_score"`
	SecondaryMetric     float64         `json:"secondary_metric"`
	CVScores            []float64       `json:"cv_scores,omitempty"`
	CVMean              float64         `json:"cv_mean,omitempty"`
	CVStd               float64         `json:"cv_std,omitempty"`
	TrainingTime        time.Duration   `json:"training_time"`

	PredictedLabels []string             `json:"-"`
	PredictedValues []float64            `json:"-"`
	Probabilities   []map[string]float64 `json:"-"`

	Classification *evaluate.ClassificationMetrics `json:"classification,omitempty"`
	Regression     *evaluate.RegressionMetrics     `json:"regression,omitempty"`

	Importances []FeatureImportance `json:"importances,omitempty"`

	// fitted estimator, retained for the tuning stage
	Classifier mlmodels.Classifier `json:"-"`
	Regressor  mlmodels.Regressor  `json:"-"`
}

// TrainInput carries the already-transformed matrices one model trains on.
type TrainInput struct {
	XTrain, XTest             [][]float64
	YTrainLabels, YTestLabels []string
	YTrainValues, YTestValues []float64
	FeatureNames              []string
	Task                      preprocess.TaskType
	ClassWeights              map[string]float64
	CrossValidate             bool
	CVFolds                   int
	Seed                      int64
}

// TrainAndScore fits one candidate and evaluates it on the held-out split.
// Every failure mode, panics included, lands in the returned result.
func TrainAndScore(cfg mlmodels.Config, in TrainInput) (result TrainResult) {
	result = TrainResult{
		ModelName: cfg.Name,
		Family:    cfg.Family,
	}
	defer func() {
		if r := recover(); r != nil {
			result = failedResult(cfg, fmt.Sprintf("panic during training: %v", r))
		}
	}()

	start := time.Now()
	switch in.Task {
	case preprocess.TaskClassification:
		result = trainClassifier(cfg, in)
	case preprocess.TaskRegression:
		result = trainRegressor(cfg, in)
	default:
		return failedResult(cfg, fmt.Sprintf("unsupported task %q", in.Task))
	}
	result.TrainingTime = time.Since(start)
	return result
}

func failedResult(cfg mlmodels.Config, msg string) TrainResult {
	return TrainResult{ModelName: cfg.Name, Family: cfg.Family, Error: msg}
}

func trainClassifier(cfg mlmodels.Config, in TrainInput) TrainResult {
	result := TrainResult{
		ModelName:           cfg.Name,
		Family:              cfg.Family,
		MetricName:          "accuracy",
		SecondaryMetricName: "weighted_f1",
	}
	if cfg.NewClassifier == nil {
		result.Error = "candidate has no classifier constructor"
		return result
	}
	model := cfg.NewClassifier()
	if len(in.ClassWeights) > 0 {
		if cw, ok := model.(mlmodels.ClassWeighter); ok {
			cw.SetClassWeights(in.ClassWeights)
		}
	}
	if err := model.Fit(in.XTrain, in.YTrainLabels); err != nil {
		result.Error = fmt.Sprintf("fit: %v", err)
		return result
	}

	trainPreds, err := model.Predict(in.XTrain)
	if err != nil {
		result.Error = fmt.Sprintf("predict on train split: %v", err)
		return result
	}
	testPreds, err := model.Predict(in.XTest)
	if err != nil {
		result.Error = fmt.Sprintf("predict on test split: %v", err)
		return result
	}

	trainMetrics, err := evaluate.EvaluateClassification(in.YTrainLabels, trainPreds)
	if err != nil {
		result.Error = fmt.Sprintf("evaluate train split: %v", err)
		return result
	}
	testMetrics, err := evaluate.EvaluateClassification(in.YTestLabels, testPreds)
	if err != nil {
		result.Error = fmt.Sprintf("evaluate test split: %v", err)
		return result
	}

	result.Success = true
	result.TrainScore = trainMetrics.Accuracy
	result.TestScore = testMetrics.Accuracy
	result.SecondaryMetric = testMetrics.WeightedF1
	result.Classification = testMetrics
	result.PredictedLabels = testPreds
	result.Classifier = model

	if prob, ok := model.(mlmodels.ProbabilityEstimator); ok {
		if probs, err := prob.PredictProba(in.XTest); err == nil {
			result.Probabilities = probs
		}
	}
	result.Importances = importancesOf(model, in.FeatureNames)

	if in.CrossValidate {
		scores, err := crossValidateClassifier(cfg, in)
		if err != nil {
			log.Printf("%s: cross-validation skipped: %v", cfg.Name, err)
		} else {
			result.CVScores = scores
			result.CVMean, result.CVStd = meanStd(scores)
		}
	}
	return result
}

func trainRegressor(cfg mlmodels.Config, in TrainInput) TrainResult {
	result := TrainResult{
		ModelName:           cfg.Name,
		Family:              cfg.Family,
		MetricName:          "r2",
		SecondaryMetricName: "rmse",
	}
	if cfg.NewRegressor == nil {
		result.Error = "candidate has no regressor constructor"
		return result
	}
	model := cfg.NewRegressor()
	if err := model.Fit(in.XTrain, in.YTrainValues); err != nil {
		result.Error = fmt.Sprintf("fit: %v", err)
		return result
	}

	trainPreds, err := model.Predict(in.XTrain)
	if err != nil {
		result.Error = fmt.Sprintf("predict on train split: %v", err)
		return result
	}
	testPreds, err := model.Predict(in.XTest)
	if err != nil {
		result.Error = fmt.Sprintf("predict on test split: %v", err)
		return result
	}

	trainMetrics, err := evaluate.EvaluateRegression(in.YTrainValues, trainPreds)
	if err != nil {
		result.Error = fmt.Sprintf("evaluate train split: %v", err)
		return result
	}
	testMetrics, err := evaluate.EvaluateRegression(in.YTestValues, testPreds)
	if err != nil {
		result.Error = fmt.Sprintf("evaluate test split: %v", err)
		return result
	}

	result.Success = true
	result.TrainScore = trainMetrics.R2
	result.TestScore = testMetrics.R2
	result.SecondaryMetric = testMetrics.RMSE
	result.Regression = testMetrics
	result.PredictedValues = testPreds
	result.Regressor = model
	result.Importances = importancesOf(model, in.FeatureNames)

	if in.CrossValidate {
		scores, err := crossValidateRegressor(cfg, in)
		if err != nil {
			log.Printf("%s: cross-validation skipped: %v", cfg.Name, err)
		} else {
			result.CVScores = scores
			result.CVMean, result.CVStd = meanStd(scores)
		}
	}
	return result
}

// importancesOf extracts sorted (feature, importance) pairs from models that
// support them; nil otherwise.
func importancesOf(model any, featureNames []string) []FeatureImportance {
	provider, ok := model.(mlmodels.FeatureImportanceProvider)
	if !ok {
		return nil
	}
	values := provider.FeatureImportances()
	if len(values) != len(featureNames) {
		return nil
	}
	out := make([]FeatureImportance, len(values))
	for i, v := range values {
		out[i] = FeatureImportance{Feature: featureNames[i], Importance: v}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Importance > out[b].Importance
	})
	return out
}
