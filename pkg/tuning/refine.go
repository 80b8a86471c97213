// Package tuning refines the winning model of a comparison run: the best
// model's live hyperparameters become the defaults, the caller overrides
// what it wants, and the same family retrains once on the same split.
package tuning

import (
	"errors"
	"fmt"
	"log"

	"github.com/YacoubouKya/climrisk/pkg/compare"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
)

// ErrUnsupportedFamily is returned for families the refinement stage does
// not cover yet. Only tree ensembles are tunable today.
var ErrUnsupportedFamily = errors.New("model family not yet supported for tuning")

// Params are the tunable knobs of the tree-ensemble families.
type Params struct {
	NEstimators     int `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split" yaml:"min_samples_split"`
}

// comparable-score band: deltas inside it count as neither better nor worse
const improvementThreshold = 0.01

// Verdict classifies the refinement outcome.
type Verdict string

const (
	VerdictImproved   Verdict = "improved"
	VerdictComparable Verdict = "comparable"
	VerdictWorse      Verdict = "worse"
)

// RefinementResult reports one refinement attempt against its baseline.
type RefinementResult struct {
	ModelName     string              `json:"model_name"`
	Family        mlmodels.Family     `json:"family"`
	Params        Params              `json:"params"`
	MetricName    string              `json:"metric_name"`
	BaselineScore float64             `json:"baseline_score"`
	RefinedScore  float64             `json:"refined_score"`
	Delta         float64             `json:"delta"`
	Verdict       Verdict             `json:"verdict"`
	Result        compare.TrainResult `json:"result"`
}

// DefaultsFrom extracts refinement defaults from the best result's live
// hyperparameters. Non-tree-ensemble families are rejected with
// ErrUnsupportedFamily.
func DefaultsFrom(res *compare.TrainResult) (Params, error) {
	if res == nil || !res.Success {
		return Params{}, fmt.Errorf("no successful result to tune")
	}
	if !res.Family.IsTreeEnsemble() {
		return Params{}, fmt.Errorf("%s: %w", res.Family, ErrUnsupportedFamily)
	}
	defaults := Params{NEstimators: 100, MaxDepth: 10, MinSamplesSplit: 2}

	var model any
	if res.Classifier != nil {
		model = res.Classifier
	} else {
		model = res.Regressor
	}
	if reporter, ok := model.(mlmodels.HyperparameterReporter); ok {
		hp := reporter.Hyperparameters()
		if v, ok := hp["n_estimators"]; ok && v > 0 {
			defaults.NEstimators = int(v)
		}
		if v, ok := hp["max_depth"]; ok && v > 0 {
			defaults.MaxDepth = int(v)
		}
		if v, ok := hp["min_samples_split"]; ok && v > 1 {
			defaults.MinSamplesSplit = int(v)
		}
	}
	return defaults, nil
}

// Refine retrains the family of the given baseline on the run's retained
// split with the requested parameters, and reports the score delta.
func Refine(run *compare.ComparisonRun, baseline *compare.TrainResult, params Params) (*RefinementResult, error) {
	if run == nil || baseline == nil {
		return nil, fmt.Errorf("refinement needs a run and a baseline result")
	}
	if !baseline.Family.IsTreeEnsemble() {
		return nil, fmt.Errorf("%s: %w", baseline.Family, ErrUnsupportedFamily)
	}
	if params.NEstimators <= 0 {
		params.NEstimators = 100
	}
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}

	cfg, err := tunedConfig(baseline.Family, run.Task, params, run.Seed)
	if err != nil {
		return nil, err
	}
	log.Printf("run %s: refining %s with n_estimators=%d max_depth=%d min_samples_split=%d",
		run.RunID, cfg.Name, params.NEstimators, params.MaxDepth, params.MinSamplesSplit)

	result := compare.TrainAndScore(cfg, compare.TrainInput{
		XTrain:       run.XTrain,
		XTest:        run.XTest,
		YTrainLabels: run.YTrainLabels,
		YTestLabels:  run.YTestLabels,
		YTrainValues: run.YTrainValues,
		YTestValues:  run.YTestValues,
		FeatureNames: run.FeatureNames,
		Task:         run.Task,
		ClassWeights: run.ClassWeights,
		Seed:         run.Seed,
	})
	if !result.Success {
		return nil, fmt.Errorf("refined training failed: %s", result.Error)
	}

	delta := result.TestScore - baseline.TestScore
	verdict := VerdictComparable
	switch {
	case delta > improvementThreshold:
		verdict = VerdictImproved
	case delta < -improvementThreshold:
		verdict = VerdictWorse
	}
	return &RefinementResult{
		ModelName:     cfg.Name,
		Family:        baseline.Family,
		Params:        params,
		MetricName:    baseline.MetricName,
		BaselineScore: baseline.TestScore,
		RefinedScore:  result.TestScore,
		Delta:         delta,
		Verdict:       verdict,
		Result:        result,
	}, nil
}

func tunedConfig(family mlmodels.Family, task preprocess.TaskType, p Params, seed int64) (mlmodels.Config, error) {
	if seed == 0 {
		seed = mlmodels.DefaultSeed
	}
	cfg := mlmodels.Config{Family: family}
	classification := task == preprocess.TaskClassification
	switch family {
	case mlmodels.FamilyRandomForest:
		cfg.Name = "Random Forest"
		if classification {
			cfg.NewClassifier = func() mlmodels.Classifier {
				m := mlmodels.NewRandomForestClassifier(p.NEstimators, p.MaxDepth, seed)
				m.MinSamplesSplit = p.MinSamplesSplit
				return m
			}
		} else {
			cfg.NewRegressor = func() mlmodels.Regressor {
				m := mlmodels.NewRandomForestRegressor(p.NEstimators, p.MaxDepth, seed)
				m.MinSamplesSplit = p.MinSamplesSplit
				return m
			}
		}
	case mlmodels.FamilyExtraTrees:
		cfg.Name = "Extra Trees"
		if classification {
			cfg.NewClassifier = func() mlmodels.Classifier {
				m := mlmodels.NewExtraTreesClassifier(p.NEstimators, p.MaxDepth, seed)
				m.MinSamplesSplit = p.MinSamplesSplit
				return m
			}
		} else {
			cfg.NewRegressor = func() mlmodels.Regressor {
				m := mlmodels.NewExtraTreesRegressor(p.NEstimators, p.MaxDepth, seed)
				m.MinSamplesSplit = p.MinSamplesSplit
				return m
			}
		}
	case mlmodels.FamilyGradientBoosting:
		cfg.Name = "Gradient Boosting"
		if classification {
			cfg.NewClassifier = func() mlmodels.Classifier {
				return mlmodels.NewGradientBoostingClassifier(p.NEstimators, p.MaxDepth, seed)
			}
		} else {
			cfg.NewRegressor = func() mlmodels.Regressor {
				return mlmodels.NewGradientBoostingRegressor(p.NEstimators, p.MaxDepth, seed)
			}
		}
	default:
		return mlmodels.Config{}, fmt.Errorf("%s: %w", family, ErrUnsupportedFamily)
	}
	return cfg, nil
}
