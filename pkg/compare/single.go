package compare

import (
	"context"
	"fmt"
	"log"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
	"github.com/YacoubouKya/climrisk/pkg/evaluate"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
)

// SingleOptions configures a single-model run: one family with explicit
// capacity settings instead of the full catalog sweep.
type SingleOptions struct {
	Options      `yaml:",inline"`
	Family       mlmodels.Family `json:"family" yaml:"family"`
	NEstimators  int             `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth     int             `json:"max_depth" yaml:"max_depth"`
	TimeSeriesCV bool            `json:"time_series_cv" yaml:"time_series_cv"`
	TimeSplits   int             `json:"time_splits" yaml:"time_splits"`
}

// RunSingleModel trains one configured family through the same validation,
// split and preprocessing stages as the full comparison. With TimeSeriesCV
// set and a date column available, it additionally reports expanding-window
// scores in time order.
func (o *Orchestrator) RunSingleModel(ctx context.Context, t *dataset.Table, opts SingleOptions) (*ComparisonRun, error) {
	if opts.NEstimators <= 0 {
		opts.NEstimators = 100
	}
	if opts.TimeSplits <= 0 {
		opts.TimeSplits = 3
	}
	run, err := o.run(ctx, t, opts.Options, func(task preprocess.TaskType, _ Options) ([]mlmodels.Config, error) {
		cfg, err := singleConfig(task, opts)
		if err != nil {
			return nil, err
		}
		return []mlmodels.Config{cfg}, nil
	})
	if err != nil {
		return nil, err
	}

	if opts.TimeSeriesCV && opts.DateColumn != "" && len(run.Results) == 1 && run.Results[0].Success {
		cfg, err := singleConfig(run.Task, opts)
		if err != nil {
			return nil, err
		}
		scores, err := timeSeriesCVScores(t, cfg, run.Task, opts)
		if err != nil {
			log.Printf("run %s: time-ordered cross-validation skipped: %v", run.RunID, err)
			run.Warnings = append(run.Warnings,
				fmt.Sprintf("time-ordered cross-validation skipped: %v", err))
		} else {
			run.Results[0].CVScores = scores
			run.Results[0].CVMean, run.Results[0].CVStd = meanStd(scores)
		}
	}
	return run, nil
}

// singleConfig builds the one-entry candidate for the requested family.
// Only the families the interactive flow exposes are supported.
func singleConfig(task preprocess.TaskType, opts SingleOptions) (mlmodels.Config, error) {
	n, depth, seed := opts.NEstimators, opts.MaxDepth, opts.Seed
	if seed == 0 {
		seed = mlmodels.DefaultSeed
	}
	cfg := mlmodels.Config{Family: opts.Family}
	switch opts.Family {
	case mlmodels.FamilyRandomForest:
		cfg.Name = "Random Forest"
		if task == preprocess.TaskClassification {
			cfg.NewClassifier = func() mlmodels.Classifier {
				return mlmodels.NewRandomForestClassifier(n, depth, seed)
			}
		} else {
			cfg.NewRegressor = func() mlmodels.Regressor {
				return mlmodels.NewRandomForestRegressor(n, depth, seed)
			}
		}
	case mlmodels.FamilyGradientBoosting:
		cfg.Name = "Gradient Boosting"
		if task == preprocess.TaskClassification {
			cfg.NewClassifier = func() mlmodels.Classifier {
				return mlmodels.NewGradientBoostingClassifier(n, depth, seed)
			}
		} else {
			cfg.NewRegressor = func() mlmodels.Regressor {
				return mlmodels.NewGradientBoostingRegressor(n, depth, seed)
			}
		}
	case mlmodels.FamilyLinearRegression, mlmodels.FamilyLogisticRegression:
		if task == preprocess.TaskClassification {
			cfg.Name = "Logistic Regression"
			cfg.Family = mlmodels.FamilyLogisticRegression
			cfg.NewClassifier = func() mlmodels.Classifier {
				return mlmodels.NewLogisticRegression(1000)
			}
		} else {
			cfg.Name = "Linear Regression"
			cfg.Family = mlmodels.FamilyLinearRegression
			cfg.NewRegressor = func() mlmodels.Regressor {
				return mlmodels.NewLinearRegression()
			}
		}
	default:
		return mlmodels.Config{}, fmt.Errorf("family %s is not available in single-model mode", opts.Family)
	}
	return cfg, nil
}

// timeSeriesCVScores evaluates the candidate on expanding windows over the
// date-sorted table: each split trains on everything before the window and
// scores on the window itself. The preprocessing plan refits per split so
// no future rows leak into the statistics.
func timeSeriesCVScores(t *dataset.Table, cfg mlmodels.Config, task preprocess.TaskType, opts SingleOptions) ([]float64, error) {
	sorted, err := t.SortByTime(opts.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("sorting by %q: %w", opts.DateColumn, err)
	}
	n := sorted.NumRows()
	splits := opts.TimeSplits
	if n < (splits+1)*2 {
		return nil, fmt.Errorf("%d rows is too few for %d time splits", n, splits)
	}

	targetCol, ok := sorted.Column(opts.Target)
	if !ok {
		return nil, fmt.Errorf("target column %q not found", opts.Target)
	}
	features := sorted.Drop(opts.Target, opts.DateColumn)
	labels := preprocess.ClassLabels(targetCol)

	scores := make([]float64, 0, splits)
	for s := 1; s <= splits; s++ {
		trainEnd := n * s / (splits + 1)
		testEnd := n * (s + 1) / (splits + 1)
		trainRows := rangeInts(0, trainEnd)
		testRows := rangeInts(trainEnd, testEnd)

		plan, err := preprocess.BuildPlan(features.TakeRows(trainRows), opts.Preprocess)
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", s, err)
		}
		XTrain, err := plan.Transform(features.TakeRows(trainRows))
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", s, err)
		}
		XTest, err := plan.Transform(features.TakeRows(testRows))
		if err != nil {
			return nil, fmt.Errorf("split %d: %w", s, err)
		}

		if task == preprocess.TaskClassification {
			model := cfg.NewClassifier()
			if err := model.Fit(XTrain, pickStrings(labels, trainRows)); err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			preds, err := model.Predict(XTest)
			if err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			m, err := evaluate.EvaluateClassification(pickStrings(labels, testRows), preds)
			if err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			scores = append(scores, m.Accuracy)
		} else {
			model := cfg.NewRegressor()
			if err := model.Fit(XTrain, pickFloats(targetCol.Floats, trainRows)); err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			preds, err := model.Predict(XTest)
			if err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			m, err := evaluate.EvaluateRegression(pickFloats(targetCol.Floats, testRows), preds)
			if err != nil {
				return nil, fmt.Errorf("split %d: %w", s, err)
			}
			scores = append(scores, m.R2)
		}
	}
	return scores, nil
}

func rangeInts(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}
