package compare

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
	"github.com/YacoubouKya/climrisk/pkg/mlmodels"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
)

// Options configures one comparison run.
type Options struct {
	Target          string              `json:"target" yaml:"target"`
	DateColumn      string              `json:"date_column,omitempty" yaml:"date_column,omitempty"`
	Task            preprocess.TaskType `json:"task" yaml:"task"`
	TestSize        float64             `json:"test_size" yaml:"test_size"`
	Seed            int64               `json:"seed" yaml:"seed"`
	FastMode        bool                `json:"fast_mode" yaml:"fast_mode"`
	HandleImbalance bool                `json:"handle_imbalance" yaml:"handle_imbalance"`
	CrossValidate   bool                `json:"cross_validate" yaml:"cross_validate"`
	CVFolds         int                 `json:"cv_folds" yaml:"cv_folds"`
	SelectedModels  []string            `json:"selected_models,omitempty" yaml:"selected_models,omitempty"`
	Preprocess      preprocess.Options  `json:"preprocess" yaml:"preprocess"`
}

// withDefaults fills the zero values.
func (o Options) withDefaults() Options {
	if o.Task == "" {
		o.Task = preprocess.TaskAuto
	}
	if o.TestSize <= 0 || o.TestSize >= 1 {
		o.TestSize = 0.2
	}
	if o.Seed == 0 {
		o.Seed = mlmodels.DefaultSeed
	}
	if o.CVFolds < 2 {
		o.CVFolds = 5
	}
	if o.Preprocess == (preprocess.Options{}) {
		o.Preprocess = preprocess.DefaultOptions()
	}
	return o
}

// RunContext carries the per-run identity and accumulated warnings. Every
// run owns its own context; nothing is shared between runs.
type RunContext struct {
	RunID    string   `json:"run_id"`
	Seed     int64    `json:"seed"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewRunContext mints a run identity.
func NewRunContext(seed int64) *RunContext {
	return &RunContext{RunID: uuid.NewString(), Seed: seed}
}

// Warnf records a soft warning on the run.
func (rc *RunContext) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	rc.Warnings = append(rc.Warnings, msg)
	log.Printf("run %s: %s", rc.RunID, msg)
}

// ComparisonRun is the immutable outcome of one orchestrated comparison.
type ComparisonRun struct {
	RunID        string              `json:"run_id"`
	Seed         int64               `json:"seed"`
	Task         preprocess.TaskType `json:"task"`
	UsedStratify bool                `json:"used_stratify"`
	CVDisabled   bool                `json:"cv_disabled"`
	Warnings     []string            `json:"warnings,omitempty"`
	Results      []TrainResult       `json:"results"`
	FeatureNames []string            `json:"feature_names"`
	TrainRows    int                 `json:"train_rows"`
	TestRows     int                 `json:"test_rows"`
	Plan         *preprocess.Plan    `json:"plan"`

	// transformed splits, retained so the tuning stage can retrain
	XTrain, XTest             [][]float64 `json:"-"`
	YTrainLabels, YTestLabels []string    `json:"-"`
	YTrainValues, YTestValues []float64   `json:"-"`
	ClassWeights              map[string]float64
}

// Ranked returns the results ordered by test score descending, successes
// first. The sort is stable, so ties keep catalog order.
func (r *ComparisonRun) Ranked() []TrainResult {
	out := append([]TrainResult(nil), r.Results...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Success != out[b].Success {
			return out[a].Success
		}
		return out[a].TestScore > out[b].TestScore
	})
	return out
}

// Best returns the successful result with the highest test score, first-seen
// on ties; nil when every candidate failed.
func (r *ComparisonRun) Best() *TrainResult {
	var best *TrainResult
	for i := range r.Results {
		res := &r.Results[i]
		if !res.Success {
			continue
		}
		if best == nil || res.TestScore > best.TestScore {
			best = res
		}
	}
	return best
}

// Orchestrator wires the comparison stages together around a catalog.
type Orchestrator struct {
	Catalog *mlmodels.Catalog
}

// NewOrchestrator returns an orchestrator over the default catalog.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{Catalog: mlmodels.NewDefaultCatalog()}
}

// Run executes the full comparison: validate, detect, split, preprocess,
// train every candidate sequentially, rank. Validation violations abort
// with a ValidationError carrying all of them; per-model failures do not.
func (o *Orchestrator) Run(ctx context.Context, t *dataset.Table, opts Options) (*ComparisonRun, error) {
	return o.run(ctx, t, opts, func(task preprocess.TaskType, opts Options) ([]mlmodels.Config, error) {
		return o.candidates(task, opts)
	})
}

func (o *Orchestrator) run(ctx context.Context, t *dataset.Table, opts Options, pick func(preprocess.TaskType, Options) ([]mlmodels.Config, error)) (*ComparisonRun, error) {
	opts = opts.withDefaults()
	rc := NewRunContext(opts.Seed)
	log.Printf("run %s: comparing models for target %q", rc.RunID, opts.Target)

	report := ValidateForModeling(t, opts.Target)
	rc.Warnings = append(rc.Warnings, report.Warnings...)
	if !report.OK() {
		return nil, &ValidationError{Report: report}
	}

	targetCol, _ := t.Column(opts.Target)
	task := opts.Task
	if task == preprocess.TaskAuto || task == "" {
		detected, err := preprocess.DetectTaskType(targetCol)
		if err != nil {
			return nil, fmt.Errorf("detecting task type: %w", err)
		}
		task = detected
		log.Printf("run %s: detected task %s", rc.RunID, task)
	}
	if task == preprocess.TaskRegression && targetCol.DType != dataset.DTypeNumeric {
		return nil, fmt.Errorf("target %q is %s, regression needs a numeric target", opts.Target, targetCol.DType)
	}

	run := &ComparisonRun{RunID: rc.RunID, Seed: opts.Seed, Task: task}

	// split
	var split Split
	var err error
	usedStratify := false
	if task == preprocess.TaskClassification && !opts.HandleImbalance {
		labels := preprocess.ClassLabels(targetCol)
		split, err = StratifiedSplit(labels, opts.TestSize, opts.Seed)
		if err != nil {
			rc.Warnf("stratified split unavailable (%v), falling back to random split", err)
		} else {
			usedStratify = true
		}
	}
	if !usedStratify {
		split, err = TrainTestSplit(t.NumRows(), opts.TestSize, opts.Seed)
		if err != nil {
			return nil, fmt.Errorf("splitting dataset: %w", err)
		}
	}
	run.UsedStratify = usedStratify
	run.TrainRows = len(split.TrainRows)
	run.TestRows = len(split.TestRows)

	// preprocessing fitted on the train split only
	features := t.Drop(opts.Target)
	if opts.DateColumn != "" {
		features = features.Drop(opts.DateColumn)
	}
	trainFeatures := features.TakeRows(split.TrainRows)
	plan, err := preprocess.BuildPlan(trainFeatures, opts.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("building preprocessing plan: %w", err)
	}
	run.Plan = plan
	run.FeatureNames = plan.FeatureNames()

	XTrain, err := plan.Transform(trainFeatures)
	if err != nil {
		return nil, fmt.Errorf("transforming train split: %w", err)
	}
	XTest, err := plan.Transform(features.TakeRows(split.TestRows))
	if err != nil {
		return nil, fmt.Errorf("transforming test split: %w", err)
	}
	run.XTrain, run.XTest = XTrain, XTest

	if task == preprocess.TaskClassification {
		labels := preprocess.ClassLabels(targetCol)
		run.YTrainLabels = pickStrings(labels, split.TrainRows)
		run.YTestLabels = pickStrings(labels, split.TestRows)
		if opts.HandleImbalance {
			run.ClassWeights = mlmodels.BalancedClassWeights(run.YTrainLabels)
			log.Printf("run %s: balanced class weights over %d classes", rc.RunID, len(run.ClassWeights))
		}
	} else {
		run.YTrainValues = pickFloats(targetCol.Floats, split.TrainRows)
		run.YTestValues = pickFloats(targetCol.Floats, split.TestRows)
	}

	// CV affordability guard
	crossValidate := opts.CrossValidate
	if crossValidate {
		if rows := t.NumRows(); rows > cvMaxRows {
			rc.Warnf("cross-validation disabled: %d rows exceeds the %d row limit", rows, cvMaxRows)
			crossValidate = false
			run.CVDisabled = true
		} else if size := t.ApproxMemoryBytes(); size > cvMaxBytes {
			rc.Warnf("cross-validation disabled: dataset size %d KB exceeds the %d KB limit", size>>10, cvMaxBytes>>10)
			crossValidate = false
			run.CVDisabled = true
		}
	}

	candidates, err := pick(task, opts)
	if err != nil {
		return nil, err
	}

	in := TrainInput{
		XTrain:        run.XTrain,
		XTest:         run.XTest,
		YTrainLabels:  run.YTrainLabels,
		YTestLabels:   run.YTestLabels,
		YTrainValues:  run.YTrainValues,
		YTestValues:   run.YTestValues,
		FeatureNames:  run.FeatureNames,
		Task:          task,
		ClassWeights:  run.ClassWeights,
		CrossValidate: crossValidate,
		CVFolds:       opts.CVFolds,
		Seed:          opts.Seed,
	}

	for i, cfg := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("comparison interrupted: %w", err)
		}
		log.Printf("run %s: training %s (%d/%d)", rc.RunID, cfg.Name, i+1, len(candidates))
		result := TrainAndScore(cfg, in)
		if result.Success {
			log.Printf("run %s: %s %s=%.4f", rc.RunID, cfg.Name, result.MetricName, result.TestScore)
		} else {
			log.Printf("run %s: %s failed: %s", rc.RunID, cfg.Name, result.Error)
		}
		run.Results = append(run.Results, result)
	}

	run.Warnings = rc.Warnings
	return run, nil
}

// candidates resolves the catalog slice for the task, filtered by the
// selection while preserving catalog order.
func (o *Orchestrator) candidates(task preprocess.TaskType, opts Options) ([]mlmodels.Config, error) {
	catalog := o.Catalog
	if catalog == nil {
		catalog = mlmodels.NewDefaultCatalog()
	}
	var all []mlmodels.Config
	if task == preprocess.TaskClassification {
		all = catalog.Classification(opts.FastMode)
	} else {
		all = catalog.Regression(opts.FastMode)
	}
	if len(opts.SelectedModels) == 0 {
		return all, nil
	}
	selected := make(map[string]bool, len(opts.SelectedModels))
	for _, name := range opts.SelectedModels {
		selected[name] = true
	}
	var out []mlmodels.Config
	for _, cfg := range all {
		if selected[cfg.Name] {
			out = append(out, cfg)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no catalog model matches the selection %v", opts.SelectedModels)
	}
	return out, nil
}

func pickStrings(values []string, indices []int) []string {
	out := make([]string, len(indices))
	for j, i := range indices {
		out[j] = values[i]
	}
	return out
}

func pickFloats(values []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for j, i := range indices {
		out[j] = values[i]
	}
	return out
}
