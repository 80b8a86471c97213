package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/YacoubouKya/climrisk/pkg/compare"
	"github.com/YacoubouKya/climrisk/pkg/config"
	"github.com/YacoubouKya/climrisk/pkg/dataset"
	"github.com/YacoubouKya/climrisk/pkg/features"
	"github.com/YacoubouKya/climrisk/pkg/preprocess"
	"github.com/YacoubouKya/climrisk/pkg/tuning"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML or JSON config file")
		dataPath   = flag.String("data", "", "path to the input CSV file")
		target     = flag.String("target", "", "target column to predict")
		dateCol    = flag.String("date", "", "date column for time-series features")
		task       = flag.String("task", "", "learning task: classification, regression or auto")
		fastMode   = flag.Bool("fast", false, "use the reduced model roster")
		imbalance  = flag.Bool("imbalance", false, "apply balanced class weights")
		crossVal   = flag.Bool("cv", false, "score with k-fold cross-validation")
		models     = flag.String("models", "", "comma-separated subset of model names")
		engineer   = flag.Bool("features", false, "derive rolling features from numeric columns")
		tune       = flag.Bool("tune", false, "refine the best tree ensemble after the comparison")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnvironment()

	// flags win over file and environment
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}
	if *target != "" {
		cfg.Data.Target = *target
	}
	if *dateCol != "" {
		cfg.Data.DateColumn = *dateCol
	}
	if *task != "" {
		cfg.Training.Task = *task
	}
	if *fastMode {
		cfg.Training.FastMode = true
	}
	if *imbalance {
		cfg.Training.HandleImbalance = true
	}
	if *crossVal {
		cfg.Training.CrossValidate = true
	}
	if *engineer {
		cfg.Features.Enabled = true
	}
	if *models != "" {
		cfg.Training.SelectedModels = splitList(*models)
	}

	if cfg.Data.Path == "" || cfg.Data.Target == "" {
		flag.Usage()
		log.Fatal("a data path and a target column are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *tune); err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, tune bool) error {
	t, err := dataset.ReadCSVFile(cfg.Data.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cfg.Data.Path, err)
	}
	log.Printf("Loaded %d rows, %d columns from %s", t.NumRows(), t.NumColumns(), cfg.Data.Path)

	t = dataset.RemoveDuplicateColumns(dataset.CleanColumnNames(t))

	if cfg.Data.DateColumn != "" && t.HasColumn(cfg.Data.DateColumn) {
		parsed, err := dataset.ParseDateColumn(t, cfg.Data.DateColumn)
		if err != nil {
			return fmt.Errorf("failed to parse date column %q: %w", cfg.Data.DateColumn, err)
		}
		t = parsed
	}

	if cfg.Features.Enabled {
		t, err = engineerFeatures(t, cfg)
		if err != nil {
			return err
		}
		log.Printf("Feature engineering produced %d columns", t.NumColumns())
	}

	run, err := compare.NewOrchestrator().Run(ctx, t, compare.Options{
		Target:          cfg.Data.Target,
		DateColumn:      cfg.Data.DateColumn,
		Task:            preprocess.TaskType(cfg.Training.Task),
		TestSize:        cfg.Training.TestSize,
		Seed:            cfg.Training.Seed,
		FastMode:        cfg.Training.FastMode,
		HandleImbalance: cfg.Training.HandleImbalance,
		CrossValidate:   cfg.Training.CrossValidate,
		CVFolds:         cfg.Training.CVFolds,
		SelectedModels:  cfg.Training.SelectedModels,
		Preprocess: preprocess.Options{
			ScaleNumeric:         cfg.Preprocess.ScaleNumeric,
			MaxCategories:        cfg.Preprocess.MaxCategories,
			DropHighCardinality:  cfg.Preprocess.DropHighCardinality,
			HighCardinalityLimit: cfg.Preprocess.HighCardinalityLimit,
		},
	})
	if err != nil {
		return err
	}

	for _, w := range run.Warnings {
		log.Printf("Warning: %s", w)
	}

	printResults(run)

	best := run.Best()
	if best == nil {
		return fmt.Errorf("no model trained successfully")
	}
	fmt.Printf("\nBest model: %s (%s = %.4f)\n", best.ModelName, best.MetricName, best.TestScore)

	if len(best.Importances) > 0 {
		printImportances(best)
	}

	if tune {
		if err := refineBest(run, best); err != nil {
			log.Printf("Refinement skipped: %v", err)
		}
	}
	return nil
}

func engineerFeatures(t *dataset.Table, cfg *config.Config) (*dataset.Table, error) {
	if cfg.Data.DateColumn == "" {
		return nil, fmt.Errorf("feature engineering needs a date column")
	}
	columns := cfg.Features.ValueColumns
	if len(columns) == 0 {
		for _, name := range t.NumericColumnNames() {
			if name == cfg.Data.Target {
				continue
			}
			columns = append(columns, name)
		}
	}
	engine := features.NewEngine(cfg.Data.DateColumn)
	return engine.Apply(t, features.Spec{
		ValueColumns: columns,
		Windows:      cfg.Features.Windows,
		Thresholds:   cfg.Features.Thresholds,
	})
}

func printResults(run *compare.ComparisonRun) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Model", "Status", "Test", "Train", "Secondary", "CV Mean", "Time"})
	table.SetBorder(false)

	for _, res := range run.Ranked() {
		if !res.Success {
			table.Append([]string{res.ModelName, "failed: " + res.Error, "", "", "", "", ""})
			continue
		}
		cv := ""
		if len(res.CVScores) > 0 {
			cv = fmt.Sprintf("%.4f ± %.4f", res.CVMean, res.CVStd)
		}
		table.Append([]string{
			res.ModelName,
			"ok",
			fmt.Sprintf("%.4f", res.TestScore),
			fmt.Sprintf("%.4f", res.TrainScore),
			fmt.Sprintf("%s=%.4f", res.SecondaryMetricName, res.SecondaryMetric),
			cv,
			res.TrainingTime.Round(time.Millisecond).String(),
		})
	}

	fmt.Printf("\nTask: %s  train/test: %d/%d rows  features: %d\n\n",
		run.Task, run.TrainRows, run.TestRows, len(run.FeatureNames))
	table.Render()
}

func printImportances(best *compare.TrainResult) {
	limit := 10
	if len(best.Importances) < limit {
		limit = len(best.Importances)
	}
	fmt.Printf("\nTop features for %s:\n", best.ModelName)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Feature", "Importance"})
	table.SetBorder(false)
	for _, imp := range best.Importances[:limit] {
		table.Append([]string{imp.Feature, fmt.Sprintf("%.4f", imp.Importance)})
	}
	table.Render()
}

func refineBest(run *compare.ComparisonRun, best *compare.TrainResult) error {
	params, err := tuning.DefaultsFrom(best)
	if err != nil {
		return err
	}
	res, err := tuning.Refine(run, best, params)
	if err != nil {
		return err
	}
	fmt.Printf("\nRefined %s: %s %.4f -> %.4f (%s)\n",
		res.ModelName, res.MetricName, res.BaselineScore, res.RefinedScore, res.Verdict)
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
