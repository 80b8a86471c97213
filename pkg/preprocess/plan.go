package preprocess

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// ErrEmptyFeatures is returned when a plan is built from a table with no
// rows or no usable feature columns.
var ErrEmptyFeatures = errors.New("no feature rows or columns to preprocess")

// Options controls how the plan is built.
type Options struct {
	// ScaleNumeric standardizes numeric columns after imputation.
	ScaleNumeric bool `json:"scale_numeric" yaml:"scale_numeric"`
	// MaxCategories caps the learned one-hot vocabulary per column.
	MaxCategories int `json:"max_categories" yaml:"max_categories"`
	// DropHighCardinality drops categorical columns with more distinct
	// values than HighCardinalityLimit instead of encoding them.
	DropHighCardinality  bool `json:"drop_high_cardinality" yaml:"drop_high_cardinality"`
	HighCardinalityLimit int  `json:"high_cardinality_limit" yaml:"high_cardinality_limit"`
}

// DefaultOptions mirrors the pipeline defaults: scaling on, 50 learned
// categories, drop categoricals past 100 distinct values.
func DefaultOptions() Options {
	return Options{
		ScaleNumeric:         true,
		MaxCategories:        50,
		DropHighCardinality:  true,
		HighCardinalityLimit: 100,
	}
}

const missingCategory = "missing"

// NumericRule holds the frozen statistics for one numeric column.
type NumericRule struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
	Scaled bool    `json:"scaled"`
}

// CategoricalRule holds the frozen one-hot vocabulary for one column.
// Categories are the kept values in output order; anything else encodes to
// the all-zero vector.
type CategoricalRule struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Plan is a fitted preprocessor. Built once from the training split, then
// applied unchanged to any table with the same logical columns.
type Plan struct {
	Numeric     []NumericRule     `json:"numeric"`
	Categorical []CategoricalRule `json:"categorical"`
	Dropped     []string          `json:"dropped,omitempty"`
}

// BuildPlan fits a plan on the given table, which must already be reduced to
// feature columns only (target and date columns removed by the caller).
func BuildPlan(t *dataset.Table, opts Options) (*Plan, error) {
	if opts.MaxCategories <= 0 {
		opts.MaxCategories = 50
	}
	if opts.HighCardinalityLimit <= 0 {
		opts.HighCardinalityLimit = 100
	}
	if t.NumRows() == 0 || t.NumColumns() == 0 {
		return nil, ErrEmptyFeatures
	}

	plan := &Plan{}
	for _, col := range t.Columns() {
		switch col.DType {
		case dataset.DTypeNumeric:
			plan.Numeric = append(plan.Numeric, fitNumeric(col, opts))
		case dataset.DTypeString:
			distinct := categoricalCardinality(col)
			if opts.DropHighCardinality && distinct > opts.HighCardinalityLimit {
				log.Printf("preprocess: dropping %s (%d distinct values)", col.Name, distinct)
				plan.Dropped = append(plan.Dropped, col.Name)
				continue
			}
			plan.Categorical = append(plan.Categorical, fitCategorical(col, opts.MaxCategories))
		default:
			// time columns carry no model signal once features are derived
			plan.Dropped = append(plan.Dropped, col.Name)
		}
	}
	if len(plan.Numeric) == 0 && len(plan.Categorical) == 0 {
		return nil, ErrEmptyFeatures
	}
	return plan, nil
}

func fitNumeric(col *dataset.Series, opts Options) NumericRule {
	values := col.NumericValues()
	rule := NumericRule{Name: col.Name, Scale: 1}
	if len(values) == 0 {
		return rule
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rule.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if !opts.ScaleNumeric {
		return rule
	}
	// statistics over the imputed column, missing replaced by the median
	imputed := make([]float64, col.Len())
	for i := range imputed {
		if col.Valid[i] {
			imputed[i] = col.Floats[i]
		} else {
			imputed[i] = rule.Median
		}
	}
	mean, variance := stat.PopMeanVariance(imputed, nil)
	rule.Mean = mean
	rule.Scaled = true
	if std := math.Sqrt(variance); std > 0 {
		rule.Scale = std
	}
	return rule
}

func categoricalCardinality(col *dataset.Series) int {
	distinct := col.UniqueCount()
	if col.NullCount() > 0 {
		distinct++ // the imputed "missing" value
	}
	return distinct
}

func fitCategorical(col *dataset.Series, maxCategories int) CategoricalRule {
	counts := make(map[string]int)
	for i := 0; i < col.Len(); i++ {
		v := missingCategory
		if col.Valid[i] {
			v = col.Strings[i]
		}
		counts[v]++
	}
	kept := make([]string, 0, len(counts))
	for v := range counts {
		kept = append(kept, v)
	}
	// most frequent first, ties lexicographic
	sort.Slice(kept, func(a, b int) bool {
		if counts[kept[a]] != counts[kept[b]] {
			return counts[kept[a]] > counts[kept[b]]
		}
		return kept[a] < kept[b]
	})
	if len(kept) > maxCategories {
		kept = kept[:maxCategories]
	}
	sort.Strings(kept)
	return CategoricalRule{Name: col.Name, Categories: kept}
}

// FeatureNames returns the output column names in matrix order: numeric
// columns first, then one indicator per kept category.
func (p *Plan) FeatureNames() []string {
	var names []string
	for _, r := range p.Numeric {
		names = append(names, r.Name)
	}
	for _, r := range p.Categorical {
		for _, c := range r.Categories {
			names = append(names, r.Name+"_"+c)
		}
	}
	return names
}

// Transform applies the frozen plan to a table, returning the dense feature
// matrix. The table must carry every column the plan was fitted on; extra
// columns are ignored.
func (p *Plan) Transform(t *dataset.Table) ([][]float64, error) {
	rows := t.NumRows()
	width := len(p.FeatureNames())
	X := make([][]float64, rows)
	for i := range X {
		X[i] = make([]float64, width)
	}

	j := 0
	for _, rule := range p.Numeric {
		col, ok := t.Column(rule.Name)
		if !ok {
			return nil, fmt.Errorf("transform: numeric column %q missing", rule.Name)
		}
		if col.DType != dataset.DTypeNumeric {
			return nil, fmt.Errorf("transform: column %q is %s, want numeric", rule.Name, col.DType)
		}
		for i := 0; i < rows; i++ {
			v := rule.Median
			if col.Valid[i] {
				v = col.Floats[i]
			}
			if rule.Scaled {
				v = (v - rule.Mean) / rule.Scale
			}
			X[i][j] = v
		}
		j++
	}
	for _, rule := range p.Categorical {
		col, ok := t.Column(rule.Name)
		if !ok {
			return nil, fmt.Errorf("transform: categorical column %q missing", rule.Name)
		}
		if col.DType != dataset.DTypeString {
			return nil, fmt.Errorf("transform: column %q is %s, want string", rule.Name, col.DType)
		}
		index := make(map[string]int, len(rule.Categories))
		for k, c := range rule.Categories {
			index[c] = k
		}
		for i := 0; i < rows; i++ {
			v := missingCategory
			if col.Valid[i] {
				v = col.Strings[i]
			}
			// unknown categories leave the whole block at zero
			if k, ok := index[v]; ok {
				X[i][j+k] = 1
			}
		}
		j += len(rule.Categories)
	}
	return X, nil
}
