// Package features derives climate risk indicators from date-indexed tables:
// rolling means, windowed accumulations, threshold exceedance counts,
// anomalies against a reference period and rolling extremes. Every operation
// is additive: source columns are never touched, derived columns are appended
// under deterministic names.
package features

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// ErrMissingColumn is returned when the date column or a requested value
// column is absent from the table.
var ErrMissingColumn = errors.New("column not found")

// Spec declares which derived features to build. Windows are row counts
// over the date-sorted table. Thresholds map value columns to exceedance
// cutoffs; columns absent from the map are skipped by the exceedance pass.
type Spec struct {
	ValueColumns []string           `json:"value_columns" yaml:"value_columns"`
	Windows      []int              `json:"windows" yaml:"windows"`
	Thresholds   map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Reference period for anomaly features. Anomalies are skipped when
	// either bound is zero.
	ReferenceStart time.Time `json:"reference_start,omitempty" yaml:"reference_start,omitempty"`
	ReferenceEnd   time.Time `json:"reference_end,omitempty" yaml:"reference_end,omitempty"`
}

// Engine applies the feature operations against one date column. Window
// semantics follow the rolling conventions of the upstream climate datasets:
// row-count windows, current row inclusive, partial windows allowed from the
// first row.
type Engine struct {
	DateColumn string
}

// NewEngine returns an engine keyed on the given date column.
func NewEngine(dateColumn string) *Engine {
	return &Engine{DateColumn: dateColumn}
}

func (e *Engine) checkColumns(t *dataset.Table, valueColumns []string) error {
	if !t.HasColumn(e.DateColumn) {
		return fmt.Errorf("date column %q: %w", e.DateColumn, ErrMissingColumn)
	}
	for _, name := range valueColumns {
		if !t.HasColumn(name) {
			return fmt.Errorf("value column %q: %w", name, ErrMissingColumn)
		}
	}
	return nil
}

func checkWindows(windows []int) error {
	for _, w := range windows {
		if w < 1 {
			return fmt.Errorf("window must be positive, got %d", w)
		}
	}
	return nil
}

// Apply runs every operation the spec enables, in a fixed order, on a
// date-sorted copy of the table.
func (e *Engine) Apply(t *dataset.Table, spec Spec) (*dataset.Table, error) {
	sorted, err := t.SortByTime(e.DateColumn)
	if err != nil {
		return nil, fmt.Errorf("sorting by %q: %w", e.DateColumn, err)
	}
	out := sorted
	if out, err = e.RollingMeans(out, spec.ValueColumns, spec.Windows); err != nil {
		return nil, err
	}
	if out, err = e.CumulativeSums(out, spec.ValueColumns, spec.Windows); err != nil {
		return nil, err
	}
	if len(spec.Thresholds) > 0 {
		if out, err = e.ThresholdExceedances(out, spec.ValueColumns, spec.Thresholds, spec.Windows); err != nil {
			return nil, err
		}
	}
	if !spec.ReferenceStart.IsZero() && !spec.ReferenceEnd.IsZero() {
		if out, err = e.ReferenceAnomalies(out, spec.ValueColumns, spec.ReferenceStart, spec.ReferenceEnd); err != nil {
			return nil, err
		}
	}
	if out, err = e.RollingExtremes(out, spec.ValueColumns, spec.Windows); err != nil {
		return nil, err
	}
	log.Printf("feature engineering: %d -> %d columns", t.NumColumns(), out.NumColumns())
	return out, nil
}

// RollingMeans appends <col>_roll_<w> columns: the mean of the last w rows
// ending at the current row. Missing cells are skipped; a window with no
// valid cells yields a missing cell. A window of 1 reproduces the source.
func (e *Engine) RollingMeans(t *dataset.Table, columns []string, windows []int) (*dataset.Table, error) {
	return e.rollingOp(t, columns, windows, func(col string, w int) string {
		return fmt.Sprintf("%s_roll_%d", col, w)
	}, rollMean)
}

// CumulativeSums appends <col>_cumul_<w>j columns: the sum of the last w
// rows. A window covering the full table is a running total.
func (e *Engine) CumulativeSums(t *dataset.Table, columns []string, windows []int) (*dataset.Table, error) {
	return e.rollingOp(t, columns, windows, func(col string, w int) string {
		return fmt.Sprintf("%s_cumul_%dj", col, w)
	}, rollSum)
}

// RollingExtremes appends <col>_max_<w>j and <col>_min_<w>j columns.
func (e *Engine) RollingExtremes(t *dataset.Table, columns []string, windows []int) (*dataset.Table, error) {
	out, err := e.rollingOp(t, columns, windows, func(col string, w int) string {
		return fmt.Sprintf("%s_max_%dj", col, w)
	}, rollMax)
	if err != nil {
		return nil, err
	}
	return e.rollingOp(out, columns, windows, func(col string, w int) string {
		return fmt.Sprintf("%s_min_%dj", col, w)
	}, rollMin)
}

// ThresholdExceedances appends <col>_days_above_<threshold>_<w>j columns
// counting rows in the window whose value strictly exceeds the column's
// threshold. Columns without an entry in thresholds are skipped.
func (e *Engine) ThresholdExceedances(t *dataset.Table, columns []string, thresholds map[string]float64, windows []int) (*dataset.Table, error) {
	if err := e.checkColumns(t, columns); err != nil {
		return nil, err
	}
	if err := checkWindows(windows); err != nil {
		return nil, err
	}
	out := t
	for _, name := range columns {
		threshold, ok := thresholds[name]
		if !ok {
			continue
		}
		col, _ := out.Column(name)
		if col.DType != dataset.DTypeNumeric {
			return nil, fmt.Errorf("column %q is %s, want numeric", name, col.DType)
		}
		above := make([]float64, col.Len())
		for i, v := range col.Floats {
			if col.Valid[i] && v > threshold {
				above[i] = 1
			}
		}
		label := strconv.FormatFloat(threshold, 'g', -1, 64)
		for _, w := range windows {
			counts := make([]float64, len(above))
			running := 0.0
			for i := range above {
				running += above[i]
				if i >= w {
					running -= above[i-w]
				}
				counts[i] = running
			}
			var err error
			out, err = out.WithColumn(dataset.NewNumericSeries(
				fmt.Sprintf("%s_days_above_%s_%dj", name, label, w), counts))
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// ReferenceAnomalies appends <col>_anomaly_vs_ref columns: the value minus
// the mean of the same calendar month over [start, end]. Rows whose month
// has no reference data, and rows with missing values or dates, yield
// missing cells.
func (e *Engine) ReferenceAnomalies(t *dataset.Table, columns []string, start, end time.Time) (*dataset.Table, error) {
	if err := e.checkColumns(t, columns); err != nil {
		return nil, err
	}
	dates, _ := t.Column(e.DateColumn)
	if dates.DType != dataset.DTypeTime {
		return nil, fmt.Errorf("date column %q is %s, want time", e.DateColumn, dates.DType)
	}
	out := t
	for _, name := range columns {
		col, _ := out.Column(name)
		if col.DType != dataset.DTypeNumeric {
			return nil, fmt.Errorf("column %q is %s, want numeric", name, col.DType)
		}
		sums := make(map[time.Month]float64)
		counts := make(map[time.Month]int)
		for i := 0; i < col.Len(); i++ {
			if !col.Valid[i] || !dates.Valid[i] {
				continue
			}
			d := dates.Times[i]
			if d.Before(start) || d.After(end) {
				continue
			}
			sums[d.Month()] += col.Floats[i]
			counts[d.Month()]++
		}
		if len(counts) == 0 {
			log.Printf("anomaly %s: no rows in reference period, column will be all missing", name)
		}
		anomalies := make([]float64, col.Len())
		for i := range anomalies {
			anomalies[i] = math.NaN()
			if !col.Valid[i] || !dates.Valid[i] {
				continue
			}
			m := dates.Times[i].Month()
			if counts[m] == 0 {
				continue
			}
			anomalies[i] = col.Floats[i] - sums[m]/float64(counts[m])
		}
		var err error
		out, err = out.WithColumn(dataset.NewNumericSeries(name+"_anomaly_vs_ref", anomalies))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rollFunc func(values []float64, valid []bool, end, w int) float64

func (e *Engine) rollingOp(t *dataset.Table, columns []string, windows []int, nameFor func(string, int) string, fn rollFunc) (*dataset.Table, error) {
	if err := e.checkColumns(t, columns); err != nil {
		return nil, err
	}
	if err := checkWindows(windows); err != nil {
		return nil, err
	}
	out := t
	for _, name := range columns {
		col, _ := out.Column(name)
		if col.DType != dataset.DTypeNumeric {
			return nil, fmt.Errorf("column %q is %s, want numeric", name, col.DType)
		}
		for _, w := range windows {
			derived := make([]float64, col.Len())
			for i := range derived {
				derived[i] = fn(col.Floats, col.Valid, i, w)
			}
			var err error
			out, err = out.WithColumn(dataset.NewNumericSeries(nameFor(name, w), derived))
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func windowStart(end, w int) int {
	start := end - w + 1
	if start < 0 {
		start = 0
	}
	return start
}

func rollMean(values []float64, valid []bool, end, w int) float64 {
	sum, n := 0.0, 0
	for i := windowStart(end, w); i <= end; i++ {
		if valid[i] {
			sum += values[i]
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func rollSum(values []float64, valid []bool, end, w int) float64 {
	sum, n := 0.0, 0
	for i := windowStart(end, w); i <= end; i++ {
		if valid[i] {
			sum += values[i]
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum
}

func rollMax(values []float64, valid []bool, end, w int) float64 {
	best, n := math.Inf(-1), 0
	for i := windowStart(end, w); i <= end; i++ {
		if valid[i] {
			if values[i] > best {
				best = values[i]
			}
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return best
}

func rollMin(values []float64, valid []bool, end, w int) float64 {
	best, n := math.Inf(1), 0
	for i := windowStart(end, w); i <= end; i++ {
		if valid[i] {
			if values[i] < best {
				best = values[i]
			}
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return best
}
