package features

import (
	"fmt"
	"log"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// OutlierSummary reports the z-score flagging outcome for one column.
type OutlierSummary struct {
	Column      string  `json:"column"`
	NumOutliers int     `json:"num_outliers"`
	PctOutliers float64 `json:"pct_outliers"`
}

// FlagZScoreOutliers appends a <col>_outlier column (1 for |z| > threshold,
// 0 otherwise, missing for missing cells) per requested numeric column, and
// returns per-column summaries. Columns with zero standard deviation are
// skipped: every value equals the mean and nothing can be an outlier.
func FlagZScoreOutliers(t *dataset.Table, columns []string, threshold float64) (*dataset.Table, []OutlierSummary, error) {
	if threshold <= 0 {
		return nil, nil, fmt.Errorf("z-score threshold must be positive, got %g", threshold)
	}
	out := t
	var summaries []OutlierSummary
	for _, name := range columns {
		col, ok := out.Column(name)
		if !ok {
			return nil, nil, fmt.Errorf("column %q: %w", name, ErrMissingColumn)
		}
		if col.DType != dataset.DTypeNumeric {
			return nil, nil, fmt.Errorf("column %q is %s, want numeric", name, col.DType)
		}
		values := col.NumericValues()
		if len(values) == 0 {
			continue
		}
		mean, _ := stats.Mean(values)
		std, _ := stats.StandardDeviation(values)
		if std == 0 {
			log.Printf("z-score outliers: column %s is constant, skipping", name)
			continue
		}
		flags := make([]float64, col.Len())
		outliers := 0
		for i := range flags {
			if !col.Valid[i] {
				flags[i] = math.NaN()
				continue
			}
			if math.Abs((col.Floats[i]-mean)/std) > threshold {
				flags[i] = 1
				outliers++
			}
		}
		var err error
		out, err = out.WithColumn(dataset.NewNumericSeries(name+"_outlier", flags))
		if err != nil {
			return nil, nil, err
		}
		summaries = append(summaries, OutlierSummary{
			Column:      name,
			NumOutliers: outliers,
			PctOutliers: 100 * float64(outliers) / float64(len(values)),
		})
	}
	return out, summaries, nil
}
