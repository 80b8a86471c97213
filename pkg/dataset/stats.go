package dataset

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// ColumnStats summarizes the non-missing values of a numeric column.
type ColumnStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
}

// ColumnMetadata describes a single column for validation and reporting.
type ColumnMetadata struct {
	Name        string       `json:"name"`
	DType       DType        `json:"dtype"`
	IsNumeric   bool         `json:"is_numeric"`
	NullCount   int          `json:"null_count"`
	UniqueCount int          `json:"unique_count"`
	Stats       *ColumnStats `json:"stats,omitempty"`
}

// DescribeColumn computes metadata for one series. Numeric statistics use
// population standard deviation and skip missing cells.
func DescribeColumn(s *Series) ColumnMetadata {
	meta := ColumnMetadata{
		Name:        s.Name,
		DType:       s.DType,
		IsNumeric:   s.DType == DTypeNumeric,
		NullCount:   s.NullCount(),
		UniqueCount: s.UniqueCount(),
	}
	if s.DType != DTypeNumeric {
		return meta
	}
	values := s.NumericValues()
	if len(values) == 0 {
		return meta
	}
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	mean, _ := stats.Mean(values)
	median, _ := stats.Median(values)
	std, _ := stats.StandardDeviation(values)
	sum, _ := stats.Sum(values)
	meta.Stats = &ColumnStats{
		Min:    min,
		Max:    max,
		Mean:   mean,
		Median: median,
		StdDev: std,
		Sum:    sum,
		Count:  len(values),
	}
	return meta
}

// Describe computes metadata for every column, in table order.
func Describe(t *Table) []ColumnMetadata {
	metas := make([]ColumnMetadata, 0, t.NumColumns())
	for _, c := range t.Columns() {
		metas = append(metas, DescribeColumn(c))
	}
	return metas
}

// Summary returns a short human-readable description of the table.
func Summary(t *Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %d rows x %d columns\n", t.NumRows(), t.NumColumns())
	for _, meta := range Describe(t) {
		fmt.Fprintf(&b, "  %s (%s)", meta.Name, meta.DType)
		if meta.NullCount > 0 {
			fmt.Fprintf(&b, " nulls=%d", meta.NullCount)
		}
		if meta.Stats != nil {
			fmt.Fprintf(&b, " min=%.4g max=%.4g mean=%.4g", meta.Stats.Min, meta.Stats.Max, meta.Stats.Mean)
		}
		b.WriteString("\n")
	}
	return b.String()
}
