package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// Frequency selects the temporal bucket for Aggregate.
type Frequency string

const (
	FreqDaily   Frequency = "day"
	FreqMonthly Frequency = "month"
)

// AggFunc selects how numeric values are combined inside a bucket.
type AggFunc string

const (
	AggMean AggFunc = "mean"
	AggSum  AggFunc = "sum"
	AggMax  AggFunc = "max"
	AggMin  AggFunc = "min"
)

// Aggregate buckets the table by day or month of the date column and
// combines every numeric column with the given function. The result has one
// row per bucket, ordered ascending, with the date column holding the bucket
// start. Non-numeric columns other than the date column are dropped.
func Aggregate(t *dataset.Table, dateColumn string, freq Frequency, fn AggFunc) (*dataset.Table, error) {
	dates, ok := t.Column(dateColumn)
	if !ok {
		return nil, fmt.Errorf("date column %q: %w", dateColumn, ErrMissingColumn)
	}
	if dates.DType != dataset.DTypeTime {
		return nil, fmt.Errorf("date column %q is %s, want time", dateColumn, dates.DType)
	}
	switch freq {
	case FreqDaily, FreqMonthly:
	default:
		return nil, fmt.Errorf("unsupported frequency %q", freq)
	}
	switch fn {
	case AggMean, AggSum, AggMax, AggMin:
	default:
		return nil, fmt.Errorf("unsupported aggregation %q", fn)
	}

	buckets := make(map[int64][]int)
	for i := 0; i < dates.Len(); i++ {
		if !dates.Valid[i] {
			continue
		}
		key := bucketStart(dates.Times[i], freq).UnixNano()
		buckets[key] = append(buckets[key], i)
	}
	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	outDates := make([]time.Time, len(keys))
	for i, k := range keys {
		outDates[i] = time.Unix(0, k).UTC()
	}
	cols := []*dataset.Series{dataset.NewTimeSeries(dateColumn, outDates)}

	for _, c := range t.Columns() {
		if c.Name == dateColumn || c.DType != dataset.DTypeNumeric {
			continue
		}
		agg := make([]float64, len(keys))
		for i, k := range keys {
			agg[i] = combine(c, buckets[k], fn)
		}
		cols = append(cols, dataset.NewNumericSeries(c.Name, agg))
	}
	return dataset.NewTable(cols...)
}

func bucketStart(ts time.Time, freq Frequency) time.Time {
	ts = ts.UTC()
	if freq == FreqMonthly {
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

func combine(c *dataset.Series, rows []int, fn AggFunc) float64 {
	sum, n := 0.0, 0
	max, min := math.Inf(-1), math.Inf(1)
	for _, i := range rows {
		if !c.Valid[i] {
			continue
		}
		v := c.Floats[i]
		sum += v
		n++
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	if n == 0 {
		return math.NaN()
	}
	switch fn {
	case AggSum:
		return sum
	case AggMax:
		return max
	case AggMin:
		return min
	default:
		return sum / float64(n)
	}
}
