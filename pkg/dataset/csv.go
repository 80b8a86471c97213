package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadCSVFile loads a CSV file into a Table with inferred column types.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses CSV data with a header row into a Table. Each column's type
// is inferred from its non-empty cells: numeric when all parse as floats,
// time when all parse as dates, string otherwise. Empty, "NA" and "NaN"
// cells are missing.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		for i := range header {
			val := ""
			if i < len(record) {
				val = strings.TrimSpace(record[i])
			}
			raw[i] = append(raw[i], val)
		}
	}

	cols := make([]*Series, len(header))
	for i, name := range header {
		cols[i] = inferSeries(strings.TrimSpace(name), raw[i])
	}
	return NewTable(cols...)
}

func isMissingCell(c string) bool {
	return c == "" || strings.EqualFold(c, "na") || strings.EqualFold(c, "nan") || strings.EqualFold(c, "null")
}

func inferSeries(name string, cells []string) *Series {
	numeric, temporal := true, true
	nonEmpty := 0
	for _, c := range cells {
		if isMissingCell(c) {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			numeric = false
		}
		if _, ok := ParseTime(c); !ok {
			temporal = false
		}
	}
	if nonEmpty == 0 {
		return NewStringSeries(name, make([]string, len(cells)))
	}
	switch {
	case numeric:
		values := make([]float64, len(cells))
		for i, c := range cells {
			if isMissingCell(c) {
				values[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(c, 64)
			if err != nil {
				values[i] = math.NaN()
				continue
			}
			values[i] = v
		}
		return NewNumericSeries(name, values)
	case temporal:
		times := make([]time.Time, len(cells))
		for i, c := range cells {
			if isMissingCell(c) {
				continue
			}
			if ts, ok := ParseTime(c); ok {
				times[i] = ts
			}
		}
		return NewTimeSeries(name, times)
	default:
		cleaned := make([]string, len(cells))
		for i, c := range cells {
			if isMissingCell(c) {
				continue
			}
			cleaned[i] = c
		}
		return NewStringSeries(name, cleaned)
	}
}
