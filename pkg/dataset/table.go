// Package dataset provides the column-ordered Table used throughout the
// climate modeling pipeline: typed series, column statistics and the
// merge/clean helpers applied to raw climate exports before modeling.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DType identifies the storage type of a Series.
type DType string

const (
	DTypeNumeric DType = "numeric"
	DTypeString  DType = "string"
	DTypeTime    DType = "time"
)

// Series is a single named column. Exactly one of the value slices is
// populated, matching DType. Valid marks non-missing cells; numeric series
// additionally store NaN for missing cells so math stays branch-free.
type Series struct {
	Name    string      `json:"name"`
	DType   DType       `json:"dtype"`
	Floats  []float64   `json:"floats,omitempty"`
	Strings []string    `json:"strings,omitempty"`
	Times   []time.Time `json:"times,omitempty"`
	Valid   []bool      `json:"valid"`
}

// NewNumericSeries builds a numeric series. NaN entries are marked missing.
func NewNumericSeries(name string, values []float64) *Series {
	valid := make([]bool, len(values))
	vals := make([]float64, len(values))
	copy(vals, values)
	for i, v := range vals {
		valid[i] = !math.IsNaN(v)
	}
	return &Series{Name: name, DType: DTypeNumeric, Floats: vals, Valid: valid}
}

// NewStringSeries builds a categorical series. Empty strings are missing.
func NewStringSeries(name string, values []string) *Series {
	valid := make([]bool, len(values))
	vals := make([]string, len(values))
	copy(vals, values)
	for i, v := range vals {
		valid[i] = v != ""
	}
	return &Series{Name: name, DType: DTypeString, Strings: vals, Valid: valid}
}

// NewTimeSeries builds a time series. Zero times are missing.
func NewTimeSeries(name string, values []time.Time) *Series {
	valid := make([]bool, len(values))
	vals := make([]time.Time, len(values))
	copy(vals, values)
	for i, v := range vals {
		valid[i] = !v.IsZero()
	}
	return &Series{Name: name, DType: DTypeTime, Times: vals, Valid: valid}
}

// Len returns the number of cells in the series.
func (s *Series) Len() int {
	return len(s.Valid)
}

// IsMissing reports whether cell i holds no value.
func (s *Series) IsMissing(i int) bool {
	return !s.Valid[i]
}

// NullCount returns the number of missing cells.
func (s *Series) NullCount() int {
	n := 0
	for _, ok := range s.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	c := &Series{Name: s.Name, DType: s.DType}
	c.Valid = append([]bool(nil), s.Valid...)
	switch s.DType {
	case DTypeNumeric:
		c.Floats = append([]float64(nil), s.Floats...)
	case DTypeString:
		c.Strings = append([]string(nil), s.Strings...)
	case DTypeTime:
		c.Times = append([]time.Time(nil), s.Times...)
	}
	return c
}

// take returns a new series containing the cells at the given row indices.
func (s *Series) take(indices []int) *Series {
	c := &Series{Name: s.Name, DType: s.DType, Valid: make([]bool, len(indices))}
	switch s.DType {
	case DTypeNumeric:
		c.Floats = make([]float64, len(indices))
		for j, i := range indices {
			c.Floats[j] = s.Floats[i]
			c.Valid[j] = s.Valid[i]
		}
	case DTypeString:
		c.Strings = make([]string, len(indices))
		for j, i := range indices {
			c.Strings[j] = s.Strings[i]
			c.Valid[j] = s.Valid[i]
		}
	case DTypeTime:
		c.Times = make([]time.Time, len(indices))
		for j, i := range indices {
			c.Times[j] = s.Times[i]
			c.Valid[j] = s.Valid[i]
		}
	}
	return c
}

// NumericValues returns the non-missing float values of a numeric series.
func (s *Series) NumericValues() []float64 {
	out := make([]float64, 0, len(s.Floats))
	for i, v := range s.Floats {
		if s.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// UniqueCount returns the number of distinct non-missing values.
func (s *Series) UniqueCount() int {
	switch s.DType {
	case DTypeNumeric:
		seen := make(map[float64]struct{})
		for i, v := range s.Floats {
			if s.Valid[i] {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	case DTypeString:
		seen := make(map[string]struct{})
		for i, v := range s.Strings {
			if s.Valid[i] {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	case DTypeTime:
		seen := make(map[int64]struct{})
		for i, v := range s.Times {
			if s.Valid[i] {
				seen[v.UnixNano()] = struct{}{}
			}
		}
		return len(seen)
	}
	return 0
}

// Table is an ordered collection of equal-length, uniquely named columns.
// All transforming methods return a new Table and leave the receiver intact.
type Table struct {
	columns []*Series
	index   map[string]int
}

// NewTable builds a table from the given columns, preserving order.
func NewTable(columns ...*Series) (*Table, error) {
	t := &Table{index: make(map[string]int)}
	for _, col := range columns {
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if len(t.columns) > 0 && col.Len() != t.columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), t.columns[0].Len())
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// NumRows returns the row count (0 for an empty table).
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named series, or false when absent.
func (t *Table) Column(name string) (*Series, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Columns returns the series in table order. The slice is fresh but the
// series are shared; callers must not mutate them.
func (t *Table) Columns() []*Series {
	return append([]*Series(nil), t.columns...)
}

// WithColumn returns a new table with col appended, or replacing an existing
// column of the same name in place.
func (t *Table) WithColumn(col *Series) (*Table, error) {
	if len(t.columns) > 0 && col.Len() != t.NumRows() {
		return nil, fmt.Errorf("column %q has %d rows, want %d", col.Name, col.Len(), t.NumRows())
	}
	out := t.shallowClone()
	if i, ok := out.index[col.Name]; ok {
		out.columns[i] = col
		return out, nil
	}
	out.index[col.Name] = len(out.columns)
	out.columns = append(out.columns, col)
	return out, nil
}

// Select returns a new table containing only the named columns, in the given
// order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols = append(cols, c)
	}
	return NewTable(cols...)
}

// Drop returns a new table without the named columns. Unknown names are
// ignored.
func (t *Table) Drop(names ...string) *Table {
	dropped := make(map[string]bool, len(names))
	for _, n := range names {
		dropped[n] = true
	}
	out := &Table{index: make(map[string]int)}
	for _, c := range t.columns {
		if dropped[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// TakeRows returns a new table containing the rows at the given indices, in
// the given order.
func (t *Table) TakeRows(indices []int) *Table {
	out := &Table{index: make(map[string]int)}
	for _, c := range t.columns {
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c.take(indices))
	}
	return out
}

// SortByTime returns a new table with rows ordered by the named time column,
// ascending. Missing dates sort last. The sort is stable.
func (t *Table) SortByTime(dateColumn string) (*Table, error) {
	col, ok := t.Column(dateColumn)
	if !ok {
		return nil, fmt.Errorf("column %q not found", dateColumn)
	}
	if col.DType != DTypeTime {
		return nil, fmt.Errorf("column %q is %s, want %s", dateColumn, col.DType, DTypeTime)
	}
	indices := make([]int, t.NumRows())
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		if !col.Valid[ia] {
			return false
		}
		if !col.Valid[ib] {
			return true
		}
		return col.Times[ia].Before(col.Times[ib])
	})
	return t.TakeRows(indices), nil
}

// NumericColumnNames returns the names of all numeric columns, in order.
func (t *Table) NumericColumnNames() []string {
	var names []string
	for _, c := range t.columns {
		if c.DType == DTypeNumeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.index))}
	for _, c := range t.columns {
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c.Clone())
	}
	return out
}

func (t *Table) shallowClone() *Table {
	out := &Table{
		columns: append([]*Series(nil), t.columns...),
		index:   make(map[string]int, len(t.index)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}

// ApproxMemoryBytes estimates the in-memory size of the table. Used by the
// comparison stage to decide whether cross-validation stays affordable.
func (t *Table) ApproxMemoryBytes() int64 {
	var total int64
	for _, c := range t.columns {
		switch c.DType {
		case DTypeNumeric:
			total += int64(len(c.Floats)) * 8
		case DTypeTime:
			total += int64(len(c.Times)) * 24
		case DTypeString:
			for _, s := range c.Strings {
				total += int64(len(s)) + 16
			}
		}
		total += int64(len(c.Valid))
	}
	return total
}
