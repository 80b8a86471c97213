package dataset

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// dateLayouts are the formats tried when sniffing date columns in raw
// climate exports, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
}

// ParseTime parses a single cell against the known date layouts.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DetectDateColumns returns the names of string columns whose non-missing
// values overwhelmingly parse as dates (at least 80%).
func DetectDateColumns(t *Table) []string {
	var names []string
	for _, c := range t.Columns() {
		if c.DType == DTypeTime {
			names = append(names, c.Name)
			continue
		}
		if c.DType != DTypeString {
			continue
		}
		parsed, total := 0, 0
		for i, v := range c.Strings {
			if !c.Valid[i] {
				continue
			}
			total++
			if _, ok := ParseTime(v); ok {
				parsed++
			}
		}
		if total > 0 && float64(parsed)/float64(total) >= 0.8 {
			names = append(names, c.Name)
		}
	}
	return names
}

// ParseDateColumn returns a new table with the named string column replaced
// by a time column. Cells that fail to parse become missing.
func ParseDateColumn(t *Table, name string) (*Table, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	if col.DType == DTypeTime {
		return t, nil
	}
	if col.DType != DTypeString {
		return nil, fmt.Errorf("column %q is %s, cannot parse as dates", name, col.DType)
	}
	times := make([]time.Time, col.Len())
	for i, v := range col.Strings {
		if !col.Valid[i] {
			continue
		}
		if ts, ok := ParseTime(v); ok {
			times[i] = ts
		}
	}
	return t.WithColumn(NewTimeSeries(name, times))
}

// CleanColumnNames returns a new table with normalized column names:
// lowercase, trimmed, internal whitespace collapsed to underscores, and
// other non-alphanumeric runes dropped. Collisions get a numeric suffix.
func CleanColumnNames(t *Table) *Table {
	out := &Table{index: make(map[string]int)}
	for _, c := range t.Columns() {
		name := normalizeName(c.Name)
		if name == "" {
			name = "column"
		}
		unique := name
		for n := 2; ; n++ {
			if _, taken := out.index[unique]; !taken {
				break
			}
			unique = fmt.Sprintf("%s_%d", name, n)
		}
		renamed := c.Clone()
		renamed.Name = unique
		out.index[unique] = len(out.columns)
		out.columns = append(out.columns, renamed)
	}
	return out
}

func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(strings.ToLower(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '.' || r == '/':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// RemoveDuplicateColumns returns a new table keeping only the first of any
// columns with identical content. Merged climate exports often carry the
// same station field twice under different names.
func RemoveDuplicateColumns(t *Table) *Table {
	seen := make(map[string]string)
	var dropped []string
	for _, c := range t.Columns() {
		key := contentKey(c)
		if _, dup := seen[key]; dup {
			dropped = append(dropped, c.Name)
			continue
		}
		seen[key] = c.Name
	}
	if len(dropped) == 0 {
		return t
	}
	return t.Drop(dropped...)
}

func contentKey(s *Series) string {
	var b strings.Builder
	b.WriteString(string(s.DType))
	for i := 0; i < s.Len(); i++ {
		b.WriteByte('|')
		if !s.Valid[i] {
			continue
		}
		switch s.DType {
		case DTypeNumeric:
			fmt.Fprintf(&b, "%g", s.Floats[i])
		case DTypeString:
			b.WriteString(s.Strings[i])
		case DTypeTime:
			fmt.Fprintf(&b, "%d", s.Times[i].UnixNano())
		}
	}
	return b.String()
}

// MergeOnTime inner-joins two tables on their shared time column. Right-hand
// columns whose names collide get a "_right" suffix. Rows join on exact
// timestamp equality; duplicate keys join against the first occurrence.
func MergeOnTime(left, right *Table, on string) (*Table, error) {
	lcol, ok := left.Column(on)
	if !ok {
		return nil, fmt.Errorf("left table: column %q not found", on)
	}
	rcol, ok := right.Column(on)
	if !ok {
		return nil, fmt.Errorf("right table: column %q not found", on)
	}
	if lcol.DType != DTypeTime || rcol.DType != DTypeTime {
		return nil, fmt.Errorf("merge key %q must be a time column on both sides", on)
	}

	rightIdx := make(map[int64]int, rcol.Len())
	for i := rcol.Len() - 1; i >= 0; i-- {
		if rcol.Valid[i] {
			rightIdx[rcol.Times[i].UnixNano()] = i
		}
	}

	var leftRows, rightRows []int
	for i := 0; i < lcol.Len(); i++ {
		if !lcol.Valid[i] {
			continue
		}
		if j, ok := rightIdx[lcol.Times[i].UnixNano()]; ok {
			leftRows = append(leftRows, i)
			rightRows = append(rightRows, j)
		}
	}

	merged := left.TakeRows(leftRows)
	rightTaken := right.Drop(on).TakeRows(rightRows)
	for _, c := range rightTaken.Columns() {
		if merged.HasColumn(c.Name) {
			c = c.Clone()
			c.Name = c.Name + "_right"
		}
		var err error
		merged, err = merged.WithColumn(c)
		if err != nil {
			return nil, fmt.Errorf("merging column %q: %w", c.Name, err)
		}
	}
	return merged, nil
}
