package compare

import (
	"fmt"
	"strings"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// validation guardrails
const (
	highCardinalityWarning = 100
	largeDatasetBytes      = 500 << 20
	minRows                = 10
)

// ValidationReport lists every blocking violation and every soft warning
// found in one pass over the table. Errors are collected, not short-
// circuited, so the caller sees all of them at once.
type ValidationReport struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether modeling can proceed.
func (r ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

// ValidationError wraps a failed report as an error.
type ValidationError struct {
	Report ValidationReport
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Report.Errors, "; ")
}

// ValidateForModeling checks a table and target ahead of a comparison run.
func ValidateForModeling(t *dataset.Table, target string) ValidationReport {
	var report ValidationReport

	if t.NumRows() == 0 {
		report.Errors = append(report.Errors, "dataset has no rows")
	} else if t.NumRows() < minRows {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("dataset has only %d rows, scores will be unreliable", t.NumRows()))
	}

	targetCol, ok := t.Column(target)
	if !ok {
		report.Errors = append(report.Errors, fmt.Sprintf("target column %q not found", target))
	} else {
		valid := targetCol.Len() - targetCol.NullCount()
		if valid == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("target column %q is empty or entirely missing", target))
		} else if targetCol.NullCount() > 0 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("target column %q has %d missing values", target, targetCol.NullCount()))
		}
	}

	featureCount := 0
	var nanColumns []string
	for _, c := range t.Columns() {
		if c.Name == target {
			continue
		}
		featureCount++
		if c.NullCount() > 0 {
			nanColumns = append(nanColumns, c.Name)
		}
		if c.DType == dataset.DTypeString && c.UniqueCount() > highCardinalityWarning {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("column %q has %d distinct values and will be dropped from encoding", c.Name, c.UniqueCount()))
		}
	}
	if featureCount == 0 {
		report.Errors = append(report.Errors, "no feature columns besides the target")
	}

	if len(nanColumns) > 0 {
		if len(nanColumns) <= 5 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("columns with missing values will be imputed: %s", strings.Join(nanColumns, ", ")))
		} else {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%d columns have missing values and will be imputed", len(nanColumns)))
		}
	}

	if size := t.ApproxMemoryBytes(); size > largeDatasetBytes {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("dataset is large (%d MB), training may be slow", size>>20))
	}

	return report
}
