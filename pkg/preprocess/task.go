// Package preprocess turns raw feature tables into model-ready numeric
// matrices: task type detection on the target, and a preprocessing plan with
// statistics frozen on the training split only.
package preprocess

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/YacoubouKya/climrisk/pkg/dataset"
)

// TaskType is the learning task inferred from the target column. It is
// detected once per run and never changes mid-run.
type TaskType string

const (
	TaskClassification TaskType = "classification"
	TaskRegression     TaskType = "regression"
	// TaskAuto asks the comparison stage to detect the task itself.
	TaskAuto TaskType = "auto"
)

// ErrEmptyTarget is returned when the target column has no usable values.
var ErrEmptyTarget = errors.New("target column is empty or entirely missing")

// DetectTaskType classifies the learning task from the target column.
// Non-numeric storage always means classification. Numeric targets are
// classification when they look like codes: at most 20 distinct values AND
// a distinct ratio under 10%. Everything else is regression. The ratio
// denominator is the full column length, missing cells included.
func DetectTaskType(target *dataset.Series) (TaskType, error) {
	if target.Len()-target.NullCount() == 0 {
		return "", fmt.Errorf("column %q: %w", target.Name, ErrEmptyTarget)
	}
	if target.DType != dataset.DTypeNumeric {
		return TaskClassification, nil
	}
	distinct := target.UniqueCount()
	if distinct <= 20 && float64(distinct)/float64(target.Len()) < 0.1 {
		return TaskClassification, nil
	}
	return TaskRegression, nil
}

// ClassLabels renders the target as string class labels, missing cells
// excluded by the caller. Numeric code targets format compactly so 1.0 and
// 1 map to the same class.
func ClassLabels(target *dataset.Series) []string {
	labels := make([]string, target.Len())
	for i := 0; i < target.Len(); i++ {
		if !target.Valid[i] {
			continue
		}
		switch target.DType {
		case dataset.DTypeString:
			labels[i] = target.Strings[i]
		case dataset.DTypeNumeric:
			labels[i] = strconv.FormatFloat(target.Floats[i], 'g', -1, 64)
		case dataset.DTypeTime:
			labels[i] = target.Times[i].Format("2006-01-02")
		}
	}
	return labels
}
