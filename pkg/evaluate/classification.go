// Package evaluate computes classification and regression metrics for the
// model comparison stage.
package evaluate

import (
	"fmt"
	"sort"
	"strings"
)

// ClassificationMetrics holds the full metric surface for one evaluation.
// Accuracy is the primary comparison score; WeightedF1 the secondary.
type ClassificationMetrics struct {
	Accuracy        float64                   `json:"accuracy"`
	WeightedF1      float64                   `json:"weighted_f1"`
	MacroF1         float64                   `json:"macro_f1"`
	Precision       map[string]float64        `json:"precision"`
	Recall          map[string]float64        `json:"recall"`
	F1Score         map[string]float64        `json:"f1_score"`
	Support         map[string]int            `json:"support"`
	ConfusionMatrix map[string]map[string]int `json:"confusion_matrix"`
	Classes         []string                  `json:"classes"`
}

// EvaluateClassification compares predictions against true labels.
func EvaluateClassification(yTrue, yPred []string) (*ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("length mismatch: %d true vs %d predicted", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no samples to evaluate")
	}

	classSet := make(map[string]struct{})
	for _, c := range yTrue {
		classSet[c] = struct{}{}
	}
	for _, c := range yPred {
		classSet[c] = struct{}{}
	}
	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	confusion := make(map[string]map[string]int, len(classes))
	for _, c := range classes {
		confusion[c] = make(map[string]int, len(classes))
	}
	correct := 0
	for i := range yTrue {
		confusion[yTrue[i]][yPred[i]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	m := &ClassificationMetrics{
		Accuracy:        float64(correct) / float64(len(yTrue)),
		Precision:       make(map[string]float64, len(classes)),
		Recall:          make(map[string]float64, len(classes)),
		F1Score:         make(map[string]float64, len(classes)),
		Support:         make(map[string]int, len(classes)),
		ConfusionMatrix: confusion,
		Classes:         classes,
	}

	var macroF1, weightedF1 float64
	for _, c := range classes {
		tp := confusion[c][c]
		var fp, fn int
		for _, other := range classes {
			if other == c {
				continue
			}
			fp += confusion[other][c]
			fn += confusion[c][other]
		}
		support := tp + fn
		m.Support[c] = support

		var precision, recall float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		m.Precision[c] = precision
		m.Recall[c] = recall
		m.F1Score[c] = f1
		macroF1 += f1
		weightedF1 += f1 * float64(support)
	}
	m.MacroF1 = macroF1 / float64(len(classes))
	m.WeightedF1 = weightedF1 / float64(len(yTrue))
	return m, nil
}

// FormatConfusionMatrix renders the confusion matrix as an aligned text
// block, rows true classes, columns predicted.
func (m *ClassificationMetrics) FormatConfusionMatrix() string {
	var b strings.Builder
	width := 8
	for _, c := range m.Classes {
		if len(c)+2 > width {
			width = len(c) + 2
		}
	}
	fmt.Fprintf(&b, "%*s", width, "")
	for _, c := range m.Classes {
		fmt.Fprintf(&b, "%*s", width, c)
	}
	b.WriteString("\n")
	for _, actual := range m.Classes {
		fmt.Fprintf(&b, "%*s", width, actual)
		for _, predicted := range m.Classes {
			fmt.Fprintf(&b, "%*d", width, m.ConfusionMatrix[actual][predicted])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Format renders a short metric report.
func (m *ClassificationMetrics) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy:    %.4f\n", m.Accuracy)
	fmt.Fprintf(&b, "Weighted F1: %.4f\n", m.WeightedF1)
	fmt.Fprintf(&b, "Macro F1:    %.4f\n", m.MacroF1)
	for _, c := range m.Classes {
		fmt.Fprintf(&b, "  %s: precision=%.4f recall=%.4f f1=%.4f support=%d\n",
			c, m.Precision[c], m.Recall[c], m.F1Score[c], m.Support[c])
	}
	return b.String()
}
