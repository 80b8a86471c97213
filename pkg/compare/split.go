// Package compare runs the model comparison pipeline: validation, task
// detection, train/test splitting, leakage-safe preprocessing, a sequential
// train loop with per-model failure isolation, and ranking.
package compare

import (
	"fmt"
	"math/rand"
)

// Split holds row indices for the two sides of a train/test partition.
type Split struct {
	TrainRows []int `json:"train_rows"`
	TestRows  []int `json:"test_rows"`
}

// TrainTestSplit shuffles row indices with the given seed and cuts off the
// last testSize fraction.
func TrainTestSplit(n int, testSize float64, seed int64) (Split, error) {
	if n < 2 {
		return Split{}, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0, 1), got %g", testSize)
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	testCount := int(float64(n) * testSize)
	if testCount < 1 {
		testCount = 1
	}
	if testCount >= n {
		testCount = n - 1
	}
	return Split{
		TrainRows: indices[testCount:],
		TestRows:  indices[:testCount],
	}, nil
}

// StratifiedSplit partitions per class, preserving class proportions and
// guaranteeing at least one train and one test row per class. It fails when
// any class has fewer than 2 members; callers fall back to TrainTestSplit.
func StratifiedSplit(labels []string, testSize float64, seed int64) (Split, error) {
	if len(labels) < 2 {
		return Split{}, fmt.Errorf("need at least 2 rows to split, got %d", len(labels))
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0, 1), got %g", testSize)
	}
	groups := make(map[string][]int)
	var order []string
	for i, c := range labels {
		if _, seen := groups[c]; !seen {
			order = append(order, c)
		}
		groups[c] = append(groups[c], i)
	}
	for _, c := range order {
		if len(groups[c]) < 2 {
			return Split{}, fmt.Errorf("class %q has only %d member, cannot stratify", c, len(groups[c]))
		}
	}

	rng := rand.New(rand.NewSource(seed))
	var split Split
	for _, c := range order {
		indices := append([]int(nil), groups[c]...)
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		testCount := int(float64(len(indices)) * testSize)
		if testCount < 1 {
			testCount = 1
		}
		if testCount >= len(indices) {
			testCount = len(indices) - 1
		}
		split.TestRows = append(split.TestRows, indices[:testCount]...)
		split.TrainRows = append(split.TrainRows, indices[testCount:]...)
	}
	return split, nil
}
