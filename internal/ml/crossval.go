package ml

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// KFold shuffles [0,n) and splits it into k contiguous folds. Every index
// lands in exactly one fold; fold sizes differ by at most one.
func KFold(n, k int, rng *rand.Rand) [][]int {
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	perm := rng.Perm(n)
	folds := make([][]int, k)
	for i, idx := range perm {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds
}

// StratifiedKFold distributes each label's samples round-robin over k folds,
// preserving class ratios as closely as the counts allow.
func StratifiedKFold(y []int, k int, rng *rand.Rand) [][]int {
	if k < 2 {
		k = 2
	}
	byLabel := make(map[int][]int)
	for i, label := range y {
		byLabel[label] = append(byLabel[label], i)
	}

	folds := make([][]int, k)
	for _, label := range uniqueSorted(y) {
		indices := byLabel[label]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for i, idx := range indices {
			f := i % k
			folds[f] = append(folds[f], idx)
		}
	}
	return folds
}

// TrainTestFromFolds returns the train indices (all folds except hold) and the
// test indices (the held-out fold).
func TrainTestFromFolds(folds [][]int, hold int) (train, test []int) {
	for i, fold := range folds {
		if i == hold {
			test = append(test, fold...)
			continue
		}
		train = append(train, fold...)
	}
	return train, test
}

// MeanStd returns the mean and (sample) standard deviation of fold scores.
// One score yields std 0.
func MeanStd(scores []float64) (mean, std float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	if len(scores) == 1 {
		return scores[0], 0
	}
	mean, std = stat.MeanStdDev(scores, nil)
	return mean, std
}

// Select gathers rows of x at indices.
func Select(x [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = x[idx]
	}
	return out
}

// SelectFloats gathers elements of y at indices.
func SelectFloats(y []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}

// SelectInts gathers elements of y at indices.
func SelectInts(y []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}
