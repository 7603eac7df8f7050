package ml

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a CART regression tree. Leaves carry the mean of
// their training targets; internal nodes route on Feature < Threshold.
type TreeNode struct {
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Value     float64   `json:"value"`
	Leaf      bool      `json:"leaf"`
}

// RegressionTree fits piecewise-constant predictions by greedy variance
// reduction.
type RegressionTree struct {
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MaxFeatures     int       `json:"max_features,omitempty"` // 0 means all
	Root            *TreeNode `json:"root"`

	// importances accumulates weighted impurity decrease per feature during
	// Fit; read through Importances.
	importances []float64
	rng         *rand.Rand
}

// NewRegressionTree builds an unfitted tree. rng drives feature subsampling
// and may be nil when MaxFeatures is 0.
func NewRegressionTree(maxDepth, minSamplesSplit, maxFeatures int, rng *rand.Rand) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	return &RegressionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MaxFeatures:     maxFeatures,
		rng:             rng,
	}
}

// Fit grows the tree on x, y.
func (t *RegressionTree) Fit(x [][]float64, y []float64) {
	if len(x) == 0 {
		t.Root = &TreeNode{Leaf: true}
		return
	}
	t.importances = make([]float64, len(x[0]))
	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	t.Root = t.grow(x, y, indices, 0)
}

// Predict returns the leaf value for one row.
func (t *RegressionTree) Predict(row []float64) float64 {
	node := t.Root
	for node != nil && !node.Leaf {
		if row[node.Feature] < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Value
}

// Importances returns the normalized impurity-decrease per feature from the
// last Fit, or nil if the tree was deserialized.
func (t *RegressionTree) Importances() []float64 {
	return normalizeImportances(t.importances)
}

func (t *RegressionTree) grow(x [][]float64, y []float64, indices []int, depth int) *TreeNode {
	value := meanAt(y, indices)
	if depth >= t.MaxDepth || len(indices) < t.MinSamplesSplit || constantAt(y, indices) {
		return &TreeNode{Leaf: true, Value: value}
	}

	feature, threshold, gain, ok := t.bestSplit(x, y, indices)
	if !ok {
		return &TreeNode{Leaf: true, Value: value}
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Value: value}
	}

	t.importances[feature] += gain

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Value:     value,
		Left:      t.grow(x, y, left, depth+1),
		Right:     t.grow(x, y, right, depth+1),
	}
}

// bestSplit scans candidate features for the threshold with the largest
// weighted variance reduction. Thresholds are midpoints between consecutive
// distinct sorted values.
func (t *RegressionTree) bestSplit(x [][]float64, y []float64, indices []int) (feature int, threshold, gain float64, ok bool) {
	features := t.candidateFeatures(len(x[0]))
	parentSSE := sseAt(y, indices)
	n := float64(len(indices))

	bestGain := 0.0
	values := make([]float64, len(indices))
	for _, f := range features {
		for i, idx := range indices {
			values[i] = x[idx][f]
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			thr := (values[i] + values[i-1]) / 2

			var leftSum, leftSq, rightSum, rightSq float64
			var leftN, rightN float64
			for _, idx := range indices {
				v := y[idx]
				if x[idx][f] < thr {
					leftSum += v
					leftSq += v * v
					leftN++
				} else {
					rightSum += v
					rightSq += v * v
					rightN++
				}
			}
			if leftN == 0 || rightN == 0 {
				continue
			}
			childSSE := (leftSq - leftSum*leftSum/leftN) + (rightSq - rightSum*rightSum/rightN)
			g := (parentSSE - childSSE) / n
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = thr
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func (t *RegressionTree) candidateFeatures(total int) []int {
	if t.MaxFeatures <= 0 || t.MaxFeatures >= total || t.rng == nil {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := t.rng.Perm(total)
	return perm[:t.MaxFeatures]
}

func meanAt(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

func sseAt(y []float64, indices []int) float64 {
	m := meanAt(y, indices)
	var sse float64
	for _, i := range indices {
		d := y[i] - m
		sse += d * d
	}
	return sse
}

func constantAt(y []float64, indices []int) bool {
	for _, i := range indices[1:] {
		if y[i] != y[indices[0]] {
			return false
		}
	}
	return true
}

func normalizeImportances(imp []float64) []float64 {
	if imp == nil {
		return nil
	}
	var total float64
	for _, v := range imp {
		total += v
	}
	out := make([]float64, len(imp))
	if total == 0 {
		return out
	}
	for i, v := range imp {
		out[i] = v / total
	}
	return out
}

func softmaxRow(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
