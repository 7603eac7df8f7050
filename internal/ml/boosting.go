package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// GradientBoostingClassifier is a multi-class classifier boosting one
// regression tree per class per round against softmax residuals.
type GradientBoostingClassifier struct {
	NEstimators  int     `json:"n_estimators"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Subsample    float64 `json:"subsample"`

	Classes    []int               `json:"classes"`
	InitScores []float64           `json:"init_scores"`
	Rounds     [][]*RegressionTree `json:"rounds"` // Rounds[i][c] is round i, class c
	// FeatureImportance is the average normalized impurity decrease across
	// all boosted trees, captured at fit time.
	FeatureImportance []float64 `json:"feature_importance,omitempty"`
}

// NewGradientBoostingClassifier builds an unfitted classifier.
func NewGradientBoostingClassifier(nEstimators, maxDepth int, learningRate, subsample float64) *GradientBoostingClassifier {
	if nEstimators <= 0 {
		nEstimators = 100
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if learningRate <= 0 {
		learningRate = 0.1
	}
	if subsample <= 0 || subsample > 1 {
		subsample = 1
	}
	return &GradientBoostingClassifier{
		NEstimators:  nEstimators,
		MaxDepth:     maxDepth,
		LearningRate: learningRate,
		Subsample:    subsample,
	}
}

// Fit boosts trees against the one-hot residuals of a softmax model. Class
// labels may be any ints; they are sorted into Classes and predictions come
// back in label space.
func (g *GradientBoostingClassifier) Fit(x [][]float64, y []int, rng *rand.Rand) error {
	if len(x) == 0 {
		return fmt.Errorf("ml: boosting fit on empty matrix")
	}
	if len(x) != len(y) {
		return fmt.Errorf("ml: boosting fit with %d rows but %d labels", len(x), len(y))
	}

	g.Classes = uniqueSorted(y)
	if len(g.Classes) < 2 {
		return fmt.Errorf("ml: boosting needs at least 2 classes, got %d", len(g.Classes))
	}
	classIndex := make(map[int]int, len(g.Classes))
	for i, c := range g.Classes {
		classIndex[c] = i
	}

	n := len(x)
	k := len(g.Classes)

	// Log-prior init keeps early rounds from chasing class imbalance.
	counts := make([]float64, k)
	for _, label := range y {
		counts[classIndex[label]]++
	}
	g.InitScores = make([]float64, k)
	for c := range g.InitScores {
		p := counts[c] / float64(n)
		if p <= 0 {
			p = 1e-9
		}
		g.InitScores[c] = math.Log(p)
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, k)
		copy(scores[i], g.InitScores)
	}

	sampleSize := int(math.Round(g.Subsample * float64(n)))
	if sampleSize < 1 {
		sampleSize = 1
	}

	cols := len(x[0])
	importance := make([]float64, cols)
	treeCount := 0

	residual := make([]float64, n)
	g.Rounds = make([][]*RegressionTree, g.NEstimators)
	for round := 0; round < g.NEstimators; round++ {
		sample := subsampleIndices(n, sampleSize, rng)

		g.Rounds[round] = make([]*RegressionTree, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				p := softmaxRow(scores[i])[c]
				target := 0.0
				if classIndex[y[i]] == c {
					target = 1
				}
				residual[i] = target - p
			}

			sx := make([][]float64, len(sample))
			sy := make([]float64, len(sample))
			for j, idx := range sample {
				sx[j] = x[idx]
				sy[j] = residual[idx]
			}

			tree := NewRegressionTree(g.MaxDepth, 2, 0, nil)
			tree.Fit(sx, sy)
			g.Rounds[round][c] = tree

			for j, v := range tree.Importances() {
				importance[j] += v
			}
			treeCount++

			for i := 0; i < n; i++ {
				scores[i][c] += g.LearningRate * tree.Predict(x[i])
			}
		}
	}

	if treeCount > 0 {
		for j := range importance {
			importance[j] /= float64(treeCount)
		}
	}
	g.FeatureImportance = importance
	return nil
}

// PredictProba returns per-class probabilities in Classes order for one row.
func (g *GradientBoostingClassifier) PredictProba(row []float64) []float64 {
	scores := make([]float64, len(g.Classes))
	copy(scores, g.InitScores)
	for _, round := range g.Rounds {
		for c, tree := range round {
			scores[c] += g.LearningRate * tree.Predict(row)
		}
	}
	return softmaxRow(scores)
}

// Predict returns the label with the highest probability.
func (g *GradientBoostingClassifier) Predict(row []float64) int {
	probs := g.PredictProba(row)
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return g.Classes[best]
}

// PredictBatch predicts every row.
func (g *GradientBoostingClassifier) PredictBatch(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		out[i] = g.Predict(row)
	}
	return out
}

func uniqueSorted(y []int) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func subsampleIndices(n, size int, rng *rand.Rand) []int {
	if size >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(n)[:size]
}
