package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForestRegressor averages bootstrap-trained regression trees.
type RandomForestRegressor struct {
	NEstimators     int               `json:"n_estimators"`
	MaxDepth        int               `json:"max_depth"`
	MinSamplesSplit int               `json:"min_samples_split"`
	Trees           []*RegressionTree `json:"trees"`
	// FeatureImportance is the average normalized impurity decrease across
	// trees, captured at fit time.
	FeatureImportance []float64 `json:"feature_importance,omitempty"`
}

// NewRandomForestRegressor builds an unfitted forest.
func NewRandomForestRegressor(nEstimators, maxDepth, minSamplesSplit int) *RandomForestRegressor {
	if nEstimators <= 0 {
		nEstimators = 100
	}
	return &RandomForestRegressor{
		NEstimators:     nEstimators,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
	}
}

// Fit trains NEstimators trees, each on a bootstrap resample of x. Feature
// subsampling uses sqrt(p) features per split.
func (f *RandomForestRegressor) Fit(x [][]float64, y []float64, rng *rand.Rand) error {
	if len(x) == 0 {
		return fmt.Errorf("ml: forest fit on empty matrix")
	}
	if len(x) != len(y) {
		return fmt.Errorf("ml: forest fit with %d rows but %d targets", len(x), len(y))
	}

	cols := len(x[0])
	maxFeatures := int(math.Ceil(math.Sqrt(float64(cols))))

	f.Trees = make([]*RegressionTree, f.NEstimators)
	importance := make([]float64, cols)

	bootX := make([][]float64, len(x))
	bootY := make([]float64, len(y))
	for i := 0; i < f.NEstimators; i++ {
		for j := range x {
			k := rng.Intn(len(x))
			bootX[j] = x[k]
			bootY[j] = y[k]
		}
		tree := NewRegressionTree(f.MaxDepth, f.MinSamplesSplit, maxFeatures, rng)
		tree.Fit(bootX, bootY)
		f.Trees[i] = tree

		for j, v := range tree.Importances() {
			importance[j] += v
		}
	}

	for j := range importance {
		importance[j] /= float64(f.NEstimators)
	}
	f.FeatureImportance = importance
	return nil
}

// Predict returns the mean prediction across trees for one row.
func (f *RandomForestRegressor) Predict(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees))
}

// PredictBatch predicts every row.
func (f *RandomForestRegressor) PredictBatch(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = f.Predict(row)
	}
	return out
}
