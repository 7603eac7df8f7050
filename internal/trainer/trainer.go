package trainer

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/features"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/ml"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// ErrInsufficientData is returned when a location has too few usable records
// to train anything.
var ErrInsufficientData = errors.New("trainer: insufficient records to train")

// seasonalCols is the number of leading feature columns that carry only
// location and calendar information. Regressors predict weather variables, so
// they train on these columns alone; feeding them the weather columns would
// leak the targets.
const seasonalCols = 9

// Search-budget breakpoints: below smallSet we fit fixed defaults with no
// search; below mediumSet we run a narrow grid with reduced folds.
const (
	smallSet  = 10
	mediumSet = 50
)

var (
	defaultRegressorParams  = Params{NEstimators: 50, MaxDepth: 10, MinSamplesSplit: 2}
	defaultClassifierParams = Params{NEstimators: 50, MaxDepth: 3, LearningRate: 0.1, Subsample: 1.0}

	narrowRegressorGrid = paramGrid{
		nEstimators:     []int{50, 100},
		maxDepth:        []int{5, 10},
		minSamplesSplit: []int{2},
	}
	wideRegressorGrid = paramGrid{
		nEstimators:     []int{100, 200},
		maxDepth:        []int{10, 20},
		minSamplesSplit: []int{2, 5},
	}
	narrowClassifierGrid = paramGrid{
		nEstimators:   []int{50, 100},
		maxDepth:      []int{3, 5},
		learningRates: []float64{0.1},
		subsamples:    []float64{1.0},
	}
	wideClassifierGrid = paramGrid{
		nEstimators:   []int{100, 200},
		maxDepth:      []int{5, 10, 15},
		learningRates: []float64{0.05, 0.1, 0.15},
		subsamples:    []float64{0.8, 0.9, 1.0},
	}
)

type paramGrid struct {
	nEstimators     []int
	maxDepth        []int
	minSamplesSplit []int
	learningRates   []float64
	subsamples      []float64
}

func (g paramGrid) combinations() []Params {
	minSplits := g.minSamplesSplit
	if len(minSplits) == 0 {
		minSplits = []int{0}
	}
	lrs := g.learningRates
	if len(lrs) == 0 {
		lrs = []float64{0}
	}
	subs := g.subsamples
	if len(subs) == 0 {
		subs = []float64{0}
	}
	var out []Params
	for _, n := range g.nEstimators {
		for _, d := range g.maxDepth {
			for _, ms := range minSplits {
				for _, lr := range lrs {
					for _, sub := range subs {
						out = append(out, Params{
							NEstimators:     n,
							MaxDepth:        d,
							MinSamplesSplit: ms,
							LearningRate:    lr,
							Subsample:       sub,
						})
					}
				}
			}
		}
	}
	return out
}

// Trainer fits model bundles with a fixed seed so retraining on the same
// history reproduces the same models.
type Trainer struct {
	seed   int64
	logger *zap.Logger
}

// New returns a Trainer.
func New(seed int64, logger *zap.Logger) *Trainer {
	return &Trainer{seed: seed, logger: logger}
}

// Train fits the full bundle for one location from its cached history.
func (t *Trainer) Train(latitude, longitude float64, records []models.ClimateRecord) (*Bundle, error) {
	if len(records) < 3 {
		return nil, fmt.Errorf("%w: have %d records", ErrInsufficientData, len(records))
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(t.seed))

	raw := features.Matrix(latitude, longitude, records)
	scaler := &ml.StandardScaler{}
	scaled, err := scaler.FitTransform(raw)
	if err != nil {
		return nil, fmt.Errorf("trainer: scale features: %w", err)
	}

	seasonal := make([][]float64, len(scaled))
	for i, row := range scaled {
		seasonal[i] = row[:seasonalCols]
	}

	bundle := &Bundle{
		LocationKey:  models.LocationKey(latitude, longitude),
		TrainedAt:    time.Now().UTC(),
		RecordCount:  len(records),
		FeatureNames: features.Names(),
		Scaler:       scaler,
		Regressors:   make(map[string]*ml.RandomForestRegressor),
		Classifiers:  make(map[string]*ml.GradientBoostingClassifier),
		Metrics:      make(map[string]*ModelMetrics),
	}

	regressionTargets := map[string]func(models.ClimateRecord) float64{
		ModelTemperature: func(r models.ClimateRecord) float64 { return r.Temperature },
		ModelWind:        func(r models.ClimateRecord) float64 { return r.WindSpeed },
		ModelHumidity:    func(r models.ClimateRecord) float64 { return r.Humidity },
	}
	for _, name := range regressionModels {
		y := make([]float64, len(records))
		for i, r := range records {
			y[i] = regressionTargets[name](r)
		}
		model, metrics := t.trainRegressor(name, seasonal, y, rng)
		if model != nil {
			bundle.Regressors[name] = model
		}
		bundle.Metrics[name] = metrics
	}

	classTargets := map[string][]int{
		ModelPrecipitation: precipitationLabels(records),
		ModelCondition:     conditionLabels(records),
	}
	for _, name := range classifierModels {
		model, metrics := t.trainClassifier(name, scaled, classTargets[name], rng)
		if model != nil {
			bundle.Classifiers[name] = model
		}
		bundle.Metrics[name] = metrics
	}

	t.logger.Info("model bundle trained",
		zap.String("locationKey", bundle.LocationKey),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return bundle, nil
}

func precipitationLabels(records []models.ClimateRecord) []int {
	labels := make([]int, len(records))
	for i, r := range records {
		labels[i] = features.PrecipitationBucket(r.Precipitation)
	}
	return labels
}

// splitIndices shuffles [0,n) and holds out roughly a fifth for testing, at
// least one row on each side.
func splitIndices(n int, rng *rand.Rand) (train, test []int) {
	perm := rng.Perm(n)
	nTest := n / 5
	if nTest < 1 {
		nTest = 1
	}
	return perm[nTest:], perm[:nTest]
}

// stratifiedSplit holds out a fifth of each class.
func stratifiedSplit(y []int, rng *rand.Rand) (train, test []int) {
	byLabel := make(map[int][]int)
	for i, label := range y {
		byLabel[label] = append(byLabel[label], i)
	}
	for _, indices := range byLabel {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := len(indices) / 5
		if nTest < 1 && len(indices) > 1 {
			nTest = 1
		}
		test = append(test, indices[:nTest]...)
		train = append(train, indices[nTest:]...)
	}
	return train, test
}

func (t *Trainer) trainRegressor(name string, x [][]float64, y []float64, rng *rand.Rand) (*ml.RandomForestRegressor, *ModelMetrics) {
	metrics := &ModelMetrics{Name: name, Kind: "regression"}

	trainIdx, testIdx := splitIndices(len(x), rng)
	trainX, testX := ml.Select(x, trainIdx), ml.Select(x, testIdx)
	trainY, testY := ml.SelectFloats(y, trainIdx), ml.SelectFloats(y, testIdx)
	nTrain := len(trainIdx)

	params := defaultRegressorParams
	switch {
	case nTrain < smallSet:
		// Too little data for a meaningful search.
	case nTrain < mediumSet:
		folds := clampFolds(nTrain/10, 2, 5)
		params = t.searchRegressor(narrowRegressorGrid, trainX, trainY, folds, rng, metrics)
	default:
		params = t.searchRegressor(wideRegressorGrid, trainX, trainY, 5, rng, metrics)
	}

	model := ml.NewRandomForestRegressor(params.NEstimators, params.MaxDepth, params.MinSamplesSplit)
	if err := model.Fit(trainX, trainY, rng); err != nil {
		metrics.Skipped = true
		metrics.SkipReason = err.Error()
		return nil, metrics
	}

	pred := model.PredictBatch(testX)
	metrics.MSE = ml.MSE(testY, pred)
	metrics.RMSE = ml.RMSE(testY, pred)
	metrics.MAE = ml.MAE(testY, pred)
	metrics.R2 = ml.R2(testY, pred)
	metrics.Quality = ml.QualityBand(metrics.R2)
	metrics.Params = params
	if metrics.CVFolds == 0 {
		metrics.CVMean = metrics.R2
		metrics.CVStd = 0
	}
	metrics.FeatureImportance = importanceMap(features.Names()[:seasonalCols], model.FeatureImportance)
	return model, metrics
}

func (t *Trainer) searchRegressor(grid paramGrid, x [][]float64, y []float64, folds int, rng *rand.Rand, metrics *ModelMetrics) Params {
	foldSets := ml.KFold(len(x), folds, rng)
	best := defaultRegressorParams
	bestMean := 0.0
	var bestStd float64
	found := false

	for _, p := range grid.combinations() {
		scores := make([]float64, 0, len(foldSets))
		for hold := range foldSets {
			trainIdx, testIdx := ml.TrainTestFromFolds(foldSets, hold)
			model := ml.NewRandomForestRegressor(p.NEstimators, p.MaxDepth, p.MinSamplesSplit)
			if err := model.Fit(ml.Select(x, trainIdx), ml.SelectFloats(y, trainIdx), rng); err != nil {
				continue
			}
			pred := model.PredictBatch(ml.Select(x, testIdx))
			scores = append(scores, ml.R2(ml.SelectFloats(y, testIdx), pred))
		}
		if len(scores) == 0 {
			continue
		}
		mean, std := ml.MeanStd(scores)
		if !found || mean > bestMean {
			found = true
			best, bestMean, bestStd = p, mean, std
		}
	}

	if found {
		metrics.CVMean = bestMean
		metrics.CVStd = bestStd
		metrics.CVFolds = len(foldSets)
	}
	return best
}

func (t *Trainer) trainClassifier(name string, x [][]float64, y []int, rng *rand.Rand) (*ml.GradientBoostingClassifier, *ModelMetrics) {
	metrics := &ModelMetrics{Name: name, Kind: "classification"}

	if uniqueClassCount(y) < 2 {
		metrics.Skipped = true
		metrics.SkipReason = "only one class present in history"
		return nil, metrics
	}

	minCount := minorityCount(y)
	var trainIdx, testIdx []int
	if minCount >= 2 {
		trainIdx, testIdx = stratifiedSplit(y, rng)
	} else {
		trainIdx, testIdx = splitIndices(len(x), rng)
	}
	trainX, testX := ml.Select(x, trainIdx), ml.Select(x, testIdx)
	trainY, testY := ml.SelectInts(y, trainIdx), ml.SelectInts(y, testIdx)
	nTrain := len(trainIdx)

	if uniqueClassCount(trainY) < 2 {
		metrics.Skipped = true
		metrics.SkipReason = "only one class left after split"
		return nil, metrics
	}

	params := defaultClassifierParams
	trainMinCount := minorityCount(trainY)
	if nTrain >= smallSet && trainMinCount >= 2 {
		grid := narrowClassifierGrid
		folds := clampFolds(trainMinCount, 2, 5)
		if nTrain >= mediumSet && trainMinCount >= 5 {
			grid = wideClassifierGrid
			folds = 5
		}
		params = t.searchClassifier(grid, trainX, trainY, folds, rng, metrics)
	}

	model := ml.NewGradientBoostingClassifier(params.NEstimators, params.MaxDepth, params.LearningRate, params.Subsample)
	if err := model.Fit(trainX, trainY, rng); err != nil {
		metrics.Skipped = true
		metrics.SkipReason = err.Error()
		return nil, metrics
	}

	pred := model.PredictBatch(testX)
	metrics.Accuracy = ml.Accuracy(testY, pred)
	metrics.PerClass, metrics.Precision, metrics.Recall, metrics.F1 = ml.ClassificationReport(testY, pred)
	metrics.Quality = ml.QualityBand(metrics.Accuracy)
	metrics.Params = params
	if metrics.CVFolds == 0 {
		metrics.CVMean = metrics.Accuracy
		metrics.CVStd = 0
	}
	metrics.FeatureImportance = importanceMap(features.Names(), model.FeatureImportance)
	return model, metrics
}

func (t *Trainer) searchClassifier(grid paramGrid, x [][]float64, y []int, folds int, rng *rand.Rand, metrics *ModelMetrics) Params {
	foldSets := ml.StratifiedKFold(y, folds, rng)
	best := defaultClassifierParams
	bestMean := 0.0
	var bestStd float64
	found := false

	for _, p := range grid.combinations() {
		scores := make([]float64, 0, len(foldSets))
		for hold := range foldSets {
			trainIdx, testIdx := ml.TrainTestFromFolds(foldSets, hold)
			if uniqueClassCount(ml.SelectInts(y, trainIdx)) < 2 {
				continue
			}
			model := ml.NewGradientBoostingClassifier(p.NEstimators, p.MaxDepth, p.LearningRate, p.Subsample)
			if err := model.Fit(ml.Select(x, trainIdx), ml.SelectInts(y, trainIdx), rng); err != nil {
				continue
			}
			pred := model.PredictBatch(ml.Select(x, testIdx))
			scores = append(scores, ml.Accuracy(ml.SelectInts(y, testIdx), pred))
		}
		if len(scores) == 0 {
			continue
		}
		mean, std := ml.MeanStd(scores)
		if !found || mean > bestMean {
			found = true
			best, bestMean, bestStd = p, mean, std
		}
	}

	if found {
		metrics.CVMean = bestMean
		metrics.CVStd = bestStd
		metrics.CVFolds = len(foldSets)
	}
	return best
}

func clampFolds(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func uniqueClassCount(y []int) int {
	seen := make(map[int]struct{})
	for _, v := range y {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func minorityCount(y []int) int {
	counts := make(map[int]int)
	for _, v := range y {
		counts[v]++
	}
	min := len(y)
	for _, c := range counts {
		if c < min {
			min = c
		}
	}
	return min
}

func importanceMap(names []string, importance []float64) map[string]float64 {
	if len(importance) == 0 {
		return nil
	}
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(importance) {
			out[name] = importance[i]
		}
	}
	return out
}
