// Package trainer fits the per-location model bundle: three forest regressors
// for the continuous weather variables and two boosted classifiers for the
// categorical ones. The search budget adapts to how much history the location
// actually has.
package trainer

import (
	"time"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/ml"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
)

// Model names, stable across persistence.
const (
	ModelTemperature   = "temperature_predictor"
	ModelWind          = "wind_predictor"
	ModelHumidity      = "humidity_predictor"
	ModelPrecipitation = "precipitation_classifier"
	ModelCondition     = "condition_classifier"
)

// regressionModels and classifierModels fix iteration order for training and
// persistence.
var (
	regressionModels = []string{ModelTemperature, ModelWind, ModelHumidity}
	classifierModels = []string{ModelPrecipitation, ModelCondition}
)

// Params is one hyperparameter combination.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split,omitempty"`
	LearningRate    float64 `json:"learning_rate,omitempty"`
	Subsample       float64 `json:"subsample,omitempty"`
}

// ModelMetrics is the evaluation record for one trained model.
type ModelMetrics struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // regression or classification

	MSE  float64 `json:"mse,omitempty"`
	RMSE float64 `json:"rmse,omitempty"`
	MAE  float64 `json:"mae,omitempty"`
	R2   float64 `json:"r2,omitempty"`

	Accuracy  float64         `json:"accuracy,omitempty"`
	Precision float64         `json:"precision,omitempty"`
	Recall    float64         `json:"recall,omitempty"`
	F1        float64         `json:"f1,omitempty"`
	PerClass  []ml.ClassStats `json:"per_class,omitempty"`

	CVMean  float64 `json:"cv_mean"`
	CVStd   float64 `json:"cv_std"`
	CVFolds int     `json:"cv_folds"`

	Quality string `json:"quality"`
	Params  Params `json:"params"`

	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`

	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Bundle is the full trained state for one location.
type Bundle struct {
	LocationKey  string    `json:"location_key"`
	TrainedAt    time.Time `json:"trained_at"`
	RecordCount  int       `json:"record_count"`
	FeatureNames []string  `json:"feature_names"`

	Scaler      *ml.StandardScaler                        `json:"-"`
	Regressors  map[string]*ml.RandomForestRegressor      `json:"-"`
	Classifiers map[string]*ml.GradientBoostingClassifier `json:"-"`
	Metrics     map[string]*ModelMetrics                  `json:"-"`
}

// Save persists the bundle as one artifact per model plus scaler, metrics and
// a manifest.
func (b *Bundle) Save(artifacts *store.Artifacts) error {
	key := b.LocationKey
	if err := artifacts.Save(key, "manifest", b); err != nil {
		return err
	}
	if err := artifacts.Save(key, "scaler", b.Scaler); err != nil {
		return err
	}
	for name, model := range b.Regressors {
		if err := artifacts.Save(key, name, model); err != nil {
			return err
		}
	}
	for name, model := range b.Classifiers {
		if err := artifacts.Save(key, name, model); err != nil {
			return err
		}
	}
	return artifacts.Save(key, "metrics", b.Metrics)
}

// Load restores a bundle saved by Save. Skipped models have a metrics entry
// but no artifact, which is not an error.
func Load(artifacts *store.Artifacts, key string) (*Bundle, error) {
	b := &Bundle{
		Regressors:  make(map[string]*ml.RandomForestRegressor),
		Classifiers: make(map[string]*ml.GradientBoostingClassifier),
		Metrics:     make(map[string]*ModelMetrics),
	}
	if err := artifacts.Load(key, "manifest", b); err != nil {
		return nil, err
	}
	b.Scaler = &ml.StandardScaler{}
	if err := artifacts.Load(key, "scaler", b.Scaler); err != nil {
		return nil, err
	}
	if err := artifacts.Load(key, "metrics", &b.Metrics); err != nil {
		return nil, err
	}

	for _, name := range regressionModels {
		if m := b.Metrics[name]; m == nil || m.Skipped {
			continue
		}
		model := &ml.RandomForestRegressor{}
		if err := artifacts.Load(key, name, model); err != nil {
			return nil, err
		}
		b.Regressors[name] = model
	}
	for _, name := range classifierModels {
		if m := b.Metrics[name]; m == nil || m.Skipped {
			continue
		}
		model := &ml.GradientBoostingClassifier{}
		if err := artifacts.Load(key, name, model); err != nil {
			return nil, err
		}
		b.Classifiers[name] = model
	}
	return b, nil
}
