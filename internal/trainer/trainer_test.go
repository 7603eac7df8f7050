package trainer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/synthetic"
)

// trainingRecords yields a varied multi-year history for one calendar day.
func trainingRecords(n int) []models.ClimateRecord {
	return synthetic.New(99).GenerateForDay(40.4, -3.7, 6, 15, n, 2024)
}

func TestTrainBuildsFullBundle(t *testing.T) {
	tr := New(42, zap.NewNop())
	bundle, err := tr.Train(40.4168, -3.7038, trainingRecords(30))
	require.NoError(t, err)

	assert.Equal(t, "40.417_-3.704", bundle.LocationKey)
	assert.Equal(t, 30, bundle.RecordCount)
	assert.WithinDuration(t, time.Now(), bundle.TrainedAt, time.Minute)
	require.NotNil(t, bundle.Scaler)

	for _, name := range regressionModels {
		require.Contains(t, bundle.Metrics, name)
		m := bundle.Metrics[name]
		assert.Equal(t, "regression", m.Kind)
		if !m.Skipped {
			require.Contains(t, bundle.Regressors, name)
			assert.NotEmpty(t, m.Quality)
			assert.NotEmpty(t, m.FeatureImportance)
		}
	}
	for _, name := range classifierModels {
		require.Contains(t, bundle.Metrics, name)
		assert.Equal(t, "classification", bundle.Metrics[name].Kind)
	}
}

func TestTrainTooFewRecords(t *testing.T) {
	tr := New(42, zap.NewNop())
	_, err := tr.Train(0, 0, trainingRecords(2))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainTinySetUsesDefaults(t *testing.T) {
	tr := New(42, zap.NewNop())
	bundle, err := tr.Train(10, 10, trainingRecords(6))
	require.NoError(t, err)

	m := bundle.Metrics[ModelTemperature]
	require.False(t, m.Skipped)
	// No search budget below the small-set threshold.
	assert.Equal(t, 0, m.CVFolds)
	assert.Equal(t, defaultRegressorParams.NEstimators, m.Params.NEstimators)
	assert.Equal(t, m.R2, m.CVMean)
	assert.Equal(t, 0.0, m.CVStd)
}

func TestTrainDeterministic(t *testing.T) {
	records := trainingRecords(25)
	a, err := New(42, zap.NewNop()).Train(40.4, -3.7, records)
	require.NoError(t, err)
	b, err := New(42, zap.NewNop()).Train(40.4, -3.7, records)
	require.NoError(t, err)

	am := a.Metrics[ModelTemperature]
	bm := b.Metrics[ModelTemperature]
	assert.Equal(t, am.R2, bm.R2)
	assert.Equal(t, am.CVMean, bm.CVMean)
	assert.Equal(t, am.Params, bm.Params)
}

func TestBundleSaveLoadRoundTrip(t *testing.T) {
	tr := New(42, zap.NewNop())
	bundle, err := tr.Train(40.4168, -3.7038, trainingRecords(25))
	require.NoError(t, err)

	artifacts := store.NewArtifacts(t.TempDir())
	require.NoError(t, bundle.Save(artifacts))

	restored, err := Load(artifacts, bundle.LocationKey)
	require.NoError(t, err)

	assert.Equal(t, bundle.LocationKey, restored.LocationKey)
	assert.Equal(t, bundle.RecordCount, restored.RecordCount)
	assert.Equal(t, bundle.FeatureNames, restored.FeatureNames)
	require.Len(t, restored.Metrics, len(bundle.Metrics))

	// A restored regressor predicts identically to the original.
	if model, ok := bundle.Regressors[ModelTemperature]; ok {
		row := make([]float64, seasonalCols)
		restoredModel := restored.Regressors[ModelTemperature]
		require.NotNil(t, restoredModel)
		assert.Equal(t, model.Predict(row), restoredModel.Predict(row))
	}
}

func TestLoadMissingBundle(t *testing.T) {
	artifacts := store.NewArtifacts(t.TempDir())
	_, err := Load(artifacts, "0.000_0.000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConditionLabels(t *testing.T) {
	// 20 mild days plus clear extremes.
	var records []models.ClimateRecord
	base := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		records = append(records, models.ClimateRecord{
			Date: base.AddDate(-i, 0, 0), Temperature: 20, Precipitation: 1, WindSpeed: 10, Humidity: 50,
		})
	}
	records = append(records,
		models.ClimateRecord{Date: base, Temperature: 45, Precipitation: 1, WindSpeed: 10},  // hot
		models.ClimateRecord{Date: base, Temperature: -10, Precipitation: 1, WindSpeed: 10}, // cold
		models.ClimateRecord{Date: base, Temperature: 20, Precipitation: 80, WindSpeed: 10}, // wet
		models.ClimateRecord{Date: base, Temperature: 20, Precipitation: 1, WindSpeed: 90},  // windy
		models.ClimateRecord{Date: base, Temperature: 45, Precipitation: 80, WindSpeed: 10}, // hot and wet
	)

	labels := conditionLabels(records)
	n := len(labels)
	assert.Equal(t, classHot, labels[n-5])
	assert.Equal(t, classCold, labels[n-4])
	assert.Equal(t, classWet, labels[n-3])
	assert.Equal(t, classWindy, labels[n-2])
	assert.Equal(t, classHotWet, labels[n-1])
	assert.Equal(t, classTypical, labels[0])
}

func TestPrecipitationLabels(t *testing.T) {
	records := []models.ClimateRecord{
		{Precipitation: 0},
		{Precipitation: 1},
		{Precipitation: 5},
		{Precipitation: 20},
		{Precipitation: 60},
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, precipitationLabels(records))
}
