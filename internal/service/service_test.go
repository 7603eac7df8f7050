package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/cache"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/config"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/provider"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/trainer"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/validation"
)

// fakeSource is a scriptable HistorySource.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	records []models.ClimateRecord
	err     error
}

func (f *fakeSource) FetchHistory(ctx context.Context, latitude, longitude float64, startYear, endYear int) ([]models.ClimateRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func liveRecords(n int) []models.ClimateRecord {
	records := make([]models.ClimateRecord, n)
	for i := range records {
		records[i] = models.ClimateRecord{
			Date:          time.Date(2024-i, 6, 15, 0, 0, 0, 0, time.UTC),
			Temperature:   20 + float64(i%15),
			Precipitation: float64(i % 8),
			WindSpeed:     8 + float64(i%20),
			Humidity:      40 + float64(i%40),
			HeatIndex:     20 + float64(i%15),
		}
	}
	return records
}

func testConfig() *config.Config {
	return &config.Config{
		MaxHistoryYears:  50,
		SyntheticYears:   30,
		MinUsableRecords: 3,
		TrainingSeed:     42,
	}
}

func newTestService(t *testing.T, cfg *config.Config, source provider.HistorySource) (*Service, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	c := cache.New(st, logger)
	artifacts := store.NewArtifacts(dir)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New(cfg, source, c, st, artifacts, clock, logger), st
}

func TestGetProbabilitiesLiveTier(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)

	result, err := svc.GetProbabilities(context.Background(), ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
	})
	require.NoError(t, err)

	assert.Equal(t, "NASA POWER API", result.DataSource)
	assert.Equal(t, 0.88, result.AccuracyEstimate)
	assert.Equal(t, "40.417_-3.704", result.Location.Key)
	assert.Len(t, result.Probabilities, 5)
	assert.Equal(t, 20, result.RecordCount)
	assert.NotNil(t, result.Current)
	assert.Equal(t, 1, source.callCount())
}

func TestGetProbabilitiesCacheHit(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)
	q := ProbabilityQuery{Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15"}

	_, err := svc.GetProbabilities(context.Background(), q)
	require.NoError(t, err)

	result, err := svc.GetProbabilities(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "NASA POWER API (cached)", result.DataSource)
	assert.Equal(t, 0.88, result.AccuracyEstimate)
	assert.Equal(t, 1, source.callCount(), "cache hit must not refetch")
}

func TestGetProbabilitiesSyntheticTier(t *testing.T) {
	source := &fakeSource{err: provider.ErrProviderUnavailable}
	svc, _ := newTestService(t, testConfig(), source)

	result, err := svc.GetProbabilities(context.Background(), ProbabilityQuery{
		Latitude: 10, Longitude: 10, DayOfYear: "03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "Synthetic Data", result.DataSource)
	assert.Equal(t, 0.65, result.AccuracyEstimate)
	assert.Equal(t, 30, result.RecordCount)
}

func TestGetProbabilitiesStaticTier(t *testing.T) {
	cfg := testConfig()
	cfg.SyntheticYears = 2 // below the usable-record gate
	source := &fakeSource{err: provider.ErrProviderUnavailable}
	svc, _ := newTestService(t, cfg, source)

	result, err := svc.GetProbabilities(context.Background(), ProbabilityQuery{
		Latitude: 10, Longitude: 10, DayOfYear: "03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "Static Defaults", result.DataSource)
	assert.Equal(t, 0.65, result.AccuracyEstimate)
	assert.Equal(t, 0, result.RecordCount)
	require.Len(t, result.Probabilities, 5)
	for _, p := range result.Probabilities {
		if p.Condition == models.VeryHot {
			assert.Equal(t, 0.15, p.Probability)
			assert.Equal(t, 35.0, p.Threshold)
		}
	}
}

func TestGetProbabilitiesCustomThresholdFahrenheit(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)

	base, err := svc.GetProbabilities(context.Background(), ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
	})
	require.NoError(t, err)

	custom := 32.0
	result, err := svc.GetProbabilities(context.Background(), ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
		Unit:   models.Fahrenheit,
		Custom: &models.CustomThresholds{VeryHot: &custom},
	})
	require.NoError(t, err)

	var baseHot, hot models.ConditionProbability
	for _, p := range base.Probabilities {
		if p.Condition == models.VeryHot {
			baseHot = p
		}
	}
	for _, p := range result.Probabilities {
		if p.Condition == models.VeryHot {
			hot = p
		}
	}
	assert.True(t, hot.IsCustom)
	assert.InDelta(t, 89.6, hot.Threshold, 1e-9)
	assert.Equal(t, "°F", hot.Unit)
	assert.Equal(t, baseHot.Probability, hot.Probability)
}

func TestGetProbabilitiesReturnsHistoricalData(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)
	ctx := context.Background()

	celsius, err := svc.GetProbabilities(ctx, ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
	})
	require.NoError(t, err)
	require.Len(t, celsius.HistoricalData, 20)
	assert.Equal(t, 20.0, celsius.HistoricalData[0].Temperature)

	fahrenheit, err := svc.GetProbabilities(ctx, ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
		Unit: models.Fahrenheit,
	})
	require.NoError(t, err)
	require.Len(t, fahrenheit.HistoricalData, 20)
	assert.InDelta(t, 68.0, fahrenheit.HistoricalData[0].Temperature, 1e-9)
	assert.InDelta(t, 68.0, fahrenheit.HistoricalData[0].HeatIndex, 1e-9)

	// Conversion must not leak into the cached records.
	again, err := svc.GetProbabilities(ctx, ProbabilityQuery{
		Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15",
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, again.HistoricalData[0].Temperature)
}

func TestGetProbabilitiesValidation(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), &fakeSource{})
	ctx := context.Background()

	_, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 99, Longitude: 0, DayOfYear: "06-15"})
	assert.ErrorIs(t, err, validation.ErrLatitudeOutOfRange)

	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 0, Longitude: 0, DayOfYear: "junk"})
	assert.ErrorIs(t, err, validation.ErrInvalidDateSpec)

	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 0, Longitude: 0, DayOfYear: "06-15", Unit: "kelvin"})
	assert.Error(t, err)
}

func TestSyntheticCacheToppedUpForNewDay(t *testing.T) {
	source := &fakeSource{err: provider.ErrProviderUnavailable}
	svc, _ := newTestService(t, testConfig(), source)
	ctx := context.Background()

	_, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 10, Longitude: 10, DayOfYear: "03-01"})
	require.NoError(t, err)

	// Same location, different day: the cached synthetic set has no matches
	// for it and must be extended, not served empty.
	result, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 10, Longitude: 10, DayOfYear: "09-15"})
	require.NoError(t, err)
	assert.Equal(t, "Synthetic Data (cached)", result.DataSource)
	assert.Equal(t, 30, result.RecordCount)
}

func TestGetFuturePredictions(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)
	ctx := context.Background()

	// Nothing cached: projector runs on empty history.
	result, err := svc.GetFuturePredictions(ctx, 40.4168, -3.7038, 3, models.Celsius)
	require.NoError(t, err)
	require.Len(t, result.Predictions, 3)
	assert.Equal(t, "Static Defaults", result.DataSource)
	assert.Equal(t, 0.3, result.Predictions[0].Confidence)
	assert.Equal(t, 0, source.callCount(), "projection must not fetch")

	// After a probability query the history is cached and confidence rises.
	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15"})
	require.NoError(t, err)

	result, err = svc.GetFuturePredictions(ctx, 40.4168, -3.7038, 3, models.Celsius)
	require.NoError(t, err)
	assert.Equal(t, "NASA POWER API (cached)", result.DataSource)
	assert.Greater(t, result.Predictions[0].Confidence, 0.3)
}

func TestGetFuturePredictionsHorizonValidation(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), &fakeSource{})
	_, err := svc.GetFuturePredictions(context.Background(), 0, 0, 0, models.Celsius)
	assert.ErrorIs(t, err, validation.ErrHorizonOutOfRange)
}

func TestGetModelMetricsLifecycle(t *testing.T) {
	source := &fakeSource{records: liveRecords(25)}
	svc, st := newTestService(t, testConfig(), source)
	ctx := context.Background()

	_, err := svc.GetModelMetrics(ctx, 40.4168, -3.7038)
	assert.ErrorIs(t, err, ErrModelNotTrained)

	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15"})
	require.NoError(t, err)

	// Training runs in the background after the first commit.
	require.Eventually(t, func() bool {
		trained, err := st.IsTrained("40.417_-3.704")
		return err == nil && trained
	}, 30*time.Second, 50*time.Millisecond)

	metrics, err := svc.GetModelMetrics(ctx, 40.4168, -3.7038)
	require.NoError(t, err)
	assert.Equal(t, 25, metrics.RecordCount)
	assert.Len(t, metrics.Models, 5)
	assert.Contains(t, metrics.Models, "temperature_predictor")
	assert.Contains(t, metrics.Models, "condition_classifier")
}

func TestClearCacheSingleLocation(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, st := newTestService(t, testConfig(), source)
	ctx := context.Background()

	_, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15"})
	require.NoError(t, err)
	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 10, Longitude: 10, DayOfYear: "06-15"})
	require.NoError(t, err)

	lat, lon := 40.4168, -3.7038
	cleared, err := svc.ClearCache(ctx, &lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	_, _, err = st.LoadRecords("40.417_-3.704")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, _, err = st.LoadRecords("10.000_10.000")
	assert.NoError(t, err)

	// Clearing an unknown location is a no-op, not an error.
	cleared, err = svc.ClearCache(ctx, &lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared)
}

func TestClearCacheAll(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)
	ctx := context.Background()

	_, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 1, Longitude: 1, DayOfYear: "06-15"})
	require.NoError(t, err)
	_, err = svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 2, Longitude: 2, DayOfYear: "06-15"})
	require.NoError(t, err)

	cleared, err := svc.ClearCache(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	info, err := svc.GetCacheInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Total)
}

func TestGetCacheInfo(t *testing.T) {
	source := &fakeSource{records: liveRecords(20)}
	svc, _ := newTestService(t, testConfig(), source)
	ctx := context.Background()

	_, err := svc.GetProbabilities(ctx, ProbabilityQuery{Latitude: 40.4168, Longitude: -3.7038, DayOfYear: "06-15"})
	require.NoError(t, err)

	info, err := svc.GetCacheInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, info.Total)
	assert.Equal(t, "40.417_-3.704", info.Locations[0].Key)
	assert.Equal(t, 20, info.Locations[0].RecordCount)
}

func TestTrainingFlightRunsOncePerKey(t *testing.T) {
	tf := newTrainingFlight(5 * time.Second)
	var mu sync.Mutex
	var counter int

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := tf.GetOrDo(context.Background(), "key", func() (*trainer.Bundle, error) {
				mu.Lock()
				counter++
				mu.Unlock()
				time.Sleep(50 * time.Millisecond)
				return &trainer.Bundle{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counter, "concurrent callers must coalesce into one run")
}

func TestTrainingFlightPropagatesError(t *testing.T) {
	tf := newTrainingFlight(time.Second)
	wantErr := errors.New("boom")
	_, err := tf.GetOrDo(context.Background(), "key", func() (*trainer.Bundle, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
