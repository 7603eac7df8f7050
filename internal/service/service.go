// Package service orchestrates the data tiers behind every operation: cached
// history first, then the live provider, then synthetic generation, then
// static defaults. Committing a first-time location also kicks off its model
// training exactly once.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/cache"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/config"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/observability"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/probability"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/projection"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/provider"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/synthetic"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/trainer"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/validation"
)

// ErrModelNotTrained is returned when model metrics are requested for a
// location that has no trained bundle yet.
var ErrModelNotTrained = errors.New("model not trained for location")

// Data source labels surfaced to clients.
const (
	sourceLive      = "NASA POWER API"
	sourceSynthetic = "Synthetic Data"
	sourceStatic    = "Static Defaults"
	cachedSuffix    = " (cached)"
)

// Accuracy estimates per data source family.
const (
	accuracyLive     = 0.88
	accuracyFallback = 0.65
)

// trainingTimeout bounds how long a caller waits on an in-flight training run.
const trainingTimeout = 5 * time.Minute

// Service wires the orchestrator's dependencies together.
type Service struct {
	cfg       *config.Config
	source    provider.HistorySource
	cache     *cache.LocationCache
	store     *store.Store
	artifacts *store.Artifacts
	trainer   *trainer.Trainer
	projector *projection.Projector
	generator *synthetic.Generator
	flight    *trainingFlight
	clock     clockwork.Clock
	logger    *zap.Logger
}

// New builds a Service. The clock is injectable for tests.
func New(cfg *config.Config, source provider.HistorySource, c *cache.LocationCache, st *store.Store, artifacts *store.Artifacts, clock clockwork.Clock, logger *zap.Logger) *Service {
	return &Service{
		cfg:       cfg,
		source:    source,
		cache:     c,
		store:     st,
		artifacts: artifacts,
		trainer:   trainer.New(cfg.TrainingSeed, logger),
		projector: projection.New(clock),
		generator: synthetic.New(cfg.TrainingSeed),
		flight:    newTrainingFlight(trainingTimeout),
		clock:     clock,
		logger:    logger,
	}
}

// ProbabilityQuery is one probability request.
type ProbabilityQuery struct {
	Latitude   float64
	Longitude  float64
	DayOfYear  string // MM-DD
	Conditions []models.Condition
	Unit       models.TemperatureUnit
	Custom     *models.CustomThresholds
	YearsRange int // 0 = full history
}

// Location echoes the resolved coordinate back to the client.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Key       string  `json:"location_key"`
}

// ProbabilityResult is the full answer to a probability query.
// HistoricalData is the analysis set itself, temperatures converted to the
// requested unit.
type ProbabilityResult struct {
	Location         Location                       `json:"location"`
	DayOfYear        string                         `json:"day_of_year"`
	Probabilities    []models.ConditionProbability  `json:"probabilities"`
	HistoricalData   []models.ClimateRecord         `json:"historical_data"`
	MeanTemperature  float64                        `json:"mean_temperature"`
	Current          *probability.CurrentConditions `json:"current_conditions,omitempty"`
	DataSource       string                         `json:"data_source"`
	AccuracyEstimate float64                        `json:"accuracy_estimate"`
	RecordCount      int                            `json:"record_count"`
}

// GetProbabilities answers a probability query, walking the fallback tiers as
// needed.
func (s *Service) GetProbabilities(ctx context.Context, q ProbabilityQuery) (*ProbabilityResult, error) {
	if err := validation.ValidateCoordinates(q.Latitude, q.Longitude); err != nil {
		return nil, err
	}
	month, day, err := validation.ParseDayOfYear(q.DayOfYear)
	if err != nil {
		return nil, err
	}
	unit := q.Unit
	if unit == "" {
		unit = models.Celsius
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("invalid temperature unit %q", unit)
	}

	observability.ProbabilityQueriesTotal.Inc()

	key := models.LocationKey(q.Latitude, q.Longitude)
	result := &ProbabilityResult{
		Location:  Location{Latitude: q.Latitude, Longitude: q.Longitude, Key: key},
		DayOfYear: q.DayOfYear,
	}
	opts := probability.Options{Conditions: q.Conditions, Unit: unit, Custom: q.Custom}

	records, source, err := s.ensureRecords(ctx, q.Latitude, q.Longitude, month, day)
	if err != nil {
		return nil, err
	}

	analysis := probability.SelectAnalysisSet(records, month, day, q.YearsRange, s.clock.Now())
	if len(analysis) == 0 {
		static, err := probability.StaticDefaults(opts)
		if err != nil {
			return nil, err
		}
		result.Probabilities = static.Probabilities
		result.HistoricalData = []models.ClimateRecord{}
		result.DataSource = sourceStatic
		result.AccuracyEstimate = accuracyFallback
		return result, nil
	}

	computed, err := probability.Compute(analysis, opts)
	if err != nil {
		return nil, err
	}
	result.Probabilities = computed.Probabilities
	result.HistoricalData = recordsForUnit(analysis, unit)
	result.MeanTemperature = computed.MeanTemperature
	result.Current = computed.Current
	result.RecordCount = computed.RecordCount
	result.DataSource = source
	result.AccuracyEstimate = accuracyEstimate(source)
	return result, nil
}

// FutureResult is the answer to a projection request.
type FutureResult struct {
	Location    Location                  `json:"location"`
	Predictions []models.FuturePrediction `json:"predictions"`
	DataSource  string                    `json:"data_source"`
}

// GetFuturePredictions projects forward from cached history only; it never
// triggers a fetch.
func (s *Service) GetFuturePredictions(ctx context.Context, latitude, longitude float64, days int, unit models.TemperatureUnit) (*FutureResult, error) {
	if err := validation.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}
	if unit == "" {
		unit = models.Celsius
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("invalid temperature unit %q", unit)
	}

	key := models.LocationKey(latitude, longitude)
	var records []models.ClimateRecord
	source := sourceStatic
	if entry, ok := s.cache.Get(key); ok {
		records = entry.Records
		source = entry.Source + cachedSuffix
	}

	predictions, err := s.projector.Project(records, days, unit)
	if err != nil {
		return nil, err
	}
	return &FutureResult{
		Location:    Location{Latitude: latitude, Longitude: longitude, Key: key},
		Predictions: predictions,
		DataSource:  source,
	}, nil
}

// MetricsResult reports the trained bundle's evaluation for a location.
type MetricsResult struct {
	Location     Location                         `json:"location"`
	TrainedAt    time.Time                        `json:"trained_at"`
	RecordCount  int                              `json:"record_count"`
	FeatureNames []string                         `json:"feature_names"`
	Models       map[string]*trainer.ModelMetrics `json:"models"`
}

// GetModelMetrics returns evaluation metrics for a trained location, or
// ErrModelNotTrained.
func (s *Service) GetModelMetrics(ctx context.Context, latitude, longitude float64) (*MetricsResult, error) {
	if err := validation.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}
	key := models.LocationKey(latitude, longitude)

	trained, err := s.store.IsTrained(key)
	if err != nil {
		return nil, err
	}
	if !trained || !s.artifacts.Exists(key) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotTrained, key)
	}

	bundle, err := trainer.Load(s.artifacts, key)
	if err != nil {
		return nil, err
	}
	return &MetricsResult{
		Location:     Location{Latitude: latitude, Longitude: longitude, Key: key},
		TrainedAt:    bundle.TrainedAt,
		RecordCount:  bundle.RecordCount,
		FeatureNames: bundle.FeatureNames,
		Models:       bundle.Metrics,
	}, nil
}

// ClearCache removes cached records, training flags and model artifacts for
// one location, or for all when latitude/longitude are nil. It returns how
// many locations were cleared.
func (s *Service) ClearCache(ctx context.Context, latitude, longitude *float64) (int, error) {
	if latitude != nil && longitude != nil {
		if err := validation.ValidateCoordinates(*latitude, *longitude); err != nil {
			return 0, err
		}
		key := models.LocationKey(*latitude, *longitude)
		if _, ok := s.cache.Get(key); !ok {
			return 0, nil
		}
		if err := s.cache.Clear(key); err != nil {
			return 0, err
		}
		if err := s.artifacts.Delete(key); err != nil {
			return 0, err
		}
		s.logger.Info("cache cleared", zap.String("locationKey", key))
		return 1, nil
	}

	n := s.cache.Len()
	if err := s.cache.ClearAll(); err != nil {
		return 0, err
	}
	if err := s.artifacts.DeleteAll(); err != nil {
		return 0, err
	}
	s.logger.Info("cache cleared", zap.Int("locations", n))
	return n, nil
}

// CacheInfo summarizes every cached location.
type CacheInfo struct {
	Locations []store.LocationInfo `json:"locations"`
	Total     int                  `json:"total"`
}

// GetCacheInfo lists cached locations with record counts and training state.
func (s *Service) GetCacheInfo(ctx context.Context) (*CacheInfo, error) {
	infos, err := s.store.ListLocations()
	if err != nil {
		return nil, err
	}
	return &CacheInfo{Locations: infos, Total: len(infos)}, nil
}

// ensureRecords returns usable records for the location, walking the tiers on
// a cache miss. A nil record slice with sourceStatic means every data tier
// failed.
func (s *Service) ensureRecords(ctx context.Context, latitude, longitude float64, month, day int) ([]models.ClimateRecord, string, error) {
	key := models.LocationKey(latitude, longitude)
	now := s.clock.Now()

	if entry, ok := s.cache.Get(key); ok {
		observability.CacheHitsTotal.Inc()
		records := entry.Records
		// A synthetic entry only covers the day it was generated for; top it
		// up when a different day is asked about.
		if entry.Source == sourceSynthetic && countDayMatches(records, month, day) < s.cfg.MinUsableRecords {
			extra := s.generator.GenerateForDay(latitude, longitude, month, day, s.cfg.SyntheticYears, now.Year())
			records = append(records, extra...)
			if err := s.cache.Put(key, sourceSynthetic, records); err != nil {
				return nil, "", err
			}
		}
		return records, entry.Source + cachedSuffix, nil
	}
	observability.CacheMissesTotal.Inc()

	startYear := now.Year() - s.cfg.MaxHistoryYears
	records, err := s.source.FetchHistory(ctx, latitude, longitude, startYear, now.Year())
	if err == nil && countDayMatches(records, month, day) >= s.cfg.MinUsableRecords {
		observability.FallbackTierTotal.WithLabelValues("live").Inc()
		if err := s.commit(key, latitude, longitude, sourceLive, records); err != nil {
			return nil, "", err
		}
		return records, sourceLive, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		s.logger.Warn("provider tier failed, falling back to synthetic",
			zap.String("locationKey", key),
			zap.Error(err))
	}

	records = s.generator.GenerateForDay(latitude, longitude, month, day, s.cfg.SyntheticYears, now.Year())
	if len(records) >= s.cfg.MinUsableRecords {
		observability.FallbackTierTotal.WithLabelValues("synthetic").Inc()
		if err := s.commit(key, latitude, longitude, sourceSynthetic, records); err != nil {
			return nil, "", err
		}
		return records, sourceSynthetic, nil
	}

	observability.FallbackTierTotal.WithLabelValues("static").Inc()
	return nil, sourceStatic, nil
}

// commit persists a record set and starts the location's one-time model
// training in the background.
func (s *Service) commit(key string, latitude, longitude float64, source string, records []models.ClimateRecord) error {
	if err := s.cache.Put(key, source, records); err != nil {
		return err
	}

	trained, err := s.store.IsTrained(key)
	if err != nil {
		return err
	}
	if trained {
		return nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), trainingTimeout)
		defer cancel()
		if _, err := s.flight.GetOrDo(ctx, key, func() (*trainer.Bundle, error) {
			return s.trainAndPersist(key, latitude, longitude, records)
		}); err != nil {
			s.logger.Error("background training failed",
				zap.String("locationKey", key),
				zap.Error(err))
		}
	}()
	return nil
}

func (s *Service) trainAndPersist(key string, latitude, longitude float64, records []models.ClimateRecord) (*trainer.Bundle, error) {
	start := time.Now()

	// Another caller may have finished while we queued.
	if trained, err := s.store.IsTrained(key); err == nil && trained {
		return trainer.Load(s.artifacts, key)
	}

	bundle, err := s.trainer.Train(latitude, longitude, records)
	if err != nil {
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := bundle.Save(s.artifacts); err != nil {
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := s.store.MarkTrained(key); err != nil {
		observability.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	observability.TrainingRunsTotal.WithLabelValues("success").Inc()
	observability.TrainingDurationSeconds.Observe(time.Since(start).Seconds())
	return bundle, nil
}

// recordsForUnit copies records, converting temperature fields when
// Fahrenheit is requested. Cached records always stay in °C.
func recordsForUnit(records []models.ClimateRecord, unit models.TemperatureUnit) []models.ClimateRecord {
	out := make([]models.ClimateRecord, len(records))
	copy(out, records)
	if unit != models.Fahrenheit {
		return out
	}
	for i := range out {
		out[i].Temperature = models.CelsiusToFahrenheit(out[i].Temperature)
		out[i].HeatIndex = models.CelsiusToFahrenheit(out[i].HeatIndex)
	}
	return out
}

func countDayMatches(records []models.ClimateRecord, month, day int) int {
	var n int
	for _, r := range records {
		if int(r.Date.Month()) == month && r.Date.Day() == day {
			n++
		}
	}
	return n
}

func accuracyEstimate(source string) float64 {
	if strings.HasPrefix(source, sourceLive) {
		return accuracyLive
	}
	return accuracyFallback
}
