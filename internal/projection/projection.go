// Package projection extends cached history into day-by-day forward
// probabilities. It uses a fixed absolute-threshold rule per condition rather
// than the percentile engine: a projection answers "how often did this
// calendar day actually hit extreme values", not "what was unusual here".
package projection

import (
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/validation"
)

// Absolute thresholds for the projection rule, native units.
const (
	hotThresholdC     = 35.0
	coldThresholdC    = 5.0
	windyThresholdKmh = 25.0
	wetThresholdMm    = 10.0
	humidThresholdPct = 80.0
)

// Fallback probabilities: noDayMatch when history exists but none of it
// covers the target calendar day, noHistory when there is no history at all.
// Computed hit fractions are capped at probabilityCap.
const (
	noDayMatchProbability = 0.15
	noHistoryProbability  = 0.10
	noHistoryConfidence   = 0.3
	probabilityCap        = 0.95
)

// Projector computes forward projections relative to an injected clock.
type Projector struct {
	clock clockwork.Clock
}

// New returns a Projector.
func New(clock clockwork.Clock) *Projector {
	return &Projector{clock: clock}
}

// Project returns one prediction per day for the next `days` days. Confidence
// grows with the size of the location's full history, capped at 0.95.
func (p *Projector) Project(records []models.ClimateRecord, days int, unit models.TemperatureUnit) ([]models.FuturePrediction, error) {
	if err := validation.ValidateHorizon(days); err != nil {
		return nil, err
	}

	confidence := noHistoryConfidence
	if len(records) > 0 {
		confidence = math.Min(0.95, float64(len(records))/20)
	}

	now := p.clock.Now().UTC()
	predictions := make([]models.FuturePrediction, 0, days)
	for d := 1; d <= days; d++ {
		date := now.AddDate(0, 0, d)

		var dayMatches []models.ClimateRecord
		for _, r := range records {
			if r.Date.Month() == date.Month() && r.Date.Day() == date.Day() {
				dayMatches = append(dayMatches, r)
			}
		}

		var probs []models.ConditionProbability
		for _, c := range models.AllConditions() {
			probability := dayProbability(c, dayMatches, len(records) > 0)
			threshold := c.DefaultThreshold()
			unitLabel := c.Unit()
			if c.TemperatureBased() && unit == models.Fahrenheit {
				threshold = models.CelsiusToFahrenheit(threshold)
				unitLabel = "°F"
			}
			cp, err := models.NewConditionProbability(c, probability, threshold, unitLabel, false)
			if err != nil {
				return nil, fmt.Errorf("projection: %w", err)
			}
			probs = append(probs, cp)
		}

		predictions = append(predictions, models.FuturePrediction{
			Date:          date,
			Probabilities: probs,
			Confidence:    confidence,
		})
	}
	return predictions, nil
}

func dayProbability(c models.Condition, dayMatches []models.ClimateRecord, hasHistory bool) float64 {
	if len(dayMatches) == 0 {
		if hasHistory {
			return noDayMatchProbability
		}
		return noHistoryProbability
	}
	var hits int
	for _, r := range dayMatches {
		if conditionHit(c, r) {
			hits++
		}
	}
	return math.Min(probabilityCap, float64(hits)/float64(len(dayMatches)))
}

func conditionHit(c models.Condition, r models.ClimateRecord) bool {
	switch c {
	case models.VeryHot:
		return r.Temperature >= hotThresholdC
	case models.VeryCold:
		return r.Temperature <= coldThresholdC
	case models.VeryWindy:
		return r.WindSpeed >= windyThresholdKmh
	case models.VeryWet:
		return r.Precipitation >= wetThresholdMm
	case models.VeryUncomfortable:
		return r.Temperature >= hotThresholdC ||
			r.Temperature <= coldThresholdC ||
			r.Humidity >= humidThresholdPct
	default:
		return false
	}
}
