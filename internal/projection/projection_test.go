package projection

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/validation"
)

func fixedProjector(t *testing.T, at time.Time) *Projector {
	t.Helper()
	return New(clockwork.NewFakeClockAt(at))
}

func findCondition(t *testing.T, probs []models.ConditionProbability, c models.Condition) models.ConditionProbability {
	t.Helper()
	for _, p := range probs {
		if p.Condition == c {
			return p
		}
	}
	t.Fatalf("condition %s missing", c)
	return models.ConditionProbability{}
}

func TestProjectHorizonAndDates(t *testing.T) {
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	p := fixedProjector(t, now)

	predictions, err := p.Project(nil, 7, models.Celsius)
	require.NoError(t, err)
	require.Len(t, predictions, 7)

	assert.Equal(t, 15, predictions[0].Date.Day())
	assert.Equal(t, 21, predictions[6].Date.Day())
	for _, pred := range predictions {
		assert.Len(t, pred.Probabilities, 5)
	}
}

func TestProjectHorizonValidation(t *testing.T) {
	p := fixedProjector(t, time.Now())
	_, err := p.Project(nil, 0, models.Celsius)
	assert.ErrorIs(t, err, validation.ErrHorizonOutOfRange)
	_, err = p.Project(nil, 61, models.Celsius)
	assert.ErrorIs(t, err, validation.ErrHorizonOutOfRange)
}

func TestProjectNoHistoryDefaults(t *testing.T) {
	p := fixedProjector(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	predictions, err := p.Project(nil, 1, models.Celsius)
	require.NoError(t, err)

	assert.Equal(t, 0.3, predictions[0].Confidence)
	for _, cp := range predictions[0].Probabilities {
		assert.Equal(t, noHistoryProbability, cp.Probability)
	}
}

func TestProjectDayWithoutMatchesUsesHistoryDefault(t *testing.T) {
	// History covers January 1 only; the projected day is June 15.
	var records []models.ClimateRecord
	for year := 2020; year <= 2024; year++ {
		records = append(records, models.ClimateRecord{
			Date:        time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
			Temperature: 10,
		})
	}

	p := fixedProjector(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	predictions, err := p.Project(records, 1, models.Celsius)
	require.NoError(t, err)

	for _, cp := range predictions[0].Probabilities {
		assert.Equal(t, noDayMatchProbability, cp.Probability, cp.Condition)
	}
}

func TestProjectUsesDayMatches(t *testing.T) {
	now := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	// History for June 15: 2 of 4 years at or above 35°C, none windy.
	var records []models.ClimateRecord
	temps := []float64{36, 35, 20, 21}
	for i, temp := range temps {
		records = append(records, models.ClimateRecord{
			Date:        time.Date(2021+i, 6, 15, 0, 0, 0, 0, time.UTC),
			Temperature: temp,
			WindSpeed:   5,
			Humidity:    40,
		})
	}

	p := fixedProjector(t, now)
	predictions, err := p.Project(records, 1, models.Celsius)
	require.NoError(t, err)

	probs := predictions[0].Probabilities
	hot := findCondition(t, probs, models.VeryHot)
	assert.Equal(t, 0.5, hot.Probability)
	assert.Equal(t, 35.0, hot.Threshold)

	// Rule never fired for wind: the hit fraction is zero, not a default.
	windy := findCondition(t, probs, models.VeryWindy)
	assert.Equal(t, 0.0, windy.Probability)

	// Uncomfortable fires on the hot days.
	uncomfortable := findCondition(t, probs, models.VeryUncomfortable)
	assert.Equal(t, 0.5, uncomfortable.Probability)
}

func TestProjectCapsHitFraction(t *testing.T) {
	// Every June 15 on record was hot: the raw fraction is 1.0, reported 0.95.
	var records []models.ClimateRecord
	for year := 2021; year <= 2024; year++ {
		records = append(records, models.ClimateRecord{
			Date:        time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
			Temperature: 40,
		})
	}

	p := fixedProjector(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	predictions, err := p.Project(records, 1, models.Celsius)
	require.NoError(t, err)

	hot := findCondition(t, predictions[0].Probabilities, models.VeryHot)
	assert.Equal(t, probabilityCap, hot.Probability)
}

func TestProjectConfidenceScalesWithHistory(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := fixedProjector(t, now)

	makeRecords := func(n int) []models.ClimateRecord {
		out := make([]models.ClimateRecord, n)
		for i := range out {
			out[i] = models.ClimateRecord{Date: time.Date(2000+i%20, 3, 3, 0, 0, 0, 0, time.UTC)}
		}
		return out
	}

	small, err := p.Project(makeRecords(5), 1, models.Celsius)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, small[0].Confidence, 1e-12)

	large, err := p.Project(makeRecords(100), 1, models.Celsius)
	require.NoError(t, err)
	assert.Equal(t, 0.95, large[0].Confidence)
}

func TestProjectFahrenheitThresholds(t *testing.T) {
	p := fixedProjector(t, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC))
	predictions, err := p.Project(nil, 1, models.Fahrenheit)
	require.NoError(t, err)

	hot := findCondition(t, predictions[0].Probabilities, models.VeryHot)
	assert.Equal(t, 95.0, hot.Threshold)
	assert.Equal(t, "°F", hot.Unit)
	windy := findCondition(t, predictions[0].Probabilities, models.VeryWindy)
	assert.Equal(t, 25.0, windy.Threshold)
	assert.Equal(t, "km/h", windy.Unit)
}
