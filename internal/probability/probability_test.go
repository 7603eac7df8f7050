package probability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

func dayRecords(n int, temp func(i int) float64) []models.ClimateRecord {
	records := make([]models.ClimateRecord, n)
	for i := range records {
		t := temp(i)
		records[i] = models.ClimateRecord{
			Date:          time.Date(2024-i, 6, 15, 0, 0, 0, 0, time.UTC),
			Temperature:   t,
			Precipitation: float64(i % 5),
			WindSpeed:     10 + float64(i%10),
			Humidity:      50,
			HeatIndex:     t,
		}
	}
	return records
}

func findCondition(t *testing.T, probs []models.ConditionProbability, c models.Condition) models.ConditionProbability {
	t.Helper()
	for _, p := range probs {
		if p.Condition == c {
			return p
		}
	}
	t.Fatalf("condition %s not in result", c)
	return models.ConditionProbability{}
}

func TestComputeAllConditions(t *testing.T) {
	records := dayRecords(20, func(i int) float64 { return 15 + float64(i) })
	result, err := Compute(records, Options{})
	require.NoError(t, err)
	require.Len(t, result.Probabilities, 5)
	assert.Equal(t, 20, result.RecordCount)

	for _, p := range result.Probabilities {
		assert.GreaterOrEqual(t, p.Probability, 0.0)
		assert.LessOrEqual(t, p.Probability, 1.0)
		assert.False(t, p.IsCustom)
	}

	// With 20 evenly spread temperatures the strict-exceedance fraction of
	// the P90 cut sits near 10%.
	hot := findCondition(t, result.Probabilities, models.VeryHot)
	assert.InDelta(t, 0.10, hot.Probability, 0.06)
	cold := findCondition(t, result.Probabilities, models.VeryCold)
	assert.InDelta(t, 0.10, cold.Probability, 0.06)

	// Mean of 15..34 is 24.5.
	assert.InDelta(t, 24.5, result.MeanTemperature, 1e-9)
}

func TestComputeSubsetOfConditions(t *testing.T) {
	records := dayRecords(10, func(i int) float64 { return 20 })
	result, err := Compute(records, Options{Conditions: []models.Condition{models.VeryWet}})
	require.NoError(t, err)
	require.Len(t, result.Probabilities, 1)
	assert.Equal(t, models.VeryWet, result.Probabilities[0].Condition)
	assert.Equal(t, "mm", result.Probabilities[0].Unit)
}

func TestComputeUnknownCondition(t *testing.T) {
	records := dayRecords(5, func(i int) float64 { return 20 })
	_, err := Compute(records, Options{Conditions: []models.Condition{"very_sunny"}})
	assert.Error(t, err)
}

func TestComputeEmptySet(t *testing.T) {
	_, err := Compute(nil, Options{})
	assert.Error(t, err)
}

// Custom thresholds replace the displayed value and flag is_custom, without
// touching the probability.
func TestCustomThresholdReplacesDisplayOnly(t *testing.T) {
	records := dayRecords(20, func(i int) float64 { return 15 + float64(i) })

	base, err := Compute(records, Options{})
	require.NoError(t, err)
	baseHot := findCondition(t, base.Probabilities, models.VeryHot)

	custom := 32.0
	result, err := Compute(records, Options{
		Unit:   models.Fahrenheit,
		Custom: &models.CustomThresholds{VeryHot: &custom},
	})
	require.NoError(t, err)
	hot := findCondition(t, result.Probabilities, models.VeryHot)

	assert.True(t, hot.IsCustom)
	assert.InDelta(t, 89.6, hot.Threshold, 1e-9)
	assert.Equal(t, "°F", hot.Unit)
	assert.Equal(t, baseHot.Probability, hot.Probability)
}

func TestFahrenheitConversionAppliesToTemperatureConditionsOnly(t *testing.T) {
	records := dayRecords(20, func(i int) float64 { return 15 + float64(i) })
	result, err := Compute(records, Options{Unit: models.Fahrenheit})
	require.NoError(t, err)

	hot := findCondition(t, result.Probabilities, models.VeryHot)
	assert.Equal(t, "°F", hot.Unit)
	windy := findCondition(t, result.Probabilities, models.VeryWindy)
	assert.Equal(t, "km/h", windy.Unit)
	wet := findCondition(t, result.Probabilities, models.VeryWet)
	assert.Equal(t, "mm", wet.Unit)
}

func TestStaticDefaults(t *testing.T) {
	result, err := StaticDefaults(Options{})
	require.NoError(t, err)
	require.Len(t, result.Probabilities, 5)

	hot := findCondition(t, result.Probabilities, models.VeryHot)
	assert.Equal(t, 0.15, hot.Probability)
	assert.Equal(t, 35.0, hot.Threshold)

	wet := findCondition(t, result.Probabilities, models.VeryWet)
	assert.Equal(t, 0.20, wet.Probability)
	assert.Equal(t, 10.0, wet.Threshold)
}

func TestStaticDefaultsFahrenheit(t *testing.T) {
	result, err := StaticDefaults(Options{Unit: models.Fahrenheit})
	require.NoError(t, err)
	hot := findCondition(t, result.Probabilities, models.VeryHot)
	assert.Equal(t, 95.0, hot.Threshold)
	assert.Equal(t, "°F", hot.Unit)
}

func TestSelectAnalysisSetDayFilter(t *testing.T) {
	records := []models.ClimateRecord{
		{Date: time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC)},
	}
	got := SelectAnalysisSet(records, 6, 15, 0, time.Now())
	assert.Len(t, got, 2)
}

func TestSelectAnalysisSetYearsRange(t *testing.T) {
	var records []models.ClimateRecord
	for year := 2000; year <= 2024; year++ {
		records = append(records, models.ClimateRecord{
			Date: time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
		})
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	got := SelectAnalysisSet(records, 6, 15, 10, now)
	require.Len(t, got, 10)
	assert.Equal(t, 2015, got[0].Date.Year())

	// Too few recent records: fall back to every day match.
	got = SelectAnalysisSet(records[:5], 6, 15, 1, now)
	assert.Len(t, got, 5)
}

func TestCurrentConditionsDescription(t *testing.T) {
	base := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	records := []models.ClimateRecord{
		{Date: base.AddDate(-1, 0, 0), Temperature: 20},
		{Date: base, Temperature: 35, Precipitation: 1, WindSpeed: 5, Humidity: 40, HeatIndex: 38},
	}
	result, err := Compute(records, Options{Conditions: []models.Condition{models.VeryHot}})
	require.NoError(t, err)
	require.NotNil(t, result.Current)
	assert.Equal(t, 35.0, result.Current.Temperature)
	assert.Equal(t, "hot", result.Current.Description)

	records[1].Precipitation = 25
	result, err = Compute(records, Options{Conditions: []models.Condition{models.VeryHot}})
	require.NoError(t, err)
	assert.Equal(t, "rainy", result.Current.Description)
}

func TestCurrentConditionsFahrenheit(t *testing.T) {
	base := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	records := []models.ClimateRecord{
		{Date: base.AddDate(-1, 0, 0), Temperature: 20},
		{Date: base, Temperature: 35, Humidity: 40, HeatIndex: 38},
	}
	result, err := Compute(records, Options{
		Conditions: []models.Condition{models.VeryHot},
		Unit:       models.Fahrenheit,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Current)

	assert.Equal(t, 95.0, result.Current.Temperature)
	// Description thresholds stay in °C.
	assert.Equal(t, "hot", result.Current.Description)
}
