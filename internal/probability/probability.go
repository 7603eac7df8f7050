// Package probability computes how often a location's history exceeded
// extreme-condition thresholds for a given calendar day. Thresholds are
// percentile cut-points of the analysis set itself, so "very hot" means hot
// relative to that location, not to a global scale.
package probability

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// Percentile cut-points per condition.
const (
	hotPercentile           = 0.90
	coldPercentile          = 0.10
	windyPercentile         = 0.85
	wetPercentile           = 0.80
	uncomfortablePercentile = 0.85
)

// Static default probabilities used when no data can be obtained at all.
var staticProbabilities = map[models.Condition]float64{
	models.VeryHot:           0.15,
	models.VeryCold:          0.10,
	models.VeryWindy:         0.12,
	models.VeryWet:           0.20,
	models.VeryUncomfortable: 0.18,
}

// minAnalysisRecords is the floor below which a filtered analysis set falls
// back to the unfiltered day matches.
const minAnalysisRecords = 3

// Options steers one probability computation.
type Options struct {
	// Conditions to evaluate; empty means all five.
	Conditions []models.Condition
	// Unit for displayed temperature thresholds.
	Unit models.TemperatureUnit
	// Custom replaces displayed thresholds (values in °C or the condition's
	// native unit). Probabilities are still computed against the percentile
	// cut-points; the override is presentational.
	Custom *models.CustomThresholds
}

// CurrentConditions describes the most recent record of the analysis set.
type CurrentConditions struct {
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
	Humidity      float64 `json:"humidity"`
	Description   string  `json:"description"`
}

// Result is a full probability computation over one analysis set.
type Result struct {
	Probabilities   []models.ConditionProbability `json:"probabilities"`
	MeanTemperature float64                       `json:"mean_temperature"`
	RecordCount     int                           `json:"record_count"`
	Current         *CurrentConditions            `json:"current_conditions,omitempty"`
}

// SelectAnalysisSet filters records to a calendar day, then optionally to the
// last yearsRange years relative to now. When the year filter leaves fewer
// than three records the unfiltered day matches are returned instead.
func SelectAnalysisSet(records []models.ClimateRecord, month, day, yearsRange int, now time.Time) []models.ClimateRecord {
	var dayMatches []models.ClimateRecord
	for _, r := range records {
		if int(r.Date.Month()) == month && r.Date.Day() == day {
			dayMatches = append(dayMatches, r)
		}
	}
	if yearsRange <= 0 {
		return dayMatches
	}

	cutoff := now.Year() - yearsRange
	var recent []models.ClimateRecord
	for _, r := range dayMatches {
		if r.Date.Year() >= cutoff {
			recent = append(recent, r)
		}
	}
	if len(recent) < minAnalysisRecords {
		return dayMatches
	}
	return recent
}

// Compute evaluates the requested conditions over the analysis set.
func Compute(records []models.ClimateRecord, opts Options) (*Result, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("probability: empty analysis set")
	}
	conditions := opts.Conditions
	if len(conditions) == 0 {
		conditions = models.AllConditions()
	}

	temps := make([]float64, len(records))
	for i, r := range records {
		temps[i] = r.Temperature
	}

	result := &Result{
		MeanTemperature: stat.Mean(temps, nil),
		RecordCount:     len(records),
		Current:         currentConditions(records, opts.Unit),
	}

	for _, c := range conditions {
		if !c.Valid() {
			return nil, fmt.Errorf("probability: unknown condition %q", c)
		}
		prob, threshold := evaluate(c, records)
		cp, err := buildProbability(c, prob, threshold, opts)
		if err != nil {
			return nil, err
		}
		result.Probabilities = append(result.Probabilities, cp)
	}
	return result, nil
}

// StaticDefaults returns the last-resort probabilities with each condition's
// fixed threshold. Used when no historical or synthetic data exists.
func StaticDefaults(opts Options) (*Result, error) {
	conditions := opts.Conditions
	if len(conditions) == 0 {
		conditions = models.AllConditions()
	}
	result := &Result{}
	for _, c := range conditions {
		if !c.Valid() {
			return nil, fmt.Errorf("probability: unknown condition %q", c)
		}
		cp, err := buildProbability(c, staticProbabilities[c], c.DefaultThreshold(), opts)
		if err != nil {
			return nil, err
		}
		result.Probabilities = append(result.Probabilities, cp)
	}
	return result, nil
}

// evaluate returns the exceedance probability and the percentile threshold
// for one condition, in native units (°C, mm, km/h).
func evaluate(c models.Condition, records []models.ClimateRecord) (probability, threshold float64) {
	var values []float64
	for _, r := range records {
		switch c {
		case models.VeryHot, models.VeryCold:
			values = append(values, r.Temperature)
		case models.VeryWindy:
			values = append(values, r.WindSpeed)
		case models.VeryWet:
			values = append(values, r.Precipitation)
		case models.VeryUncomfortable:
			values = append(values, r.HeatIndex)
		}
	}

	switch c {
	case models.VeryHot:
		threshold = quantile(values, hotPercentile)
		probability = fractionAbove(values, threshold)
	case models.VeryCold:
		threshold = quantile(values, coldPercentile)
		probability = fractionBelow(values, threshold)
	case models.VeryWindy:
		threshold = quantile(values, windyPercentile)
		probability = fractionAbove(values, threshold)
	case models.VeryWet:
		threshold = quantile(values, wetPercentile)
		probability = fractionAbove(values, threshold)
	case models.VeryUncomfortable:
		threshold = quantile(values, uncomfortablePercentile)
		probability = fractionAbove(values, threshold)
	}
	return probability, threshold
}

// buildProbability applies custom-threshold override and unit conversion,
// then validates through the models constructor. A custom threshold replaces
// the reported threshold only; the probability stays the percentile-derived
// one.
func buildProbability(c models.Condition, probability, threshold float64, opts Options) (models.ConditionProbability, error) {
	custom := false
	if opts.Custom != nil {
		if v := opts.Custom.For(c); v != nil {
			threshold = *v
			custom = true
		}
	}

	unit := c.Unit()
	if c.TemperatureBased() && opts.Unit == models.Fahrenheit {
		threshold = models.CelsiusToFahrenheit(threshold)
		unit = "°F"
	}

	return models.NewConditionProbability(c, probability, threshold, unit, custom)
}

func currentConditions(records []models.ClimateRecord, unit models.TemperatureUnit) *CurrentConditions {
	latest := records[0]
	for _, r := range records[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	// The description rule reads the native °C record; only the reported
	// temperature is converted.
	temperature := latest.Temperature
	if unit == models.Fahrenheit {
		temperature = models.CelsiusToFahrenheit(temperature)
	}
	return &CurrentConditions{
		Temperature:   temperature,
		Precipitation: latest.Precipitation,
		WindSpeed:     latest.WindSpeed,
		Humidity:      latest.Humidity,
		Description:   describe(latest),
	}
}

func describe(r models.ClimateRecord) string {
	switch {
	case r.Precipitation > 10:
		return "rainy"
	case r.Temperature > 30:
		return "hot"
	case r.Temperature < 5:
		return "cold"
	default:
		return "mild"
	}
}

func quantile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

func fractionAbove(values []float64, threshold float64) float64 {
	var n int
	for _, v := range values {
		if v > threshold {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

func fractionBelow(values []float64, threshold float64) float64 {
	var n int
	for _, v := range values {
		if v < threshold {
			n++
		}
	}
	return float64(n) / float64(len(values))
}
