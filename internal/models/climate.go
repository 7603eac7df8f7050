package models

import (
	"fmt"
	"time"
)

// Condition identifies one extreme-weather condition the service can score.
type Condition string

const (
	VeryHot           Condition = "very_hot"
	VeryCold          Condition = "very_cold"
	VeryWindy         Condition = "very_windy"
	VeryWet           Condition = "very_wet"
	VeryUncomfortable Condition = "very_uncomfortable"
)

// AllConditions returns every supported condition in canonical order.
func AllConditions() []Condition {
	return []Condition{VeryHot, VeryCold, VeryWindy, VeryWet, VeryUncomfortable}
}

// Valid reports whether c is a known condition identifier.
func (c Condition) Valid() bool {
	switch c {
	case VeryHot, VeryCold, VeryWindy, VeryWet, VeryUncomfortable:
		return true
	}
	return false
}

// TemperatureBased reports whether the condition's threshold is a temperature
// and therefore subject to Celsius/Fahrenheit conversion.
func (c Condition) TemperatureBased() bool {
	switch c {
	case VeryHot, VeryCold, VeryUncomfortable:
		return true
	}
	return false
}

// DefaultThreshold returns the fixed absolute threshold used when no
// percentile-derived value is available (static defaults, future projections).
func (c Condition) DefaultThreshold() float64 {
	switch c {
	case VeryHot:
		return 35.0
	case VeryCold:
		return 5.0
	case VeryWindy:
		return 25.0
	case VeryWet:
		return 10.0
	case VeryUncomfortable:
		return 35.0
	}
	return 20.0
}

// Unit returns the measurement unit label for the condition's threshold.
func (c Condition) Unit() string {
	switch c {
	case VeryWindy:
		return "km/h"
	case VeryWet:
		return "mm"
	}
	return "°C"
}

// TemperatureUnit selects the unit used for temperatures in responses.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "celsius"
	Fahrenheit TemperatureUnit = "fahrenheit"
)

// Valid reports whether u is a supported temperature unit.
func (u TemperatureUnit) Valid() bool {
	return u == Celsius || u == Fahrenheit
}

// ClimateRecord is one day's normalized set of weather variables for a
// location. All core fields are populated; records with a missing core
// variable are dropped before they reach the cache.
type ClimateRecord struct {
	Date          time.Time `json:"date"`
	Temperature   float64   `json:"temperature"`   // °C
	Precipitation float64   `json:"precipitation"` // mm/day
	WindSpeed     float64   `json:"wind_speed"`
	Humidity      float64   `json:"humidity"` // %
	HeatIndex     float64   `json:"heat_index"`
}

// DayOfYear returns the record's calendar-day tag in MM-DD form.
func (r ClimateRecord) DayOfYear() string {
	return fmt.Sprintf("%02d-%02d", int(r.Date.Month()), r.Date.Day())
}

// LocationKey derives the cache/model partition key from a coordinate by
// rounding both axes to 3 decimal places. Rounding is applied identically on
// every read and write path; coordinates that round to the same key are the
// same location by design.
func LocationKey(latitude, longitude float64) string {
	return fmt.Sprintf("%.3f_%.3f", latitude, longitude)
}

// CustomThresholds carries optional user-supplied threshold overrides, one
// per condition. Nil means "use the computed threshold".
type CustomThresholds struct {
	VeryHot           *float64 `json:"very_hot_threshold,omitempty"`
	VeryCold          *float64 `json:"very_cold_threshold,omitempty"`
	VeryWindy         *float64 `json:"very_windy_threshold,omitempty"`
	VeryWet           *float64 `json:"very_wet_threshold,omitempty"`
	VeryUncomfortable *float64 `json:"very_uncomfortable_threshold,omitempty"`
}

// For returns the override for condition c, or nil when none is set.
func (t CustomThresholds) For(c Condition) *float64 {
	switch c {
	case VeryHot:
		return t.VeryHot
	case VeryCold:
		return t.VeryCold
	case VeryWindy:
		return t.VeryWindy
	case VeryWet:
		return t.VeryWet
	case VeryUncomfortable:
		return t.VeryUncomfortable
	}
	return nil
}

// ConditionProbability is the scored outcome for one condition: the chance of
// occurrence on the queried calendar day together with the threshold that
// defines "extreme" for that condition.
type ConditionProbability struct {
	Condition   Condition `json:"condition"`
	Probability float64   `json:"probability"`
	Threshold   float64   `json:"threshold"`
	Unit        string    `json:"unit"`
	IsCustom    bool      `json:"is_custom"`
}

// NewConditionProbability validates and builds a ConditionProbability.
// Probability must lie in [0,1] and the condition must be known.
func NewConditionProbability(c Condition, probability, threshold float64, unit string, custom bool) (ConditionProbability, error) {
	if !c.Valid() {
		return ConditionProbability{}, fmt.Errorf("unknown condition %q", c)
	}
	if probability < 0 || probability > 1 {
		return ConditionProbability{}, fmt.Errorf("probability %v out of range [0,1] for %s", probability, c)
	}
	return ConditionProbability{
		Condition:   c,
		Probability: probability,
		Threshold:   threshold,
		Unit:        unit,
		IsCustom:    custom,
	}, nil
}

// FuturePrediction is the projection for one future calendar date.
type FuturePrediction struct {
	Date          time.Time              `json:"date"`
	Probabilities []ConditionProbability `json:"probabilities"`
	Confidence    float64                `json:"confidence_level"`
}
