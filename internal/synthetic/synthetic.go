// Package synthetic generates climate records for locations the live provider
// cannot serve. Values are drawn from per-climate-zone distributions with a
// seasonal sinusoid, so probabilities computed over them stay plausible for
// the latitude.
package synthetic

import (
	"math"
	"math/rand"
	"time"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// Zone is a coarse climate band selected by latitude.
type Zone string

const (
	ZoneTropical  Zone = "tropical"
	ZoneTemperate Zone = "temperate"
	ZoneArctic    Zone = "arctic"
)

// ZoneFor picks the climate zone for a latitude: tropical inside the tropics,
// arctic above 60°, temperate between.
func ZoneFor(latitude float64) Zone {
	abs := math.Abs(latitude)
	switch {
	case abs < 23.5:
		return ZoneTropical
	case abs < 60:
		return ZoneTemperate
	default:
		return ZoneArctic
	}
}

type zoneParams struct {
	tempMean, tempStd, tempSeasonalAmp float64
	precipMean, precipSeasonal         float64
	windMean, windStd                  float64
	humidityMean, humidityStd          float64
}

var zones = map[Zone]zoneParams{
	ZoneTropical: {
		tempMean: 28, tempStd: 5, tempSeasonalAmp: 3,
		precipMean: 8, precipSeasonal: 1.5,
		windMean: 15, windStd: 8,
		humidityMean: 80, humidityStd: 15,
	},
	ZoneTemperate: {
		tempMean: 15, tempStd: 10, tempSeasonalAmp: 15,
		precipMean: 3, precipSeasonal: 1.2,
		windMean: 12, windStd: 6,
		humidityMean: 70, humidityStd: 20,
	},
	ZoneArctic: {
		tempMean: -5, tempStd: 8, tempSeasonalAmp: 25,
		precipMean: 1, precipSeasonal: 0.5,
		windMean: 20, windStd: 12,
		humidityMean: 70, humidityStd: 18,
	},
}

// Generator produces seeded synthetic records; the same seed and inputs yield
// the same records.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator seeded with seed.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateForDay produces one record per year for the given calendar day over
// the `years` years ending at endYear. Years lacking the day (February 29 in
// common years) are skipped.
func (g *Generator) GenerateForDay(latitude, longitude float64, month, day, years, endYear int) []models.ClimateRecord {
	params := zones[ZoneFor(latitude)]
	southern := latitude < 0

	records := make([]models.ClimateRecord, 0, years)
	for year := endYear - years + 1; year <= endYear; year++ {
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if int(date.Month()) != month || date.Day() != day {
			continue
		}
		records = append(records, g.record(date, params, southern))
	}
	return records
}

func (g *Generator) record(date time.Time, params zoneParams, southern bool) models.ClimateRecord {
	// Seasonal phase peaks near July in the north; flipped for the south.
	doy := float64(date.YearDay())
	seasonal := math.Sin(2 * math.Pi * (doy - 80) / 365.25)
	if southern {
		seasonal = -seasonal
	}

	temp := params.tempMean + params.tempSeasonalAmp*seasonal + g.rng.NormFloat64()*params.tempStd

	// Wet-season multiplier only boosts the exponential mean, never shrinks
	// it below the base.
	precipScale := params.precipMean * (1 + params.precipSeasonal*math.Max(seasonal, 0))
	precip := g.rng.ExpFloat64() * precipScale

	wind := params.windMean + g.rng.NormFloat64()*params.windStd
	if wind < 0 {
		wind = 0
	}

	humidity := params.humidityMean + g.rng.NormFloat64()*params.humidityStd
	humidity = math.Max(0, math.Min(100, humidity))

	return models.ClimateRecord{
		Date:          date,
		Temperature:   temp,
		Precipitation: precip,
		WindSpeed:     wind,
		Humidity:      humidity,
		HeatIndex:     models.HeatIndex(temp, humidity),
	}
}
