// Package features maps climate records to the fixed-width vectors the models
// train and predict on. The column order is part of every persisted model
// artifact, so it must never change between training and inference.
package features

import (
	"math"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// VectorSize is the number of columns produced by Vector.
const VectorSize = 13

// Names returns the column names in vector order.
func Names() []string {
	return []string{
		"latitude",
		"longitude",
		"abs_latitude",
		"abs_longitude",
		"day_of_year",
		"month",
		"year",
		"day_of_year_sin",
		"day_of_year_cos",
		"temperature",
		"precipitation",
		"wind_speed",
		"humidity",
	}
}

// Vector builds the feature row for one record at a coordinate.
func Vector(latitude, longitude float64, r models.ClimateRecord) []float64 {
	doy := float64(r.Date.YearDay())
	angle := 2 * math.Pi * doy / 365.25
	return []float64{
		latitude,
		longitude,
		math.Abs(latitude),
		math.Mod(math.Abs(longitude), 180),
		doy,
		float64(r.Date.Month()),
		float64(r.Date.Year()),
		math.Sin(angle),
		math.Cos(angle),
		r.Temperature,
		r.Precipitation,
		r.WindSpeed,
		r.Humidity,
	}
}

// Matrix builds one row per record.
func Matrix(latitude, longitude float64, records []models.ClimateRecord) [][]float64 {
	rows := make([][]float64, len(records))
	for i, r := range records {
		rows[i] = Vector(latitude, longitude, r)
	}
	return rows
}

// PrecipitationBucket maps daily precipitation (mm) to an intensity class:
// 0 none, 1 light, 2 moderate, 3 heavy, 4 extreme.
func PrecipitationBucket(mm float64) int {
	switch {
	case mm <= 0:
		return 0
	case mm < 2.5:
		return 1
	case mm < 10:
		return 2
	case mm < 50:
		return 3
	default:
		return 4
	}
}
