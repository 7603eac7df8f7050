package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

func TestVectorShapeAndOrder(t *testing.T) {
	r := models.ClimateRecord{
		Date:          time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC),
		Temperature:   30,
		Precipitation: 2,
		WindSpeed:     12,
		Humidity:      65,
	}
	v := Vector(40.4168, -3.7038, r)
	require.Len(t, v, VectorSize)
	require.Len(t, Names(), VectorSize)

	assert.Equal(t, 40.4168, v[0])
	assert.Equal(t, -3.7038, v[1])
	assert.Equal(t, 40.4168, v[2])
	assert.InDelta(t, 3.7038, v[3], 1e-9)
	assert.Equal(t, 167.0, v[4]) // 2020 is a leap year
	assert.Equal(t, 6.0, v[5])
	assert.Equal(t, 2020.0, v[6])
	assert.InDelta(t, math.Sin(2*math.Pi*167/365.25), v[7], 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*167/365.25), v[8], 1e-12)
	assert.Equal(t, 30.0, v[9])
	assert.Equal(t, 2.0, v[10])
	assert.Equal(t, 12.0, v[11])
	assert.Equal(t, 65.0, v[12])
}

func TestMatrix(t *testing.T) {
	records := []models.ClimateRecord{
		{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	m := Matrix(10, 20, records)
	require.Len(t, m, 2)
	assert.Equal(t, 2020.0, m[0][6])
	assert.Equal(t, 2021.0, m[1][6])
}

func TestPrecipitationBucket(t *testing.T) {
	tests := []struct {
		mm   float64
		want int
	}{
		{0, 0},
		{-1, 0},
		{0.1, 1},
		{2.4, 1},
		{2.5, 2},
		{9.9, 2},
		{10, 3},
		{49.9, 3},
		{50, 4},
		{120, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrecipitationBucket(tt.mm), "mm=%v", tt.mm)
	}
}
