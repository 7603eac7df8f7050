package trainer

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
)

// Condition class labels for the condition classifier.
const (
	classHotWet  = 0
	classHot     = 1
	classCold    = 2
	classWet     = 3
	classWindy   = 4
	classTypical = 5
)

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// conditionLabels classifies each record relative to the location's own
// distribution: hot above P90 temperature, cold below P10, wet above P85
// precipitation, windy above P85 wind. Joint hot-and-wet days get their own
// class; the rest are typical.
func conditionLabels(records []models.ClimateRecord) []int {
	temps := make([]float64, len(records))
	precip := make([]float64, len(records))
	wind := make([]float64, len(records))
	for i, r := range records {
		temps[i] = r.Temperature
		precip[i] = r.Precipitation
		wind[i] = r.WindSpeed
	}

	tempHigh := percentile(temps, 0.90)
	tempLow := percentile(temps, 0.10)
	precipHigh := percentile(precip, 0.85)
	windHigh := percentile(wind, 0.85)

	labels := make([]int, len(records))
	for i, r := range records {
		hot := r.Temperature > tempHigh
		cold := r.Temperature < tempLow
		wet := r.Precipitation > precipHigh
		windy := r.WindSpeed > windHigh
		switch {
		case hot && wet:
			labels[i] = classHotWet
		case hot:
			labels[i] = classHot
		case cold:
			labels[i] = classCold
		case wet:
			labels[i] = classWet
		case windy:
			labels[i] = classWindy
		default:
			labels[i] = classTypical
		}
	}
	return labels
}
