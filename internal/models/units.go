package models

// CelsiusToFahrenheit converts a temperature from °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts a temperature from °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// heatIndexMinimumC is the temperature below which the NWS heat-index
// polynomial is not valid; below it the heat index equals the temperature.
const heatIndexMinimumC = 27.0

// HeatIndex derives the heat index in °C from temperature (°C) and relative
// humidity (%) using the National Weather Service multi-term polynomial. The
// polynomial operates in °F, so the input is converted and the result
// converted back.
func HeatIndex(tempC, humidity float64) float64 {
	if tempC < heatIndexMinimumC {
		return tempC
	}

	t := CelsiusToFahrenheit(tempC)
	rh := humidity

	hi := -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		0.00683783*t*t -
		0.05481717*rh*rh +
		0.00122874*t*t*rh +
		0.00085282*t*rh*rh -
		0.00000199*t*t*rh*rh

	return FahrenheitToCelsius(hi)
}
