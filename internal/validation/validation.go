package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDateSpec is returned for a malformed day-of-year string. Surfaced
// to the caller as a 400.
var ErrInvalidDateSpec = errors.New("invalid day-of-year, expected MM-DD")

// ErrLatitudeOutOfRange is returned when latitude falls outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude out of range [-90, 90]")

// ErrLongitudeOutOfRange is returned when longitude falls outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude out of range [-180, 180]")

// ErrHorizonOutOfRange is returned when a projection horizon is outside [1, 60].
var ErrHorizonOutOfRange = errors.New("horizon days out of range [1, 60]")

// MaxHorizonDays bounds future-projection requests.
const MaxHorizonDays = 60

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ParseDayOfYear parses a calendar-day tag in MM-DD form and returns the month
// and day. February 29 is accepted; whether a given year has it is the
// caller's concern.
func ParseDayOfYear(s string) (month, day int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDateSpec, s)
	}
	month, merr := strconv.Atoi(parts[0])
	day, derr := strconv.Atoi(parts[1])
	if merr != nil || derr != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDateSpec, s)
	}
	if month < 1 || month > 12 || day < 1 || day > daysInMonth[month] {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDateSpec, s)
	}
	return month, day, nil
}

// ValidateCoordinates checks that a coordinate pair is on the globe.
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeOutOfRange, latitude)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeOutOfRange, longitude)
	}
	return nil
}

// ValidateHorizon checks a future-projection horizon in days.
func ValidateHorizon(days int) error {
	if days < 1 || days > MaxHorizonDays {
		return fmt.Errorf("%w: %d", ErrHorizonOutOfRange, days)
	}
	return nil
}
