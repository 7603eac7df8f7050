package validation

import (
	"errors"
	"testing"
)

// TestParseDayOfYear verifies MM-DD parsing, including leap day and the
// malformed inputs that must surface ErrInvalidDateSpec.
func TestParseDayOfYear(t *testing.T) {
	tests := []struct {
		in        string
		month     int
		day       int
		wantError bool
	}{
		{"06-15", 6, 15, false},
		{"01-01", 1, 1, false},
		{"12-31", 12, 31, false},
		{"02-29", 2, 29, false},
		{" 07-04 ", 7, 4, false},
		{"", 0, 0, true},
		{"13-01", 0, 0, true},
		{"00-10", 0, 0, true},
		{"02-30", 0, 0, true},
		{"06-32", 0, 0, true},
		{"6/15", 0, 0, true},
		{"june-15", 0, 0, true},
		{"06-15-2024", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, d, err := ParseDayOfYear(tt.in)
			if tt.wantError {
				if !errors.Is(err, ErrInvalidDateSpec) {
					t.Fatalf("ParseDayOfYear(%q) error = %v, want ErrInvalidDateSpec", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDayOfYear(%q) error = %v", tt.in, err)
			}
			if m != tt.month || d != tt.day {
				t.Errorf("ParseDayOfYear(%q) = (%d, %d), want (%d, %d)", tt.in, m, d, tt.month, tt.day)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	if err := ValidateCoordinates(40.4168, -3.7038); err != nil {
		t.Fatalf("valid coordinates rejected: %v", err)
	}
	if err := ValidateCoordinates(90, 180); err != nil {
		t.Fatalf("boundary coordinates rejected: %v", err)
	}
	if err := ValidateCoordinates(90.1, 0); !errors.Is(err, ErrLatitudeOutOfRange) {
		t.Errorf("latitude 90.1 error = %v, want ErrLatitudeOutOfRange", err)
	}
	if err := ValidateCoordinates(0, -180.5); !errors.Is(err, ErrLongitudeOutOfRange) {
		t.Errorf("longitude -180.5 error = %v, want ErrLongitudeOutOfRange", err)
	}
}

func TestValidateHorizon(t *testing.T) {
	for _, d := range []int{1, 14, 60} {
		if err := ValidateHorizon(d); err != nil {
			t.Errorf("ValidateHorizon(%d) = %v, want nil", d, err)
		}
	}
	for _, d := range []int{0, -1, 61} {
		if err := ValidateHorizon(d); !errors.Is(err, ErrHorizonOutOfRange) {
			t.Errorf("ValidateHorizon(%d) = %v, want ErrHorizonOutOfRange", d, err)
		}
	}
}
