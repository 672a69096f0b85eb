package units

import (
	"math"
	"testing"
)

func TestFromKPH(t *testing.T) {
	tests := []struct {
		name     string
		speedKPH float64
		units    string
		expected float64
	}{
		{"36 kph to mps", 36.0, MPS, 10.0},
		{"144 kph to mps", 144.0, MPS, 40.0},
		{"80 kph to mph", 80.0, MPH, 49.7097},
		{"100 kph to mph", 100.0, MPH, 62.1371},
		{"kph unchanged", 72.0, KPH, 72.0},
		{"unknown units stay kph", 72.0, "knots", 72.0},
		{"zero", 0.0, MPH, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromKPH(tt.speedKPH, tt.units)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("FromKPH(%f, %s) = %f, want %f", tt.speedKPH, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid kph", KPH, true},
		{"valid mph", MPH, true},
		{"valid mps", MPS, true},
		{"kmph is not accepted", "kmph", false},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MPH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestValidUnitsString(t *testing.T) {
	if got := ValidUnitsString(); got != "kph, mph, mps" {
		t.Errorf("ValidUnitsString() = %s, want %s", got, "kph, mph, mps")
	}
}
