// Package units provides shared constants and conversion for speed units.
package units

import (
	"slices"
	"strings"
)

// Unit constants
const (
	KPH = "kph"
	MPH = "mph"
	MPS = "mps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KPH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// ValidUnitsString returns a comma-separated string of valid units for error messages
func ValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// FromKPH converts a speed in km/h, as the detector measures it, to the
// target units. Unknown units leave the value in km/h.
func FromKPH(speedKPH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKPH / 1.609344
	case MPS:
		return speedKPH / 3.6
	default:
		return speedKPH
	}
}
