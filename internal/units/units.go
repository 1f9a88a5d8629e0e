// Package units provides shared constants and conversions for bar velocity
// display units. Stored velocities are always m/s.
package units

import "strings"

const (
	MPS  = "mps"
	CMPS = "cmps"
	FTPS = "ftps"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, CMPS, FTPS}

// IsValid reports whether unit is one of ValidUnits.
func IsValid(unit string) bool {
	for _, u := range ValidUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns the valid units for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertVelocity converts a velocity in m/s to unit. Unknown units pass
// through as m/s.
func ConvertVelocity(mps float64, unit string) float64 {
	switch unit {
	case CMPS:
		return mps * 100
	case FTPS:
		return mps / 0.3048
	default:
		return mps
	}
}

// Label returns the axis label for unit.
func Label(unit string) string {
	switch unit {
	case CMPS:
		return "cm/s"
	case FTPS:
		return "ft/s"
	default:
		return "m/s"
	}
}
