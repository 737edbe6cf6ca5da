// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/finbook/loan-engine/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons and for API output.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Sanitize coerces NaN, infinities, and negative amounts to 0. The
// calculators accept values straight out of form fields, where a blank or
// malformed entry parses to NaN; treating those as 0 keeps every calculation
// finite instead of propagating NaN into a displayed figure.
func Sanitize(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
		return 0
	}
	return val
}
