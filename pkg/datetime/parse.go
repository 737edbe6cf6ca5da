// Package datetime provides date and time utility functions.
package datetime

import (
	"time"

	"github.com/finbook/loan-engine/pkg/constants"
)

const (
	// DateLayout is the format expected in config files, the API, and the
	// bill store, and is also the output date format.
	DateLayout = constants.DateLayout
)

// MustParseDate parses a date string using DateLayout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseDate(dateStr string) time.Time {
	t, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a date string using DateLayout.
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse(DateLayout, dateStr)
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped advances t by the given number of months, clamping the
// day-of-month to the length of the target month. time.AddDate normalizes
// Jan 31 + 1 month to Mar 2 or Mar 3; for billing dates the expected result
// is the last day of February, so the clamping must be explicit.
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// Normalize to the first of the target month, then clamp the day.
	target := time.Date(year, month, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	if max := DaysInMonth(target.Year(), target.Month()); day > max {
		day = max
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, t.Location())
}

// AddYearsClamped advances t by the given number of years with the same
// day-of-month clamping as AddMonthsClamped (Feb 29 in a leap year advances
// to Feb 28 in a common year).
func AddYearsClamped(t time.Time, years int) time.Time {
	return AddMonthsClamped(t, years*constants.MonthsPerYear)
}
