// Package schedule computes occurrence dates for recurring bills. A rule is
// pure data; occurrences are recomputed on demand and never stored as
// authoritative state.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/finbook/loan-engine/pkg/datetime"
)

// Type identifies how a recurrence advances between occurrences.
type Type string

const (
	TypeWeekly    Type = "weekly"
	TypeBiweekly  Type = "biweekly"
	TypeMonthly   Type = "monthly"
	TypeQuarterly Type = "quarterly"
	TypeAnnual    Type = "annual"
	TypeCustom    Type = "custom" // every Interval days
)

// ErrUnsupportedType reports a recurrence type the scheduler does not know.
// It is a configuration error on the rule, fatal to that single call only.
var ErrUnsupportedType = errors.New("unsupported recurrence type")

// Rule describes a recurring obligation. Interval multiplies the base step
// and is the day count itself for TypeCustom; values below 1 are treated as
// 1. A zero EndDate means the series never ends.
type Rule struct {
	Type      Type
	Interval  int
	StartDate time.Time
	EndDate   time.Time
}

// interval returns the effective interval, defaulting to 1.
func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// stepDays returns the day step for day-based types, or 0 for month-based
// types.
func (r Rule) stepDays() (int, error) {
	switch r.Type {
	case TypeWeekly:
		return 7 * r.interval(), nil
	case TypeBiweekly:
		return 14 * r.interval(), nil
	case TypeCustom:
		return r.interval(), nil
	case TypeMonthly, TypeQuarterly, TypeAnnual:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, r.Type)
}

// stepMonths returns the month step for month-based types, or 0 for
// day-based types.
func (r Rule) stepMonths() int {
	switch r.Type {
	case TypeMonthly:
		return r.interval()
	case TypeQuarterly:
		return 3 * r.interval()
	case TypeAnnual:
		return 12 * r.interval()
	}
	return 0
}

// NextOccurrence computes the first occurrence of the rule strictly after
// the given date. The second return is false once the series is exhausted
// past the rule's end date. Month and year steps are anchored at the rule's
// start date, so a series started on the 31st lands on the last day of short
// months and returns to the 31st afterwards instead of drifting.
func NextOccurrence(rule Rule, after time.Time) (time.Time, bool, error) {
	stepDays, err := rule.stepDays()
	if err != nil {
		return time.Time{}, false, err
	}

	var next time.Time
	switch {
	case rule.StartDate.After(after):
		// The series has not begun; its first occurrence is the start date.
		next = rule.StartDate

	case stepDays > 0:
		elapsed := int(after.Sub(rule.StartDate).Hours() / 24)
		k := elapsed/stepDays + 1
		next = rule.StartDate.AddDate(0, 0, k*stepDays)
		for !next.After(after) {
			next = next.AddDate(0, 0, stepDays)
		}

	default:
		stepMonths := rule.stepMonths()
		elapsed := monthsBetween(rule.StartDate, after)
		k := elapsed / stepMonths
		if k < 0 {
			k = 0
		}
		next = datetime.AddMonthsClamped(rule.StartDate, k*stepMonths)
		for !next.After(after) {
			k++
			next = datetime.AddMonthsClamped(rule.StartDate, k*stepMonths)
		}
	}

	if !rule.EndDate.IsZero() && next.After(rule.EndDate) {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// Occurrences lists every occurrence of the rule through the given horizon,
// starting at the rule's start date. The list is empty when the start date is
// past the horizon.
func Occurrences(rule Rule, until time.Time) ([]time.Time, error) {
	if _, err := rule.stepDays(); err != nil {
		return nil, err
	}

	end := until
	if !rule.EndDate.IsZero() && rule.EndDate.Before(end) {
		end = rule.EndDate
	}

	var dates []time.Time
	current := rule.StartDate
	for k := 1; !current.After(end); k++ {
		dates = append(dates, current)
		if stepDays, _ := rule.stepDays(); stepDays > 0 {
			current = rule.StartDate.AddDate(0, 0, k*stepDays)
		} else {
			current = datetime.AddMonthsClamped(rule.StartDate, k*rule.stepMonths())
		}
	}
	return dates, nil
}

// monthsBetween returns the number of whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}
