// Package loans provides the amortization calculator: the periodic payment
// for a fixed-term, fixed-rate loan, or the interest-only payment for an
// open-ended obligation.
package loans

import (
	"math"

	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/finbook/loan-engine/pkg/mathutil"
)

// RateType indicates the period an interest rate is quoted in.
type RateType string

const (
	RateDaily   RateType = "daily"
	RateWeekly  RateType = "weekly"
	RateMonthly RateType = "monthly"
)

// Frequency indicates how often a loan payment is due.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "bi-weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// LoanTerms is an immutable snapshot of the parameters of a loan as entered
// on a bill or loan form. Term is in months; 0 means the loan is open-ended
// and only interest is due each month.
type LoanTerms struct {
	Principal        float64
	InterestRate     float64 // percentage points in the period given by RateType
	RateType         RateType
	TermMonths       int
	PaymentFrequency Frequency
}

// EffectiveMonthlyRate normalizes a quoted rate to a monthly fraction:
// a monthly quote is rate/100 as-is, a daily quote is scaled by the fixed
// 30-day month, and a weekly quote by the fixed 4.33 weeks per month. An
// unrecognized rate type is treated as monthly, the standard quoting period.
func EffectiveMonthlyRate(rate float64, rateType RateType) float64 {
	rate = mathutil.Sanitize(rate)
	switch rateType {
	case RateDaily:
		return rate / constants.PercentageMultiplier * constants.DaysPerMonth
	case RateWeekly:
		return rate / constants.PercentageMultiplier * constants.WeeksPerMonth
	default:
		return rate / constants.PercentageMultiplier
	}
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the
// standard amortization formula. Open-ended loans (Term <= 0) pay interest
// only; a zero rate falls back to a straight-line split of the principal so
// the discount factor never divides by zero. The result is always
// non-negative and finite.
func CalculateMonthlyPayment(terms LoanTerms) float64 {
	principal := mathutil.Sanitize(terms.Principal)
	periodicRate := EffectiveMonthlyRate(terms.InterestRate, terms.RateType)

	if terms.TermMonths <= 0 {
		// Interest-only payment for an open-ended obligation.
		return principal * periodicRate
	}

	if periodicRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(terms.TermMonths)
	}

	power := math.Pow((1.00 + periodicRate), float64(terms.TermMonths))
	discountFactor := (power - 1.00) / power
	return principal * periodicRate / discountFactor
}

// CalculateInterestPayment calculates the interest portion of a payment
// against the remaining principal.
func CalculateInterestPayment(remainingPrincipal float64, terms LoanTerms) float64 {
	return mathutil.Sanitize(remainingPrincipal) * EffectiveMonthlyRate(terms.InterestRate, terms.RateType)
}

// ScheduledPayment is one row of an amortization schedule.
type ScheduledPayment struct {
	Month     int
	Payment   float64
	Interest  float64
	Principal float64
	Remaining float64
}

// AmortizationSchedule expands fixed terms into the month-by-month split of
// each payment between interest and principal. Open-ended loans (Term <= 0)
// have no schedule and return nil. The final payment absorbs rounding drift
// so the remaining balance lands exactly on zero.
func AmortizationSchedule(terms LoanTerms) []ScheduledPayment {
	if terms.TermMonths <= 0 {
		return nil
	}

	payment := CalculateMonthlyPayment(terms)
	remaining := mathutil.Sanitize(terms.Principal)

	rows := make([]ScheduledPayment, 0, terms.TermMonths)
	for month := 1; month <= terms.TermMonths; month++ {
		interest := CalculateInterestPayment(remaining, terms)
		principal := payment - interest
		if month == terms.TermMonths || principal > remaining {
			principal = remaining
		}
		remaining -= principal
		if mathutil.IsZero(remaining) {
			remaining = 0
		}
		rows = append(rows, ScheduledPayment{
			Month:     month,
			Payment:   mathutil.Round(interest + principal),
			Interest:  mathutil.Round(interest),
			Principal: mathutil.Round(principal),
			Remaining: mathutil.Round(remaining),
		})
	}
	return rows
}

// CalculatePaymentForFrequency converts the monthly payment into the amount
// due at the loan's configured payment frequency. The monthly figure is
// annualized and split across the periods per year for the frequency, so a
// quarterly loan pays three months' worth per period and a weekly loan pays
// 12/52ths of a month per period.
func CalculatePaymentForFrequency(terms LoanTerms) float64 {
	monthly := CalculateMonthlyPayment(terms)
	annual := monthly * constants.MonthsPerYear

	switch terms.PaymentFrequency {
	case FrequencyWeekly:
		return annual / constants.WeeksPerYear
	case FrequencyBiweekly:
		return annual / (constants.WeeksPerYear / 2)
	case FrequencyQuarterly:
		return annual / 4
	case FrequencyAnnually:
		return annual
	default:
		return monthly
	}
}
