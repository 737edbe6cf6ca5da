// Package moratory provides the late-payment penalty calculator. A penalty
// comes either from the standard flat-rate computation or from a custom
// formula the loan's owner wrote, evaluated against a fixed variable set.
package moratory

import (
	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/finbook/loan-engine/pkg/formula"
	"github.com/finbook/loan-engine/pkg/loans"
	"github.com/finbook/loan-engine/pkg/mathutil"
)

// Rule holds the moratory interest configuration of a loan. At most one rule
// is active per loan. When CustomFormula is set it takes precedence over the
// flat rate.
type Rule struct {
	Rate               float64 // percentage points in the period given by RateType
	RateType           loans.RateType
	CustomFormula      string
	FormulaDescription string // display-only
}

// Context is the variable set a penalty is computed against. It is built
// fresh for every evaluation and never stored; custom formulas see exactly
// these values and nothing else.
type Context struct {
	PrincipalAmount  float64
	InterestRate     float64 // effective monthly rate as a fraction, not percentage
	TermMonths       int
	DaysOverdue      int
	PaymentFrequency loans.Frequency
	MonthlyPayment   float64
}

// NewContext derives a penalty context from loan terms and the number of
// days the payment is overdue.
func NewContext(terms loans.LoanTerms, daysOverdue int) Context {
	if daysOverdue < 0 {
		daysOverdue = 0
	}
	return Context{
		PrincipalAmount:  mathutil.Sanitize(terms.Principal),
		InterestRate:     loans.EffectiveMonthlyRate(terms.InterestRate, terms.RateType),
		TermMonths:       terms.TermMonths,
		DaysOverdue:      daysOverdue,
		PaymentFrequency: terms.PaymentFrequency,
		MonthlyPayment:   loans.CalculateMonthlyPayment(terms),
	}
}

// formulaVars exposes the context under the canonical formula variable names.
func (c Context) formulaVars() map[string]any {
	return map[string]any{
		"principalAmount":  c.PrincipalAmount,
		"interestRate":     c.InterestRate,
		"termMonths":       float64(c.TermMonths),
		"daysOverdue":      float64(c.DaysOverdue),
		"paymentFrequency": string(c.PaymentFrequency),
		"monthlyPayment":   c.MonthlyPayment,
	}
}

// EffectiveDailyRate normalizes a quoted moratory rate to a daily fraction:
// a daily quote is rate/100 as-is, a weekly quote is split over 7 days, and
// a monthly quote over the fixed 30-day month. An unrecognized rate type is
// treated as monthly.
func EffectiveDailyRate(rate float64, rateType loans.RateType) float64 {
	rate = mathutil.Sanitize(rate)
	switch rateType {
	case loans.RateDaily:
		return rate / constants.PercentageMultiplier
	case loans.RateWeekly:
		return rate / constants.PercentageMultiplier / constants.DaysPerWeek
	default:
		return rate / constants.PercentageMultiplier / constants.DaysPerMonth
	}
}

// CalculateFlatRatePenalty is the canonical standard penalty: the principal
// accrues the rule's rate, normalized per day, for every day overdue.
func CalculateFlatRatePenalty(rule Rule, ctx Context) float64 {
	return ctx.PrincipalAmount * EffectiveDailyRate(rule.Rate, rule.RateType) * float64(ctx.DaysOverdue)
}

// CalculateProratedPaymentPenalty is the alternative standard penalty used by
// call sites that charge one day's share of the regular payment per day
// overdue rather than a rate on the principal.
func CalculateProratedPaymentPenalty(ctx Context) float64 {
	return ctx.MonthlyPayment / constants.DaysPerMonth * float64(ctx.DaysOverdue)
}

// CalculatePenalty computes the moratory interest for a rule and context.
// With a custom formula present the formula decides; any formula fault is
// returned as a *formula.EvalError and the caller falls back to showing the
// message instead of a figure. Without a formula the canonical flat-rate
// penalty applies.
func CalculatePenalty(rule Rule, ctx Context) (float64, error) {
	if rule.CustomFormula != "" {
		return formula.Evaluate(rule.CustomFormula, ctx.formulaVars())
	}
	return CalculateFlatRatePenalty(rule, ctx), nil
}

// PreviewPenalty runs the rule against a fixed 30-day-overdue context. The
// loan-detail view shows this next to the formula editor so the author can
// sanity-check a formula before saving it.
func PreviewPenalty(rule Rule, terms loans.LoanTerms) (float64, error) {
	return CalculatePenalty(rule, NewContext(terms, constants.PreviewDaysOverdue))
}
