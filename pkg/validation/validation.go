// Package validation provides input validation for the calculator entry
// points. The calculators themselves coerce malformed numbers to zero rather
// than failing; validation exists so forms can reject clearly invalid input
// before a figure is computed from it.
package validation

import (
	"fmt"
	"math"

	"github.com/finbook/loan-engine/pkg/formula"
	"github.com/finbook/loan-engine/pkg/loans"
	"github.com/finbook/loan-engine/pkg/moratory"
	"github.com/finbook/loan-engine/pkg/schedule"
)

// InvalidInputError reports a field that cannot be used for a calculation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var validRateTypes = map[loans.RateType]bool{
	loans.RateDaily:   true,
	loans.RateWeekly:  true,
	loans.RateMonthly: true,
}

var validFrequencies = map[loans.Frequency]bool{
	loans.FrequencyWeekly:    true,
	loans.FrequencyBiweekly:  true,
	loans.FrequencyMonthly:   true,
	loans.FrequencyQuarterly: true,
	loans.FrequencyAnnually:  true,
}

var validRecurrenceTypes = map[schedule.Type]bool{
	schedule.TypeWeekly:    true,
	schedule.TypeBiweekly:  true,
	schedule.TypeMonthly:   true,
	schedule.TypeQuarterly: true,
	schedule.TypeAnnual:    true,
	schedule.TypeCustom:    true,
}

// ValidateLoanTerms checks loan terms as entered on a form.
func ValidateLoanTerms(terms loans.LoanTerms) error {
	if math.IsNaN(terms.Principal) || math.IsInf(terms.Principal, 0) || terms.Principal <= 0 {
		return &InvalidInputError{Field: "principalAmount", Reason: "must be a positive number"}
	}
	if math.IsNaN(terms.InterestRate) || math.IsInf(terms.InterestRate, 0) || terms.InterestRate < 0 {
		return &InvalidInputError{Field: "interestRate", Reason: "must be zero or a positive number"}
	}
	if terms.RateType != "" && !validRateTypes[terms.RateType] {
		return &InvalidInputError{Field: "interestRateType", Reason: fmt.Sprintf("unknown rate type %q", terms.RateType)}
	}
	if terms.TermMonths < 0 {
		return &InvalidInputError{Field: "termMonths", Reason: "must be zero or a positive number of months"}
	}
	if terms.PaymentFrequency != "" && !validFrequencies[terms.PaymentFrequency] {
		return &InvalidInputError{Field: "paymentFrequency", Reason: fmt.Sprintf("unknown payment frequency %q", terms.PaymentFrequency)}
	}
	return nil
}

// ValidateMoratoryRule checks a moratory rule, including a parse of the
// custom formula so the editor can flag faults before the rule is saved.
func ValidateMoratoryRule(rule moratory.Rule) error {
	if math.IsNaN(rule.Rate) || math.IsInf(rule.Rate, 0) || rule.Rate < 0 {
		return &InvalidInputError{Field: "moratoryRate", Reason: "must be zero or a positive number"}
	}
	if rule.RateType != "" && !validRateTypes[rule.RateType] {
		return &InvalidInputError{Field: "moratoryRateType", Reason: fmt.Sprintf("unknown rate type %q", rule.RateType)}
	}
	if rule.CustomFormula != "" {
		if _, err := formula.Parse(rule.CustomFormula); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRecurrenceRule checks a recurrence rule.
func ValidateRecurrenceRule(rule schedule.Rule) error {
	if !validRecurrenceTypes[rule.Type] {
		return &InvalidInputError{Field: "type", Reason: fmt.Sprintf("unknown recurrence type %q", rule.Type)}
	}
	if rule.Interval < 0 {
		return &InvalidInputError{Field: "interval", Reason: "must be a positive number"}
	}
	if rule.StartDate.IsZero() {
		return &InvalidInputError{Field: "startDate", Reason: "is required"}
	}
	if !rule.EndDate.IsZero() && rule.EndDate.Before(rule.StartDate) {
		return &InvalidInputError{Field: "endDate", Reason: "must not be before the start date"}
	}
	return nil
}

// LoanTermsWarnings returns non-fatal observations about loan terms, shown
// alongside the computed figure the way configuration warnings are.
func LoanTermsWarnings(terms loans.LoanTerms) []string {
	var warnings []string

	if terms.InterestRate > 100 {
		warnings = append(warnings, fmt.Sprintf("Interest rate %.2f exceeds 100 percentage points", terms.InterestRate))
	}
	if terms.RateType == loans.RateDaily && terms.InterestRate > 5 {
		warnings = append(warnings, fmt.Sprintf("Daily rate %.2f compounds to over %.0f%% per month", terms.InterestRate, terms.InterestRate*30))
	}
	if terms.TermMonths > 480 {
		warnings = append(warnings, fmt.Sprintf("Term of %d months exceeds 40 years", terms.TermMonths))
	}

	return warnings
}
