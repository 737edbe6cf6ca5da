package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/finbook/loan-engine/pkg/datetime"
	"github.com/finbook/loan-engine/pkg/formula"
	"github.com/finbook/loan-engine/pkg/loans"
	"github.com/finbook/loan-engine/pkg/moratory"
	"github.com/finbook/loan-engine/pkg/schedule"
)

func TestValidateLoanTerms(t *testing.T) {
	tests := []struct {
		name      string
		terms     loans.LoanTerms
		wantField string // empty means valid
	}{
		{
			name:  "Valid term loan",
			terms: loans.LoanTerms{Principal: 10000, InterestRate: 1, RateType: loans.RateMonthly, TermMonths: 12, PaymentFrequency: loans.FrequencyMonthly},
		},
		{
			name:  "Valid open-ended loan without optional enums",
			terms: loans.LoanTerms{Principal: 500, InterestRate: 0},
		},
		{
			name:      "Zero principal",
			terms:     loans.LoanTerms{Principal: 0, InterestRate: 1},
			wantField: "principalAmount",
		},
		{
			name:      "NaN principal",
			terms:     loans.LoanTerms{Principal: math.NaN(), InterestRate: 1},
			wantField: "principalAmount",
		},
		{
			name:      "Negative rate",
			terms:     loans.LoanTerms{Principal: 100, InterestRate: -1},
			wantField: "interestRate",
		},
		{
			name:      "Unknown rate type",
			terms:     loans.LoanTerms{Principal: 100, InterestRate: 1, RateType: loans.RateType("hourly")},
			wantField: "interestRateType",
		},
		{
			name:      "Negative term",
			terms:     loans.LoanTerms{Principal: 100, InterestRate: 1, TermMonths: -3},
			wantField: "termMonths",
		},
		{
			name:      "Unknown frequency",
			terms:     loans.LoanTerms{Principal: 100, InterestRate: 1, PaymentFrequency: loans.Frequency("daily")},
			wantField: "paymentFrequency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLoanTerms(tt.terms)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateLoanTerms() returned unexpected error: %v", err)
				}
				return
			}
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("ValidateLoanTerms() error is %T, expected *InvalidInputError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("ValidateLoanTerms() flagged field %q, expected %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestValidateMoratoryRule(t *testing.T) {
	valid := moratory.Rule{Rate: 2, RateType: loans.RateMonthly}
	if err := ValidateMoratoryRule(valid); err != nil {
		t.Errorf("ValidateMoratoryRule() returned unexpected error: %v", err)
	}

	withFormula := moratory.Rule{CustomFormula: "return principalAmount * 0.02;"}
	if err := ValidateMoratoryRule(withFormula); err != nil {
		t.Errorf("ValidateMoratoryRule() returned unexpected error: %v", err)
	}

	badRate := moratory.Rule{Rate: -1}
	var invalid *InvalidInputError
	if err := ValidateMoratoryRule(badRate); !errors.As(err, &invalid) {
		t.Errorf("ValidateMoratoryRule() error is %T, expected *InvalidInputError", err)
	}

	badFormula := moratory.Rule{CustomFormula: "return 1 +;"}
	var evalErr *formula.EvalError
	if err := ValidateMoratoryRule(badFormula); !errors.As(err, &evalErr) {
		t.Errorf("ValidateMoratoryRule() error is %T, expected *formula.EvalError", err)
	}
}

func TestValidateRecurrenceRule(t *testing.T) {
	start := datetime.MustParseDate("2024-01-15")

	valid := schedule.Rule{Type: schedule.TypeMonthly, StartDate: start}
	if err := ValidateRecurrenceRule(valid); err != nil {
		t.Errorf("ValidateRecurrenceRule() returned unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		rule      schedule.Rule
		wantField string
	}{
		{
			name:      "Unknown type",
			rule:      schedule.Rule{Type: schedule.Type("daily"), StartDate: start},
			wantField: "type",
		},
		{
			name:      "Missing start date",
			rule:      schedule.Rule{Type: schedule.TypeWeekly},
			wantField: "startDate",
		},
		{
			name:      "End before start",
			rule:      schedule.Rule{Type: schedule.TypeWeekly, StartDate: start, EndDate: datetime.MustParseDate("2024-01-01")},
			wantField: "endDate",
		},
		{
			name:      "Negative interval",
			rule:      schedule.Rule{Type: schedule.TypeCustom, Interval: -5, StartDate: start},
			wantField: "interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var invalid *InvalidInputError
			err := ValidateRecurrenceRule(tt.rule)
			if !errors.As(err, &invalid) {
				t.Fatalf("ValidateRecurrenceRule() error is %T, expected *InvalidInputError", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("ValidateRecurrenceRule() flagged field %q, expected %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestLoanTermsWarnings(t *testing.T) {
	none := LoanTermsWarnings(loans.LoanTerms{Principal: 10000, InterestRate: 1, TermMonths: 12})
	if len(none) != 0 {
		t.Errorf("LoanTermsWarnings() = %v, expected none", none)
	}

	suspicious := LoanTermsWarnings(loans.LoanTerms{Principal: 10000, InterestRate: 150, RateType: loans.RateMonthly, TermMonths: 600})
	if len(suspicious) != 2 {
		t.Errorf("LoanTermsWarnings() returned %d warnings, expected 2: %v", len(suspicious), suspicious)
	}
}
