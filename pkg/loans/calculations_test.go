package loans

import (
	"math"
	"testing"

	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/finbook/loan-engine/pkg/mathutil"
)

func TestCalculateMonthlyPayment(t *testing.T) {
	tests := []struct {
		name     string
		terms    LoanTerms
		expected float64
	}{
		{
			name:     "One percent monthly over a year",
			terms:    LoanTerms{Principal: 10000, InterestRate: 1, RateType: RateMonthly, TermMonths: 12},
			expected: 888.49,
		},
		{
			name:     "Twelve percent monthly over a year",
			terms:    LoanTerms{Principal: 10000, InterestRate: 12, RateType: RateMonthly, TermMonths: 12},
			expected: 1614.37,
		},
		{
			name:     "Zero interest straight-line",
			terms:    LoanTerms{Principal: 12000, InterestRate: 0, RateType: RateMonthly, TermMonths: 60},
			expected: 200.00,
		},
		{
			name:     "Open-ended interest only",
			terms:    LoanTerms{Principal: 10000, InterestRate: 1, RateType: RateMonthly, TermMonths: 0},
			expected: 100.00,
		},
		{
			name:     "Open-ended with daily rate",
			terms:    LoanTerms{Principal: 10000, InterestRate: 0.04, RateType: RateDaily, TermMonths: 0},
			expected: 120.00,
		},
		{
			name:     "Open-ended with weekly rate",
			terms:    LoanTerms{Principal: 10000, InterestRate: 0.3, RateType: RateWeekly, TermMonths: 0},
			expected: 129.90,
		},
		{
			name:     "Negative principal treated as zero",
			terms:    LoanTerms{Principal: -5000, InterestRate: 2, RateType: RateMonthly, TermMonths: 12},
			expected: 0.00,
		},
		{
			name:     "NaN rate treated as zero",
			terms:    LoanTerms{Principal: 6000, InterestRate: math.NaN(), RateType: RateMonthly, TermMonths: 12},
			expected: 500.00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateMonthlyPayment(tt.terms)

			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("CalculateMonthlyPayment() = %.2f, expected %.2f", result, tt.expected)
			}
		})
	}
}

func TestCalculateMonthlyPaymentProperties(t *testing.T) {
	// For any positive-rate term loan the total repaid must at least cover
	// the principal, and the payment must always be finite and non-negative.
	terms := []LoanTerms{
		{Principal: 10000, InterestRate: 1, RateType: RateMonthly, TermMonths: 12},
		{Principal: 250000, InterestRate: 0.5, RateType: RateMonthly, TermMonths: 360},
		{Principal: 800, InterestRate: 0.1, RateType: RateDaily, TermMonths: 6},
		{Principal: 5000, InterestRate: 0.25, RateType: RateWeekly, TermMonths: 24},
		{Principal: 10000, InterestRate: 0, RateType: RateMonthly, TermMonths: 48},
	}

	for _, tc := range terms {
		payment := CalculateMonthlyPayment(tc)
		if math.IsNaN(payment) || math.IsInf(payment, 0) {
			t.Errorf("payment for %+v is not finite: %v", tc, payment)
		}
		if payment < 0 {
			t.Errorf("payment for %+v is negative: %v", tc, payment)
		}
		if total := payment * float64(tc.TermMonths); total < tc.Principal-0.01 {
			t.Errorf("total repaid %.2f for %+v does not cover principal %.2f", total, tc, tc.Principal)
		}
	}
}

func TestCalculateMonthlyPaymentDeterminism(t *testing.T) {
	terms := LoanTerms{Principal: 10000, InterestRate: 1.75, RateType: RateMonthly, TermMonths: 36}
	first := CalculateMonthlyPayment(terms)
	second := CalculateMonthlyPayment(terms)
	if first != second {
		t.Errorf("repeated calls produced different payments: %v vs %v", first, second)
	}
}

func TestEffectiveMonthlyRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		rateType RateType
		expected float64
	}{
		{name: "Monthly passes through", rate: 1.5, rateType: RateMonthly, expected: 0.015},
		{name: "Daily scales by 30", rate: 0.05, rateType: RateDaily, expected: 0.015},
		{name: "Weekly scales by 4.33", rate: 1, rateType: RateWeekly, expected: 0.0433},
		{name: "Unknown type treated as monthly", rate: 2, rateType: RateType("hourly"), expected: 0.02},
		{name: "Negative rate sanitized to zero", rate: -3, rateType: RateMonthly, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EffectiveMonthlyRate(tt.rate, tt.rateType)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("EffectiveMonthlyRate(%v, %s) = %v, expected %v", tt.rate, tt.rateType, result, tt.expected)
			}
		})
	}
}

func TestCalculateInterestPayment(t *testing.T) {
	terms := LoanTerms{InterestRate: 1, RateType: RateMonthly}
	result := CalculateInterestPayment(20000, terms)
	if math.Abs(result-200) > 0.01 {
		t.Errorf("CalculateInterestPayment(20000) = %.2f, expected 200.00", result)
	}
}

func TestAmortizationSchedule(t *testing.T) {
	terms := LoanTerms{Principal: 10000, InterestRate: 1, RateType: RateMonthly, TermMonths: 12}
	rows := AmortizationSchedule(terms)
	if len(rows) != 12 {
		t.Fatalf("AmortizationSchedule() returned %d rows, expected 12", len(rows))
	}

	first := rows[0]
	if !mathutil.WithinTolerance(first.Interest, 100, constants.CurrencyTolerance) {
		t.Errorf("first interest = %.2f, expected 100.00", first.Interest)
	}
	if !mathutil.WithinTolerance(first.Principal, 788.49, constants.CurrencyTolerance) {
		t.Errorf("first principal = %.2f, expected 788.49", first.Principal)
	}
	if !mathutil.WithinTolerance(first.Remaining, 9211.51, constants.CurrencyTolerance) {
		t.Errorf("first remaining = %.2f, expected 9211.51", first.Remaining)
	}

	if last := rows[len(rows)-1]; last.Remaining != 0 {
		t.Errorf("final remaining = %.2f, expected exactly 0", last.Remaining)
	}

	var principalSum float64
	for _, row := range rows {
		principalSum += row.Principal
	}
	if !mathutil.WithinTolerance(principalSum, terms.Principal, 0.05) {
		t.Errorf("principal portions sum to %.2f, expected %.2f", principalSum, terms.Principal)
	}
}

func TestAmortizationScheduleZeroRate(t *testing.T) {
	terms := LoanTerms{Principal: 1200, InterestRate: 0, RateType: RateMonthly, TermMonths: 12}
	rows := AmortizationSchedule(terms)
	if len(rows) != 12 {
		t.Fatalf("AmortizationSchedule() returned %d rows, expected 12", len(rows))
	}
	for _, row := range rows {
		if row.Interest != 0 {
			t.Errorf("month %d interest = %.2f, expected 0", row.Month, row.Interest)
		}
		if !mathutil.WithinTolerance(row.Payment, 100, constants.CurrencyTolerance) {
			t.Errorf("month %d payment = %.2f, expected 100.00", row.Month, row.Payment)
		}
	}
	if last := rows[len(rows)-1]; last.Remaining != 0 {
		t.Errorf("final remaining = %.2f, expected exactly 0", last.Remaining)
	}
}

func TestAmortizationScheduleOpenEnded(t *testing.T) {
	terms := LoanTerms{Principal: 10000, InterestRate: 1, RateType: RateMonthly, TermMonths: 0}
	if rows := AmortizationSchedule(terms); rows != nil {
		t.Errorf("AmortizationSchedule() for an open-ended loan = %v, expected nil", rows)
	}
}

func TestCalculatePaymentForFrequency(t *testing.T) {
	terms := LoanTerms{Principal: 12000, InterestRate: 0, RateType: RateMonthly, TermMonths: 12}
	// Monthly payment is 1000; annualized 12000.
	tests := []struct {
		name      string
		frequency Frequency
		expected  float64
	}{
		{name: "Monthly", frequency: FrequencyMonthly, expected: 1000},
		{name: "Quarterly", frequency: FrequencyQuarterly, expected: 3000},
		{name: "Annually", frequency: FrequencyAnnually, expected: 12000},
		{name: "Weekly", frequency: FrequencyWeekly, expected: 12000.0 / 52},
		{name: "Biweekly", frequency: FrequencyBiweekly, expected: 12000.0 / 26},
		{name: "Unset defaults to monthly", frequency: Frequency(""), expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms.PaymentFrequency = tt.frequency
			result := CalculatePaymentForFrequency(terms)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("CalculatePaymentForFrequency(%s) = %.2f, expected %.2f", tt.frequency, result, tt.expected)
			}
		})
	}
}
