package mathutil

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{name: "Exact cents", input: 888.4878868, expected: 888.49},
		{name: "Round down", input: 10.004, expected: 10.00},
		{name: "Round up", input: 10.005, expected: 10.01},
		{name: "Negative", input: -3.456, expected: -3.46},
		{name: "Zero", input: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{name: "NaN becomes zero", input: math.NaN(), expected: 0},
		{name: "Positive infinity becomes zero", input: math.Inf(1), expected: 0},
		{name: "Negative infinity becomes zero", input: math.Inf(-1), expected: 0},
		{name: "Negative becomes zero", input: -150.25, expected: 0},
		{name: "Positive passes through", input: 10000, expected: 10000},
		{name: "Zero passes through", input: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sanitize(tt.input)
			if result != tt.expected {
				t.Errorf("Sanitize(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	if !WithinTolerance(100.00, 100.005, 0.01) {
		t.Errorf("WithinTolerance(100.00, 100.005, 0.01) = false, expected true")
	}
	if WithinTolerance(100.00, 100.02, 0.01) {
		t.Errorf("WithinTolerance(100.00, 100.02, 0.01) = true, expected false")
	}
}
