// Package constants provides shared constants for the loan-engine.
package constants

// DateLayout is the calendar date format accepted in configuration, the API,
// and the bill store.
const DateLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// WeeksPerYear is the number of weeks in a year
	WeeksPerYear = 52

	// DaysPerMonth is the fixed day count used to normalize daily rates to a
	// monthly period and to prorate a monthly payment per day. A flat 30-day
	// month is a convention: penalty figures must not change with the calendar
	// month they happen to be computed in.
	DaysPerMonth = 30.0

	// WeeksPerMonth is the fixed week count used to normalize weekly rates to
	// a monthly period (52 weeks / 12 months). Same convention as DaysPerMonth.
	WeeksPerMonth = 4.33

	// DaysPerWeek is the number of days in a week
	DaysPerWeek = 7.0

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)

// Formula evaluator bounds
const (
	// MaxFormulaLength is the maximum accepted source length for a custom
	// moratory formula, in bytes.
	MaxFormulaLength = 4096

	// MaxFormulaDepth is the maximum nesting depth the formula parser accepts.
	MaxFormulaDepth = 32

	// MaxFormulaSteps is the maximum number of evaluation steps a formula may
	// take before it is aborted.
	MaxFormulaSteps = 10000

	// PreviewDaysOverdue is the fixed overdue day count used for the sample
	// formula run shown next to the formula editor.
	PreviewDaysOverdue = 30
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the preview API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodyBytes is the default maximum request body size for the
	// preview API (64 KB)
	DefaultMaxBodyBytes int64 = 64 * 1024
)

// Worker defaults
const (
	// DefaultWorkerSchedule is the default cron schedule for the recurring-bill
	// worker (daily at 02:00).
	DefaultWorkerSchedule = "0 2 * * *"

	// DefaultWorkerConcurrency is the default number of bills processed in
	// parallel by the recurring-bill worker.
	DefaultWorkerConcurrency = 4
)
