// Package server exposes the calculation engine over a small JSON API. The
// endpoints are previews for the bill and loan forms: they compute a figure
// for display and never write anything.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finbook/loan-engine/internal/cache"
	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/finbook/loan-engine/pkg/datetime"
	"github.com/finbook/loan-engine/pkg/formula"
	"github.com/finbook/loan-engine/pkg/loans"
	"github.com/finbook/loan-engine/pkg/mathutil"
	"github.com/finbook/loan-engine/pkg/moratory"
	"github.com/finbook/loan-engine/pkg/schedule"
	"github.com/finbook/loan-engine/pkg/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type handler struct {
	logger       *zap.Logger
	maxBodyBytes int64
	version      string
	cache        cache.Cache
}

// NewHandler constructs the HTTP handler serving the calculation API. A nil
// cache disables payment memoization.
func NewHandler(logger *zap.Logger, maxBodyBytes int64, version string, paymentCache cache.Cache) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}
	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, maxBodyBytes: maxBodyBytes, version: trimmedVersion, cache: paymentCache}

	router := mux.NewRouter()
	router.HandleFunc("/api/loan/payment", h.handlePayment).Methods(http.MethodPost)
	router.HandleFunc("/api/loan/schedule", h.handleSchedule).Methods(http.MethodPost)
	router.HandleFunc("/api/loan/penalty", h.handlePenalty).Methods(http.MethodPost)
	router.HandleFunc("/api/formula/preview", h.handleFormulaPreview).Methods(http.MethodPost)
	router.HandleFunc("/api/bill/next", h.handleNextOccurrence).Methods(http.MethodPost)
	router.HandleFunc("/api/bill/occurrences", h.handleOccurrences).Methods(http.MethodPost)
	router.HandleFunc("/api/version", h.handleVersion).Methods(http.MethodGet)

	return router
}

// loanTermsRequest mirrors the loan form fields.
type loanTermsRequest struct {
	PrincipalAmount  float64 `json:"principalAmount"`
	InterestRate     float64 `json:"interestRate"`
	InterestRateType string  `json:"interestRateType"`
	TermMonths       int     `json:"termMonths"`
	PaymentFrequency string  `json:"paymentFrequency"`
}

func (r loanTermsRequest) terms() loans.LoanTerms {
	return loans.LoanTerms{
		Principal:        r.PrincipalAmount,
		InterestRate:     r.InterestRate,
		RateType:         loans.RateType(r.InterestRateType),
		TermMonths:       r.TermMonths,
		PaymentFrequency: loans.Frequency(r.PaymentFrequency),
	}
}

// moratoryRuleRequest mirrors the moratory rule form fields.
type moratoryRuleRequest struct {
	MoratoryRate             float64 `json:"moratoryRate"`
	MoratoryRateType         string  `json:"moratoryRateType"`
	CustomFormula            string  `json:"customFormula"`
	CustomFormulaDescription string  `json:"customFormulaDescription"`
}

func (r moratoryRuleRequest) rule() moratory.Rule {
	return moratory.Rule{
		Rate:               r.MoratoryRate,
		RateType:           loans.RateType(r.MoratoryRateType),
		CustomFormula:      r.CustomFormula,
		FormulaDescription: r.CustomFormulaDescription,
	}
}

type paymentResponse struct {
	MonthlyPayment  float64  `json:"monthlyPayment"`
	PeriodicPayment float64  `json:"periodicPayment"`
	Warnings        []string `json:"warnings,omitempty"`
}

func (h *handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req loanTermsRequest
	if !h.decode(w, r, &req) {
		return
	}

	terms := req.terms()
	if err := validation.ValidateLoanTerms(terms); err != nil {
		h.respondCalcError(w, err)
		return
	}

	ctx := r.Context()
	key := cache.PaymentKey(terms)
	if h.cache != nil {
		if body, ok := h.cache.Get(ctx, key); ok {
			h.logger.Debug("payment served from cache",
				zap.String("op", "server.handlePayment"),
				zap.String("key", key),
			)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
			return
		}
	}

	resp := paymentResponse{
		MonthlyPayment:  mathutil.Round(loans.CalculateMonthlyPayment(terms)),
		PeriodicPayment: mathutil.Round(loans.CalculatePaymentForFrequency(terms)),
		Warnings:        validation.LoanTermsWarnings(terms),
	}

	if h.cache != nil {
		if body, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(ctx, key, string(body)); err != nil {
				h.logger.Warn("failed to cache payment",
					zap.String("op", "server.handlePayment"),
					zap.Error(err),
				)
			}
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type scheduledPaymentResponse struct {
	Month     int     `json:"month"`
	Payment   float64 `json:"payment"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
	Remaining float64 `json:"remaining"`
}

type scheduleResponse struct {
	MonthlyPayment float64                    `json:"monthlyPayment"`
	Schedule       []scheduledPaymentResponse `json:"schedule"`
}

func (h *handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req loanTermsRequest
	if !h.decode(w, r, &req) {
		return
	}

	terms := req.terms()
	if err := validation.ValidateLoanTerms(terms); err != nil {
		h.respondCalcError(w, err)
		return
	}
	if terms.TermMonths < 1 {
		h.respondCalcError(w, &validation.InvalidInputError{
			Field:  "termMonths",
			Reason: "must be at least 1 for an amortization schedule",
		})
		return
	}

	rows := loans.AmortizationSchedule(terms)
	resp := scheduleResponse{
		MonthlyPayment: mathutil.Round(loans.CalculateMonthlyPayment(terms)),
		Schedule:       make([]scheduledPaymentResponse, len(rows)),
	}
	for i, row := range rows {
		resp.Schedule[i] = scheduledPaymentResponse{
			Month:     row.Month,
			Payment:   row.Payment,
			Interest:  row.Interest,
			Principal: row.Principal,
			Remaining: row.Remaining,
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

type penaltyRequest struct {
	Terms       loanTermsRequest    `json:"terms"`
	Rule        moratoryRuleRequest `json:"rule"`
	DaysOverdue int                 `json:"daysOverdue"`
}

type penaltyResponse struct {
	Penalty     float64 `json:"penalty"`
	DaysOverdue int     `json:"daysOverdue"`
}

func (h *handler) handlePenalty(w http.ResponseWriter, r *http.Request) {
	var req penaltyRequest
	if !h.decode(w, r, &req) {
		return
	}

	terms := req.Terms.terms()
	rule := req.Rule.rule()
	if err := validation.ValidateLoanTerms(terms); err != nil {
		h.respondCalcError(w, err)
		return
	}
	if err := validation.ValidateMoratoryRule(rule); err != nil {
		h.respondCalcError(w, err)
		return
	}

	moratoryCtx := moratory.NewContext(terms, req.DaysOverdue)
	penalty, err := moratory.CalculatePenalty(rule, moratoryCtx)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, penaltyResponse{
		Penalty:     mathutil.Round(penalty),
		DaysOverdue: moratoryCtx.DaysOverdue,
	})
}

type formulaPreviewRequest struct {
	Terms loanTermsRequest    `json:"terms"`
	Rule  moratoryRuleRequest `json:"rule"`
}

func (h *handler) handleFormulaPreview(w http.ResponseWriter, r *http.Request) {
	var req formulaPreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	terms := req.Terms.terms()
	if err := validation.ValidateLoanTerms(terms); err != nil {
		h.respondCalcError(w, err)
		return
	}

	penalty, err := moratory.PreviewPenalty(req.Rule.rule(), terms)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, penaltyResponse{
		Penalty:     mathutil.Round(penalty),
		DaysOverdue: constants.PreviewDaysOverdue,
	})
}

// recurrenceRuleRequest mirrors the recurrence fields of a bill form.
type recurrenceRuleRequest struct {
	Type      string `json:"type"`
	Interval  int    `json:"interval"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (r recurrenceRuleRequest) rule() (schedule.Rule, error) {
	rule := schedule.Rule{
		Type:     schedule.Type(r.Type),
		Interval: r.Interval,
	}
	var err error
	if rule.StartDate, err = datetime.ParseDate(r.StartDate); err != nil {
		return schedule.Rule{}, &validation.InvalidInputError{Field: "startDate", Reason: fmt.Sprintf("malformed date %q", r.StartDate)}
	}
	if r.EndDate != "" {
		if rule.EndDate, err = datetime.ParseDate(r.EndDate); err != nil {
			return schedule.Rule{}, &validation.InvalidInputError{Field: "endDate", Reason: fmt.Sprintf("malformed date %q", r.EndDate)}
		}
	}
	return rule, validation.ValidateRecurrenceRule(rule)
}

type nextOccurrenceRequest struct {
	recurrenceRuleRequest
	After string `json:"after"`
}

type nextOccurrenceResponse struct {
	Next      string `json:"next,omitempty"`
	Exhausted bool   `json:"exhausted,omitempty"`
}

func (h *handler) handleNextOccurrence(w http.ResponseWriter, r *http.Request) {
	var req nextOccurrenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	rule, err := req.rule()
	if err != nil {
		h.respondCalcError(w, err)
		return
	}
	after, err := datetime.ParseDate(req.After)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("malformed after date %q", req.After))
		return
	}

	next, ok, err := schedule.NextOccurrence(rule, after)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}
	if !ok {
		h.respondJSON(w, http.StatusOK, nextOccurrenceResponse{Exhausted: true})
		return
	}
	h.respondJSON(w, http.StatusOK, nextOccurrenceResponse{Next: next.Format(datetime.DateLayout)})
}

type occurrencesRequest struct {
	recurrenceRuleRequest
	Until string `json:"until"`
}

type occurrencesResponse struct {
	Dates []string `json:"dates"`
}

func (h *handler) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	var req occurrencesRequest
	if !h.decode(w, r, &req) {
		return
	}

	rule, err := req.rule()
	if err != nil {
		h.respondCalcError(w, err)
		return
	}
	until, err := datetime.ParseDate(req.Until)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("malformed until date %q", req.Until))
		return
	}

	occurrences, err := schedule.Occurrences(rule, until)
	if err != nil {
		h.respondCalcError(w, err)
		return
	}

	resp := occurrencesResponse{Dates: make([]string, len(occurrences))}
	for i, d := range occurrences {
		resp.Dates[i] = d.Format(datetime.DateLayout)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// decode reads a JSON request body, enforcing the body size cap. It writes
// the error response itself and reports whether decoding succeeded.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxBodyBytes))
			return false
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err))
		return false
	}
	return true
}

// respondCalcError maps the engine error kinds onto HTTP statuses. Formula
// faults are the author's to fix, not server faults, so they come back as
// 422 with the message for the editor.
func (h *handler) respondCalcError(w http.ResponseWriter, err error) {
	var evalErr *formula.EvalError
	if errors.As(err, &evalErr) {
		h.respondError(w, http.StatusUnprocessableEntity, evalErr.Error())
		return
	}

	var invalidErr *validation.InvalidInputError
	if errors.As(err, &invalidErr) {
		h.respondError(w, http.StatusBadRequest, invalidErr.Error())
		return
	}

	if errors.Is(err, schedule.ErrUnsupportedType) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Error("calculation failed",
		zap.String("op", "server.respondCalcError"),
		zap.Error(err),
	)
	h.respondError(w, http.StatusInternalServerError, "calculation failed")
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("op", "server.respondJSON"),
			zap.Error(err),
		)
	}
}
