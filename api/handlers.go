/*
handlers.go - HTTP API handlers for the accountability engine

PURPOSE:
  Exposes reconciliation, rules and ledger state via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engines.

ENDPOINTS:
  Reconciliation:
    POST   /api/reconcile              Run daily reconciliation {date?, force?}
    POST   /api/reconcile/weekly       Run weekly reconciliation {week_start?, force?}
    GET    /api/reconcile/runs         Recent run records

  Rules:
    GET    /api/rules/status           All rules grouped by frequency
    POST   /api/rules/modify           Set a rule modifier
    POST   /api/rules/reset            Clear a rule modifier

  Ledger:
    GET    /api/debts                  Active debt summary and aging
    POST   /api/debts/{id}/buyout      Forgive debt with cardio minutes

  Records:
    GET    /api/punishments?status=    Punishments, optionally by status
    GET    /api/bonuses?week_of=       Bonuses, optionally by week
    GET    /api/habits/{week_start}    Weekly habit counters
    GET    /api/policy/overrides?date= Savings rate and earnings target in force

ERROR HANDLING:
  Errors are returned as JSON {success:false, error, details?}:
  - 400: Validation errors, invalid input
  - 404: Unknown debt or rule
  - 409: Period already reconciled (retry with force)
  - 500: Internal errors
  details carries the wrapped error chain outside production only.

SECURITY NOTE:
  No authentication. Bind to localhost or put it behind a proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/reconcile"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/violation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Reconciler *reconcile.Orchestrator
	Rules      *rules.Store
	Ledger     *ledger.Engine
	Violations *violation.Engine
	Stores     domain.Stores
	Clock      domain.Clock

	// Production hides error details from responses.
	Production bool
}

func (h *Handler) today() domain.Date { return domain.Today(h.Clock) }

// =============================================================================
// RECONCILIATION ENDPOINTS
// =============================================================================

// ReconcileDaily runs the daily orchestrator.
// POST /api/reconcile
func (h *Handler) ReconcileDaily(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, "Invalid request body", err)
		return
	}
	date, err := optionalDate("date", req.Date)
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}

	res, err := h.Reconciler.RunDaily(r.Context(), reconcile.DailyRequest{Date: date, Force: req.Force})
	if err != nil {
		h.fail(w, "Daily reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Results: toDailyResultDTO(res)})
}

// ReconcileWeekly runs the weekly orchestrator.
// POST /api/reconcile/weekly
func (h *Handler) ReconcileWeekly(w http.ResponseWriter, r *http.Request) {
	var req WeeklyReconcileRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, "Invalid request body", err)
		return
	}
	start, err := optionalDate("week_start", req.WeekStart)
	if err != nil {
		h.fail(w, "Invalid week_start", err)
		return
	}

	res, err := h.Reconciler.RunWeekly(r.Context(), reconcile.WeeklyRequest{WeekStart: start, Force: req.Force})
	if err != nil {
		h.fail(w, "Weekly reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Results: toWeeklyResultDTO(res)})
}

// ListRuns returns recent reconciliation runs.
// GET /api/reconcile/runs?limit=
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.fail(w, "Invalid limit", &domain.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := h.Reconciler.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, "Failed to list runs", err)
		return
	}
	out := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RULES ENDPOINTS
// =============================================================================

// RulesStatus returns every rule grouped by frequency.
// GET /api/rules/status
func (h *Handler) RulesStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Rules.Status(r.Context())
	if err != nil {
		h.fail(w, "Failed to load rules", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Results: toRulesStatusDTO(st)})
}

// ModifyRule sets a rule's modifier; the calculated value is recomputed from base.
// POST /api/rules/modify
func (h *Handler) ModifyRule(w http.ResponseWriter, r *http.Request) {
	var req ModifyRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Invalid request body", &domain.ValidationError{Message: "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.RuleName) == "" {
		h.fail(w, "rule_name is required", &domain.ValidationError{Field: "rule_name", Message: "is required"})
		return
	}
	if req.ModifierPercent == nil {
		h.fail(w, "modifier_percent is required", &domain.ValidationError{Field: "modifier_percent", Message: "is required"})
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	updated, err := h.Rules.UpdateModifier(r.Context(), req.RuleName, decimal.NewFromFloat(*req.ModifierPercent), reason)
	if err != nil {
		h.fail(w, "Failed to modify rule", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Results: toUpdatedRuleDTO(updated)})
}

// ResetRule clears a rule's modifier.
// POST /api/rules/reset
func (h *Handler) ResetRule(w http.ResponseWriter, r *http.Request) {
	var req ResetRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Invalid request body", &domain.ValidationError{Message: "invalid JSON: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.RuleName) == "" {
		h.fail(w, "rule_name is required", &domain.ValidationError{Field: "rule_name", Message: "is required"})
		return
	}

	updated, err := h.Rules.ResetModifier(r.Context(), req.RuleName)
	if err != nil {
		h.fail(w, "Failed to reset rule", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Results: toUpdatedRuleDTO(updated)})
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetDebts returns the active debt summary with aging buckets.
// GET /api/debts
func (h *Handler) GetDebts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	asOf := h.today()

	summary, err := h.Ledger.DebtSummary(ctx, asOf)
	if err != nil {
		h.fail(w, "Failed to load debts", err)
		return
	}
	aging, err := h.Ledger.DebtAging(ctx, asOf)
	if err != nil {
		h.fail(w, "Failed to load debts", err)
		return
	}
	writeJSON(w, http.StatusOK, toDebtsResponse(summary, aging))
}

// BuyoutDebt forgives part of a debt for cardio minutes.
// POST /api/debts/{id}/buyout
func (h *Handler) BuyoutDebt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req BuyoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Invalid request body", &domain.ValidationError{Message: "invalid JSON: " + err.Error()})
		return
	}

	res, err := h.Ledger.ProcessCardioBuyout(r.Context(), id, req.CardioMinutes)
	if err != nil {
		h.fail(w, "Buyout failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BuyoutDTO{
		DebtID:            res.DebtID,
		ForgivenessAmount: money(res.ForgivenessAmount),
		OldAmount:         money(res.OldAmount),
		NewAmount:         money(res.NewAmount),
		Status:            string(res.Status),
	})
}

// =============================================================================
// RECORD ENDPOINTS
// =============================================================================

// ListPunishments returns punishments, optionally filtered by status.
// GET /api/punishments?status=pending
func (h *Handler) ListPunishments(w http.ResponseWriter, r *http.Request) {
	status := domain.PunishmentStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.PunishmentPending, domain.PunishmentCompleted, domain.PunishmentMissed:
	default:
		h.fail(w, "Invalid status", &domain.ValidationError{Field: "status", Message: "must be pending, completed or missed"})
		return
	}

	ps, err := h.Violations.List(r.Context(), status)
	if err != nil {
		h.fail(w, "Failed to list punishments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPunishmentDTOs(ps))
}

// ListBonuses returns bonuses, optionally for one week.
// GET /api/bonuses?week_of=2025-03-10
func (h *Handler) ListBonuses(w http.ResponseWriter, r *http.Request) {
	weekOf, err := optionalDate("week_of", r.URL.Query().Get("week_of"))
	if err != nil {
		h.fail(w, "Invalid week_of", err)
		return
	}
	filter := domain.BonusFilter{}
	if !weekOf.IsZero() {
		filter.WeekOf = domain.WeekOf(weekOf).Start
	}

	bonuses, err := h.Stores.Bonuses.ListBonuses(r.Context(), filter)
	if err != nil {
		h.fail(w, "Failed to list bonuses", err)
		return
	}
	out := make([]BonusDTO, 0, len(bonuses))
	for _, b := range bonuses {
		out = append(out, toBonusDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetHabits returns the counters for the week containing week_start.
// GET /api/habits/{week_start}
func (h *Handler) GetHabits(w http.ResponseWriter, r *http.Request) {
	d, err := domain.ParseDate(chi.URLParam(r, "week_start"))
	if err != nil {
		h.fail(w, "Invalid week_start", err)
		return
	}
	habits, err := h.Stores.Habits.Week(r.Context(), domain.WeekOf(d).Start)
	if err != nil {
		h.fail(w, "Failed to load habits", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitsDTO(habits))
}

// GetOverrides returns the savings rate and earnings requirement in force.
// GET /api/policy/overrides?date=
func (h *Handler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	date, err := optionalDate("date", r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, "Invalid date", err)
		return
	}
	if date.IsZero() {
		date = h.today()
	}

	o, err := h.Violations.ActiveOverrides(r.Context(), date)
	if err != nil {
		h.fail(w, "Failed to load overrides", err)
		return
	}
	writeJSON(w, http.StatusOK, OverridesDTO{
		Date:                o.Date.String(),
		SavingsRate:         money(o.SavingsRate),
		EarningsRequirement: money(o.EarningsRequirement),
		Records:             toPunishmentDTOs(o.Records),
	})
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Error: message}
	if err != nil && !h.Production {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps err onto a status code. Client errors carry their own message.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError && err != nil {
		message = err.Error()
	}
	h.writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyReconciled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptional decodes a JSON body into v; an empty body leaves v zero.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &domain.ValidationError{Message: "invalid JSON: " + err.Error()}
}

func optionalDate(field, s string) (domain.Date, error) {
	if strings.TrimSpace(s) == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}, &domain.ValidationError{Field: field, Message: "use YYYY-MM-DD, got " + strconv.Quote(s)}
	}
	return d, nil
}
