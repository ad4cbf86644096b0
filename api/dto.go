/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engines' records from the external API contract. Money crosses the
  wire as a JSON number rounded to cents; dates as "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/reconcile"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/violation"
)

// =============================================================================
// REQUESTS
// =============================================================================

type ReconcileRequest struct {
	Date  string `json:"date,omitempty"`
	Force bool   `json:"force,omitempty"`
}

type WeeklyReconcileRequest struct {
	WeekStart string `json:"week_start,omitempty"`
	Force     bool   `json:"force,omitempty"`
}

type ModifyRuleRequest struct {
	RuleName        string   `json:"rule_name"`
	ModifierPercent *float64 `json:"modifier_percent"`
	Reason          string   `json:"reason"`
}

type ResetRuleRequest struct {
	RuleName string `json:"rule_name"`
}

type BuyoutRequest struct {
	CardioMinutes int `json:"cardio_minutes"`
}

// =============================================================================
// RESPONSE WRAPPERS
// =============================================================================

type SuccessResponse struct {
	Success bool `json:"success"`
	Results any  `json:"results"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type StepDTO struct {
	Step  string `json:"step"`
	Error string `json:"error,omitempty"`
}

type InterestDTO struct {
	DebtID          string  `json:"debt_id"`
	Name            string  `json:"name"`
	OldAmount       float64 `json:"old_amount"`
	NewAmount       float64 `json:"new_amount"`
	InterestApplied float64 `json:"interest_applied"`
	InterestRate    float64 `json:"interest_rate"`
}

type PaymentDTO struct {
	DebtID        string  `json:"debt_id"`
	Name          string  `json:"name"`
	PaymentAmount float64 `json:"payment_amount"`
	RemainingDebt float64 `json:"remaining_debt"`
	Status        string  `json:"status"`
}

type EarningsDTO struct {
	UberEarnings float64      `json:"uber_earnings"`
	Payments     []PaymentDTO `json:"payments"`
	TotalPaid    float64      `json:"total_paid"`
	Remaining    float64      `json:"remaining"`
}

type ViolationDTO struct {
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	PunishmentType string `json:"punishment_type,omitempty"`
	Minutes        int    `json:"minutes,omitempty"`
}

type AwardedBonusDTO struct {
	BonusID string  `json:"bonus_id"`
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
	Reason  string  `json:"reason"`
}

type WorkoutDTO struct {
	ID              string `json:"id"`
	ExternalID      string `json:"external_id,omitempty"`
	Date            string `json:"date"`
	Type            string `json:"type"`
	Name            string `json:"name,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	Calories        int    `json:"calories,omitempty"`
}

type DailyResultDTO struct {
	RunID                string            `json:"run_id,omitempty"`
	Date                 string            `json:"date"`
	Workouts             []WorkoutDTO      `json:"workouts"`
	Interest             []InterestDTO     `json:"interest"`
	TotalInterest        float64           `json:"total_interest"`
	MissedPunishments    []PunishmentDTO   `json:"missed_punishments"`
	CompletedPunishments []PunishmentDTO   `json:"completed_punishments"`
	Violations           []ViolationDTO    `json:"violations"`
	NewPunishments       []PunishmentDTO   `json:"new_punishments"`
	DebtsCreated         []DebtDTO         `json:"debts_created"`
	Earnings             EarningsDTO       `json:"earnings"`
	Bonuses              []AwardedBonusDTO `json:"bonuses"`
	TotalBonuses         float64           `json:"total_bonuses"`
	ActiveDebt           float64           `json:"active_debt"`
	Summary              string            `json:"summary"`
	Steps                []StepDTO         `json:"steps"`
}

type ViolationDetailDTO struct {
	Requirement string `json:"requirement"`
	Required    int    `json:"required"`
	Actual      int    `json:"actual"`
}

type WeeklyResultDTO struct {
	RunID           string               `json:"run_id,omitempty"`
	WeekStart       string               `json:"week_start"`
	WeekEnd         string               `json:"week_end"`
	JobApplications int                  `json:"job_applications"`
	YogaSessions    int                  `json:"yoga_sessions"`
	LiftingSessions int                  `json:"lifting_sessions"`
	TotalViolations int                  `json:"total_violations"`
	Violations      []ViolationDetailDTO `json:"violation_details"`
	Punishments     []PunishmentDTO      `json:"punishments"`
	Bonuses         []AwardedBonusDTO    `json:"bonuses"`
	TotalBonuses    float64              `json:"total_bonuses"`
	Summary         string               `json:"summary"`
	Steps           []StepDTO            `json:"steps"`
}

type RunDTO struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Period      string     `json:"period"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Summary     string     `json:"summary,omitempty"`
}

// =============================================================================
// RECORDS
// =============================================================================

type DebtDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Reason          string  `json:"reason,omitempty"`
	OriginalAmount  float64 `json:"original_amount"`
	CurrentAmount   float64 `json:"current_amount"`
	DateAssigned    string  `json:"date_assigned"`
	InterestRate    float64 `json:"interest_rate"`
	Status          string  `json:"status"`
	DaysOutstanding *int    `json:"days_outstanding,omitempty"`
	IsOverdue       bool    `json:"is_overdue,omitempty"`
	IsCritical      bool    `json:"is_critical,omitempty"`
}

type AgingBucketDTO struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type DebtsResponse struct {
	TotalActive   float64                   `json:"total_active"`
	ActiveCount   int                       `json:"active_count"`
	OverdueCount  int                       `json:"overdue_count"`
	CriticalCount int                       `json:"critical_count"`
	OldestDays    int                       `json:"oldest_days"`
	Debts         []DebtDTO                 `json:"debts"`
	Aging         map[string]AgingBucketDTO `json:"aging"`
}

type BuyoutDTO struct {
	DebtID            string  `json:"debt_id"`
	ForgivenessAmount float64 `json:"forgiveness_amount"`
	OldAmount         float64 `json:"old_amount"`
	NewAmount         float64 `json:"new_amount"`
	Status            string  `json:"status"`
}

type PunishmentDTO struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Type                   string   `json:"type"`
	Category               string   `json:"category"`
	Minutes                int      `json:"minutes,omitempty"`
	DateAssigned           string   `json:"date_assigned"`
	DueDate                string   `json:"due_date,omitempty"`
	Status                 string   `json:"status"`
	Reason                 string   `json:"reason,omitempty"`
	Route                  int      `json:"route,omitempty"`
	ViolationCount         int      `json:"violation_count,omitempty"`
	EscalationLevel        int      `json:"escalation_level,omitempty"`
	WeekStart              string   `json:"week_start,omitempty"`
	SavingsRateNew         *float64 `json:"savings_rate_new,omitempty"`
	EarningsRequirementNew *float64 `json:"earnings_requirement_new,omitempty"`
	TargetWeekStart        string   `json:"target_week_start,omitempty"`
	CompletedDate          string   `json:"completed_date,omitempty"`
	CompletedBy            string   `json:"completed_by,omitempty"`
}

type BonusDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
	WeekOf string  `json:"week_of"`
	Reason string  `json:"reason,omitempty"`
	Status string  `json:"status"`
}

type HabitsDTO struct {
	ID              string         `json:"id"`
	WeekStart       string         `json:"week_start"`
	Counts          map[string]int `json:"counts"`
	UberEarnings    float64        `json:"uber_earnings"`
	ComplianceRate  float64        `json:"compliance_rate"`
	TotalViolations int            `json:"total_violations"`
}

type OverridesDTO struct {
	Date                string          `json:"date"`
	SavingsRate         float64         `json:"savings_rate"`
	EarningsRequirement float64         `json:"earnings_requirement"`
	Records             []PunishmentDTO `json:"records"`
}

// =============================================================================
// RULES
// =============================================================================

type RuleDTO struct {
	Name            string  `json:"name"`
	Type            string  `json:"type,omitempty"`
	Frequency       string  `json:"frequency,omitempty"`
	Punishable      bool    `json:"punishable"`
	BaseValue       string  `json:"base_value"`
	ModifierPercent float64 `json:"modifier_percent"`
	CalculatedValue string  `json:"calculated_value"`
	Description     string  `json:"description,omitempty"`
}

type RulesStatusDTO struct {
	Count           int                  `json:"count"`
	ByFrequency     map[string][]RuleDTO `json:"by_frequency"`
	Modified        []RuleDTO            `json:"modified"`
	Cached          bool                 `json:"cached"`
	CacheAgeSeconds float64              `json:"cache_age_seconds"`
}

type UpdatedRuleDTO struct {
	Rule          RuleDTO `json:"rule"`
	PreviousValue string  `json:"previous_value"`
	NewValue      string  `json:"new_value"`
	Reason        string  `json:"reason"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 { return domain.Round2(d).InexactFloat64() }

func dateString(d domain.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func toSteps(steps []reconcile.StepOutcome) []StepDTO {
	out := make([]StepDTO, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepDTO{Step: s.Step, Error: s.Error})
	}
	return out
}

func toWorkoutDTO(w domain.Workout) WorkoutDTO {
	return WorkoutDTO{
		ID:              w.ID,
		ExternalID:      w.ExternalID,
		Date:            dateString(w.Date),
		Type:            string(w.Type),
		Name:            w.Name,
		DurationMinutes: w.DurationMinutes,
		Calories:        w.Calories,
	}
}

func toDebtDTO(d domain.Debt) DebtDTO {
	return DebtDTO{
		ID:             d.ID,
		Name:           d.Name,
		Reason:         d.Reason,
		OriginalAmount: money(d.OriginalAmount),
		CurrentAmount:  money(d.CurrentAmount),
		DateAssigned:   dateString(d.DateAssigned),
		InterestRate:   d.InterestRate.InexactFloat64(),
		Status:         string(d.Status),
	}
}

func toDebtViewDTO(v ledger.DebtView) DebtDTO {
	dto := toDebtDTO(v.Debt)
	days := v.DaysOutstanding
	dto.DaysOutstanding = &days
	dto.IsOverdue = v.IsOverdue
	dto.IsCritical = v.IsCritical
	return dto
}

func toPunishmentDTO(p domain.Punishment) PunishmentDTO {
	dto := PunishmentDTO{
		ID:              p.ID,
		Name:            p.Name,
		Type:            p.Type,
		Category:        string(p.Category),
		Minutes:         p.Minutes,
		DateAssigned:    dateString(p.DateAssigned),
		DueDate:         dateString(p.DueDate),
		Status:          string(p.Status),
		Reason:          p.Reason,
		Route:           p.Route,
		ViolationCount:  p.ViolationCount,
		EscalationLevel: p.EscalationLevel,
		WeekStart:       dateString(p.WeekStart),
		TargetWeekStart: dateString(p.TargetWeekStart),
		CompletedDate:   dateString(p.CompletedDate),
		CompletedBy:     p.CompletedBy,
	}
	switch p.Category {
	case domain.CategorySavings:
		v := money(p.SavingsRateNew)
		dto.SavingsRateNew = &v
	case domain.CategoryEarnings:
		v := money(p.EarningsRequirementNew)
		dto.EarningsRequirementNew = &v
	}
	return dto
}

func toPunishmentDTOs(ps []domain.Punishment) []PunishmentDTO {
	out := make([]PunishmentDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPunishmentDTO(p))
	}
	return out
}

func toBonusDTO(b domain.Bonus) BonusDTO {
	return BonusDTO{
		ID:     b.ID,
		Name:   b.Name,
		Type:   string(b.Type),
		Amount: money(b.Amount),
		Date:   dateString(b.Date),
		WeekOf: dateString(b.WeekOf),
		Reason: b.Reason,
		Status: string(b.Status),
	}
}

func toAwardedDTOs(bs []bonus.AwardedBonus) []AwardedBonusDTO {
	out := make([]AwardedBonusDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, AwardedBonusDTO{BonusID: b.BonusID, Type: string(b.Type), Amount: money(b.Amount), Reason: b.Reason})
	}
	return out
}

func toDailyResultDTO(r *reconcile.DailyResult) DailyResultDTO {
	dto := DailyResultDTO{
		RunID:                r.RunID,
		Date:                 r.Date.String(),
		Workouts:             make([]WorkoutDTO, 0, len(r.Workouts)),
		Interest:             make([]InterestDTO, 0, len(r.Interest)),
		TotalInterest:        money(r.TotalInterest),
		MissedPunishments:    toPunishmentDTOs(r.MissedPunishments),
		CompletedPunishments: toPunishmentDTOs(r.CompletedPunishments),
		Violations:           make([]ViolationDTO, 0, len(r.Violations)),
		NewPunishments:       toPunishmentDTOs(r.NewPunishments),
		DebtsCreated:         make([]DebtDTO, 0, len(r.DebtsCreated)),
		Earnings: EarningsDTO{
			UberEarnings: money(r.UberEarnings),
			Payments:     make([]PaymentDTO, 0, len(r.Payments.Payments)),
			TotalPaid:    money(r.Payments.TotalPaid()),
			Remaining:    money(r.Payments.Remaining),
		},
		Bonuses:      toAwardedDTOs(r.Bonuses),
		TotalBonuses: money(r.TotalBonuses),
		ActiveDebt:   money(r.ActiveDebt),
		Summary:      r.Summary,
		Steps:        toSteps(r.Steps),
	}
	for _, w := range r.Workouts {
		dto.Workouts = append(dto.Workouts, toWorkoutDTO(w))
	}
	for _, a := range r.Interest {
		dto.Interest = append(dto.Interest, InterestDTO{
			DebtID:          a.DebtID,
			Name:            a.Name,
			OldAmount:       money(a.OldAmount),
			NewAmount:       money(a.NewAmount),
			InterestApplied: money(a.InterestApplied),
			InterestRate:    a.InterestRate.InexactFloat64(),
		})
	}
	for _, v := range r.Violations {
		dto.Violations = append(dto.Violations, toViolationDTO(v))
	}
	for _, d := range r.DebtsCreated {
		dto.DebtsCreated = append(dto.DebtsCreated, toDebtDTO(d))
	}
	for _, p := range r.Payments.Payments {
		dto.Earnings.Payments = append(dto.Earnings.Payments, PaymentDTO{
			DebtID:        p.DebtID,
			Name:          p.Name,
			PaymentAmount: money(p.PaymentAmount),
			RemainingDebt: money(p.RemainingDebt),
			Status:        string(p.Status),
		})
	}
	return dto
}

func toViolationDTO(v violation.Violation) ViolationDTO {
	return ViolationDTO{Type: v.Type, Reason: v.Reason, PunishmentType: v.PunishmentType, Minutes: v.Minutes}
}

func toWeeklyResultDTO(r *reconcile.WeeklyResult) WeeklyResultDTO {
	dto := WeeklyResultDTO{
		RunID:           r.RunID,
		WeekStart:       r.Week.Start.String(),
		WeekEnd:         r.Week.End.String(),
		JobApplications: r.JobApplications,
		YogaSessions:    r.YogaSessions,
		LiftingSessions: r.LiftingSessions,
		TotalViolations: r.Violations.Total(),
		Violations:      make([]ViolationDetailDTO, 0, len(r.Violations.Details)),
		Punishments:     toPunishmentDTOs(r.Punishments),
		Bonuses:         toAwardedDTOs(r.Bonuses),
		TotalBonuses:    money(r.TotalBonuses),
		Summary:         r.Summary,
		Steps:           toSteps(r.Steps),
	}
	for _, d := range r.Violations.Details {
		dto.Violations = append(dto.Violations, ViolationDetailDTO{Requirement: d.Requirement, Required: d.Required, Actual: d.Actual})
	}
	return dto
}

func toRunDTO(r domain.ReconciliationRun) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Period:    r.Period,
		Status:    string(r.Status),
		StartedAt: r.StartedAt,
		Error:     r.Error,
		Summary:   r.Summary,
	}
	if !r.CompletedAt.IsZero() {
		t := r.CompletedAt
		dto.CompletedAt = &t
	}
	return dto
}

func toRuleDTO(r domain.Rule) RuleDTO {
	return RuleDTO{
		Name:            r.Name,
		Type:            string(r.Type),
		Frequency:       string(r.Frequency),
		Punishable:      r.Punishable,
		BaseValue:       r.BaseValue,
		ModifierPercent: r.ModifierPercent.InexactFloat64(),
		CalculatedValue: r.EffectiveValue(),
		Description:     r.Description,
	}
}

func toRulesStatusDTO(st rules.Status) RulesStatusDTO {
	dto := RulesStatusDTO{
		Count:           st.Count,
		ByFrequency:     make(map[string][]RuleDTO, len(st.ByFrequency)),
		Modified:        make([]RuleDTO, 0, len(st.Modified)),
		Cached:          st.Cached,
		CacheAgeSeconds: st.CacheAge.Seconds(),
	}
	for f, list := range st.ByFrequency {
		key := string(f)
		if key == "" {
			key = "unspecified"
		}
		for _, r := range list {
			dto.ByFrequency[key] = append(dto.ByFrequency[key], toRuleDTO(r))
		}
	}
	for _, r := range st.Modified {
		dto.Modified = append(dto.Modified, toRuleDTO(r))
	}
	return dto
}

func toUpdatedRuleDTO(u rules.UpdatedRule) UpdatedRuleDTO {
	return UpdatedRuleDTO{Rule: toRuleDTO(u.Rule), PreviousValue: u.PreviousValue, NewValue: u.NewValue, Reason: u.Reason}
}

func toHabitsDTO(h domain.WeeklyHabits) HabitsDTO {
	dto := HabitsDTO{
		ID:              h.ID,
		WeekStart:       dateString(h.WeekStart),
		Counts:          make(map[string]int, len(domain.HabitCounters)),
		UberEarnings:    money(h.UberEarnings),
		ComplianceRate:  h.ComplianceRate.InexactFloat64(),
		TotalViolations: h.TotalViolations,
	}
	for _, c := range domain.HabitCounters {
		dto.Counts[string(c)] = h.Count(c)
	}
	return dto
}

func toDebtsResponse(s ledger.Summary, a ledger.Aging) DebtsResponse {
	resp := DebtsResponse{
		TotalActive:   money(s.TotalActive),
		ActiveCount:   s.ActiveCount,
		OverdueCount:  s.OverdueCount,
		CriticalCount: s.CriticalCount,
		OldestDays:    s.OldestDays,
		Debts:         make([]DebtDTO, 0, len(s.Debts)),
		Aging: map[string]AgingBucketDTO{
			"0-3":  {Count: a.Fresh.Count, Amount: money(a.Fresh.Amount)},
			"4-7":  {Count: a.Overdue.Count, Amount: money(a.Overdue.Amount)},
			"8-13": {Count: a.Late.Count, Amount: money(a.Late.Amount)},
			"14+":  {Count: a.Critical.Count, Amount: money(a.Critical.Amount)},
		},
	}
	for _, v := range s.Debts {
		resp.Debts = append(resp.Debts, toDebtViewDTO(v))
	}
	return resp
}
