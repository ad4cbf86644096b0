package violation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/rules"
)

// =============================================================================
// WEEKLY REQUIREMENTS
// =============================================================================

const (
	DefaultYogaMinimum    = 5
	DefaultLiftingMinimum = 3
)

// ViolationDetail is one missed weekly requirement.
type ViolationDetail struct {
	Requirement string
	Required    int
	Actual      int
}

func (d ViolationDetail) String() string {
	return fmt.Sprintf("%s %d/%d", d.Requirement, d.Actual, d.Required)
}

// WeeklyViolations is the input to the 3-route escalation.
type WeeklyViolations struct {
	Week    domain.Week
	Details []ViolationDetail
}

// Total counts one violation per failed requirement.
func (v WeeklyViolations) Total() int { return len(v.Details) }

func (v WeeklyViolations) Summary() string {
	parts := make([]string, len(v.Details))
	for i, d := range v.Details {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

type requirement struct {
	name    string
	counter domain.HabitCounter
	rule    string
	// fallback applies when the rule is absent; zero means no requirement.
	fallback int
}

var weeklyRequirements = []requirement{
	{name: "yoga", counter: domain.HabitYoga, rule: rules.YogaMinimum, fallback: DefaultYogaMinimum},
	{name: "lifting", counter: domain.HabitLifting, rule: rules.LiftingMinimum, fallback: DefaultLiftingMinimum},
	{name: "job applications", counter: domain.HabitJobApplications, rule: rules.JobApplicationsMinimum},
	{name: "office days", counter: domain.HabitOfficeDays, rule: rules.OfficeDaysMinimum},
}

// CheckWeeklyRequirements compares the week's counters against the workout,
// career and office minimums.
func (e *Engine) CheckWeeklyRequirements(ctx context.Context, habits domain.WeeklyHabits, week domain.Week) WeeklyViolations {
	out := WeeklyViolations{Week: week}
	for _, req := range weeklyRequirements {
		required := req.fallback
		if e.rules.Exists(ctx, req.rule) {
			required = int(e.rules.NumericValue(ctx, req.rule).IntPart())
		}
		if required <= 0 {
			continue
		}
		if actual := habits.Count(req.counter); actual < required {
			out.Details = append(out.Details, ViolationDetail{Requirement: req.name, Required: required, Actual: actual})
		}
	}
	return out
}

// =============================================================================
// 3-ROUTE ESCALATION
// =============================================================================
//
//   n = total violations for the week
//
//   Route 1 (n >= 1)  cardio: 30 + 15*(n-1) minutes, random modality,
//                     due in 7 days, escalation level min(n, 5)
//   Route 2 (n >= 2)  savings rate: base + 10 points per step, capped at
//                     n = 4 (50% -> 60/70/80), for the evaluated week
//   Route 3 (n >= 3)  earnings requirement: base + $25 per step, capped at
//                     n = 5 ($100 -> 125/150/175), for the following week
//
// Routes are independent and additive.

const (
	DefaultBaseSavingsRate     = 50
	DefaultEarningsRequirement = 100

	cardioBaseMinutes  = 30
	cardioStepMinutes  = 15
	maxEscalationLevel = 5
	cardioDueDays      = 7
)

var (
	savingsStep  = decimal.NewFromInt(10)
	earningsStep = decimal.NewFromInt(25)
)

// CardioMinutes is the route 1 duration for n violations.
func CardioMinutes(n int) int { return cardioBaseMinutes + cardioStepMinutes*(n-1) }

// SavingsRate is the route 2 rate for n >= 2 violations.
func SavingsRate(base decimal.Decimal, n int) decimal.Decimal {
	return base.Add(savingsStep.Mul(decimal.NewFromInt(int64(min(n, 4) - 1))))
}

// EarningsRequirement is the route 3 target for n >= 3 violations.
func EarningsRequirement(base decimal.Decimal, n int) decimal.Decimal {
	return domain.Round2(base.Add(earningsStep.Mul(decimal.NewFromInt(int64(min(n, 5) - 2)))))
}

// PlanWeekly builds the punishment records for v without persisting them.
// assignedOn is the day the weekly run executes.
func (e *Engine) PlanWeekly(ctx context.Context, v WeeklyViolations, assignedOn domain.Date) []domain.Punishment {
	n := v.Total()
	if n == 0 {
		return nil
	}
	reason := fmt.Sprintf("%d weekly violations: %s", n, v.Summary())

	var plan []domain.Punishment

	minutes := CardioMinutes(n)
	modality := e.randomModality()
	plan = append(plan, domain.Punishment{
		Name:            fmt.Sprintf("Weekly Cardio - %s", v.Week.Start),
		Type:            modality,
		Category:        domain.CategoryCardio,
		Minutes:         minutes,
		DateAssigned:    assignedOn,
		DueDate:         assignedOn.AddDays(cardioDueDays),
		Status:          domain.PunishmentPending,
		Reason:          reason,
		Route:           1,
		ViolationCount:  n,
		EscalationLevel: min(n, maxEscalationLevel),
		WeekStart:       v.Week.Start,
		WeekEnd:         v.Week.End,
	})

	if n >= 2 {
		base := e.rules.NumericOr(ctx, rules.BaseSavingsRate, decimal.NewFromInt(DefaultBaseSavingsRate))
		plan = append(plan, domain.Punishment{
			Name:                fmt.Sprintf("Savings Increase - %s", v.Week.Start),
			Type:                domain.PunishmentTypeSavings,
			Category:            domain.CategorySavings,
			DateAssigned:        assignedOn,
			Status:              domain.PunishmentPending,
			Reason:              reason,
			Route:               2,
			ViolationCount:      n,
			EscalationLevel:     min(n, maxEscalationLevel),
			WeekStart:           v.Week.Start,
			WeekEnd:             v.Week.End,
			SavingsRateOriginal: base,
			SavingsRateNew:      SavingsRate(base, n),
			TargetWeekStart:     v.Week.Start,
			TargetWeekEnd:       v.Week.End,
		})
	}

	if n >= 3 {
		base := e.rules.NumericOr(ctx, rules.WeeklyEarningsRequirement, decimal.NewFromInt(DefaultEarningsRequirement))
		next := v.Week.Next()
		plan = append(plan, domain.Punishment{
			Name:                        fmt.Sprintf("Earnings Increase - %s", next.Start),
			Type:                        domain.PunishmentTypeEarnings,
			Category:                    domain.CategoryEarnings,
			DateAssigned:                assignedOn,
			Status:                      domain.PunishmentPending,
			Reason:                      reason,
			Route:                       3,
			ViolationCount:              n,
			EscalationLevel:             min(n, maxEscalationLevel),
			WeekStart:                   v.Week.Start,
			WeekEnd:                     v.Week.End,
			EarningsRequirementOriginal: domain.Round2(base),
			EarningsRequirementNew:      EarningsRequirement(base, n),
			TargetWeekStart:             next.Start,
			TargetWeekEnd:               next.End,
		})
	}
	return plan
}

// AssignWeekly plans and persists the routes for v. A route already assigned
// for the same week is not assigned again.
func (e *Engine) AssignWeekly(ctx context.Context, v WeeklyViolations, assignedOn domain.Date) (domain.BatchResult[domain.Punishment], error) {
	var result domain.BatchResult[domain.Punishment]

	plan := e.PlanWeekly(ctx, v, assignedOn)
	if len(plan) == 0 {
		return result, nil
	}

	existing, err := e.punishments.ListPunishments(ctx, domain.PunishmentFilter{WeekStart: v.Week.Start})
	if err != nil {
		return result, err
	}
	assigned := make(map[int]bool)
	for _, p := range existing {
		if p.Route > 0 {
			assigned[p.Route] = true
		}
	}

	for _, p := range plan {
		if assigned[p.Route] {
			log.Printf("[Violation] Route %d already assigned for week of %s", p.Route, v.Week.Start)
			continue
		}
		stored, err := e.punishments.CreatePunishment(ctx, p)
		if err != nil {
			log.Printf("[Violation] Failed to assign route %d for week of %s: %v", p.Route, v.Week.Start, err)
			result.Fail(p, err)
			continue
		}
		result.Ok(stored)
	}

	log.Printf("[Violation] Week of %s: %d violations, %d routes assigned", v.Week.Start, v.Total(), len(result.Succeeded))
	return result, nil
}

// =============================================================================
// POLICY OVERRIDES
// =============================================================================

// Overrides are the savings rate and earnings requirement in force on a day.
type Overrides struct {
	Date                domain.Date
	SavingsRate         decimal.Decimal
	EarningsRequirement decimal.Decimal
	Records             []domain.Punishment
}

// ActiveOverrides starts from the base rules and applies the highest route 2
// and route 3 records whose target week contains date.
func (e *Engine) ActiveOverrides(ctx context.Context, date domain.Date) (Overrides, error) {
	o := Overrides{
		Date:                date,
		SavingsRate:         e.rules.NumericOr(ctx, rules.BaseSavingsRate, decimal.NewFromInt(DefaultBaseSavingsRate)),
		EarningsRequirement: domain.Round2(e.rules.NumericOr(ctx, rules.WeeklyEarningsRequirement, decimal.NewFromInt(DefaultEarningsRequirement))),
	}

	pending, err := e.punishments.ListPunishments(ctx, domain.PunishmentFilter{Status: domain.PunishmentPending})
	if err != nil {
		return Overrides{}, err
	}
	for _, p := range pending {
		if p.IsWorkout() || p.TargetWeekStart.IsZero() {
			continue
		}
		target := domain.Week{Start: p.TargetWeekStart, End: p.TargetWeekEnd}
		if target.End.IsZero() {
			target = domain.WeekStarting(p.TargetWeekStart)
		}
		if !target.Contains(date) {
			continue
		}
		switch p.Category {
		case domain.CategorySavings:
			if p.SavingsRateNew.GreaterThan(o.SavingsRate) {
				o.SavingsRate = p.SavingsRateNew
			}
		case domain.CategoryEarnings:
			if p.EarningsRequirementNew.GreaterThan(o.EarningsRequirement) {
				o.EarningsRequirement = p.EarningsRequirementNew
			}
		}
		o.Records = append(o.Records, p)
	}
	return o, nil
}
