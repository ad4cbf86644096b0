/*
Package violation detects rule violations and assigns punishments.

PURPOSE:
  Daily checks find same-day violations (missed morning check-in). Weekly
  requirement checks count missed targets and feed the 3-route escalation.
  The engine also sweeps overdue punishments and matches logged cardio
  workouts to pending punishments.

DAILY FLOW:
  checks -> []Violation -> AssignDaily (cardio due next day, de-duplicated
  by name fragment and date). Violations without a punishment type are
  turned into debts by the orchestrator.

WEEKLY FLOW (routes.go):
  requirement checks -> WeeklyViolations -> PlanWeekly -> AssignWeekly

PUNISHMENT STATE MACHINE:
  pending -> completed   (matching cardio workout within [assigned, due])
  pending -> missed      (due date passed; orchestrator creates a debt)

  Policy-override records (route 2 savings, route 3 earnings) stay pending
  and are never swept or completed; they expire with their target week.

SEE ALSO:
  - routes.go: 3-route escalation
  - completion.go: Overdue sweep and workout matching
*/
package violation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/rules"
)

const DefaultMissedCheckInMinutes = 30

// Violation is one detected breach for a day.
type Violation struct {
	Type   string
	Reason string
	// PunishmentType is a cardio modality, "Cardio" for a random one, or
	// empty when the violation costs money instead.
	PunishmentType string
	Minutes        int
}

// Check is one pluggable daily violation detector.
type Check interface {
	Name() string
	Run(ctx context.Context, date domain.Date) ([]Violation, error)
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	punishments domain.PunishmentStore
	workouts    domain.WorkoutLog
	rules       domain.RuleValues
	rand        domain.Random
	checks      []Check
}

func NewEngine(punishments domain.PunishmentStore, workouts domain.WorkoutLog, rv domain.RuleValues, rnd domain.Random, checks ...Check) *Engine {
	if rnd == nil {
		rnd = domain.NewRandom(1)
	}
	return &Engine{punishments: punishments, workouts: workouts, rules: rv, rand: rnd, checks: checks}
}

// DetectDaily runs every check. A failing check is logged and contributes
// nothing.
func (e *Engine) DetectDaily(ctx context.Context, date domain.Date) []Violation {
	var out []Violation
	for _, c := range e.checks {
		vs, err := c.Run(ctx, date)
		if err != nil {
			log.Printf("[Violation] Check %s failed for %s: %v", c.Name(), date, err)
			continue
		}
		out = append(out, vs...)
	}
	return out
}

// AssignDaily creates the cardio punishment for v, due the day after date.
// If a pending punishment assigned on date already carries v.Reason in its
// name, that one is returned and created is false.
func (e *Engine) AssignDaily(ctx context.Context, v Violation, date domain.Date) (p domain.Punishment, created bool, err error) {
	if v.PunishmentType == "" {
		return domain.Punishment{}, false, &domain.ValidationError{Field: "punishment_type", Message: "violation carries no punishment"}
	}

	existing, err := e.punishments.ListPunishments(ctx, domain.PunishmentFilter{
		Status:       domain.PunishmentPending,
		DateAssigned: date,
		NameContains: v.Reason,
	})
	if err != nil {
		return domain.Punishment{}, false, err
	}
	if len(existing) > 0 {
		log.Printf("[Violation] %q already punished on %s", v.Reason, date)
		return existing[0], false, nil
	}

	modality := v.PunishmentType
	if !isModality(modality) {
		modality = e.randomModality()
	}
	p, err = e.punishments.CreatePunishment(ctx, domain.Punishment{
		Name:         fmt.Sprintf("%s - %s", v.Reason, date),
		Type:         modality,
		Category:     domain.CategoryCardio,
		Minutes:      v.Minutes,
		DateAssigned: date,
		DueDate:      date.AddDays(1),
		Status:       domain.PunishmentPending,
		Reason:       v.Reason,
	})
	if err != nil {
		return domain.Punishment{}, false, err
	}
	log.Printf("[Violation] Assigned %d min %s for %q, due %s", p.Minutes, p.Type, v.Reason, p.DueDate)
	return p, true, nil
}

func (e *Engine) randomModality() string {
	return domain.CardioModalities[e.rand.Intn(len(domain.CardioModalities))]
}

func isModality(s string) bool {
	for _, m := range domain.CardioModalities {
		if m == s {
			return true
		}
	}
	return false
}

// List returns punishments in status, or all of them when status is empty.
func (e *Engine) List(ctx context.Context, status domain.PunishmentStatus) ([]domain.Punishment, error) {
	return e.punishments.ListPunishments(ctx, domain.PunishmentFilter{Status: status})
}

// =============================================================================
// BUILT-IN CHECKS
// =============================================================================

// MorningCheckIn flags a day without a completed check-in task.
type MorningCheckIn struct {
	Tracker domain.HabitTracker
	Rules   domain.RuleValues
}

func (MorningCheckIn) Name() string { return "morning_checkin" }

func (c MorningCheckIn) Run(ctx context.Context, date domain.Date) ([]Violation, error) {
	ok, err := c.Tracker.CheckedIn(ctx, date)
	if err != nil {
		if errors.Is(err, domain.ErrIntegration) {
			log.Printf("[Violation] Habit tracker unavailable, skipping check-in for %s: %v", date, err)
			return nil, nil
		}
		return nil, err
	}
	if ok {
		return nil, nil
	}

	minutes := DefaultMissedCheckInMinutes
	if c.Rules != nil {
		minutes = int(c.Rules.NumericOr(ctx, rules.MissedCheckInCardioMinutes, decimal.NewFromInt(DefaultMissedCheckInMinutes)).IntPart())
	}
	return []Violation{{
		Type:           "missed_checkin",
		Reason:         "Missed morning check-in",
		PunishmentType: "Cardio",
		Minutes:        minutes,
	}}, nil
}
