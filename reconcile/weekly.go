package reconcile

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/violation"
)

// WeeklyRequest selects the week to reconcile. A zero WeekStart means the
// last full Monday-Sunday week. Any day of a week selects that week.
type WeeklyRequest struct {
	WeekStart  domain.Date
	Force      bool
	SkipFailed bool
}

// WeeklyResult is everything one weekly run did.
type WeeklyResult struct {
	RunID string
	Week  domain.Week

	JobApplications int
	YogaSessions    int
	LiftingSessions int
	Habits          domain.WeeklyHabits

	Violations  violation.WeeklyViolations
	Punishments []domain.Punishment

	Bonuses      []bonus.AwardedBonus
	TotalBonuses decimal.Decimal

	Summary string
	Steps   []StepOutcome
}

// RunWeekly runs JobAppCount, WorkoutPerformance, RequirementCheck,
// ViolationAggregate, PunishmentAssign, BonusAward and Summary in that order.
func (o *Orchestrator) RunWeekly(ctx context.Context, req WeeklyRequest) (*WeeklyResult, error) {
	today := o.Today()
	week := domain.LastFullWeek(today)
	if !req.WeekStart.IsZero() {
		week = domain.WeekStarting(req.WeekStart)
	}

	run, err := o.begin(ctx, domain.RunWeekly, week.Start.String(), req.Force, req.SkipFailed)
	if err != nil {
		return nil, err
	}
	log.Printf("[Weekly] Starting weekly reconciliation for %s", week)

	res := &WeeklyResult{RunID: run.ID, Week: week, TotalBonuses: decimal.Zero}
	res.Violations.Week = week
	t := &tracker{kind: domain.RunWeekly, prefix: "Weekly", metrics: o.metrics}

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepJobAppCount, func() error {
			if o.sources.Habits == nil {
				return nil
			}
			n, err := o.sources.Habits.JobApplications(ctx, week)
			if err != nil {
				return err
			}
			res.JobApplications = n
			_, err = o.stores.Habits.SetCount(ctx, week.Start, domain.HabitJobApplications, n)
			return err
		}},
		{StepWorkoutPerformance, func() error { return o.workoutPerformance(ctx, week, res) }},
		{StepRequirementCheck, func() error {
			res.Violations = o.violations.CheckWeeklyRequirements(ctx, res.Habits, week)
			return nil
		}},
		{StepViolationAggregate, func() error {
			if n := res.Violations.Total(); n > 0 {
				log.Printf("[Weekly] %d violations for %s: %s", n, week, res.Violations.Summary())
			}
			return nil
		}},
		{StepPunishmentAssign, func() error {
			batch, err := o.violations.AssignWeekly(ctx, res.Violations, today)
			res.Punishments = batch.Succeeded
			for _, p := range batch.Succeeded {
				o.metrics.PunishmentAssigned(p.Route)
			}
			if err != nil {
				return err
			}
			return batchError("assign routes", batch)
		}},
		{StepWeeklyBonusAward, func() error {
			candidates := o.bonuses.WeeklyBonuses(ctx, res.Habits, week)
			if b := o.bonuses.BaseAllowance(ctx, week); b != nil {
				candidates = append(candidates, *b)
			}
			fresh, err := o.bonuses.Unawarded(ctx, candidates)
			if err != nil {
				return err
			}
			batch := o.bonuses.AwardBonuses(ctx, fresh)
			for _, b := range batch.Succeeded {
				res.Bonuses = append(res.Bonuses, bonus.Awarded(b))
				o.metrics.BonusAwarded(string(b.Type), b.Amount)
			}
			res.TotalBonuses = bonus.TotalBonusAmount(batch.Succeeded)
			return batchError("award weekly bonuses", batch)
		}},
	}

	for _, s := range steps {
		if err := t.step(s.name, s.fn); err != nil {
			res.Steps = t.steps
			o.finish(ctx, run, "", err)
			return nil, err
		}
	}

	res.Summary = WeeklySummary(res)
	t.steps = append(t.steps, StepOutcome{Step: StepWeeklySummary})
	res.Steps = t.steps
	o.finish(ctx, run, res.Summary, nil)
	log.Printf("[Weekly] Completed %s: %s", week, res.Summary)
	return res, nil
}

// workoutPerformance loads the week's counters and raises the yoga and
// lifting counts to what the workout log shows. Counters entered by hand
// above the logged count are kept.
func (o *Orchestrator) workoutPerformance(ctx context.Context, week domain.Week, res *WeeklyResult) error {
	habits, err := o.stores.Habits.Week(ctx, week.Start)
	if err != nil {
		return err
	}
	res.Habits = habits

	var errs []error
	workouts, err := o.stores.Workouts.ListWorkouts(ctx, week.Start, week.End)
	if err != nil {
		errs = append(errs, err)
	}
	logged := make(map[domain.HabitCounter]int)
	for _, w := range workouts {
		switch w.Type {
		case domain.WorkoutYoga:
			logged[domain.HabitYoga]++
		case domain.WorkoutLifting:
			logged[domain.HabitLifting]++
		}
	}
	for _, counter := range []domain.HabitCounter{domain.HabitYoga, domain.HabitLifting} {
		if logged[counter] <= habits.Count(counter) {
			continue
		}
		updated, err := o.stores.Habits.SetCount(ctx, week.Start, counter, logged[counter])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Habits = updated
		habits = updated
	}

	res.YogaSessions = res.Habits.Count(domain.HabitYoga)
	res.LiftingSessions = res.Habits.Count(domain.HabitLifting)
	return errors.Join(errs...)
}
