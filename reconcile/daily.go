package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/violation"
)

// DailyRequest selects the day to reconcile. A zero Date means today.
// SkipFailed refuses a date whose latest run failed.
type DailyRequest struct {
	Date       domain.Date
	Force      bool
	SkipFailed bool
}

// DailyResult is everything one daily run did.
type DailyResult struct {
	RunID string
	Date  domain.Date

	Workouts []domain.Workout

	Interest      []ledger.InterestApplication
	TotalInterest decimal.Decimal

	MissedPunishments    []domain.Punishment
	CompletedPunishments []domain.Punishment
	Violations           []violation.Violation
	NewPunishments       []domain.Punishment
	DebtsCreated         []domain.Debt

	UberEarnings decimal.Decimal
	Payments     ledger.PaymentResult

	Bonuses      []bonus.AwardedBonus
	TotalBonuses decimal.Decimal

	ActiveDebt decimal.Decimal
	Summary    string
	Steps      []StepOutcome
}

// RunDaily runs WorkoutIngest, InterestApply, OverdueSweep, CompletionCheck,
// NewViolationCheck, EarningsProcess, BonusAward and Summary in that order.
func (o *Orchestrator) RunDaily(ctx context.Context, req DailyRequest) (*DailyResult, error) {
	date := req.Date
	if date.IsZero() {
		date = o.Today()
	}

	run, err := o.begin(ctx, domain.RunDaily, date.String(), req.Force, req.SkipFailed)
	if err != nil {
		return nil, err
	}
	log.Printf("[Reconcile] Starting daily reconciliation for %s", date)

	res := &DailyResult{
		RunID:         run.ID,
		Date:          date,
		TotalInterest: decimal.Zero,
		UberEarnings:  decimal.Zero,
		TotalBonuses:  decimal.Zero,
		ActiveDebt:    decimal.Zero,
	}
	t := &tracker{kind: domain.RunDaily, prefix: "Reconcile", metrics: o.metrics}
	var pending []domain.Bonus

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepWorkoutIngest, func() error {
			var err error
			res.Workouts, err = o.ingestWorkouts(ctx, date)
			pending = append(pending, o.bonuses.WorkoutBonuses(ctx, res.Workouts)...)
			return err
		}},
		{StepInterestApply, func() error {
			apps, err := o.ledger.ApplyDailyInterest(ctx, date)
			res.Interest = apps
			res.TotalInterest = ledger.TotalInterest(apps)
			o.metrics.InterestApplied(res.TotalInterest)
			return err
		}},
		{StepOverdueSweep, func() error { return o.sweepOverdue(ctx, date, res) }},
		{StepCompletionCheck, func() error {
			batch, err := o.violations.CheckCompletions(ctx, date)
			res.CompletedPunishments = batch.Succeeded
			if err != nil {
				return err
			}
			return batchError("complete punishments", batch)
		}},
		{StepNewViolationCheck, func() error { return o.assignDailyViolations(ctx, date, res) }},
		{StepEarningsProcess, func() error {
			b, err := o.processEarnings(ctx, date, res)
			if b != nil {
				pending = append(pending, *b)
			}
			return err
		}},
		{StepBonusAward, func() error {
			batch := o.bonuses.AwardBonuses(ctx, pending)
			for _, b := range batch.Succeeded {
				res.Bonuses = append(res.Bonuses, bonus.Awarded(b))
				o.metrics.BonusAwarded(string(b.Type), b.Amount)
			}
			res.TotalBonuses = bonus.TotalBonusAmount(batch.Succeeded)
			return batchError("award bonuses", batch)
		}},
		{StepSummary, func() error {
			total, err := o.ledger.TotalActiveDebt(ctx)
			if err != nil {
				return err
			}
			res.ActiveDebt = total
			o.metrics.SetActiveDebt(total)
			return nil
		}},
	}

	for _, s := range steps {
		if err := t.step(s.name, s.fn); err != nil {
			res.Steps = t.steps
			o.finish(ctx, run, "", err)
			return nil, err
		}
	}

	res.Steps = t.steps
	res.Summary = DailySummary(res)
	o.finish(ctx, run, res.Summary, nil)
	log.Printf("[Reconcile] Completed %s: %s", date, res.Summary)
	return res, nil
}

// ingestWorkouts records the day's workouts and bumps the week's session
// counters. Only newly recorded workouts are returned, so a forced re-run
// neither double-counts sessions nor re-awards their bonuses.
func (o *Orchestrator) ingestWorkouts(ctx context.Context, date domain.Date) ([]domain.Workout, error) {
	if o.sources.Workouts == nil {
		return nil, nil
	}
	fetched, err := o.sources.Workouts.Workouts(ctx, date)
	if err != nil {
		return nil, err
	}

	week := domain.WeekOf(date)
	var created []domain.Workout
	var errs []error
	for _, w := range fetched {
		stored, isNew, err := o.stores.Workouts.RecordWorkout(ctx, w)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !isNew {
			continue
		}
		created = append(created, stored)

		var counter domain.HabitCounter
		switch stored.Type {
		case domain.WorkoutYoga:
			counter = domain.HabitYoga
		case domain.WorkoutLifting:
			counter = domain.HabitLifting
		default:
			continue
		}
		if _, err := o.stores.Habits.Increment(ctx, week.Start, counter, 1); err != nil {
			errs = append(errs, err)
		}
	}
	if len(created) > 0 {
		log.Printf("[Reconcile] Ingested %d new workouts for %s", len(created), date)
	}
	return created, errors.Join(errs...)
}

// sweepOverdue marks each overdue punishment missed and charges a violation
// debt for it. Punishments already missed are not candidates, so repeating
// the sweep creates nothing.
func (o *Orchestrator) sweepOverdue(ctx context.Context, date domain.Date, res *DailyResult) error {
	overdue, err := o.violations.FindOverdue(ctx, date)
	if err != nil {
		return err
	}

	amount := o.violationDebtAmount(ctx)
	var errs []error
	for _, p := range overdue {
		missed, err := o.violations.MarkMissed(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.MissedPunishments = append(res.MissedPunishments, missed)

		debt, created, err := o.ledger.CreateViolationDebt(ctx, violation.MissedDebtReason(missed), amount, date)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			res.DebtsCreated = append(res.DebtsCreated, debt)
			o.metrics.DebtCreated("missed_punishment")
		}
	}
	return errors.Join(errs...)
}

// assignDailyViolations turns each detected violation into a cardio
// punishment, or into a violation debt when it names no punishment.
func (o *Orchestrator) assignDailyViolations(ctx context.Context, date domain.Date, res *DailyResult) error {
	res.Violations = o.violations.DetectDaily(ctx, date)

	var errs []error
	for _, v := range res.Violations {
		if v.PunishmentType == "" {
			debt, created, err := o.ledger.CreateViolationDebt(ctx, v.Reason, o.violationDebtAmount(ctx), date)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if created {
				res.DebtsCreated = append(res.DebtsCreated, debt)
				o.metrics.DebtCreated("violation")
			}
			continue
		}

		p, created, err := o.violations.AssignDaily(ctx, v, date)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if created {
			res.NewPunishments = append(res.NewPunishments, p)
			o.metrics.PunishmentAssigned(p.Route)
		}
	}
	return errors.Join(errs...)
}

// processEarnings books the day's new Uber earnings against the week, pays
// down debt oldest first and returns an Uber Match bonus when nothing was
// owed. Each transaction is recorded in the earnings log before it is
// applied, so re-running a date never books the same payout twice.
// Eligibility is decided before payment: earnings that clear a debt do not
// also earn a match.
func (o *Orchestrator) processEarnings(ctx context.Context, date domain.Date, res *DailyResult) (*domain.Bonus, error) {
	if o.sources.Earnings == nil {
		return nil, nil
	}
	earnings, err := o.sources.Earnings.Earnings(ctx, date)
	if err != nil {
		return nil, err
	}

	var errs []error
	total := decimal.Zero
	for _, e := range earnings {
		if e.Source != domain.EarningSourceUber {
			continue
		}
		_, isNew, err := o.stores.Earnings.RecordEarning(ctx, e)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !isNew {
			log.Printf("[Reconcile] Transaction %s already applied, skipping", e.ExternalID)
			continue
		}
		total = total.Add(e.Amount)
	}
	total = domain.Round2(total)
	res.UberEarnings = total
	if !total.IsPositive() {
		return nil, errors.Join(errs...)
	}

	if _, err := o.stores.Habits.AddUberEarnings(ctx, domain.WeekOf(date).Start, total); err != nil {
		errs = append(errs, err)
	}

	debtFree, err := o.ledger.IsDebtFree(ctx)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	if debtFree {
		match := o.bonuses.UberMatch(total, true, date)
		fresh, err := o.bonuses.Unawarded(ctx, []domain.Bonus{*match})
		if err != nil {
			return nil, errors.Join(append(errs, err)...)
		}
		if len(fresh) == 0 {
			return nil, errors.Join(errs...)
		}
		return &fresh[0], errors.Join(errs...)
	}

	payments, err := o.ledger.ApplyEarningsToDebt(ctx, total, nil)
	res.Payments = payments
	o.metrics.DebtPaid(payments.TotalPaid())
	if err != nil {
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// batchError summarizes the failed items of a batch, or returns nil.
func batchError[T any](what string, b domain.BatchResult[T]) error {
	if !b.HasFailures() {
		return nil
	}
	errs := make([]error, 0, len(b.Failed))
	for _, f := range b.Failed {
		errs = append(errs, f.Error)
	}
	return fmt.Errorf("%s: %d of %d failed: %w", what, len(b.Failed), len(b.Failed)+len(b.Succeeded), errors.Join(errs...))
}
