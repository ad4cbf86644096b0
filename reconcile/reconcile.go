/*
reconcile.go - Daily and weekly reconciliation orchestrators

PURPOSE:
  Drives one reconciliation run end to end. A run is a fixed sequence of
  steps; each step talks to one engine (ledger, bonus, violation) and the
  signal sources, and the run ends with a natural-language summary.

FAILURE MODEL:
  Steps are best-effort. A failing step is logged, recorded in
  Result.Steps, counted in metrics and replaced by an empty result so later
  steps still run. The exception is a storage read of a core aggregate
  (debts, punishments, weekly habits): that error fails the whole run.
  Work committed by earlier steps stands; there is no rollback.

IDEMPOTENCY:
  Every run writes a Reconciliation Runs record (running -> completed |
  failed). A completed record for the same kind and period makes the next
  run return ErrAlreadyReconciled unless the request sets Force. Ledger
  interest is additionally guarded per debt by LastInterestDate.

SEE ALSO:
  - daily.go:   Daily step sequence
  - weekly.go:  Weekly step sequence
  - summary.go: Summary clauses
*/
package reconcile

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/metrics"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/violation"
)

// Step names, also used as metric labels.
const (
	StepWorkoutIngest     = "workout_ingest"
	StepInterestApply     = "interest_apply"
	StepOverdueSweep      = "overdue_sweep"
	StepCompletionCheck   = "completion_check"
	StepNewViolationCheck = "new_violation_check"
	StepEarningsProcess   = "earnings_process"
	StepBonusAward        = "bonus_award"
	StepSummary           = "summary"

	StepJobAppCount        = "job_app_count"
	StepWorkoutPerformance = "workout_performance"
	StepRequirementCheck   = "requirement_check"
	StepViolationAggregate = "violation_aggregate"
	StepPunishmentAssign   = "punishment_assign"
	StepWeeklyBonusAward   = "weekly_bonus_award"
	StepWeeklySummary      = "weekly_summary"
)

// StepOutcome reports one step. Error is empty when the step succeeded.
type StepOutcome struct {
	Step  string
	Error string
}

// Sources are the external signal feeds. Any of them may be nil, in which
// case the step that reads it sees no signals.
type Sources struct {
	Workouts domain.WorkoutSource
	Earnings domain.EarningsSource
	Habits   domain.HabitTracker
}

// Deps wires an Orchestrator. Metrics may be nil.
type Deps struct {
	Stores     domain.Stores
	Rules      domain.RuleValues
	Ledger     *ledger.Engine
	Bonuses    *bonus.Evaluator
	Violations *violation.Engine
	Sources    Sources
	Metrics    *metrics.Recorder
	Clock      domain.Clock
}

type Orchestrator struct {
	stores     domain.Stores
	rules      domain.RuleValues
	ledger     *ledger.Engine
	bonuses    *bonus.Evaluator
	violations *violation.Engine
	sources    Sources
	metrics    *metrics.Recorder
	clock      domain.Clock
}

func New(d Deps) *Orchestrator {
	clock := d.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Orchestrator{
		stores:     d.Stores,
		rules:      d.Rules,
		ledger:     d.Ledger,
		bonuses:    d.Bonuses,
		violations: d.Violations,
		sources:    d.Sources,
		metrics:    d.Metrics,
		clock:      clock,
	}
}

// Today is the current date in the orchestrator's clock zone.
func (o *Orchestrator) Today() domain.Date { return domain.Today(o.clock) }

// Runs lists recent run records, newest first.
func (o *Orchestrator) Runs(ctx context.Context, limit int) ([]domain.ReconciliationRun, error) {
	return o.stores.Runs.ListRuns(ctx, limit)
}

// =============================================================================
// RUN BOOKKEEPING
// =============================================================================

// tracker records step outcomes for one run.
type tracker struct {
	kind    domain.RunKind
	prefix  string
	metrics *metrics.Recorder
	steps   []StepOutcome
}

// step runs fn and swallows its error unless it is a core read failure.
func (t *tracker) step(name string, fn func() error) error {
	err := fn()
	if err == nil {
		t.steps = append(t.steps, StepOutcome{Step: name})
		return nil
	}
	t.steps = append(t.steps, StepOutcome{Step: name, Error: err.Error()})
	t.metrics.StepFailed(string(t.kind), name)
	if domain.IsCoreRead(err) {
		log.Printf("[%s] Step %s failed reading core data, aborting: %v", t.prefix, name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Printf("[%s] Step %s failed, continuing: %v", t.prefix, name, err)
	return nil
}

// begin checks the idempotency guard and writes the running record. With
// skipFailed a period whose latest run failed is left for a manual re-run.
func (o *Orchestrator) begin(ctx context.Context, kind domain.RunKind, period string, force, skipFailed bool) (domain.ReconciliationRun, error) {
	if !force {
		latest, err := o.stores.Runs.LatestRun(ctx, kind, period)
		if err != nil {
			return domain.ReconciliationRun{}, fmt.Errorf("check previous runs: %w", err)
		}
		if latest != nil && latest.Status == domain.RunCompleted {
			return domain.ReconciliationRun{}, fmt.Errorf("%s %s: %w", kind, period, domain.ErrAlreadyReconciled)
		}
		if skipFailed && latest != nil && latest.Status == domain.RunFailed {
			return domain.ReconciliationRun{}, fmt.Errorf("%s %s: %w", kind, period, domain.ErrPreviousRunFailed)
		}
	}

	run := domain.ReconciliationRun{
		Kind:      kind,
		Period:    period,
		Status:    domain.RunRunning,
		StartedAt: o.clock.Now(),
	}
	saved, err := o.stores.Runs.SaveRun(ctx, run)
	if err != nil {
		log.Printf("[Reconcile] Failed to save run record for %s %s: %v", kind, period, err)
		return run, nil
	}
	return saved, nil
}

// finish closes the run record and records metrics.
func (o *Orchestrator) finish(ctx context.Context, run domain.ReconciliationRun, summary string, runErr error) domain.ReconciliationRun {
	run.CompletedAt = o.clock.Now()
	run.Summary = summary
	run.Status = domain.RunCompleted
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
	}
	saved, err := o.stores.Runs.SaveRun(ctx, run)
	if err != nil {
		log.Printf("[Reconcile] Failed to close run record %s: %v", run.ID, err)
		saved = run
	}
	o.metrics.RunFinished(string(run.Kind), string(run.Status), run.CompletedAt.Sub(run.StartedAt))
	return saved
}

// violationDebtAmount is the rule value, falling back to the ledger default.
func (o *Orchestrator) violationDebtAmount(ctx context.Context) decimal.Decimal {
	return o.rules.NumericOr(ctx, rules.ViolationDebtAmount, o.ledger.ViolationDebtAmount())
}
