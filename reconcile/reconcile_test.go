package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/domain/store"
	"github.com/warp/accountability-engine/integrations"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/metrics"
	"github.com/warp/accountability-engine/reconcile"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/store/documents"
	"github.com/warp/accountability-engine/violation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type harness struct {
	orch   *reconcile.Orchestrator
	mem    *store.Memory
	stores domain.Stores
	reg    *prometheus.Registry
}

func newHarness(t *testing.T, today string, ruleValues map[string]string) *harness {
	t.Helper()
	mem := store.NewMemory()
	stores := documents.New(mem)
	ctx := context.Background()
	for name, value := range ruleValues {
		_, err := stores.Rules.SaveRule(ctx, domain.Rule{Name: name, BaseValue: value})
		require.NoError(t, err)
	}

	clock := domain.ClockAt(domain.MustParseDate(today))
	rs := rules.NewStore(stores.Rules, nil, clock)
	habits := integrations.NewHabitTasks(mem)
	reg := prometheus.NewRegistry()

	orch := reconcile.New(reconcile.Deps{
		Stores:  stores,
		Rules:   rs,
		Ledger:  ledger.NewEngine(stores.Debts, clock, ledger.DefaultConfig()),
		Bonuses: bonus.NewEvaluator(rs, stores.Bonuses),
		Violations: violation.NewEngine(stores.Punishments, stores.Workouts, rs, domain.NewRandom(7),
			violation.MorningCheckIn{Tracker: habits, Rules: rs}),
		Sources: reconcile.Sources{
			Workouts: integrations.NewStravaInbox(mem),
			Earnings: integrations.NewBankInbox(mem),
			Habits:   habits,
		},
		Metrics: metrics.New(reg),
		Clock:   clock,
	})
	return &harness{orch: orch, mem: mem, stores: stores, reg: reg}
}

func (h *harness) seed(t *testing.T, collection string, props domain.Properties) {
	t.Helper()
	_, err := h.mem.Create(context.Background(), collection, props)
	require.NoError(t, err)
}

func (h *harness) checkIn(t *testing.T, date string) {
	h.seed(t, domain.CollectionHabitTaskInbox, integrations.TaskProperties("Morning check-in", integrations.TagCheckIn, date, true))
}

func (h *harness) debt(t *testing.T, name, assigned string, amount float64) domain.Debt {
	t.Helper()
	d, err := h.stores.Debts.CreateDebt(context.Background(), domain.Debt{
		Name:           name,
		OriginalAmount: domain.Dollars(amount),
		CurrentAmount:  domain.Dollars(amount),
		DateAssigned:   domain.MustParseDate(assigned),
		InterestRate:   domain.DefaultInterestRate,
		Status:         domain.DebtActive,
	})
	require.NoError(t, err)
	return d
}

func stepError(steps []reconcile.StepOutcome, name string) string {
	for _, s := range steps {
		if s.Step == name {
			return s.Error
		}
	}
	return "step not run"
}

func day(s string) domain.Date { return domain.MustParseDate(s) }

// =============================================================================
// DAILY
// =============================================================================

func TestRunDaily_LiftingAndUberOnDebtFreeDay(t *testing.T) {
	// GIVEN: A 45 minute lift, $40 of Uber earnings, no debt, $10 lifting bonus
	// WHEN: The day is reconciled
	// THEN: $10 lifting + $40 match are awarded and nothing else happens

	h := newHarness(t, "2024-03-12", map[string]string{rules.LiftingBonusAmount: "$10"})
	h.checkIn(t, "2024-03-12")
	h.seed(t, domain.CollectionStravaInbox,
		integrations.ActivityProperties("a1", "Push day", "WeightTraining", "2024-03-12T07:00:00", 2700, 300))
	h.seed(t, domain.CollectionBankInbox,
		integrations.TransactionProperties("t1", "2024-03-12", "40.00", "UBER *PAYOUT", "Uber", "posted"))

	res, err := h.orch.RunDaily(context.Background(), reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)

	assert.Empty(t, res.Interest)
	assert.Empty(t, res.Payments.Payments)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.NewPunishments)
	assert.Empty(t, res.DebtsCreated)

	require.Len(t, res.Bonuses, 2)
	assert.Equal(t, domain.BonusLifting, res.Bonuses[0].Type)
	assert.True(t, domain.Dollars(10).Equal(res.Bonuses[0].Amount))
	assert.Equal(t, domain.BonusUberMatch, res.Bonuses[1].Type)
	assert.True(t, domain.Dollars(40).Equal(res.Bonuses[1].Amount))
	assert.True(t, domain.Dollars(50).Equal(res.TotalBonuses))

	assert.Contains(t, res.Summary, "$50")
	assert.NotContains(t, res.Summary, "punishment")
	assert.NotContains(t, res.Summary, "violation")

	week, err := h.stores.Habits.Week(context.Background(), day("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 1, week.Count(domain.HabitLifting))
	assert.True(t, domain.Dollars(40).Equal(week.UberEarnings))

	for _, s := range res.Steps {
		assert.Empty(t, s.Error, s.Step)
	}
}

func TestRunDaily_EarningsPayDebtInsteadOfMatching(t *testing.T) {
	// GIVEN: A $30 debt from earlier in the month and $40 of Uber earnings
	// WHEN: The day is reconciled
	// THEN: Interest lifts it to $39, earnings pay it off, no match is awarded

	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	d := h.debt(t, "Old", "2024-03-01", 30)
	h.seed(t, domain.CollectionBankInbox,
		integrations.TransactionProperties("t1", "2024-03-12", "40.00", "Uber payout", "UBER BV", "posted"))

	res, err := h.orch.RunDaily(context.Background(), reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)

	require.Len(t, res.Interest, 1)
	assert.True(t, domain.Dollars(39).Equal(res.Interest[0].NewAmount))

	require.Len(t, res.Payments.Payments, 1)
	assert.Equal(t, d.ID, res.Payments.Payments[0].DebtID)
	assert.Equal(t, domain.DebtPaid, res.Payments.Payments[0].Status)
	assert.True(t, domain.Dollars(1).Equal(res.Payments.Remaining))

	assert.Empty(t, res.Bonuses)
	assert.True(t, res.ActiveDebt.IsZero())
	assert.Contains(t, res.Summary, "Paid $39.00 toward debt")
}

func TestRunDaily_MissedCheckInAssignsCardio(t *testing.T) {
	h := newHarness(t, "2024-03-12", nil)

	res, err := h.orch.RunDaily(context.Background(), reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)

	require.Len(t, res.Violations, 1)
	require.Len(t, res.NewPunishments, 1)
	p := res.NewPunishments[0]
	assert.Equal(t, violation.DefaultMissedCheckInMinutes, p.Minutes)
	assert.Equal(t, "2024-03-13", p.DueDate.String())
	assert.Contains(t, domain.CardioModalities, p.Type)
	assert.Contains(t, res.Summary, "Assigned 1 punishment")
}

func TestRunDaily_OverduePunishmentBecomesDebtOnce(t *testing.T) {
	// GIVEN: A cardio punishment due yesterday with no matching workout
	// WHEN: The day is reconciled, then forcibly reconciled again
	// THEN: It is marked missed and exactly one $50 violation debt exists

	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	ctx := context.Background()
	_, err := h.stores.Punishments.CreatePunishment(ctx, domain.Punishment{
		Name:         "Missed morning check-in - 2024-03-10",
		Type:         domain.ModalityRun,
		Category:     domain.CategoryCardio,
		Minutes:      30,
		DateAssigned: day("2024-03-10"),
		DueDate:      day("2024-03-11"),
		Status:       domain.PunishmentPending,
	})
	require.NoError(t, err)

	res, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)
	require.Len(t, res.MissedPunishments, 1)
	assert.Equal(t, domain.PunishmentMissed, res.MissedPunishments[0].Status)
	require.Len(t, res.DebtsCreated, 1)
	assert.True(t, domain.Dollars(50).Equal(res.DebtsCreated[0].CurrentAmount))
	assert.Empty(t, res.Interest, "debt created after the interest step is not charged the same day")

	again, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12"), Force: true})
	require.NoError(t, err)
	assert.Empty(t, again.MissedPunishments)
	assert.Empty(t, again.DebtsCreated)

	debts, err := h.stores.Debts.ListDebts(ctx, domain.DebtFilter{})
	require.NoError(t, err)
	assert.Len(t, debts, 1)
}

func TestRunDaily_CompletesPunishmentWithLoggedCardio(t *testing.T) {
	h := newHarness(t, "2024-03-13", nil)
	h.checkIn(t, "2024-03-13")
	ctx := context.Background()
	_, err := h.stores.Punishments.CreatePunishment(ctx, domain.Punishment{
		Name:         "Weekly Cardio - 2024-03-04",
		Type:         domain.ModalityBike,
		Category:     domain.CategoryCardio,
		Minutes:      45,
		DateAssigned: day("2024-03-11"),
		DueDate:      day("2024-03-18"),
		Status:       domain.PunishmentPending,
		Route:        1,
	})
	require.NoError(t, err)
	h.seed(t, domain.CollectionStravaInbox,
		integrations.ActivityProperties("r1", "Spin", "VirtualRide", "2024-03-13T18:00:00", 3000, 400))

	res, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-13")})
	require.NoError(t, err)
	require.Len(t, res.CompletedPunishments, 1)
	assert.Equal(t, domain.PunishmentCompleted, res.CompletedPunishments[0].Status)
	assert.Contains(t, res.Summary, "Completed 1 punishment")
}

func TestRunDaily_RefusesSecondRunUnlessForced(t *testing.T) {
	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	h.debt(t, "Old", "2024-03-01", 50)
	ctx := context.Background()

	first, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-12", first.Date.String(), "zero date means today")
	require.Len(t, first.Interest, 1)

	_, err = h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	assert.ErrorIs(t, err, domain.ErrAlreadyReconciled)
	assert.True(t, domain.IsClientError(err))

	forced, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12"), Force: true})
	require.NoError(t, err)
	assert.Empty(t, forced.Interest, "interest is charged at most once per day")

	runs, err := h.orch.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, domain.RunCompleted, r.Status)
		assert.Equal(t, domain.RunDaily, r.Kind)
	}
}

func TestRunDaily_FailedStepIsRecordedAndSkipped(t *testing.T) {
	// GIVEN: Bonus writes fail
	// WHEN: A day with a bonus-earning workout is reconciled
	// THEN: The run completes, the bonus step reports its error

	h := newHarness(t, "2024-03-12", map[string]string{rules.LiftingBonusAmount: "$10"})
	h.checkIn(t, "2024-03-12")
	h.seed(t, domain.CollectionStravaInbox,
		integrations.ActivityProperties("a1", "Lift", "WeightTraining", "2024-03-12T07:00:00", 2700, 300))
	h.mem.FailOn(domain.CollectionBonuses, domain.OpWrite, errors.New("disk full"))

	res, err := h.orch.RunDaily(context.Background(), reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)
	assert.Len(t, res.Workouts, 1)
	assert.Empty(t, res.Bonuses)
	assert.Contains(t, stepError(res.Steps, reconcile.StepBonusAward), "disk full")
	assert.Empty(t, stepError(res.Steps, reconcile.StepSummary))

	count, err := testutil.GatherAndCount(h.reg, "accountability_step_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunDaily_IntegrationOutageIsNotFatal(t *testing.T) {
	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	h.mem.FailOn(domain.CollectionStravaInbox, domain.OpRead, errors.New("401 unauthorized"))

	res, err := h.orch.RunDaily(context.Background(), reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)
	assert.Contains(t, stepError(res.Steps, reconcile.StepWorkoutIngest), "unauthorized")
	assert.Empty(t, res.Workouts)
}

func TestRunDaily_CoreReadFailureFailsRun(t *testing.T) {
	// GIVEN: The debts collection cannot be read
	// WHEN: The day is reconciled
	// THEN: The run fails with a storage error and is recorded as failed,
	//       and a later run for the same day is not blocked

	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	h.mem.FailOn(domain.CollectionDebts, domain.OpRead, errors.New("connection reset"))
	ctx := context.Background()

	_, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.True(t, domain.IsCoreRead(err))

	runs, err := h.orch.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "connection reset")

	h.mem.ClearFaults()
	_, err = h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	assert.NoError(t, err)
}

func TestRunDaily_RerunAfterFailureAppliesEarningsOnce(t *testing.T) {
	// GIVEN: $40 of Uber earnings on a debt-free day, and a run that fails
	//        in the summary step after the match was awarded
	// WHEN: The day is reconciled again without force
	// THEN: Exactly one Uber Match exists and the week shows $40 earned

	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	h.seed(t, domain.CollectionBankInbox,
		integrations.TransactionProperties("t1", "2024-03-12", "40.00", "UBER *PAYOUT", "Uber", "posted"))
	h.mem.FailAfter(domain.CollectionDebts, domain.OpRead, 2, errors.New("connection reset"))
	ctx := context.Background()

	_, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.Error(t, err)

	h.mem.ClearFaults()
	res, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)
	assert.True(t, res.UberEarnings.IsZero(), "transaction already booked")
	assert.Empty(t, res.Bonuses)

	matches, err := h.stores.Bonuses.ListBonuses(ctx, domain.BonusFilter{Type: domain.BonusUberMatch})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, domain.Dollars(40).Equal(matches[0].Amount))

	week, err := h.stores.Habits.Week(ctx, day("2024-03-11"))
	require.NoError(t, err)
	assert.Equal(t, "40", week.UberEarnings.String())
}

func TestRunDaily_ForcedRerunDoesNotRepayDebt(t *testing.T) {
	// GIVEN: A $100 debt and a $40 Uber payout applied to it
	// WHEN: The day is force re-run
	// THEN: The debt is paid down once and the payout is logged once

	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	d := h.debt(t, "Violation: old", "2024-03-12", 100)
	h.seed(t, domain.CollectionBankInbox,
		integrations.TransactionProperties("t1", "2024-03-12", "40.00", "UBER *PAYOUT", "Uber", "posted"))
	ctx := context.Background()

	first, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.NoError(t, err)
	require.Len(t, first.Payments.Payments, 1)
	before, err := h.stores.Debts.GetDebt(ctx, d.ID)
	require.NoError(t, err)

	res, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12"), Force: true})
	require.NoError(t, err)
	assert.Empty(t, res.Payments.Payments)

	after, err := h.stores.Debts.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, before.CurrentAmount.Equal(after.CurrentAmount), "before %s after %s", before.CurrentAmount, after.CurrentAmount)
	assert.Equal(t, 1, h.mem.Len(domain.CollectionEarnings))
}

func TestRunDaily_SkipFailedLeavesFailedDate(t *testing.T) {
	h := newHarness(t, "2024-03-12", nil)
	h.checkIn(t, "2024-03-12")
	h.mem.FailOn(domain.CollectionDebts, domain.OpRead, errors.New("connection reset"))
	ctx := context.Background()

	_, err := h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12")})
	require.Error(t, err)
	h.mem.ClearFaults()

	_, err = h.orch.RunDaily(ctx, reconcile.DailyRequest{Date: day("2024-03-12"), SkipFailed: true})
	assert.ErrorIs(t, err, domain.ErrPreviousRunFailed)

	runs, err := h.orch.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// =============================================================================
// WEEKLY
// =============================================================================

func TestRunWeekly_AssignsRoutesForLastFullWeek(t *testing.T) {
	// GIVEN: An idle week and a job application minimum of 5 with 2 sent
	// WHEN: The weekly run executes on the following Monday with no week given
	// THEN: Yoga, lifting and job applications fail, so all three routes fire

	h := newHarness(t, "2024-03-18", map[string]string{rules.JobApplicationsMinimum: "5"})
	h.seed(t, domain.CollectionHabitTaskInbox, integrations.TaskProperties("Applied to Acme", integrations.TagJobApplication, "2024-03-12", true))
	h.seed(t, domain.CollectionHabitTaskInbox, integrations.TaskProperties("Applied to Globex", integrations.TagJobApplication, "2024-03-14", true))

	res, err := h.orch.RunWeekly(context.Background(), reconcile.WeeklyRequest{})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-11", res.Week.Start.String())
	assert.Equal(t, 2, res.JobApplications)
	assert.Equal(t, 2, res.Habits.Count(domain.HabitJobApplications))
	require.Equal(t, 3, res.Violations.Total())

	routes := make(map[int]domain.Punishment)
	for _, p := range res.Punishments {
		routes[p.Route] = p
	}
	require.Len(t, routes, 3)
	assert.Equal(t, 60, routes[1].Minutes)
	assert.Equal(t, "2024-03-25", routes[1].DueDate.String())
	assert.True(t, routes[2].SavingsRateNew.Equal(domain.Dollars(70)))
	assert.True(t, routes[3].EarningsRequirementNew.Equal(domain.Dollars(125)))
	assert.Equal(t, "2024-03-18", routes[3].TargetWeekStart.String())

	assert.Contains(t, res.Summary, "3 violations")
	assert.Contains(t, res.Summary, "Assigned 3 punishment routes")
}

func TestRunWeekly_AwardsWeeklyBonusesOnce(t *testing.T) {
	// GIVEN: Five yoga and three lifting sessions in the log
	// WHEN: The week is reconciled, then forcibly reconciled again
	// THEN: Perfect Week and Base Allowance are awarded once, no violations

	h := newHarness(t, "2024-03-18", map[string]string{
		rules.PerfectWeekBonus:    "$25",
		rules.WeeklyBaseAllowance: "$20",
	})
	ctx := context.Background()
	for i, d := range []string{"2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15"} {
		_, _, err := h.stores.Workouts.RecordWorkout(ctx, domain.Workout{
			ExternalID: fmt.Sprintf("y%d", i), Date: day(d), Type: domain.WorkoutYoga, DurationMinutes: 60,
		})
		require.NoError(t, err)
	}
	for i, d := range []string{"2024-03-11", "2024-03-13", "2024-03-15"} {
		_, _, err := h.stores.Workouts.RecordWorkout(ctx, domain.Workout{
			ExternalID: fmt.Sprintf("l%d", i), Date: day(d), Type: domain.WorkoutLifting, DurationMinutes: 45,
		})
		require.NoError(t, err)
	}

	res, err := h.orch.RunWeekly(ctx, reconcile.WeeklyRequest{WeekStart: day("2024-03-13")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", res.Week.Start.String(), "any day selects its week")
	assert.Equal(t, 5, res.YogaSessions)
	assert.Equal(t, 3, res.LiftingSessions)
	assert.Zero(t, res.Violations.Total())
	assert.Empty(t, res.Punishments)

	require.Len(t, res.Bonuses, 2)
	assert.True(t, domain.Dollars(45).Equal(res.TotalBonuses))
	assert.Contains(t, res.Summary, "All requirements met")

	again, err := h.orch.RunWeekly(ctx, reconcile.WeeklyRequest{WeekStart: day("2024-03-11"), Force: true})
	require.NoError(t, err)
	assert.Empty(t, again.Bonuses)
}

func TestRunWeekly_RefusesSecondRun(t *testing.T) {
	h := newHarness(t, "2024-03-18", nil)
	ctx := context.Background()

	_, err := h.orch.RunWeekly(ctx, reconcile.WeeklyRequest{})
	require.NoError(t, err)
	_, err = h.orch.RunWeekly(ctx, reconcile.WeeklyRequest{WeekStart: day("2024-03-11")})
	assert.ErrorIs(t, err, domain.ErrAlreadyReconciled)
}

func TestRunWeekly_HabitsReadFailureFailsRun(t *testing.T) {
	h := newHarness(t, "2024-03-18", nil)
	h.mem.FailOn(domain.CollectionWeeklyHabits, domain.OpRead, errors.New("timeout"))

	_, err := h.orch.RunWeekly(context.Background(), reconcile.WeeklyRequest{})
	require.Error(t, err)
	assert.True(t, domain.IsCoreRead(err))
}
