package bonus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accountability-engine/bonus"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/domain/store"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/store/documents"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	eval   *bonus.Evaluator
	stores domain.Stores
	mem    *store.Memory
}

func newFixture(t *testing.T, ruleValues map[string]string) fixture {
	t.Helper()
	mem := store.NewMemory()
	stores := documents.New(mem)
	ctx := context.Background()
	for name, value := range ruleValues {
		_, err := stores.Rules.SaveRule(ctx, domain.Rule{Name: name, BaseValue: value, Type: domain.RuleBonus})
		require.NoError(t, err)
	}
	clock := domain.ClockAt(domain.MustParseDate("2024-03-11"))
	rs := rules.NewStore(stores.Rules, rules.NewCache(0, clock), clock)
	return fixture{eval: bonus.NewEvaluator(rs, stores.Bonuses), stores: stores, mem: mem}
}

func workout(typ domain.WorkoutType, minutes int) domain.Workout {
	return domain.Workout{
		ExternalID:      "ext-" + string(typ),
		Date:            domain.MustParseDate("2024-03-12"),
		Type:            typ,
		Name:            "Session",
		DurationMinutes: minutes,
	}
}

func habits(yoga, lifting int) domain.WeeklyHabits {
	h := domain.WeeklyHabits{WeekStart: domain.MustParseDate("2024-03-11")}
	h.SetCount(domain.HabitYoga, yoga)
	h.SetCount(domain.HabitLifting, lifting)
	return h
}

// =============================================================================
// PER-OCCURRENCE TESTS
// =============================================================================

func TestWorkoutBonus_ByType(t *testing.T) {
	f := newFixture(t, map[string]string{
		rules.LiftingBonusAmount:   "$10",
		rules.ExtraYogaBonusAmount: "$5",
	})
	ctx := context.Background()

	lifting := f.eval.WorkoutBonus(ctx, workout(domain.WorkoutLifting, 45))
	require.NotNil(t, lifting)
	assert.Equal(t, domain.BonusLifting, lifting.Type)
	assert.True(t, domain.Dollars(10).Equal(lifting.Amount))
	assert.Equal(t, "2024-03-11", lifting.WeekOf.String())

	yoga := f.eval.WorkoutBonus(ctx, workout(domain.WorkoutYoga, 60))
	require.NotNil(t, yoga)
	assert.True(t, domain.Dollars(5).Equal(yoga.Amount))

	assert.Nil(t, f.eval.WorkoutBonus(ctx, workout(domain.WorkoutCardio, 90)), "cardio never earns a bonus")
	assert.Nil(t, f.eval.WorkoutBonus(ctx, workout(domain.WorkoutOther, 90)))
}

func TestWorkoutBonus_ZeroAmountMeansNoRecord(t *testing.T) {
	// GIVEN: No lifting_bonus_amount rule
	// WHEN: A lifting workout is evaluated
	// THEN: No bonus is produced

	f := newFixture(t, nil)
	assert.Nil(t, f.eval.WorkoutBonus(context.Background(), workout(domain.WorkoutLifting, 45)))
	assert.Empty(t, f.eval.WorkoutBonuses(context.Background(), []domain.Workout{workout(domain.WorkoutYoga, 30)}))
}

// =============================================================================
// FINANCIAL TESTS
// =============================================================================

func TestUberMatch_RequiresDebtFree(t *testing.T) {
	f := newFixture(t, nil)
	date := domain.MustParseDate("2024-03-12")

	match := f.eval.UberMatch(domain.Dollars(40), true, date)
	require.NotNil(t, match)
	assert.Equal(t, domain.BonusUberMatch, match.Type)
	assert.True(t, domain.Dollars(40).Equal(match.Amount))

	assert.Nil(t, f.eval.UberMatch(domain.Dollars(1000), false, date), "any active debt blocks the match")
	assert.Nil(t, f.eval.UberMatch(domain.Dollars(0), true, date), "no earnings, no match")
}

func TestBaseAllowance(t *testing.T) {
	week := domain.WeekOf(domain.MustParseDate("2024-03-13"))

	f := newFixture(t, map[string]string{rules.WeeklyBaseAllowance: "$25"})
	b := f.eval.BaseAllowance(context.Background(), week)
	require.NotNil(t, b)
	assert.Equal(t, week.Start, b.WeekOf)
	assert.True(t, domain.Dollars(25).Equal(b.Amount))

	empty := newFixture(t, nil)
	assert.Nil(t, empty.eval.BaseAllowance(context.Background(), week))
}

// =============================================================================
// WEEKLY TESTS
// =============================================================================

func TestWeeklyBonuses_PerfectWeek(t *testing.T) {
	week := domain.WeekOf(domain.MustParseDate("2024-03-11"))

	tests := []struct {
		name    string
		yoga    int
		lifting int
		want    bool
	}{
		{"both at minimum", 3, 3, true},
		{"above minimum", 6, 4, true},
		{"yoga short", 2, 5, false},
		{"lifting short", 5, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{rules.PerfectWeekBonus: "$20"})
			got := f.eval.WeeklyBonuses(context.Background(), habits(tt.yoga, tt.lifting), week)
			if tt.want {
				require.Len(t, got, 1)
				assert.Equal(t, domain.BonusPerfectWeek, got[0].Type)
				assert.True(t, domain.Dollars(20).Equal(got[0].Amount))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestWeeklyBonuses_ThresholdRules(t *testing.T) {
	// GIVEN: job applications minimum 10 ($15) and reading minimum 3 ($5)
	// WHEN: The week has 12 applications and 2 reading sessions
	// THEN: Only the job applications bonus is earned

	f := newFixture(t, map[string]string{
		rules.JobApplicationsMinimum: "10",
		"job_applications_bonus":     "$15",
		rules.ReadingMinimum:         "3",
		"reading_bonus":              "$5",
	})
	h := habits(0, 0)
	h.SetCount(domain.HabitJobApplications, 12)
	h.SetCount(domain.HabitReading, 2)

	got := f.eval.WeeklyBonuses(context.Background(), h, domain.WeekOf(h.WeekStart))
	require.Len(t, got, 1)
	assert.Equal(t, domain.BonusJobApplications, got[0].Type)
	assert.True(t, domain.Dollars(15).Equal(got[0].Amount))
}

// =============================================================================
// AWARDING TESTS
// =============================================================================

func TestAwardBonuses_ContinuesPastFailures(t *testing.T) {
	// GIVEN: Three bonuses and a store whose second create fails
	// WHEN: Awarding them
	// THEN: Two succeed, one fails, and stored ones are marked awarded

	f := newFixture(t, nil)
	date := domain.MustParseDate("2024-03-12")
	batch := []domain.Bonus{
		{Name: "a", Type: domain.BonusLifting, Amount: domain.Dollars(10), Date: date},
		{Name: "b", Type: domain.BonusYoga, Amount: domain.Dollars(5), Date: date},
		{Name: "c", Type: domain.BonusUberMatch, Amount: domain.Dollars(40), Date: date},
	}

	// Each bonus is one create plus one status update.
	f.mem.FailAfter(domain.CollectionBonuses, domain.OpWrite, 2, errors.New("timeout"))
	result := f.eval.AwardBonuses(context.Background(), batch[:2])
	f.mem.ClearFaults()
	more := f.eval.AwardBonuses(context.Background(), batch[2:])

	require.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].Item.Name)
	assert.ErrorIs(t, result.Failed[0].Error, domain.ErrStorage)

	require.Len(t, more.Succeeded, 1)
	assert.True(t, domain.Dollars(50).Equal(bonus.TotalBonusAmount(append(result.Succeeded, more.Succeeded...))))

	stored, err := f.stores.Bonuses.ListBonuses(context.Background(), domain.BonusFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, b := range stored {
		assert.Equal(t, domain.BonusAwarded, b.Status)
	}

	awarded := bonus.Awarded(result.Succeeded[0])
	assert.NotEmpty(t, awarded.BonusID)
	assert.Equal(t, domain.BonusLifting, awarded.Type)
}

func TestUnawarded_DedupesByTypeAndWeek(t *testing.T) {
	f := newFixture(t, map[string]string{rules.WeeklyBaseAllowance: "$25"})
	ctx := context.Background()
	week := domain.WeekOf(domain.MustParseDate("2024-03-11"))

	allowance := f.eval.BaseAllowance(ctx, week)
	require.NotNil(t, allowance)
	f.eval.AwardBonuses(ctx, []domain.Bonus{*allowance})

	fresh, err := f.eval.Unawarded(ctx, []domain.Bonus{*allowance})
	require.NoError(t, err)
	assert.Empty(t, fresh)

	next := f.eval.BaseAllowance(ctx, week.Next())
	fresh, err = f.eval.Unawarded(ctx, []domain.Bonus{*next})
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestUnawarded_IgnoresRowsLeftPending(t *testing.T) {
	// GIVEN: An allowance whose create succeeded but whose status update failed
	// WHEN: The week's bonuses are filtered again
	// THEN: The allowance is still due

	f := newFixture(t, map[string]string{rules.WeeklyBaseAllowance: "$25"})
	ctx := context.Background()
	week := domain.WeekOf(domain.MustParseDate("2024-03-11"))
	allowance := f.eval.BaseAllowance(ctx, week)
	require.NotNil(t, allowance)

	f.mem.FailAfter(domain.CollectionBonuses, domain.OpWrite, 1, errors.New("timeout"))
	result := f.eval.AwardBonuses(ctx, []domain.Bonus{*allowance})
	f.mem.ClearFaults()
	require.Len(t, result.Failed, 1)

	stored, err := f.stores.Bonuses.ListBonuses(ctx, domain.BonusFilter{Type: domain.BonusBaseAllowance})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.BonusPending, stored[0].Status)

	fresh, err := f.eval.Unawarded(ctx, []domain.Bonus{*allowance})
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestUnawarded_UberMatchKeyedByDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tuesday := f.eval.UberMatch(domain.Dollars(40), true, domain.MustParseDate("2024-03-12"))
	f.eval.AwardBonuses(ctx, []domain.Bonus{*tuesday})

	fresh, err := f.eval.Unawarded(ctx, []domain.Bonus{*tuesday})
	require.NoError(t, err)
	assert.Empty(t, fresh, "same day already matched")

	wednesday := f.eval.UberMatch(domain.Dollars(15), true, domain.MustParseDate("2024-03-13"))
	fresh, err = f.eval.Unawarded(ctx, []domain.Bonus{*wednesday})
	require.NoError(t, err)
	assert.Len(t, fresh, 1, "same week, different day")
}
