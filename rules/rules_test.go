package rules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/domain/store"
	"github.com/warp/accountability-engine/rules"
	"github.com/warp/accountability-engine/store/documents"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	mem   *store.Memory
	repo  domain.RuleStore
	clock *domain.ManualClock
	store *rules.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	clock := domain.ClockAt(domain.MustParseDate("2024-03-12"))
	repo := documents.New(mem).Rules
	return &fixture{
		mem:   mem,
		repo:  repo,
		clock: clock,
		store: rules.NewStore(repo, rules.NewCache(5*time.Minute, clock), clock),
	}
}

func (f *fixture) rule(t *testing.T, name, base string, freq domain.Frequency) domain.Rule {
	t.Helper()
	r, err := f.repo.SaveRule(context.Background(), domain.Rule{Name: name, BaseValue: base, Frequency: freq})
	require.NoError(t, err)
	return r
}

// =============================================================================
// CACHE
// =============================================================================

func TestAll_ServesSnapshotUntilTTL(t *testing.T) {
	// GIVEN: A cached snapshot with one rule
	// WHEN: A second rule is written behind the store's back
	// THEN: It is invisible until the TTL passes

	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)

	all, err := f.store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	f.rule(t, rules.YogaMinimum, "5", domain.FrequencyWeekly)

	f.clock.Advance(4 * time.Minute)
	all, err = f.store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "snapshot still fresh")

	f.clock.Advance(time.Minute)
	all, err = f.store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "snapshot expired at the TTL")
}

func TestAll_CachedSnapshotSurvivesStorageOutage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)

	_, err := f.store.All(ctx)
	require.NoError(t, err)

	f.mem.FailOn(domain.CollectionRules, domain.OpRead, errors.New("rate limited"))
	_, err = f.store.All(ctx)
	assert.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.store.All(ctx)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestCache_InvalidateAndAge(t *testing.T) {
	clock := domain.ClockAt(domain.MustParseDate("2024-03-12"))
	c := rules.NewCache(0, clock)

	_, ok := c.Age()
	assert.False(t, ok)

	c.Put(map[string]domain.Rule{"x": {Name: "x"}})
	clock.Advance(90 * time.Second)
	age, ok := c.Age()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)

	c.Invalidate()
	_, ok = c.Get()
	assert.False(t, ok)
}

// =============================================================================
// NUMERIC LOOKUPS
// =============================================================================

func TestNumericValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)
	f.rule(t, rules.BaseSavingsRate, "50%", domain.FrequencyWeekly)
	f.rule(t, rules.ReadingMinimum, "lots", domain.FrequencyWeekly)

	tests := []struct {
		name string
		rule string
		want string
	}{
		{"currency", rules.LiftingBonusAmount, "10"},
		{"percentage", rules.BaseSavingsRate, "50"},
		{"unparsable", rules.ReadingMinimum, "0"},
		{"missing", rules.DatingMinimum, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.store.NumericValue(ctx, tt.rule).String())
		})
	}

	assert.True(t, f.store.Exists(ctx, rules.ReadingMinimum))
	assert.False(t, f.store.Exists(ctx, rules.DatingMinimum))
	assert.Equal(t, "7", f.store.NumericOr(ctx, rules.DatingMinimum, decimal.NewFromInt(7)).String())
}

func TestNumericValue_ReadErrorIsZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)
	f.mem.FailOn(domain.CollectionRules, domain.OpRead, errors.New("down"))

	assert.True(t, f.store.NumericValue(ctx, rules.LiftingBonusAmount).IsZero())
	assert.False(t, f.store.Exists(ctx, rules.LiftingBonusAmount))
}

func TestRulesByFrequency(t *testing.T) {
	f := newFixture(t)
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)
	f.rule(t, rules.YogaMinimum, "5", domain.FrequencyWeekly)
	f.rule(t, rules.LiftingMinimum, "3", domain.FrequencyWeekly)

	weekly, err := f.store.RulesByFrequency(context.Background(), domain.FrequencyWeekly)
	require.NoError(t, err)
	assert.Len(t, weekly, 2)
	assert.Contains(t, weekly, rules.YogaMinimum)
}

// =============================================================================
// MODIFIERS
// =============================================================================

func TestCalculate(t *testing.T) {
	tests := []struct {
		base    string
		percent int64
		want    string
	}{
		{"$10", 50, "$15.00"},
		{"60%", -10, "54%"},
		{"3", 0, "3"},
		{"4", 25, "5"},
		{"n/a", 10, "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Calculate(tt.base, decimal.NewFromInt(tt.percent)))
		})
	}
}

func TestUpdateModifier_SetsRatherThanCompounds(t *testing.T) {
	// GIVEN: A $10 rule
	// WHEN: +20% is applied twice, then reset
	// THEN: It reads $12.00, $12.00, then $10 and the change log has three rows

	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)

	// Warm the cache so the write has something to invalidate.
	assert.Equal(t, "10", f.store.NumericValue(ctx, rules.LiftingBonusAmount).String())

	first, err := f.store.UpdateModifier(ctx, rules.LiftingBonusAmount, decimal.NewFromInt(20), "streak")
	require.NoError(t, err)
	assert.Equal(t, "$10", first.PreviousValue)
	assert.Equal(t, "$12.00", first.NewValue)
	assert.Equal(t, "12", f.store.NumericValue(ctx, rules.LiftingBonusAmount).String())

	second, err := f.store.UpdateModifier(ctx, rules.LiftingBonusAmount, decimal.NewFromInt(20), "streak")
	require.NoError(t, err)
	assert.Equal(t, "$12.00", second.NewValue)

	reset, err := f.store.ResetModifier(ctx, rules.LiftingBonusAmount)
	require.NoError(t, err)
	assert.Equal(t, "$10", reset.NewValue)
	assert.Equal(t, reset.Rule.BaseValue, reset.Rule.CalculatedValue)

	assert.Equal(t, 3, f.mem.Len(domain.CollectionRuleChanges))
}

func TestUpdateModifier_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.UpdateModifier(ctx, "", decimal.NewFromInt(5), "x")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.store.UpdateModifier(ctx, "nope", decimal.NewFromInt(5), "x")
	var nf *domain.RuleNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Name)
}

func TestUpdateModifier_AuditFailureKeepsRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)
	f.mem.FailOn(domain.CollectionRuleChanges, domain.OpWrite, errors.New("down"))

	updated, err := f.store.UpdateModifier(ctx, rules.LiftingBonusAmount, decimal.NewFromInt(50), "x")
	require.NoError(t, err)
	assert.Equal(t, "$15.00", updated.NewValue)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rule(t, rules.LiftingBonusAmount, "$10", domain.FrequencyPerOccurrence)
	f.rule(t, rules.YogaMinimum, "5", domain.FrequencyWeekly)
	_, err := f.store.UpdateModifier(ctx, rules.YogaMinimum, decimal.NewFromInt(20), "push")
	require.NoError(t, err)

	st, err := f.store.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.Len(t, st.ByFrequency[domain.FrequencyWeekly], 1)
	require.Len(t, st.Modified, 1)
	assert.Equal(t, rules.YogaMinimum, st.Modified[0].Name)
	assert.True(t, st.Cached)
	assert.Equal(t, "2 rules (1 modified)", st.String())
}
