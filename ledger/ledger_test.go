package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/domain/store"
	"github.com/warp/accountability-engine/ledger"
	"github.com/warp/accountability-engine/store/documents"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T, today string) (*ledger.Engine, domain.DebtStore, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	stores := documents.New(mem)
	clock := domain.ClockAt(domain.MustParseDate(today))
	return ledger.NewEngine(stores.Debts, clock, ledger.DefaultConfig()), stores.Debts, mem
}

func seedDebt(t *testing.T, debts domain.DebtStore, name, assigned string, amount float64) domain.Debt {
	t.Helper()
	d, err := debts.CreateDebt(context.Background(), domain.Debt{
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

func dollars(v float64) decimal.Decimal { return domain.Dollars(v) }

// =============================================================================
// INTEREST TESTS
// =============================================================================

func TestApplyDailyInterest_CompoundsAndRounds(t *testing.T) {
	// GIVEN: One active $50 debt at 30% and one at $33.33
	// WHEN: Interest is applied for a day
	// THEN: new = round2(current * 1.30), never lower than before

	engine, debts, _ := newTestEngine(t, "2024-01-05")
	ctx := context.Background()
	a := seedDebt(t, debts, "A", "2024-01-01", 50)
	b := seedDebt(t, debts, "B", "2024-01-02", 33.33)

	apps, err := engine.ApplyDailyInterest(ctx, domain.MustParseDate("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, apps, 2)

	assert.Equal(t, a.ID, apps[0].DebtID)
	assert.True(t, dollars(65).Equal(apps[0].NewAmount), "got %s", apps[0].NewAmount)
	assert.True(t, dollars(15).Equal(apps[0].InterestApplied))

	assert.Equal(t, b.ID, apps[1].DebtID)
	// 33.33 * 1.3 = 43.329 -> 43.33
	assert.True(t, dollars(43.33).Equal(apps[1].NewAmount), "got %s", apps[1].NewAmount)

	for _, app := range apps {
		assert.True(t, app.NewAmount.GreaterThanOrEqual(app.OldAmount), "interest must never decrease a debt")
	}

	stored, err := debts.GetDebt(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, dollars(65).Equal(stored.CurrentAmount))
	assert.Equal(t, "2024-01-05", stored.LastInterestDate.String())
}

func TestApplyDailyInterest_AtMostOncePerDay(t *testing.T) {
	// GIVEN: Interest already applied for a date
	// WHEN: Applying interest again for the same date
	// THEN: Nothing changes

	engine, debts, _ := newTestEngine(t, "2024-01-05")
	ctx := context.Background()
	d := seedDebt(t, debts, "A", "2024-01-01", 10)
	date := domain.MustParseDate("2024-01-05")

	first, err := engine.ApplyDailyInterest(ctx, date)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.ApplyDailyInterest(ctx, date)
	require.NoError(t, err)
	assert.Empty(t, second)

	stored, err := debts.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, dollars(13).Equal(stored.CurrentAmount))

	// Next day compounds again
	third, err := engine.ApplyDailyInterest(ctx, date.AddDays(1))
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.True(t, dollars(16.9).Equal(third[0].NewAmount))
}

func TestApplyDailyInterest_SkipsPaidAndFutureDebts(t *testing.T) {
	engine, debts, _ := newTestEngine(t, "2024-01-05")
	ctx := context.Background()

	paid := seedDebt(t, debts, "Paid", "2024-01-01", 10)
	paid.CurrentAmount = decimal.Zero
	paid.Status = domain.DebtPaid
	require.NoError(t, debts.UpdateDebt(ctx, paid))
	seedDebt(t, debts, "Future", "2024-01-09", 10)

	apps, err := engine.ApplyDailyInterest(ctx, domain.MustParseDate("2024-01-05"))
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestApplyDailyInterest_StorageFailureReturnsPrefix(t *testing.T) {
	// GIVEN: Three debts and a store that fails on the second write
	// WHEN: Applying interest
	// THEN: The first application is returned with the error

	engine, debts, mem := newTestEngine(t, "2024-01-05")
	seedDebt(t, debts, "A", "2024-01-01", 10)
	seedDebt(t, debts, "B", "2024-01-02", 10)
	seedDebt(t, debts, "C", "2024-01-03", 10)
	mem.FailAfter(domain.CollectionDebts, domain.OpWrite, 1, errors.New("disk full"))

	apps, err := engine.ApplyDailyInterest(context.Background(), domain.MustParseDate("2024-01-05"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.Len(t, apps, 1)
	assert.Equal(t, "A", apps[0].Name)
}

// =============================================================================
// FIFO PAYMENT TESTS
// =============================================================================

func TestApplyEarningsToDebt_FIFO(t *testing.T) {
	// GIVEN: Debt A ($30, Jan 1) and debt B ($50, Jan 3)
	// WHEN: $60 of earnings arrive
	// THEN: A is paid in full, B keeps $20, nothing is left over

	engine, debts, _ := newTestEngine(t, "2024-01-05")
	ctx := context.Background()
	b := seedDebt(t, debts, "B", "2024-01-03", 50)
	a := seedDebt(t, debts, "A", "2024-01-01", 30)

	result, err := engine.ApplyEarningsToDebt(ctx, dollars(60), nil)
	require.NoError(t, err)
	require.Len(t, result.Payments, 2)

	assert.Equal(t, a.ID, result.Payments[0].DebtID)
	assert.True(t, dollars(30).Equal(result.Payments[0].PaymentAmount))
	assert.True(t, result.Payments[0].RemainingDebt.IsZero())
	assert.Equal(t, domain.DebtPaid, result.Payments[0].Status)

	assert.Equal(t, b.ID, result.Payments[1].DebtID)
	assert.True(t, dollars(30).Equal(result.Payments[1].PaymentAmount))
	assert.True(t, dollars(20).Equal(result.Payments[1].RemainingDebt))
	assert.Equal(t, domain.DebtActive, result.Payments[1].Status)

	assert.True(t, result.Remaining.IsZero())
	assert.True(t, dollars(60).Equal(result.TotalPaid()))

	storedA, err := debts.GetDebt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DebtPaid, storedA.Status)
}

func TestApplyEarningsToDebt_LeftoverWhenDebtsRunOut(t *testing.T) {
	engine, debts, _ := newTestEngine(t, "2024-01-05")
	seedDebt(t, debts, "A", "2024-01-01", 12.5)

	result, err := engine.ApplyEarningsToDebt(context.Background(), dollars(40), nil)
	require.NoError(t, err)
	require.Len(t, result.Payments, 1)
	assert.True(t, dollars(27.5).Equal(result.Remaining))

	free, err := engine.IsDebtFree(context.Background())
	require.NoError(t, err)
	assert.True(t, free)
}

func TestApplyEarningsToDebt_ZeroAmountIsNoop(t *testing.T) {
	engine, debts, _ := newTestEngine(t, "2024-01-05")
	seedDebt(t, debts, "A", "2024-01-01", 10)

	result, err := engine.ApplyEarningsToDebt(context.Background(), decimal.Zero, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Payments)
	assert.True(t, result.Remaining.IsZero())
}

// =============================================================================
// DEBT CREATION TESTS
// =============================================================================

func TestCreateViolationDebt_DefaultsAndDuplicateSuppression(t *testing.T) {
	// GIVEN: No debts
	// WHEN: Creating the same violation debt twice on one date
	// THEN: One $50 debt exists and the second call returns it

	engine, debts, _ := newTestEngine(t, "2024-02-01")
	ctx := context.Background()
	date := domain.MustParseDate("2024-02-01")

	first, created, err := engine.CreateViolationDebt(ctx, "Missed punishment", decimal.Zero, date)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Violation: Missed punishment", first.Name)
	assert.True(t, dollars(50).Equal(first.CurrentAmount))
	assert.True(t, domain.DefaultInterestRate.Equal(first.InterestRate))
	assert.Equal(t, domain.DebtActive, first.Status)

	second, created, err := engine.CreateViolationDebt(ctx, "Missed punishment", decimal.Zero, date)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	all, err := debts.ListDebts(ctx, domain.DebtFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// A different date is a new debt
	_, created, err = engine.CreateViolationDebt(ctx, "Missed punishment", decimal.Zero, date.AddDays(1))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateViolationDebt_RequiresReason(t *testing.T) {
	engine, _, _ := newTestEngine(t, "2024-02-01")

	_, _, err := engine.CreateViolationDebt(context.Background(), "  ", decimal.Zero, domain.Date{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// =============================================================================
// CARDIO BUYOUT TESTS
// =============================================================================

func TestProcessCardioBuyout(t *testing.T) {
	tests := []struct {
		name        string
		debt        float64
		minutes     int
		forgiveness float64
		remaining   float64
		status      domain.DebtStatus
	}{
		{"full rate", 100, 120, 50, 50, domain.DebtActive},
		{"partial minutes", 100, 30, 12.5, 87.5, domain.DebtActive},
		{"capped at balance", 20, 120, 20, 0, domain.DebtPaid},
		{"rounding", 100, 7, 2.92, 97.08, domain.DebtActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, debts, _ := newTestEngine(t, "2024-01-05")
			d := seedDebt(t, debts, "A", "2024-01-01", tt.debt)

			result, err := engine.ProcessCardioBuyout(context.Background(), d.ID, tt.minutes)
			require.NoError(t, err)
			assert.True(t, dollars(tt.forgiveness).Equal(result.ForgivenessAmount), "forgiveness %s", result.ForgivenessAmount)
			assert.True(t, dollars(tt.remaining).Equal(result.NewAmount), "remaining %s", result.NewAmount)
			assert.Equal(t, tt.status, result.Status)
		})
	}
}

func TestProcessCardioBuyout_Validation(t *testing.T) {
	engine, debts, _ := newTestEngine(t, "2024-01-05")
	ctx := context.Background()
	d := seedDebt(t, debts, "A", "2024-01-01", 10)

	_, err := engine.ProcessCardioBuyout(ctx, d.ID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = engine.ProcessCardioBuyout(ctx, "missing", 30)
	assert.True(t, domain.IsNotFound(err), "unknown debt should be not found, got %v", err)

	_, err = engine.ProcessCardioBuyout(ctx, d.ID, 240)
	require.NoError(t, err)
	_, err = engine.ProcessCardioBuyout(ctx, d.ID, 30)
	assert.ErrorIs(t, err, domain.ErrValidation, "paid debt cannot be bought out")
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestDebtSummaryAndAging(t *testing.T) {
	// GIVEN: Debts aged 1, 5, 10 and 20 days
	// WHEN: Summarizing as of Jan 21
	// THEN: Each lands in its own bucket and overdue/critical counts follow

	engine, debts, _ := newTestEngine(t, "2024-01-21")
	ctx := context.Background()
	asOf := domain.MustParseDate("2024-01-21")

	seedDebt(t, debts, "fresh", "2024-01-20", 10)
	seedDebt(t, debts, "overdue", "2024-01-16", 20)
	seedDebt(t, debts, "late", "2024-01-11", 30)
	seedDebt(t, debts, "critical", "2024-01-01", 40)

	summary, err := engine.DebtSummary(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.ActiveCount)
	assert.True(t, dollars(100).Equal(summary.TotalActive))
	assert.Equal(t, 3, summary.OverdueCount)
	assert.Equal(t, 1, summary.CriticalCount)
	assert.Equal(t, 20, summary.OldestDays)
	assert.Equal(t, "critical", summary.Debts[0].Name, "debts are listed oldest first")

	aging, err := engine.DebtAging(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, aging.Fresh.Count)
	assert.Equal(t, 1, aging.Overdue.Count)
	assert.Equal(t, 1, aging.Late.Count)
	assert.Equal(t, 1, aging.Critical.Count)
	assert.True(t, dollars(40).Equal(aging.Critical.Amount))

	total, err := engine.TotalActiveDebt(ctx)
	require.NoError(t, err)
	assert.True(t, dollars(100).Equal(total))

	free, err := engine.IsDebtFree(ctx)
	require.NoError(t, err)
	assert.False(t, free)
}
