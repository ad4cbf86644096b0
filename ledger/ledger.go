/*
Package ledger provides the debt engine: interest, FIFO paydown, buyouts.

PURPOSE:
  Debts are created when a violation or a missed punishment costs money.
  Every day each active debt compounds by its interest rate; incoming
  earnings pay debts off oldest-first; cardio minutes can buy debt down.

CRITICAL INVARIANTS:
  1. CurrentAmount >= 0, and Status == paid iff CurrentAmount <= 0
  2. CurrentAmount only grows through ApplyDailyInterest and only shrinks
     through ApplyEarningsToDebt / ProcessCardioBuyout
  3. Interest is charged at most once per calendar day per debt: each debt
     remembers LastInterestDate and is skipped when already charged
  4. Money rounds to cents at every step, not only at the end

FIFO ALLOCATION:
  Debts sorted by DateAssigned ascending. For each:
    payment   = min(remaining, current)
    current  -= payment
    remaining-= payment
  until remaining is zero or debts run out.

  Example: A ($30, Jan 1), B ($50, Jan 3), earnings $60
    A: pay 30 -> 0 (paid)
    B: pay 30 -> 20 (active)
    remaining = 0

CARDIO BUYOUT:
  $50 per 120 minutes, capped at the debt's current amount.

BATCHES:
  Debts are processed sequentially. A storage failure stops the batch and
  returns the committed prefix together with the error.

SEE ALSO:
  - domain/types.go: Debt
  - reconcile/daily.go: The only caller that applies interest
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Config struct {
	DefaultInterestRate decimal.Decimal
	ViolationDebtAmount decimal.Decimal
	BuyoutMinutes       int
	BuyoutAmount        decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		DefaultInterestRate: domain.DefaultInterestRate,
		ViolationDebtAmount: domain.Dollars(50),
		BuyoutMinutes:       120,
		BuyoutAmount:        domain.Dollars(50),
	}
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	debts domain.DebtStore
	clock domain.Clock
	cfg   Config
}

func NewEngine(debts domain.DebtStore, clock domain.Clock, cfg Config) *Engine {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	def := DefaultConfig()
	if cfg.DefaultInterestRate.IsZero() {
		cfg.DefaultInterestRate = def.DefaultInterestRate
	}
	if cfg.ViolationDebtAmount.IsZero() {
		cfg.ViolationDebtAmount = def.ViolationDebtAmount
	}
	if cfg.BuyoutMinutes <= 0 {
		cfg.BuyoutMinutes = def.BuyoutMinutes
	}
	if cfg.BuyoutAmount.IsZero() {
		cfg.BuyoutAmount = def.BuyoutAmount
	}
	return &Engine{debts: debts, clock: clock, cfg: cfg}
}

// ViolationDebtAmount is the configured default for violation debts.
func (e *Engine) ViolationDebtAmount() decimal.Decimal { return e.cfg.ViolationDebtAmount }

// ActiveDebts returns active debts with a positive balance, oldest first.
func (e *Engine) ActiveDebts(ctx context.Context) ([]domain.Debt, error) {
	debts, err := e.debts.ListDebts(ctx, domain.DebtFilter{Status: domain.DebtActive})
	if err != nil {
		return nil, err
	}
	active := debts[:0]
	for _, d := range debts {
		if d.CurrentAmount.IsPositive() {
			active = append(active, d)
		}
	}
	sortFIFO(active)
	return active, nil
}

func sortFIFO(debts []domain.Debt) {
	sort.SliceStable(debts, func(i, j int) bool {
		return debts[i].DateAssigned.Before(debts[j].DateAssigned)
	})
}

// =============================================================================
// INTEREST
// =============================================================================

type InterestApplication struct {
	DebtID          string
	Name            string
	OldAmount       decimal.Decimal
	NewAmount       decimal.Decimal
	InterestApplied decimal.Decimal
	InterestRate    decimal.Decimal
}

// ApplyDailyInterest compounds every active debt once for date:
// new = round2(current * (1 + rate)). Debts already charged for date, or
// assigned after it, are left alone.
func (e *Engine) ApplyDailyInterest(ctx context.Context, date domain.Date) ([]InterestApplication, error) {
	debts, err := e.ActiveDebts(ctx)
	if err != nil {
		return nil, err
	}

	var applied []InterestApplication
	for _, d := range debts {
		if d.LastInterestDate.Equal(date) || d.DateAssigned.After(date) {
			continue
		}

		rate := d.InterestRate
		if rate.IsZero() {
			rate = e.cfg.DefaultInterestRate
		}
		old := d.CurrentAmount
		next := domain.Round2(old.Mul(decimal.NewFromInt(1).Add(rate)))

		d.CurrentAmount = next
		d.LastInterestDate = date
		if err := e.debts.UpdateDebt(ctx, d); err != nil {
			return applied, fmt.Errorf("apply interest to %s: %w", d.ID, err)
		}

		applied = append(applied, InterestApplication{
			DebtID:          d.ID,
			Name:            d.Name,
			OldAmount:       old,
			NewAmount:       next,
			InterestApplied: domain.Round2(next.Sub(old)),
			InterestRate:    rate,
		})
	}

	if len(applied) > 0 {
		log.Printf("[Ledger] Applied interest to %d debts for %s", len(applied), date)
	}
	return applied, nil
}

// TotalInterest sums InterestApplied.
func TotalInterest(apps []InterestApplication) decimal.Decimal {
	total := decimal.Zero
	for _, a := range apps {
		total = total.Add(a.InterestApplied)
	}
	return domain.Round2(total)
}

// =============================================================================
// DEBT CREATION
// =============================================================================

// ViolationDebtName derives the stable name used for duplicate suppression.
func ViolationDebtName(reason string) string {
	return "Violation: " + strings.TrimSpace(reason)
}

// CreateViolationDebt records a new active debt assigned on date. A zero
// amount uses the configured default. When a debt with the same derived name
// already exists for date, that debt is returned and created is false.
func (e *Engine) CreateViolationDebt(ctx context.Context, reason string, amount decimal.Decimal, date domain.Date) (debt domain.Debt, created bool, err error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Debt{}, false, &domain.ValidationError{Field: "reason", Message: "is required"}
	}
	if amount.IsZero() {
		amount = e.cfg.ViolationDebtAmount
	}
	if amount.IsNegative() {
		return domain.Debt{}, false, &domain.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if date.IsZero() {
		date = domain.Today(e.clock)
	}

	name := ViolationDebtName(reason)
	existing, err := e.debts.ListDebts(ctx, domain.DebtFilter{Name: name, DateAssigned: date})
	if err != nil {
		return domain.Debt{}, false, err
	}
	if len(existing) > 0 {
		log.Printf("[Ledger] Debt %q already assigned on %s, not duplicating", name, date)
		return existing[0], false, nil
	}

	amount = domain.Round2(amount)
	debt, err = e.debts.CreateDebt(ctx, domain.Debt{
		Name:           name,
		Reason:         reason,
		OriginalAmount: amount,
		CurrentAmount:  amount,
		DateAssigned:   date,
		InterestRate:   e.cfg.DefaultInterestRate,
		Status:         domain.DebtActive,
	})
	if err != nil {
		return domain.Debt{}, false, err
	}
	log.Printf("[Ledger] Created debt %s (%s) for %s", debt.Name, domain.FormatMoney(amount), date)
	return debt, true, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

type Payment struct {
	DebtID        string
	Name          string
	PaymentAmount decimal.Decimal
	RemainingDebt decimal.Decimal
	Status        domain.DebtStatus
}

type PaymentResult struct {
	Payments  []Payment
	Remaining decimal.Decimal
}

// TotalPaid sums PaymentAmount.
func (r PaymentResult) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payments {
		total = total.Add(p.PaymentAmount)
	}
	return domain.Round2(total)
}

// ApplyEarningsToDebt allocates amount FIFO across debts. A nil debts slice
// loads the active debts from storage.
func (e *Engine) ApplyEarningsToDebt(ctx context.Context, amount decimal.Decimal, debts []domain.Debt) (PaymentResult, error) {
	remaining := domain.Round2(amount)
	result := PaymentResult{Remaining: remaining}
	if !remaining.IsPositive() {
		result.Remaining = decimal.Zero
		return result, nil
	}

	if debts == nil {
		var err error
		if debts, err = e.ActiveDebts(ctx); err != nil {
			return result, err
		}
	} else {
		debts = append([]domain.Debt(nil), debts...)
		sortFIFO(debts)
	}

	for _, d := range debts {
		if !remaining.IsPositive() {
			break
		}
		if d.Status != domain.DebtActive || !d.CurrentAmount.IsPositive() {
			continue
		}

		payment := domain.MinDecimal(remaining, d.CurrentAmount)
		d.CurrentAmount = domain.Round2(d.CurrentAmount.Sub(payment))
		if !d.CurrentAmount.IsPositive() {
			d.CurrentAmount = decimal.Zero
			d.Status = domain.DebtPaid
		}
		if err := e.debts.UpdateDebt(ctx, d); err != nil {
			return result, fmt.Errorf("apply payment to %s: %w", d.ID, err)
		}

		remaining = domain.Round2(remaining.Sub(payment))
		result.Remaining = remaining
		result.Payments = append(result.Payments, Payment{
			DebtID:        d.ID,
			Name:          d.Name,
			PaymentAmount: payment,
			RemainingDebt: d.CurrentAmount,
			Status:        d.Status,
		})
	}
	return result, nil
}

// =============================================================================
// CARDIO BUYOUT
// =============================================================================

type BuyoutResult struct {
	DebtID            string
	ForgivenessAmount decimal.Decimal
	OldAmount         decimal.Decimal
	NewAmount         decimal.Decimal
	Status            domain.DebtStatus
}

// BuyoutRate is dollars forgiven per cardio minute.
func (e *Engine) BuyoutRate() decimal.Decimal {
	return e.cfg.BuyoutAmount.Div(decimal.NewFromInt(int64(e.cfg.BuyoutMinutes)))
}

func (e *Engine) ProcessCardioBuyout(ctx context.Context, debtID string, cardioMinutes int) (BuyoutResult, error) {
	if cardioMinutes <= 0 {
		return BuyoutResult{}, &domain.ValidationError{Field: "cardio_minutes", Message: "must be positive"}
	}
	d, err := e.debts.GetDebt(ctx, debtID)
	if err != nil {
		return BuyoutResult{}, err
	}
	if d.Status != domain.DebtActive {
		return BuyoutResult{}, &domain.ValidationError{Field: "debt_id", Message: fmt.Sprintf("debt %s is %s", debtID, d.Status)}
	}

	earned := decimal.NewFromInt(int64(cardioMinutes)).Mul(e.BuyoutRate())
	forgiveness := domain.Round2(domain.MinDecimal(earned, d.CurrentAmount))

	old := d.CurrentAmount
	d.CurrentAmount = domain.Round2(old.Sub(forgiveness))
	if !d.CurrentAmount.IsPositive() {
		d.CurrentAmount = decimal.Zero
		d.Status = domain.DebtPaid
	}
	if err := e.debts.UpdateDebt(ctx, d); err != nil {
		return BuyoutResult{}, err
	}

	log.Printf("[Ledger] Cardio buyout on %s: %d min forgave %s", d.ID, cardioMinutes, domain.FormatMoney(forgiveness))
	return BuyoutResult{
		DebtID:            d.ID,
		ForgivenessAmount: forgiveness,
		OldAmount:         old,
		NewAmount:         d.CurrentAmount,
		Status:            d.Status,
	}, nil
}
