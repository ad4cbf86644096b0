package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

// =============================================================================
// READ-ONLY AGGREGATIONS
// =============================================================================

func (e *Engine) TotalActiveDebt(ctx context.Context) (decimal.Decimal, error) {
	debts, err := e.ActiveDebts(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sumCurrent(debts), nil
}

func (e *Engine) IsDebtFree(ctx context.Context) (bool, error) {
	total, err := e.TotalActiveDebt(ctx)
	if err != nil {
		return false, err
	}
	return !total.IsPositive(), nil
}

func sumCurrent(debts []domain.Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		total = total.Add(d.CurrentAmount)
	}
	return domain.Round2(total)
}

// DebtView is a debt with its derived aging flags.
type DebtView struct {
	domain.Debt
	DaysOutstanding int
	IsOverdue       bool
	IsCritical      bool
}

type Summary struct {
	TotalActive   decimal.Decimal
	ActiveCount   int
	OverdueCount  int
	CriticalCount int
	OldestDays    int
	Debts         []DebtView
}

func (e *Engine) DebtSummary(ctx context.Context, asOf domain.Date) (Summary, error) {
	debts, err := e.ActiveDebts(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{TotalActive: sumCurrent(debts), ActiveCount: len(debts)}
	for _, d := range debts {
		v := DebtView{
			Debt:            d,
			DaysOutstanding: d.DaysOutstanding(asOf),
			IsOverdue:       d.IsOverdue(asOf),
			IsCritical:      d.IsCritical(asOf),
		}
		if v.IsOverdue {
			s.OverdueCount++
		}
		if v.IsCritical {
			s.CriticalCount++
		}
		if v.DaysOutstanding > s.OldestDays {
			s.OldestDays = v.DaysOutstanding
		}
		s.Debts = append(s.Debts, v)
	}
	return s, nil
}

type AgingBucket struct {
	Count  int
	Amount decimal.Decimal
}

// Aging buckets active debts by days outstanding: 0-3, 4-7, 8-13, 14+.
type Aging struct {
	Fresh    AgingBucket // 0-3
	Overdue  AgingBucket // 4-7
	Late     AgingBucket // 8-13
	Critical AgingBucket // 14+
}

func (e *Engine) DebtAging(ctx context.Context, asOf domain.Date) (Aging, error) {
	debts, err := e.ActiveDebts(ctx)
	if err != nil {
		return Aging{}, err
	}

	var a Aging
	for _, d := range debts {
		var b *AgingBucket
		switch days := d.DaysOutstanding(asOf); {
		case days <= 3:
			b = &a.Fresh
		case days <= 7:
			b = &a.Overdue
		case days <= 13:
			b = &a.Late
		default:
			b = &a.Critical
		}
		b.Count++
		b.Amount = domain.Round2(b.Amount.Add(d.CurrentAmount))
	}
	return a, nil
}
