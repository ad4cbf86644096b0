package documents

import (
	"context"
	"fmt"

	"github.com/warp/accountability-engine/domain"
)

const (
	propDebtName         = "Name"
	propDebtReason       = "Reason"
	propDebtOriginal     = "Original Amount"
	propDebtCurrent      = "Current Amount"
	propDateAssigned     = "Date Assigned " // trailing space is how the external store spells it
	propDateAssignedFix  = "Date Assigned"
	propDebtInterestRate = "Interest Rate"
	propDebtStatus       = "Status"
	propDebtLastInterest = "Last Interest Date"
)

// DebtRepository implements domain.DebtStore.
type DebtRepository struct {
	docs domain.DocumentStore
}

func (r *DebtRepository) ListDebts(ctx context.Context, f domain.DebtFilter) ([]domain.Debt, error) {
	filter := domain.Filter{}
	if f.Status != "" {
		filter = filter.And(propDebtStatus, domain.OpEquals, string(f.Status))
	}
	if f.Name != "" {
		filter = filter.And(propDebtName, domain.OpEquals, f.Name)
	}
	if !f.DateAssigned.IsZero() {
		filter = filter.And(propDateAssigned, domain.OpEquals, f.DateAssigned.String())
	}

	docs, err := r.docs.Query(ctx, domain.CollectionDebts, filter)
	if err != nil {
		return nil, domain.ReadError(domain.CollectionDebts, err)
	}
	debts := make([]domain.Debt, 0, len(docs))
	for _, d := range docs {
		debts = append(debts, debtFromDocument(d))
	}
	return debts, nil
}

func (r *DebtRepository) GetDebt(ctx context.Context, id string) (domain.Debt, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionDebts, domain.Filter{})
	if err != nil {
		return domain.Debt{}, domain.ReadError(domain.CollectionDebts, err)
	}
	for _, d := range docs {
		if d.ID == id {
			return debtFromDocument(d), nil
		}
	}
	return domain.Debt{}, fmt.Errorf("debt %s: %w", id, domain.ErrNotFound)
}

func (r *DebtRepository) CreateDebt(ctx context.Context, debt domain.Debt) (domain.Debt, error) {
	doc, err := r.docs.Create(ctx, domain.CollectionDebts, debtProperties(debt))
	if err != nil {
		return domain.Debt{}, domain.WriteError(domain.CollectionDebts, err)
	}
	return debtFromDocument(doc), nil
}

func (r *DebtRepository) UpdateDebt(ctx context.Context, debt domain.Debt) error {
	_, err := r.docs.Update(ctx, domain.CollectionDebts, debt.ID, domain.Properties{
		propDebtCurrent:      money(debt.CurrentAmount),
		propDebtStatus:       string(debt.Status),
		propDebtLastInterest: debt.LastInterestDate.String(),
	})
	if err != nil {
		return domain.WriteError(domain.CollectionDebts, err)
	}
	return nil
}

func debtProperties(d domain.Debt) domain.Properties {
	return domain.Properties{
		propDebtName:         d.Name,
		propDebtReason:       d.Reason,
		propDebtOriginal:     money(d.OriginalAmount),
		propDebtCurrent:      money(d.CurrentAmount),
		propDateAssigned:     d.DateAssigned.String(),
		propDebtInterestRate: money(d.InterestRate),
		propDebtStatus:       string(d.Status),
		propDebtLastInterest: d.LastInterestDate.String(),
	}
}

func debtFromDocument(doc domain.Document) domain.Debt {
	p := doc.Properties
	return domain.Debt{
		ID:               doc.ID,
		Name:             str(p, propDebtName),
		Reason:           str(p, propDebtReason),
		OriginalAmount:   num(p, propDebtOriginal),
		CurrentAmount:    num(p, propDebtCurrent),
		DateAssigned:     date(p, propDateAssigned, propDateAssignedFix),
		InterestRate:     num(p, propDebtInterestRate),
		Status:           domain.DebtStatus(str(p, propDebtStatus)),
		LastInterestDate: date(p, propDebtLastInterest),
	}
}
