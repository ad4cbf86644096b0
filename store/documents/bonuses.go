package documents

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propBonusName   = "Name"
	propBonusType   = "Type"
	propBonusAmount = "Amount"
	propBonusDate   = "Date"
	propBonusWeekOf = "Week Of"
	propBonusReason = "Reason"
	propBonusStatus = "Status"
)

// BonusRepository implements domain.BonusStore.
type BonusRepository struct {
	docs domain.DocumentStore
}

func (r *BonusRepository) ListBonuses(ctx context.Context, f domain.BonusFilter) ([]domain.Bonus, error) {
	filter := domain.Filter{}
	if f.Type != "" {
		filter = filter.And(propBonusType, domain.OpEquals, string(f.Type))
	}
	if !f.WeekOf.IsZero() {
		filter = filter.And(propBonusWeekOf, domain.OpEquals, f.WeekOf.String())
	}
	if !f.Date.IsZero() {
		filter = filter.And(propBonusDate, domain.OpEquals, f.Date.String())
	}

	docs, err := r.docs.Query(ctx, domain.CollectionBonuses, filter)
	if err != nil {
		return nil, domain.ReadError(domain.CollectionBonuses, err)
	}
	out := make([]domain.Bonus, 0, len(docs))
	for _, d := range docs {
		out = append(out, bonusFromDocument(d))
	}
	return out, nil
}

func (r *BonusRepository) CreateBonus(ctx context.Context, b domain.Bonus) (domain.Bonus, error) {
	doc, err := r.docs.Create(ctx, domain.CollectionBonuses, domain.Properties{
		propBonusName:   b.Name,
		propBonusType:   string(b.Type),
		propBonusAmount: money(b.Amount),
		propBonusDate:   b.Date.String(),
		propBonusWeekOf: b.WeekOf.String(),
		propBonusReason: b.Reason,
		propBonusStatus: string(b.Status),
	})
	if err != nil {
		return domain.Bonus{}, domain.WriteError(domain.CollectionBonuses, err)
	}
	return bonusFromDocument(doc), nil
}

func (r *BonusRepository) UpdateBonus(ctx context.Context, b domain.Bonus) error {
	_, err := r.docs.Update(ctx, domain.CollectionBonuses, b.ID, domain.Properties{
		propBonusStatus: string(b.Status),
	})
	if err != nil {
		return domain.WriteError(domain.CollectionBonuses, err)
	}
	return nil
}

func bonusFromDocument(doc domain.Document) domain.Bonus {
	p := doc.Properties
	return domain.Bonus{
		ID:     doc.ID,
		Name:   str(p, propBonusName),
		Type:   domain.BonusType(str(p, propBonusType)),
		Amount: num(p, propBonusAmount),
		Date:   date(p, propBonusDate),
		WeekOf: date(p, propBonusWeekOf),
		Reason: str(p, propBonusReason),
		Status: domain.BonusStatus(str(p, propBonusStatus)),
	}
}
