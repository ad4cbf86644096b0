package documents

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propEarningExternalID = "Transaction ID"
	propEarningDate       = "Date"
	propEarningSource     = "Source"
	propEarningAmount     = "Amount"
	propEarningDesc       = "Description"
)

// EarningsRepository implements domain.EarningsLog.
type EarningsRepository struct {
	docs domain.DocumentStore
}

func (r *EarningsRepository) RecordEarning(ctx context.Context, e domain.Earning) (domain.Earning, bool, error) {
	if e.ExternalID != "" {
		existing, err := r.docs.Query(ctx, domain.CollectionEarnings,
			domain.Where(propEarningExternalID, domain.OpEquals, e.ExternalID))
		if err != nil {
			return domain.Earning{}, false, domain.ReadError(domain.CollectionEarnings, err)
		}
		if len(existing) > 0 {
			return earningFromDocument(existing[0]), false, nil
		}
	}

	doc, err := r.docs.Create(ctx, domain.CollectionEarnings, domain.Properties{
		propEarningExternalID: e.ExternalID,
		propEarningDate:       e.Date.String(),
		propEarningSource:     e.Source,
		propEarningAmount:     money(e.Amount),
		propEarningDesc:       e.Description,
	})
	if err != nil {
		return domain.Earning{}, false, domain.WriteError(domain.CollectionEarnings, err)
	}
	return earningFromDocument(doc), true, nil
}

func earningFromDocument(doc domain.Document) domain.Earning {
	p := doc.Properties
	return domain.Earning{
		ExternalID:  str(p, propEarningExternalID),
		Date:        date(p, propEarningDate),
		Source:      str(p, propEarningSource),
		Amount:      num(p, propEarningAmount),
		Description: str(p, propEarningDesc),
	}
}
