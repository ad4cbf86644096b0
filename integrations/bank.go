package integrations

import (
	"context"
	"strings"

	"github.com/warp/accountability-engine/domain"
)

const (
	propTxID         = "Transaction ID"
	propTxDate       = "Date"
	propTxAmount     = "Amount"
	propTxDesc       = "Description"
	propTxParty      = "Counterparty"
	propTxStatus     = "Status"
	txStatusPosted   = "posted"
	uberCounterparty = "uber"
)

// BankInbox reads Teller-shaped transactions. Only posted credits are
// earnings; payouts whose description or counterparty mentions Uber are
// tagged EarningSourceUber.
type BankInbox struct {
	docs domain.DocumentStore
}

func NewBankInbox(docs domain.DocumentStore) *BankInbox { return &BankInbox{docs: docs} }

func (b *BankInbox) Earnings(ctx context.Context, date domain.Date) ([]domain.Earning, error) {
	docs, err := b.docs.Query(ctx, domain.CollectionBankInbox, dayFilter(propTxDate, date))
	if err != nil {
		return nil, &domain.IntegrationError{Source: SourceTeller, Err: err}
	}

	var out []domain.Earning
	for _, doc := range docs {
		p := doc.Properties
		if status := text(p, propTxStatus); status != "" && !strings.EqualFold(status, txStatusPosted) {
			continue
		}
		amount := domain.Round2(number(p, propTxAmount))
		if !amount.IsPositive() {
			continue
		}

		desc := text(p, propTxDesc)
		party := text(p, propTxParty)
		source := party
		if strings.Contains(strings.ToLower(desc+" "+party), uberCounterparty) {
			source = domain.EarningSourceUber
		}
		out = append(out, domain.Earning{
			ExternalID:  text(p, propTxID),
			Date:        day(p, propTxDate),
			Source:      source,
			Amount:      amount,
			Description: desc,
		})
	}
	return out, nil
}

// TransactionProperties renders a transaction the way the sync job stores it.
func TransactionProperties(id, date, amount, description, counterparty, status string) domain.Properties {
	return domain.Properties{
		propTxID:     id,
		propTxDate:   date,
		propTxAmount: amount,
		propTxDesc:   description,
		propTxParty:  counterparty,
		propTxStatus: status,
	}
}
