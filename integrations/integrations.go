/*
Package integrations adapts external signal feeds to the engine's ports.

PURPOSE:
  Workouts, bank transfers and habit tasks are synced by vendor-specific
  jobs into inbox collections of the document store. The adapters here read
  those inboxes in the vendor's own shape and translate them to domain
  records.

ADAPTERS:
  StravaInbox  -> domain.WorkoutSource   ("Strava Activities")
  BankInbox    -> domain.EarningsSource  ("Bank Transactions", Teller-shaped)
  HabitTasks   -> domain.HabitTracker    ("Habit Tasks", Habitica-shaped)

ERRORS:
  Any read failure is returned as *domain.IntegrationError. Callers treat
  that as "no signal" and keep going.

SEE ALSO:
  - domain/store.go: Integration ports
  - reconcile/daily.go: WorkoutIngest and EarningsProcess steps
*/
package integrations

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

const (
	SourceStrava   = "strava"
	SourceTeller   = "teller"
	SourceHabitica = "habitica"
)

// =============================================================================
// PROPERTY READERS
// =============================================================================

func text(p domain.Properties, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return domain.RenderProperty(v)
}

func number(p domain.Properties, key string) decimal.Decimal {
	v, ok := p[key]
	if !ok || v == nil {
		return decimal.Zero
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case decimal.Decimal:
		return t
	default:
		d, _ := domain.ParseNumeric(domain.RenderProperty(v))
		return d
	}
}

func flag(p domain.Properties, key string) bool {
	switch t := p[key].(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// day reads a date or timestamp property as a calendar day.
func day(p domain.Properties, key string) domain.Date {
	s := text(p, key)
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}
	}
	return d
}

// dayFilter selects rows whose key starts with the given day. Timestamps
// sort after their date prefix, so an on-or-after/before pair brackets them.
func dayFilter(key string, d domain.Date) domain.Filter {
	return domain.Where(key, domain.OpOnOrAfter, d.String()).
		And(key, domain.OpBefore, d.AddDays(1).String())
}
