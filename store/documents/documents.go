/*
Package documents maps domain records to and from document-store property bags.

PURPOSE:
  The external document store names its properties for humans ("Date
  Assigned " with a trailing space, "Modifier %", "Week Of"). This package is
  the only place those names exist: everything above it works with the
  explicit records in package domain.

QUIRKS HANDLED:
  - Debts and Punishments: "Date Assigned " is written with its trailing
    space; reads also accept the trimmed spelling.
  - Numbers may come back as float64 (JSON), int (memory store) or string
    (operator-typed); all are accepted.
  - Dates are "YYYY-MM-DD" strings; an empty string is the zero Date.

ERRORS:
  Every DocumentStore failure is re-raised as a *domain.StorageError with
  the collection name and read/write op, so orchestrators can tell core
  reads apart from best-effort writes.

USAGE:
  repos := documents.New(sqliteStore)
  debts, err := repos.Debts.ListDebts(ctx, domain.DebtFilter{Status: domain.DebtActive})

SEE ALSO:
  - domain/store.go: Repository interfaces
*/
package documents

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

// New builds every repository over one document store.
func New(docs domain.DocumentStore) domain.Stores {
	return domain.Stores{
		Rules:       &RuleRepository{docs: docs},
		Debts:       &DebtRepository{docs: docs},
		Punishments: &PunishmentRepository{docs: docs},
		Bonuses:     &BonusRepository{docs: docs},
		Habits:      NewHabitRepository(docs),
		Workouts:    &WorkoutRepository{docs: docs},
		Earnings:    &EarningsRepository{docs: docs},
		Runs:        &RunRepository{docs: docs},
	}
}

// =============================================================================
// PROPERTY READERS
// =============================================================================

// lookup returns the first present key. Used for quirky names that may have
// been fixed by hand in some rows.
func lookup(props domain.Properties, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func str(props domain.Properties, keys ...string) string {
	v, ok := lookup(props, keys...)
	if !ok {
		return ""
	}
	return domain.RenderProperty(v)
}

func num(props domain.Properties, keys ...string) decimal.Decimal {
	v, ok := lookup(props, keys...)
	if !ok {
		return decimal.Zero
	}
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case decimal.Decimal:
		return t
	case string:
		d, _ := domain.ParseNumeric(t)
		return d
	default:
		d, _ := domain.ParseNumeric(fmt.Sprint(t))
		return d
	}
}

func integer(props domain.Properties, keys ...string) int {
	return int(num(props, keys...).IntPart())
}

func boolean(props domain.Properties, keys ...string) bool {
	v, ok := lookup(props, keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}

func date(props domain.Properties, keys ...string) domain.Date {
	s := str(props, keys...)
	if s == "" {
		return domain.Date{}
	}
	// Some rows carry full timestamps; the calendar day is the first 10 chars.
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return domain.Date{}
	}
	return d
}

// money renders a decimal as a JSON number.
func money(d decimal.Decimal) float64 { return d.InexactFloat64() }
