/*
store.go - Storage and integration ports

PURPOSE:
  Defines what the engines need from the outside world. The external
  document database is the source of truth for every record; the engines
  hold no persistent state of their own beyond the rules cache.

KEY INTERFACES:
  DocumentStore:    Vendor-neutral property-bag store (query, create, update)
  RuleStore ...:    Typed repositories over a DocumentStore
  WorkoutSource:    Strava-shaped workout feed
  EarningsSource:   Teller-shaped bank transfer feed
  HabitTracker:     Habitica-shaped task tracker

LAYERING:
  engines -> typed repositories (store/documents) -> DocumentStore
  Display-name property keys (including the trailing-space "Date Assigned ")
  exist only inside store/documents.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite document store
  - domain/store/memory.go: In-memory document store for testing
  - store/documents: Typed repositories
  - integrations: Source adapters over inbox collections

SEE ALSO:
  - errors.go: StorageError and IntegrationError
*/
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLECTIONS
// =============================================================================

const (
	CollectionRules          = "Rules"
	CollectionRuleChanges    = "Rule Changes"
	CollectionDebts          = "Debts"
	CollectionPunishments    = "Punishments"
	CollectionBonuses        = "Bonuses"
	CollectionWeeklyHabits   = "Weekly Habits"
	CollectionWorkouts       = "Workouts"
	CollectionEarnings       = "Earnings Applied"
	CollectionRuns           = "Reconciliation Runs"
	CollectionStravaInbox    = "Strava Activities"
	CollectionBankInbox      = "Bank Transactions"
	CollectionHabitTaskInbox = "Habit Tasks"
)

// =============================================================================
// DOCUMENT STORE - Vendor-neutral persistence port
// =============================================================================

// Properties is a property bag as the external store sees it.
type Properties map[string]any

// Document is one record in a collection, keyed by an opaque id.
type Document struct {
	ID         string
	Collection string
	Properties Properties
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type FilterOp string

const (
	OpEquals     FilterOp = "eq"
	OpContains   FilterOp = "contains"
	OpBefore     FilterOp = "before"
	OpOnOrBefore FilterOp = "on_or_before"
	OpOnOrAfter  FilterOp = "on_or_after"
)

// Clause compares one property, rendered as a string, against Value. Date
// comparisons are lexical on YYYY-MM-DD, which orders correctly.
type Clause struct {
	Property string
	Op       FilterOp
	Value    string
}

// Filter is a conjunction of clauses. The zero Filter matches everything.
type Filter struct {
	Clauses []Clause
}

func Where(property string, op FilterOp, value string) Filter {
	return Filter{Clauses: []Clause{{Property: property, Op: op, Value: value}}}
}

// And returns a copy of f with one more clause.
func (f Filter) And(property string, op FilterOp, value string) Filter {
	clauses := append(append([]Clause{}, f.Clauses...), Clause{Property: property, Op: op, Value: value})
	return Filter{Clauses: clauses}
}

// Matches evaluates the filter against a property bag.
func (f Filter) Matches(props Properties) bool {
	for _, c := range f.Clauses {
		v, ok := props[c.Property]
		if !ok || v == nil {
			return false
		}
		s := RenderProperty(v)
		switch c.Op {
		case OpEquals:
			if s != c.Value {
				return false
			}
		case OpContains:
			if !strings.Contains(strings.ToLower(s), strings.ToLower(c.Value)) {
				return false
			}
		case OpBefore:
			if s == "" || !(s < c.Value) {
				return false
			}
		case OpOnOrBefore:
			if s == "" || s > c.Value {
				return false
			}
		case OpOnOrAfter:
			if s == "" || s < c.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RenderProperty is the canonical string form used by filters.
func RenderProperty(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return decimal.NewFromFloat(t).String()
	default:
		return fmt.Sprint(t)
	}
}

// DocumentStore is what every backing store must provide.
type DocumentStore interface {
	// Query returns all documents in collection matching filter, oldest first.
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// Create persists a new document and returns it with its assigned id.
	Create(ctx context.Context, collection string, props Properties) (Document, error)

	// Update merges props into an existing document.
	Update(ctx context.Context, collection, id string, props Properties) (Document, error)
}

// =============================================================================
// TYPED REPOSITORIES
// =============================================================================

type RuleStore interface {
	ListRules(ctx context.Context) ([]Rule, error)
	SaveRule(ctx context.Context, rule Rule) (Rule, error)
	AppendRuleChange(ctx context.Context, change RuleChange) error
}

type DebtFilter struct {
	Status       DebtStatus
	Name         string
	DateAssigned Date
}

type DebtStore interface {
	ListDebts(ctx context.Context, filter DebtFilter) ([]Debt, error)
	GetDebt(ctx context.Context, id string) (Debt, error)
	CreateDebt(ctx context.Context, debt Debt) (Debt, error)
	UpdateDebt(ctx context.Context, debt Debt) error
}

type PunishmentFilter struct {
	Status       PunishmentStatus
	Category     PunishmentCategory
	DateAssigned Date
	NameContains string
	WeekStart    Date
}

type PunishmentStore interface {
	ListPunishments(ctx context.Context, filter PunishmentFilter) ([]Punishment, error)
	CreatePunishment(ctx context.Context, p Punishment) (Punishment, error)
	UpdatePunishment(ctx context.Context, p Punishment) error
}

type BonusFilter struct {
	Type   BonusType
	WeekOf Date
	Date   Date
}

type BonusStore interface {
	ListBonuses(ctx context.Context, filter BonusFilter) ([]Bonus, error)
	CreateBonus(ctx context.Context, b Bonus) (Bonus, error)
	UpdateBonus(ctx context.Context, b Bonus) error
}

// HabitStore manages WeeklyHabits entries. Week creates the entry on first
// access; entries are never deleted.
type HabitStore interface {
	Week(ctx context.Context, weekStart Date) (WeeklyHabits, error)
	SetCount(ctx context.Context, weekStart Date, counter HabitCounter, value int) (WeeklyHabits, error)
	Increment(ctx context.Context, weekStart Date, counter HabitCounter, delta int) (WeeklyHabits, error)
	AddUberEarnings(ctx context.Context, weekStart Date, amount decimal.Decimal) (WeeklyHabits, error)
}

// WorkoutLog is the engine's own record of ingested workouts.
type WorkoutLog interface {
	ListWorkouts(ctx context.Context, from, to Date) ([]Workout, error)
	// RecordWorkout stores w unless one with the same ExternalID exists.
	// created is false for duplicates; the stored workout is returned either way.
	RecordWorkout(ctx context.Context, w Workout) (stored Workout, created bool, err error)
}

// EarningsLog remembers every bank transaction already booked, so a re-run
// never applies the same payout twice.
type EarningsLog interface {
	// RecordEarning stores e unless one with the same ExternalID exists.
	// created is false for duplicates.
	RecordEarning(ctx context.Context, e Earning) (stored Earning, created bool, err error)
}

type RunStore interface {
	LatestRun(ctx context.Context, kind RunKind, period string) (*ReconciliationRun, error)
	SaveRun(ctx context.Context, run ReconciliationRun) (ReconciliationRun, error)
	ListRuns(ctx context.Context, limit int) ([]ReconciliationRun, error)
}

// RuleValues is the read side of the Rules Store the engines depend on.
// Lookups never fail: absent or unreadable rules yield the fallback.
type RuleValues interface {
	NumericValue(ctx context.Context, name string) decimal.Decimal
	NumericOr(ctx context.Context, name string, fallback decimal.Decimal) decimal.Decimal
	Exists(ctx context.Context, name string) bool
}

// Stores bundles every repository the engines use.
type Stores struct {
	Rules       RuleStore
	Debts       DebtStore
	Punishments PunishmentStore
	Bonuses     BonusStore
	Habits      HabitStore
	Workouts    WorkoutLog
	Earnings    EarningsLog
	Runs        RunStore
}

// =============================================================================
// INTEGRATION PORTS
// =============================================================================

type WorkoutSource interface {
	Workouts(ctx context.Context, date Date) ([]Workout, error)
}

type EarningsSource interface {
	Earnings(ctx context.Context, date Date) ([]Earning, error)
}

type HabitTracker interface {
	// CheckedIn reports whether the morning check-in was completed on date.
	CheckedIn(ctx context.Context, date Date) (bool, error)
	// JobApplications counts applications logged during week.
	JobApplications(ctx context.Context, week Week) (int, error)
}
