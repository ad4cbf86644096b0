/*
Package domain provides the core records and ports of the accountability engine.

PURPOSE:
  This package holds the records every engine works with (rules, debts,
  punishments, bonuses, weekly habit counters, workouts, earnings) and the
  interfaces the engines call through to reach storage and the outside
  world. It has no knowledge of any particular document store or vendor API.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal rounded half-up to cents at every step
  - Rule: an operator-edited knob (threshold, amount, rate)
  - Debt: money owed, grows with daily interest, shrinks with earnings
  - Punishment: an assigned consequence (cardio, savings, earnings override)
  - Bonus: money granted for meeting a threshold
  - WeeklyHabits: aggregate counters for a Monday-start week

DESIGN PRINCIPLES:
  1. Precision: money uses decimal.Decimal, never float64 arithmetic
  2. Explicit records: no property bags past the storage adapter
  3. Intermediate rounding: every money operation rounds to 2 places

SEE ALSO:
  - time.go: Date and Clock
  - period.go: Week
  - store.go: Storage and integration ports
  - errors.go: Error taxonomy
*/
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Round2 rounds to cents, half away from zero (half-up for the positive
// amounts the ledger deals in).
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Dollars builds a rounded money value from a float literal.
func Dollars(v float64) decimal.Decimal { return Round2(decimal.NewFromFloat(v)) }

// FormatMoney renders "$12.50".
func FormatMoney(d decimal.Decimal) string { return "$" + Round2(d).StringFixed(2) }

// ParseNumeric strips currency and percentage decoration ("$", "%", ",",
// whitespace) and parses what is left. ok is false for empty or unparsable
// input.
func ParseNumeric(s string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer("$", "", "%", "", ",", "").Replace(strings.TrimSpace(s))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// =============================================================================
// RULE - Operator-edited configuration value
// =============================================================================

type RuleType string

const (
	RuleBonus       RuleType = "bonus"
	RuleExpectation RuleType = "expectation"
	RuleFinancial   RuleType = "financial"
	RuleOther       RuleType = "other"
)

type Frequency string

const (
	FrequencyDaily         Frequency = "daily"
	FrequencyWeekly        Frequency = "weekly"
	FrequencyPerOccurrence Frequency = "per_occurrence"
)

// Rule is keyed by Name. BaseValue and CalculatedValue may carry "$" or "%".
//
// INVARIANT: CalculatedValue is BaseValue adjusted by ModifierPercent, and
// both parse (after stripping decoration) to numerically consistent values.
type Rule struct {
	ID              string
	Name            string
	Type            RuleType
	Frequency       Frequency
	Punishable      bool
	BaseValue       string
	ModifierPercent decimal.Decimal
	CalculatedValue string
	Description     string
}

// EffectiveValue is CalculatedValue when set, BaseValue otherwise.
func (r Rule) EffectiveValue() string {
	if strings.TrimSpace(r.CalculatedValue) != "" {
		return r.CalculatedValue
	}
	return r.BaseValue
}

// IsCurrency reports whether the base value is a dollar amount.
func (r Rule) IsCurrency() bool { return strings.Contains(r.BaseValue, "$") }

// IsPercentage reports whether the base value is a percentage.
func (r Rule) IsPercentage() bool { return strings.Contains(r.BaseValue, "%") }

// RuleChange is the audit record written next to every modifier update.
type RuleChange struct {
	RuleName string
	Previous string
	New      string
	Modifier decimal.Decimal
	Reason   string
	At       Date
}

// =============================================================================
// DEBT
// =============================================================================

type DebtStatus string

const (
	DebtActive DebtStatus = "active"
	DebtPaid   DebtStatus = "paid"
)

// DefaultInterestRate is the daily compound rate applied to new debts.
var DefaultInterestRate = decimal.RequireFromString("0.30")

const (
	DebtOverdueDays  = 3
	DebtCriticalDays = 14
)

// Debt is money owed.
//
// INVARIANTS:
//   - CurrentAmount >= 0
//   - Status == DebtPaid iff CurrentAmount <= 0
//   - Interest is charged at most once per calendar day (LastInterestDate)
type Debt struct {
	ID               string
	Name             string
	Reason           string
	OriginalAmount   decimal.Decimal
	CurrentAmount    decimal.Decimal
	DateAssigned     Date
	InterestRate     decimal.Decimal
	Status           DebtStatus
	LastInterestDate Date
}

func (d Debt) IsActive() bool { return d.Status == DebtActive && d.CurrentAmount.IsPositive() }

func (d Debt) DaysOutstanding(asOf Date) int {
	if d.DateAssigned.IsZero() {
		return 0
	}
	n := DaysBetween(d.DateAssigned, asOf)
	if n < 0 {
		return 0
	}
	return n
}

func (d Debt) IsOverdue(asOf Date) bool  { return d.DaysOutstanding(asOf) > DebtOverdueDays }
func (d Debt) IsCritical(asOf Date) bool { return d.DaysOutstanding(asOf) > DebtCriticalDays }

// =============================================================================
// PUNISHMENT
// =============================================================================

type PunishmentStatus string

const (
	PunishmentPending   PunishmentStatus = "pending"
	PunishmentCompleted PunishmentStatus = "completed"
	PunishmentMissed    PunishmentStatus = "missed"
)

type PunishmentCategory string

const (
	CategoryCardio   PunishmentCategory = "cardio"
	CategorySavings  PunishmentCategory = "savings"
	CategoryEarnings PunishmentCategory = "earnings"
)

// Cardio modalities a punishment can require.
const (
	ModalityBike         = "Bike"
	ModalityTreadmill    = "Treadmill"
	ModalityStairstepper = "Stairstepper"
	ModalityRun          = "Run"
)

// CardioModalities is the pool random assignment draws from.
var CardioModalities = []string{ModalityBike, ModalityTreadmill, ModalityStairstepper, ModalityRun}

const (
	PunishmentTypeSavings  = "Savings Increase"
	PunishmentTypeEarnings = "Earnings Increase"
)

// Punishment covers cardio assignments (route 1 and daily violations) and the
// policy-override records of routes 2 and 3.
//
// STATE MACHINE: pending -> completed | missed. Both are terminal.
type Punishment struct {
	ID              string
	Name            string
	Type            string
	Category        PunishmentCategory
	Minutes         int
	DateAssigned    Date
	DueDate         Date
	Status          PunishmentStatus
	Reason          string
	Route           int
	ViolationCount  int
	EscalationLevel int
	WeekStart       Date
	WeekEnd         Date

	SavingsRateOriginal         decimal.Decimal
	SavingsRateNew              decimal.Decimal
	EarningsRequirementOriginal decimal.Decimal
	EarningsRequirementNew      decimal.Decimal
	TargetWeekStart             Date
	TargetWeekEnd               Date

	CompletedDate Date
	CompletedBy   string // workout id
}

// IsWorkout reports whether a logged workout can satisfy this punishment.
func (p Punishment) IsWorkout() bool {
	return p.Category == CategoryCardio || p.Category == ""
}

// IsOverdue is true iff the punishment is pending and its due date has passed.
func (p Punishment) IsOverdue(current Date) bool {
	return p.Status == PunishmentPending && !p.DueDate.IsZero() && p.DueDate.Before(current)
}

// =============================================================================
// BONUS
// =============================================================================

type BonusStatus string

const (
	BonusPending BonusStatus = "pending"
	BonusAwarded BonusStatus = "awarded"
)

type BonusType string

const (
	BonusLifting          BonusType = "Lifting"
	BonusYoga             BonusType = "Yoga"
	BonusUberMatch        BonusType = "Uber Match"
	BonusBaseAllowance    BonusType = "Base Allowance"
	BonusPerfectWeek      BonusType = "Perfect Week"
	BonusJobApplications  BonusType = "Job Applications"
	BonusAlgoExpert       BonusType = "AlgoExpert"
	BonusOfficeAttendance BonusType = "Office Attendance"
	BonusCowork           BonusType = "Cowork"
	BonusReading          BonusType = "Reading"
	BonusDating           BonusType = "Dating"
)

// Bonus is money granted. Amount >= 0; once awarded it is never modified.
type Bonus struct {
	ID     string
	Name   string
	Type   BonusType
	Amount decimal.Decimal
	Date   Date
	WeekOf Date
	Reason string
	Status BonusStatus
}

// =============================================================================
// WEEKLY HABITS
// =============================================================================

// HabitCounter names one counter of a WeeklyHabits entry.
type HabitCounter string

const (
	HabitYoga            HabitCounter = "yoga_sessions"
	HabitLifting         HabitCounter = "lifting_sessions"
	HabitJobApplications HabitCounter = "job_applications"
	HabitOfficeDays      HabitCounter = "office_days"
	HabitCowork          HabitCounter = "cowork_sessions"
	HabitAlgoExpert      HabitCounter = "algoexpert_problems"
	HabitReading         HabitCounter = "reading_sessions"
	HabitDating          HabitCounter = "dates"
)

// HabitCounters lists every integer counter in a stable order.
var HabitCounters = []HabitCounter{
	HabitYoga, HabitLifting, HabitJobApplications, HabitOfficeDays,
	HabitCowork, HabitAlgoExpert, HabitReading, HabitDating,
}

// WeeklyHabits aggregates one Monday-start week. ComplianceRate and
// TotalViolations are maintained by the external store, not computed here.
type WeeklyHabits struct {
	ID              string
	WeekStart       Date
	Counts          map[HabitCounter]int
	UberEarnings    decimal.Decimal
	ComplianceRate  decimal.Decimal
	TotalViolations int
}

func (h WeeklyHabits) Count(c HabitCounter) int { return h.Counts[c] }

func (h *WeeklyHabits) SetCount(c HabitCounter, n int) {
	if h.Counts == nil {
		h.Counts = make(map[HabitCounter]int)
	}
	h.Counts[c] = n
}

// =============================================================================
// SIGNALS - Workouts, earnings
// =============================================================================

type WorkoutType string

const (
	WorkoutYoga    WorkoutType = "Yoga"
	WorkoutLifting WorkoutType = "Lifting"
	WorkoutCardio  WorkoutType = "Cardio"
	WorkoutOther   WorkoutType = "Other"
)

// Workout is one logged session, Strava-shaped.
type Workout struct {
	ID              string
	ExternalID      string
	Date            Date
	Type            WorkoutType
	Name            string
	DurationMinutes int
	Calories        int
}

// Earning is one incoming transfer, Teller-shaped.
type Earning struct {
	ExternalID  string
	Date        Date
	Source      string
	Amount      decimal.Decimal
	Description string
}

const EarningSourceUber = "Uber"

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

type RunKind string

const (
	RunDaily  RunKind = "daily"
	RunWeekly RunKind = "weekly"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ReconciliationRun records one orchestrator invocation for a period.
type ReconciliationRun struct {
	ID          string
	Kind        RunKind
	Period      string // "2025-03-10" for daily, week start for weekly
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
	Summary     string
}

func (r ReconciliationRun) String() string {
	return fmt.Sprintf("%s run %s for %s (%s)", r.Kind, r.ID, r.Period, r.Status)
}
