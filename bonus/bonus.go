/*
Package bonus evaluates and awards bonuses.

PURPOSE:
  Turns the day's workouts, earnings and a week's habit counters into Bonus
  records, using amounts and thresholds from the Rules Store.

BONUS KINDS:
  Per-occurrence:  Lifting -> lifting_bonus_amount
                   Yoga    -> extra_yoga_bonus_amount
                   Cardio  -> never (cardio pays down debt or punishments)
  Financial:       Uber Match = full Uber earnings, only when debt-free
                   Base Allowance = weekly_base_allowance, once per week
  Weekly:          Perfect Week = yoga >= perfect_week_yoga_minimum (3) AND
                                  lifting >= perfect_week_lifting_minimum (3)
                   <x>_minimum met -> <x>_bonus amount

  A zero amount never produces a record.

AWARDING:
  AwardBonuses creates each bonus and then marks it awarded, one at a time.
  A failure on one bonus is logged and recorded in the BatchResult; the
  rest of the batch still runs.

SEE ALSO:
  - rules/names.go: Rule names
  - reconcile/daily.go, reconcile/weekly.go: Callers
*/
package bonus

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
	"github.com/warp/accountability-engine/rules"
)

const (
	DefaultPerfectWeekYogaMinimum    = 3
	DefaultPerfectWeekLiftingMinimum = 3
)

// WeeklyThreshold is a "<counter> >= <x>_minimum earns <x>_bonus" pair.
type WeeklyThreshold struct {
	Counter     domain.HabitCounter
	MinimumRule string
	Type        domain.BonusType
}

// WeeklyThresholds lists the habit-threshold bonuses besides Perfect Week.
var WeeklyThresholds = []WeeklyThreshold{
	{Counter: domain.HabitJobApplications, MinimumRule: rules.JobApplicationsMinimum, Type: domain.BonusJobApplications},
	{Counter: domain.HabitAlgoExpert, MinimumRule: rules.AlgoExpertMinimum, Type: domain.BonusAlgoExpert},
	{Counter: domain.HabitOfficeDays, MinimumRule: rules.OfficeDaysMinimum, Type: domain.BonusOfficeAttendance},
	{Counter: domain.HabitCowork, MinimumRule: rules.CoworkSessionsMinimum, Type: domain.BonusCowork},
	{Counter: domain.HabitReading, MinimumRule: rules.ReadingMinimum, Type: domain.BonusReading},
	{Counter: domain.HabitDating, MinimumRule: rules.DatingMinimum, Type: domain.BonusDating},
}

// =============================================================================
// EVALUATOR
// =============================================================================

type Evaluator struct {
	rules   domain.RuleValues
	bonuses domain.BonusStore
}

func NewEvaluator(rv domain.RuleValues, bonuses domain.BonusStore) *Evaluator {
	return &Evaluator{rules: rv, bonuses: bonuses}
}

// WorkoutBonus returns the per-occurrence bonus for w, or nil.
func (e *Evaluator) WorkoutBonus(ctx context.Context, w domain.Workout) *domain.Bonus {
	var (
		rule string
		typ  domain.BonusType
	)
	switch w.Type {
	case domain.WorkoutLifting:
		rule, typ = rules.LiftingBonusAmount, domain.BonusLifting
	case domain.WorkoutYoga:
		rule, typ = rules.ExtraYogaBonusAmount, domain.BonusYoga
	default:
		return nil
	}

	amount := domain.Round2(e.rules.NumericValue(ctx, rule))
	if !amount.IsPositive() {
		return nil
	}
	return &domain.Bonus{
		Name:   fmt.Sprintf("%s Bonus - %s", typ, w.Date),
		Type:   typ,
		Amount: amount,
		Date:   w.Date,
		WeekOf: domain.WeekOf(w.Date).Start,
		Reason: fmt.Sprintf("%s session: %s (%d min)", w.Type, workoutLabel(w), w.DurationMinutes),
		Status: domain.BonusPending,
	}
}

func workoutLabel(w domain.Workout) string {
	if w.Name != "" {
		return w.Name
	}
	return string(w.Type)
}

// WorkoutBonuses evaluates every workout of a day.
func (e *Evaluator) WorkoutBonuses(ctx context.Context, workouts []domain.Workout) []domain.Bonus {
	var out []domain.Bonus
	for _, w := range workouts {
		if b := e.WorkoutBonus(ctx, w); b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// UberMatch matches earnings dollar-for-dollar, but only while debt-free.
func (e *Evaluator) UberMatch(earnings decimal.Decimal, debtFree bool, date domain.Date) *domain.Bonus {
	earnings = domain.Round2(earnings)
	if !debtFree || !earnings.IsPositive() {
		return nil
	}
	return &domain.Bonus{
		Name:   fmt.Sprintf("Uber Match - %s", date),
		Type:   domain.BonusUberMatch,
		Amount: earnings,
		Date:   date,
		WeekOf: domain.WeekOf(date).Start,
		Reason: fmt.Sprintf("Debt-free match of %s Uber earnings", domain.FormatMoney(earnings)),
		Status: domain.BonusPending,
	}
}

// BaseAllowance returns the weekly allowance for week, or nil when the rule
// is zero or absent.
func (e *Evaluator) BaseAllowance(ctx context.Context, week domain.Week) *domain.Bonus {
	amount := domain.Round2(e.rules.NumericValue(ctx, rules.WeeklyBaseAllowance))
	if !amount.IsPositive() {
		return nil
	}
	return &domain.Bonus{
		Name:   fmt.Sprintf("Base Allowance - %s", week.Start),
		Type:   domain.BonusBaseAllowance,
		Amount: amount,
		Date:   week.End,
		WeekOf: week.Start,
		Reason: fmt.Sprintf("Weekly base allowance for %s", week),
		Status: domain.BonusPending,
	}
}

// WeeklyBonuses evaluates Perfect Week and every WeeklyThreshold against the
// week's counters.
func (e *Evaluator) WeeklyBonuses(ctx context.Context, habits domain.WeeklyHabits, week domain.Week) []domain.Bonus {
	var out []domain.Bonus

	if b := e.perfectWeek(ctx, habits, week); b != nil {
		out = append(out, *b)
	}

	for _, th := range WeeklyThresholds {
		if !e.rules.Exists(ctx, th.MinimumRule) {
			continue
		}
		minimum := e.rules.NumericValue(ctx, th.MinimumRule)
		actual := habits.Count(th.Counter)
		if decimal.NewFromInt(int64(actual)).LessThan(minimum) {
			continue
		}
		amount := domain.Round2(e.rules.NumericValue(ctx, rules.BonusRuleFor(th.MinimumRule)))
		if !amount.IsPositive() {
			continue
		}
		out = append(out, domain.Bonus{
			Name:   fmt.Sprintf("%s Bonus - %s", th.Type, week.Start),
			Type:   th.Type,
			Amount: amount,
			Date:   week.End,
			WeekOf: week.Start,
			Reason: fmt.Sprintf("%d %s (minimum %s)", actual, th.Counter, minimum),
			Status: domain.BonusPending,
		})
	}
	return out
}

func (e *Evaluator) perfectWeek(ctx context.Context, habits domain.WeeklyHabits, week domain.Week) *domain.Bonus {
	yogaMin := e.rules.NumericOr(ctx, rules.PerfectWeekYogaMinimum, decimal.NewFromInt(DefaultPerfectWeekYogaMinimum))
	liftMin := e.rules.NumericOr(ctx, rules.PerfectWeekLiftingMinimum, decimal.NewFromInt(DefaultPerfectWeekLiftingMinimum))

	yoga := decimal.NewFromInt(int64(habits.Count(domain.HabitYoga)))
	lifting := decimal.NewFromInt(int64(habits.Count(domain.HabitLifting)))
	if yoga.LessThan(yogaMin) || lifting.LessThan(liftMin) {
		return nil
	}

	amount := domain.Round2(e.rules.NumericValue(ctx, rules.PerfectWeekBonus))
	if !amount.IsPositive() {
		return nil
	}
	return &domain.Bonus{
		Name:   fmt.Sprintf("Perfect Week - %s", week.Start),
		Type:   domain.BonusPerfectWeek,
		Amount: amount,
		Date:   week.End,
		WeekOf: week.Start,
		Reason: fmt.Sprintf("%s yoga and %s lifting sessions", yoga, lifting),
		Status: domain.BonusPending,
	}
}

// =============================================================================
// AWARDING
// =============================================================================

// AwardedBonus is the result row reported for a successfully awarded bonus.
type AwardedBonus struct {
	BonusID string
	Type    domain.BonusType
	Amount  decimal.Decimal
	Reason  string
}

func Awarded(b domain.Bonus) AwardedBonus {
	return AwardedBonus{BonusID: b.ID, Type: b.Type, Amount: b.Amount, Reason: b.Reason}
}

// AwardBonuses persists each bonus then marks it awarded. Succeeded holds the
// stored records in input order.
func (e *Evaluator) AwardBonuses(ctx context.Context, bonuses []domain.Bonus) domain.BatchResult[domain.Bonus] {
	var result domain.BatchResult[domain.Bonus]
	for _, b := range bonuses {
		stored, err := e.bonuses.CreateBonus(ctx, b)
		if err != nil {
			log.Printf("[Bonus] Failed to create %s bonus: %v", b.Type, err)
			result.Fail(b, err)
			continue
		}
		stored.Status = domain.BonusAwarded
		if err := e.bonuses.UpdateBonus(ctx, stored); err != nil {
			log.Printf("[Bonus] Failed to mark %s awarded: %v", stored.ID, err)
			result.Fail(stored, err)
			continue
		}
		result.Ok(stored)
	}
	if n := len(result.Succeeded); n > 0 {
		log.Printf("[Bonus] Awarded %d bonuses totaling %s", n, domain.FormatMoney(TotalBonusAmount(result.Succeeded)))
	}
	return result
}

// Unawarded drops bonuses already awarded in storage. Uber Match is keyed by
// (type, date); every other bonus by (type, weekOf). Rows left pending by a
// failed award do not count.
func (e *Evaluator) Unawarded(ctx context.Context, bonuses []domain.Bonus) ([]domain.Bonus, error) {
	var out []domain.Bonus
	for _, b := range bonuses {
		filter := domain.BonusFilter{Type: b.Type, WeekOf: b.WeekOf}
		if b.Type == domain.BonusUberMatch {
			filter = domain.BonusFilter{Type: b.Type, Date: b.Date}
		}
		existing, err := e.bonuses.ListBonuses(ctx, filter)
		if err != nil {
			return nil, err
		}
		if hasAwarded(existing) {
			log.Printf("[Bonus] %s already awarded for %s", b.Type, b.Name)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func hasAwarded(bonuses []domain.Bonus) bool {
	for _, b := range bonuses {
		if b.Status == domain.BonusAwarded {
			return true
		}
	}
	return false
}

func TotalBonusAmount(bonuses []domain.Bonus) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bonuses {
		total = total.Add(b.Amount)
	}
	return domain.Round2(total)
}
