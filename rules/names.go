package rules

import "strings"

// Rule names read by the engines. Defaults, where one applies, live with the
// engine that reads the rule.
const (
	// Per-occurrence bonuses
	LiftingBonusAmount   = "lifting_bonus_amount"
	ExtraYogaBonusAmount = "extra_yoga_bonus_amount"

	// Weekly bonuses
	WeeklyBaseAllowance       = "weekly_base_allowance"
	PerfectWeekBonus          = "perfect_week_bonus"
	PerfectWeekYogaMinimum    = "perfect_week_yoga_minimum"
	PerfectWeekLiftingMinimum = "perfect_week_lifting_minimum"

	// Weekly requirements
	YogaMinimum            = "yoga_minimum"
	LiftingMinimum         = "lifting_minimum"
	JobApplicationsMinimum = "job_applications_minimum"
	OfficeDaysMinimum      = "office_days_minimum"
	CoworkSessionsMinimum  = "cowork_sessions_minimum"
	AlgoExpertMinimum      = "algoexpert_minimum"
	ReadingMinimum         = "reading_minimum"
	DatingMinimum          = "dating_minimum"

	// Violations and policy overrides
	ViolationDebtAmount        = "violation_debt_amount"
	MissedCheckInCardioMinutes = "missed_checkin_cardio_minutes"
	BaseSavingsRate            = "base_savings_rate"
	WeeklyEarningsRequirement  = "weekly_earnings_requirement"
)

// BonusRuleFor maps a "<x>_minimum" rule to its "<x>_bonus" amount rule.
func BonusRuleFor(minimumRule string) string {
	return strings.TrimSuffix(minimumRule, "_minimum") + "_bonus"
}
