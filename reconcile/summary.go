package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

// DailySummary joins the non-empty clauses of a daily result, e.g.
// "Logged 1 workout. Awarded $50.00 in bonuses (2)."
func DailySummary(r *DailyResult) string {
	var clauses []string

	if n := len(r.Interest); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Applied %s interest across %s",
			domain.FormatMoney(r.TotalInterest), plural(n, "debt")))
	}
	if n := len(r.Workouts); n > 0 {
		clauses = append(clauses, "Logged "+plural(n, "workout"))
	}
	if n := len(r.CompletedPunishments); n > 0 {
		clauses = append(clauses, "Completed "+plural(n, "punishment"))
	}
	if n := len(r.MissedPunishments); n > 0 {
		clauses = append(clauses, "Missed "+plural(n, "punishment"))
	}
	if n := len(r.DebtsCreated); n > 0 {
		total := decimal.Zero
		for _, d := range r.DebtsCreated {
			total = total.Add(d.CurrentAmount)
		}
		clauses = append(clauses, fmt.Sprintf("Assigned %s in violation debt (%s)",
			domain.FormatMoney(total), plural(n, "debt")))
	}
	if r.UberEarnings.IsPositive() {
		if paid := r.Payments.TotalPaid(); paid.IsPositive() {
			clauses = append(clauses, fmt.Sprintf("Paid %s toward debt from %s in earnings",
				domain.FormatMoney(paid), domain.FormatMoney(r.UberEarnings)))
		} else {
			clauses = append(clauses, fmt.Sprintf("Earned %s from Uber", domain.FormatMoney(r.UberEarnings)))
		}
	}
	if n := len(r.Bonuses); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Awarded %s in bonuses (%d)", domain.FormatMoney(r.TotalBonuses), n))
	}
	if n := len(r.NewPunishments); n > 0 {
		clauses = append(clauses, "Assigned "+plural(n, "punishment"))
	}

	if len(clauses) == 0 {
		return fmt.Sprintf("Nothing to reconcile for %s.", r.Date)
	}
	return strings.Join(clauses, ". ") + "."
}

// WeeklySummary joins the non-empty clauses of a weekly result.
func WeeklySummary(r *WeeklyResult) string {
	clauses := []string{fmt.Sprintf("Week of %s: %s yoga, %s lifting",
		r.Week.Start, plural(r.YogaSessions, "session"), plural(r.LiftingSessions, "session"))}

	if n := r.Violations.Total(); n > 0 {
		clauses = append(clauses, fmt.Sprintf("%s (%s)", plural(n, "violation"), r.Violations.Summary()))
	} else {
		clauses = append(clauses, "All requirements met")
	}
	if n := len(r.Punishments); n > 0 {
		clauses = append(clauses, "Assigned "+plural(n, "punishment route"))
	}
	if n := len(r.Bonuses); n > 0 {
		clauses = append(clauses, fmt.Sprintf("Awarded %s in bonuses (%d)", domain.FormatMoney(r.TotalBonuses), n))
	}
	return strings.Join(clauses, ". ") + "."
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
