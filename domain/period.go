package domain

// =============================================================================
// WEEK - Monday-start reconciliation period
// =============================================================================

// Week is [Start, End], Monday through Sunday.
type Week struct {
	Start Date
	End   Date
}

// WeekOf returns the Monday-start week containing d.
func WeekOf(d Date) Week {
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := d.AddDays(-offset)
	return Week{Start: start, End: start.AddDays(6)}
}

// WeekStarting returns the week beginning at start. start is snapped back to
// its Monday if it is not one.
func WeekStarting(start Date) Week { return WeekOf(start) }

// LastFullWeek is the Monday-Sunday week before the one containing today.
func LastFullWeek(today Date) Week { return WeekOf(today).Previous() }

func (w Week) Contains(d Date) bool { return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End) }

func (w Week) Next() Week     { return Week{Start: w.Start.AddDays(7), End: w.End.AddDays(7)} }
func (w Week) Previous() Week { return Week{Start: w.Start.AddDays(-7), End: w.End.AddDays(-7)} }

// Days returns the seven days of the week in order.
func (w Week) Days() []Date {
	days := make([]Date, 0, 7)
	for d := w.Start; d.BeforeOrEqual(w.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (w Week) String() string { return "[" + w.Start.String() + ", " + w.End.String() + "]" }
