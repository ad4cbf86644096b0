package documents

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

const (
	propHabitWeekStart  = "Week Start"
	propHabitUber       = "Uber Earnings"
	propHabitCompliance = "Compliance Rate"
	propHabitViolations = "Total Violations"
)

// habitProps maps counters to their display names.
var habitProps = map[domain.HabitCounter]string{
	domain.HabitYoga:            "Yoga Sessions",
	domain.HabitLifting:         "Lifting Sessions",
	domain.HabitJobApplications: "Job Applications",
	domain.HabitOfficeDays:      "Office Days",
	domain.HabitCowork:          "Cowork Sessions",
	domain.HabitAlgoExpert:      "AlgoExpert Problems",
	domain.HabitReading:         "Reading Sessions",
	domain.HabitDating:          "Dates",
}

// HabitRepository implements domain.HabitStore. Read-modify-write updates
// are serialized in process.
type HabitRepository struct {
	docs domain.DocumentStore
	mu   sync.Mutex
}

func NewHabitRepository(docs domain.DocumentStore) *HabitRepository {
	return &HabitRepository{docs: docs}
}

func (r *HabitRepository) Week(ctx context.Context, weekStart domain.Date) (domain.WeeklyHabits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weekLocked(ctx, weekStart)
}

func (r *HabitRepository) SetCount(ctx context.Context, weekStart domain.Date, counter domain.HabitCounter, value int) (domain.WeeklyHabits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.weekLocked(ctx, weekStart)
	if err != nil {
		return domain.WeeklyHabits{}, err
	}
	h.SetCount(counter, value)
	return h, r.updateLocked(ctx, h.ID, domain.Properties{habitProps[counter]: value})
}

func (r *HabitRepository) Increment(ctx context.Context, weekStart domain.Date, counter domain.HabitCounter, delta int) (domain.WeeklyHabits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.weekLocked(ctx, weekStart)
	if err != nil {
		return domain.WeeklyHabits{}, err
	}
	next := h.Count(counter) + delta
	h.SetCount(counter, next)
	return h, r.updateLocked(ctx, h.ID, domain.Properties{habitProps[counter]: next})
}

func (r *HabitRepository) AddUberEarnings(ctx context.Context, weekStart domain.Date, amount decimal.Decimal) (domain.WeeklyHabits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.weekLocked(ctx, weekStart)
	if err != nil {
		return domain.WeeklyHabits{}, err
	}
	h.UberEarnings = domain.Round2(h.UberEarnings.Add(amount))
	return h, r.updateLocked(ctx, h.ID, domain.Properties{propHabitUber: money(h.UberEarnings)})
}

func (r *HabitRepository) weekLocked(ctx context.Context, weekStart domain.Date) (domain.WeeklyHabits, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionWeeklyHabits,
		domain.Where(propHabitWeekStart, domain.OpEquals, weekStart.String()))
	if err != nil {
		return domain.WeeklyHabits{}, domain.ReadError(domain.CollectionWeeklyHabits, err)
	}
	if len(docs) > 0 {
		return habitsFromDocument(docs[0]), nil
	}

	// First access to this week: create an empty entry.
	props := domain.Properties{propHabitWeekStart: weekStart.String(), propHabitUber: 0}
	for _, c := range domain.HabitCounters {
		props[habitProps[c]] = 0
	}
	doc, err := r.docs.Create(ctx, domain.CollectionWeeklyHabits, props)
	if err != nil {
		return domain.WeeklyHabits{}, domain.WriteError(domain.CollectionWeeklyHabits, err)
	}
	return habitsFromDocument(doc), nil
}

func (r *HabitRepository) updateLocked(ctx context.Context, id string, props domain.Properties) error {
	if _, err := r.docs.Update(ctx, domain.CollectionWeeklyHabits, id, props); err != nil {
		return domain.WriteError(domain.CollectionWeeklyHabits, err)
	}
	return nil
}

func habitsFromDocument(doc domain.Document) domain.WeeklyHabits {
	p := doc.Properties
	h := domain.WeeklyHabits{
		ID:              doc.ID,
		WeekStart:       date(p, propHabitWeekStart),
		Counts:          make(map[domain.HabitCounter]int, len(habitProps)),
		UberEarnings:    num(p, propHabitUber),
		ComplianceRate:  num(p, propHabitCompliance),
		TotalViolations: integer(p, propHabitViolations),
	}
	for c, name := range habitProps {
		h.Counts[c] = integer(p, name)
	}
	return h
}
