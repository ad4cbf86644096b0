package violation

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/warp/accountability-engine/domain"
)

// =============================================================================
// WORKOUT MATCHING
// =============================================================================
//
// Matching is one-to-one. Pending workout punishments are visited oldest
// first; each takes the earliest unused cardio workout dated within
// [DateAssigned, DueDate] (capped at asOf) whose duration covers Minutes.
// A workout id recorded in any CompletedBy is never reused.

type matcher struct {
	pending []domain.Punishment
	cardio  []domain.Workout
	used    map[string]bool
	asOf    domain.Date
}

func (e *Engine) newMatcher(ctx context.Context, asOf domain.Date) (*matcher, error) {
	all, err := e.punishments.ListPunishments(ctx, domain.PunishmentFilter{})
	if err != nil {
		return nil, err
	}

	m := &matcher{used: make(map[string]bool), asOf: asOf}
	earliest := asOf
	for _, p := range all {
		if p.CompletedBy != "" {
			m.used[p.CompletedBy] = true
		}
		if p.Status != domain.PunishmentPending || !p.IsWorkout() || p.DateAssigned.After(asOf) {
			continue
		}
		m.pending = append(m.pending, p)
		if !p.DateAssigned.IsZero() && p.DateAssigned.Before(earliest) {
			earliest = p.DateAssigned
		}
	}
	sortOldestFirst(m.pending)
	if len(m.pending) == 0 || e.workouts == nil {
		return m, nil
	}

	workouts, err := e.workouts.ListWorkouts(ctx, earliest, asOf)
	if err != nil {
		return nil, err
	}
	for _, w := range workouts {
		if w.Type == domain.WorkoutCardio && !m.used[workoutKey(w)] {
			m.cardio = append(m.cardio, w)
		}
	}
	sort.SliceStable(m.cardio, func(i, j int) bool { return m.cardio[i].Date.Before(m.cardio[j].Date) })
	return m, nil
}

// take claims the first workout that satisfies p.
func (m *matcher) take(p domain.Punishment) (domain.Workout, bool) {
	for _, w := range m.cardio {
		key := workoutKey(w)
		if m.used[key] || !satisfies(w, p, m.asOf) {
			continue
		}
		m.used[key] = true
		return w, true
	}
	return domain.Workout{}, false
}

func satisfies(w domain.Workout, p domain.Punishment, asOf domain.Date) bool {
	if w.DurationMinutes < p.Minutes {
		return false
	}
	if !p.DateAssigned.IsZero() && w.Date.Before(p.DateAssigned) {
		return false
	}
	due := p.DueDate
	if due.IsZero() || due.After(asOf) {
		due = asOf
	}
	return w.Date.BeforeOrEqual(due)
}

func workoutKey(w domain.Workout) string {
	if w.ID != "" {
		return w.ID
	}
	return w.ExternalID
}

func sortOldestFirst(ps []domain.Punishment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].DateAssigned.Equal(ps[j].DateAssigned) {
			return ps[i].DateAssigned.Before(ps[j].DateAssigned)
		}
		return ps[i].DueDate.Before(ps[j].DueDate)
	})
}

// =============================================================================
// OVERDUE SWEEP
// =============================================================================

// FindOverdue returns pending workout punishments whose due date is before
// current. A punishment a logged workout already satisfies is left for
// CheckCompletions. Policy-override records are never overdue.
func (e *Engine) FindOverdue(ctx context.Context, current domain.Date) ([]domain.Punishment, error) {
	m, err := e.newMatcher(ctx, current)
	if err != nil {
		return nil, err
	}
	var out []domain.Punishment
	for _, p := range m.pending {
		if _, ok := m.take(p); ok {
			continue
		}
		if p.IsOverdue(current) {
			out = append(out, p)
		}
	}
	return out, nil
}

// MarkMissed moves p to missed. Anything not pending is refused, so a second
// sweep over the same punishment changes nothing.
func (e *Engine) MarkMissed(ctx context.Context, p domain.Punishment) (domain.Punishment, error) {
	if p.Status != domain.PunishmentPending {
		return p, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("punishment %s is %s", p.ID, p.Status)}
	}
	p.Status = domain.PunishmentMissed
	if err := e.punishments.UpdatePunishment(ctx, p); err != nil {
		return p, err
	}
	log.Printf("[Violation] Punishment %s (%s) missed, due %s", p.ID, p.Name, p.DueDate)
	return p, nil
}

// MissedDebtReason is the debt reason recorded for a missed punishment.
func MissedDebtReason(p domain.Punishment) string {
	return "Missed punishment: " + p.Name
}

// =============================================================================
// COMPLETION DETECTION
// =============================================================================

// CheckCompletions completes every pending workout punishment a logged
// cardio workout satisfies as of asOf.
func (e *Engine) CheckCompletions(ctx context.Context, asOf domain.Date) (domain.BatchResult[domain.Punishment], error) {
	var result domain.BatchResult[domain.Punishment]

	m, err := e.newMatcher(ctx, asOf)
	if err != nil {
		return result, err
	}
	for _, p := range m.pending {
		w, ok := m.take(p)
		if !ok {
			continue
		}
		p.Status = domain.PunishmentCompleted
		p.CompletedDate = w.Date
		p.CompletedBy = workoutKey(w)
		if err := e.punishments.UpdatePunishment(ctx, p); err != nil {
			log.Printf("[Violation] Failed to complete %s: %v", p.ID, err)
			result.Fail(p, err)
			continue
		}
		result.Ok(p)
		log.Printf("[Violation] %s completed by %d min workout on %s", p.Name, w.DurationMinutes, w.Date)
	}
	return result, nil
}
