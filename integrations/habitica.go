package integrations

import (
	"context"
	"strings"

	"github.com/warp/accountability-engine/domain"
)

const (
	propTaskText      = "Task"
	propTaskTag       = "Tag"
	propTaskCompleted = "Completed"
	propTaskDate      = "Date"

	TagCheckIn        = "morning_checkin"
	TagJobApplication = "job_application"
)

// HabitTasks reads Habitica-shaped task completions. A task counts when it
// is completed and carries the matching tag (or, for untagged rows, the
// matching phrase in its text).
type HabitTasks struct {
	docs domain.DocumentStore
}

func NewHabitTasks(docs domain.DocumentStore) *HabitTasks { return &HabitTasks{docs: docs} }

func (h *HabitTasks) CheckedIn(ctx context.Context, date domain.Date) (bool, error) {
	docs, err := h.docs.Query(ctx, domain.CollectionHabitTaskInbox, dayFilter(propTaskDate, date))
	if err != nil {
		return false, &domain.IntegrationError{Source: SourceHabitica, Err: err}
	}
	for _, doc := range docs {
		if matches(doc.Properties, TagCheckIn, "check-in", "check in") {
			return true, nil
		}
	}
	return false, nil
}

func (h *HabitTasks) JobApplications(ctx context.Context, week domain.Week) (int, error) {
	filter := domain.Where(propTaskDate, domain.OpOnOrAfter, week.Start.String()).
		And(propTaskDate, domain.OpBefore, week.End.AddDays(1).String())
	docs, err := h.docs.Query(ctx, domain.CollectionHabitTaskInbox, filter)
	if err != nil {
		return 0, &domain.IntegrationError{Source: SourceHabitica, Err: err}
	}
	n := 0
	for _, doc := range docs {
		if matches(doc.Properties, TagJobApplication, "job application", "applied to") {
			n++
		}
	}
	return n, nil
}

func matches(p domain.Properties, tag string, phrases ...string) bool {
	if !flag(p, propTaskCompleted) {
		return false
	}
	if t := text(p, propTaskTag); t != "" {
		return t == tag
	}
	task := strings.ToLower(text(p, propTaskText))
	for _, phrase := range phrases {
		if strings.Contains(task, phrase) {
			return true
		}
	}
	return false
}

// TaskProperties renders a task completion the way the sync job stores it.
func TaskProperties(task, tag, date string, completed bool) domain.Properties {
	return domain.Properties{
		propTaskText:      task,
		propTaskTag:       tag,
		propTaskDate:      date,
		propTaskCompleted: completed,
	}
}
