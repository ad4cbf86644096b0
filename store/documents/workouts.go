package documents

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propWorkoutExternalID = "External ID"
	propWorkoutDate       = "Date"
	propWorkoutType       = "Type"
	propWorkoutName       = "Name"
	propWorkoutDuration   = "Duration"
	propWorkoutCalories   = "Calories"
)

// WorkoutRepository implements domain.WorkoutLog.
type WorkoutRepository struct {
	docs domain.DocumentStore
}

func (r *WorkoutRepository) ListWorkouts(ctx context.Context, from, to domain.Date) ([]domain.Workout, error) {
	filter := domain.Where(propWorkoutDate, domain.OpOnOrAfter, from.String()).
		And(propWorkoutDate, domain.OpOnOrBefore, to.String())
	docs, err := r.docs.Query(ctx, domain.CollectionWorkouts, filter)
	if err != nil {
		return nil, domain.ReadError(domain.CollectionWorkouts, err)
	}
	out := make([]domain.Workout, 0, len(docs))
	for _, d := range docs {
		out = append(out, workoutFromDocument(d))
	}
	return out, nil
}

func (r *WorkoutRepository) RecordWorkout(ctx context.Context, w domain.Workout) (domain.Workout, bool, error) {
	if w.ExternalID != "" {
		existing, err := r.docs.Query(ctx, domain.CollectionWorkouts,
			domain.Where(propWorkoutExternalID, domain.OpEquals, w.ExternalID))
		if err != nil {
			return domain.Workout{}, false, domain.ReadError(domain.CollectionWorkouts, err)
		}
		if len(existing) > 0 {
			return workoutFromDocument(existing[0]), false, nil
		}
	}

	doc, err := r.docs.Create(ctx, domain.CollectionWorkouts, workoutProperties(w))
	if err != nil {
		return domain.Workout{}, false, domain.WriteError(domain.CollectionWorkouts, err)
	}
	return workoutFromDocument(doc), true, nil
}

func workoutProperties(w domain.Workout) domain.Properties {
	return domain.Properties{
		propWorkoutExternalID: w.ExternalID,
		propWorkoutDate:       w.Date.String(),
		propWorkoutType:       string(w.Type),
		propWorkoutName:       w.Name,
		propWorkoutDuration:   w.DurationMinutes,
		propWorkoutCalories:   w.Calories,
	}
}

func workoutFromDocument(doc domain.Document) domain.Workout {
	p := doc.Properties
	return domain.Workout{
		ID:              doc.ID,
		ExternalID:      str(p, propWorkoutExternalID),
		Date:            date(p, propWorkoutDate),
		Type:            domain.WorkoutType(str(p, propWorkoutType)),
		Name:            str(p, propWorkoutName),
		DurationMinutes: integer(p, propWorkoutDuration),
		Calories:        integer(p, propWorkoutCalories),
	}
}
