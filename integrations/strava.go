package integrations

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propActivityID   = "Activity ID"
	propActivityName = "Name"
	propSportType    = "Sport Type"
	propStartDate    = "Start Date Local"
	propMovingTime   = "Moving Time" // seconds
	propCalories     = "Calories"
)

// sportTypes maps Strava sport types to workout types. Unlisted sports are
// WorkoutOther.
var sportTypes = map[string]domain.WorkoutType{
	"Yoga":           domain.WorkoutYoga,
	"Pilates":        domain.WorkoutYoga,
	"WeightTraining": domain.WorkoutLifting,
	"Crossfit":       domain.WorkoutLifting,
	"Ride":           domain.WorkoutCardio,
	"VirtualRide":    domain.WorkoutCardio,
	"Run":            domain.WorkoutCardio,
	"VirtualRun":     domain.WorkoutCardio,
	"TrailRun":       domain.WorkoutCardio,
	"StairStepper":   domain.WorkoutCardio,
	"Elliptical":     domain.WorkoutCardio,
	"Rowing":         domain.WorkoutCardio,
	"Swim":           domain.WorkoutCardio,
}

func WorkoutTypeFor(sport string) domain.WorkoutType {
	if t, ok := sportTypes[sport]; ok {
		return t
	}
	return domain.WorkoutOther
}

// StravaInbox reads synced Strava activities.
type StravaInbox struct {
	docs domain.DocumentStore
}

func NewStravaInbox(docs domain.DocumentStore) *StravaInbox { return &StravaInbox{docs: docs} }

func (s *StravaInbox) Workouts(ctx context.Context, date domain.Date) ([]domain.Workout, error) {
	docs, err := s.docs.Query(ctx, domain.CollectionStravaInbox, dayFilter(propStartDate, date))
	if err != nil {
		return nil, &domain.IntegrationError{Source: SourceStrava, Err: err}
	}

	out := make([]domain.Workout, 0, len(docs))
	for _, doc := range docs {
		p := doc.Properties
		ext := text(p, propActivityID)
		if ext == "" {
			ext = doc.ID
		}
		out = append(out, domain.Workout{
			ExternalID:      ext,
			Date:            day(p, propStartDate),
			Type:            WorkoutTypeFor(text(p, propSportType)),
			Name:            text(p, propActivityName),
			DurationMinutes: int(number(p, propMovingTime).IntPart() / 60),
			Calories:        int(number(p, propCalories).IntPart()),
		})
	}
	return out, nil
}

// ActivityProperties renders an activity the way the sync job stores it.
func ActivityProperties(activityID, name, sport, startLocal string, movingSeconds, calories int) domain.Properties {
	return domain.Properties{
		propActivityID:   activityID,
		propActivityName: name,
		propSportType:    sport,
		propStartDate:    startLocal,
		propMovingTime:   movingSeconds,
		propCalories:     calories,
	}
}
