package documents

import (
	"context"
	"time"

	"github.com/warp/accountability-engine/domain"
)

const (
	propRunKind      = "Kind"
	propRunPeriod    = "Period"
	propRunStatus    = "Status"
	propRunStarted   = "Started At"
	propRunCompleted = "Completed At"
	propRunError     = "Error"
	propRunSummary   = "Summary"
)

// RunRepository implements domain.RunStore.
type RunRepository struct {
	docs domain.DocumentStore
}

func (r *RunRepository) LatestRun(ctx context.Context, kind domain.RunKind, period string) (*domain.ReconciliationRun, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionRuns,
		domain.Where(propRunKind, domain.OpEquals, string(kind)).And(propRunPeriod, domain.OpEquals, period))
	if err != nil {
		return nil, domain.ReadError(domain.CollectionRuns, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	run := runFromDocument(docs[len(docs)-1])
	return &run, nil
}

// SaveRun creates the run when it has no id, otherwise updates it.
func (r *RunRepository) SaveRun(ctx context.Context, run domain.ReconciliationRun) (domain.ReconciliationRun, error) {
	props := domain.Properties{
		propRunKind:    string(run.Kind),
		propRunPeriod:  run.Period,
		propRunStatus:  string(run.Status),
		propRunStarted: formatTime(run.StartedAt),
		propRunError:   run.Error,
		propRunSummary: run.Summary,
	}
	if !run.CompletedAt.IsZero() {
		props[propRunCompleted] = formatTime(run.CompletedAt)
	}

	var (
		doc domain.Document
		err error
	)
	if run.ID == "" {
		doc, err = r.docs.Create(ctx, domain.CollectionRuns, props)
	} else {
		doc, err = r.docs.Update(ctx, domain.CollectionRuns, run.ID, props)
	}
	if err != nil {
		return domain.ReconciliationRun{}, domain.WriteError(domain.CollectionRuns, err)
	}
	return runFromDocument(doc), nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.ReconciliationRun, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionRuns, domain.Filter{})
	if err != nil {
		return nil, domain.ReadError(domain.CollectionRuns, err)
	}
	var runs []domain.ReconciliationRun
	for i := len(docs) - 1; i >= 0; i-- {
		runs = append(runs, runFromDocument(docs[i]))
		if limit > 0 && len(runs) == limit {
			break
		}
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func runFromDocument(doc domain.Document) domain.ReconciliationRun {
	p := doc.Properties
	return domain.ReconciliationRun{
		ID:          doc.ID,
		Kind:        domain.RunKind(str(p, propRunKind)),
		Period:      str(p, propRunPeriod),
		Status:      domain.RunStatus(str(p, propRunStatus)),
		StartedAt:   parseTime(str(p, propRunStarted)),
		CompletedAt: parseTime(str(p, propRunCompleted)),
		Error:       str(p, propRunError),
		Summary:     str(p, propRunSummary),
	}
}
