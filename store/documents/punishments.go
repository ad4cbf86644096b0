package documents

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propPunName             = "Name"
	propPunType             = "Type"
	propPunCategory         = "Category"
	propPunMinutes          = "Minutes"
	propPunDueDate          = "Due Date"
	propPunStatus           = "Status"
	propPunReason           = "Reason"
	propPunRoute            = "Route"
	propPunViolationCount   = "Violation Count"
	propPunEscalation       = "Escalation Level"
	propPunWeekStart        = "Week Start"
	propPunWeekEnd          = "Week End"
	propPunSavingsOriginal  = "Savings Rate Original"
	propPunSavingsNew       = "Savings Rate New"
	propPunEarningsOriginal = "Earnings Requirement Original"
	propPunEarningsNew      = "Earnings Requirement New"
	propPunTargetStart      = "Target Week Start"
	propPunTargetEnd        = "Target Week End"
	propPunCompletedDate    = "Completed Date"
	propPunCompletedBy      = "Completed By"
)

// PunishmentRepository implements domain.PunishmentStore.
type PunishmentRepository struct {
	docs domain.DocumentStore
}

func (r *PunishmentRepository) ListPunishments(ctx context.Context, f domain.PunishmentFilter) ([]domain.Punishment, error) {
	filter := domain.Filter{}
	if f.Status != "" {
		filter = filter.And(propPunStatus, domain.OpEquals, string(f.Status))
	}
	if f.Category != "" {
		filter = filter.And(propPunCategory, domain.OpEquals, string(f.Category))
	}
	if !f.DateAssigned.IsZero() {
		filter = filter.And(propDateAssigned, domain.OpEquals, f.DateAssigned.String())
	}
	if f.NameContains != "" {
		filter = filter.And(propPunName, domain.OpContains, f.NameContains)
	}
	if !f.WeekStart.IsZero() {
		filter = filter.And(propPunWeekStart, domain.OpEquals, f.WeekStart.String())
	}

	docs, err := r.docs.Query(ctx, domain.CollectionPunishments, filter)
	if err != nil {
		return nil, domain.ReadError(domain.CollectionPunishments, err)
	}
	out := make([]domain.Punishment, 0, len(docs))
	for _, d := range docs {
		out = append(out, punishmentFromDocument(d))
	}
	return out, nil
}

func (r *PunishmentRepository) CreatePunishment(ctx context.Context, p domain.Punishment) (domain.Punishment, error) {
	doc, err := r.docs.Create(ctx, domain.CollectionPunishments, punishmentProperties(p))
	if err != nil {
		return domain.Punishment{}, domain.WriteError(domain.CollectionPunishments, err)
	}
	return punishmentFromDocument(doc), nil
}

func (r *PunishmentRepository) UpdatePunishment(ctx context.Context, p domain.Punishment) error {
	_, err := r.docs.Update(ctx, domain.CollectionPunishments, p.ID, domain.Properties{
		propPunStatus:        string(p.Status),
		propPunCompletedDate: p.CompletedDate.String(),
		propPunCompletedBy:   p.CompletedBy,
	})
	if err != nil {
		return domain.WriteError(domain.CollectionPunishments, err)
	}
	return nil
}

func punishmentProperties(p domain.Punishment) domain.Properties {
	props := domain.Properties{
		propPunName:           p.Name,
		propPunType:           p.Type,
		propPunCategory:       string(p.Category),
		propPunMinutes:        p.Minutes,
		propDateAssigned:      p.DateAssigned.String(),
		propPunDueDate:        p.DueDate.String(),
		propPunStatus:         string(p.Status),
		propPunReason:         p.Reason,
		propPunRoute:          p.Route,
		propPunViolationCount: p.ViolationCount,
		propPunEscalation:     p.EscalationLevel,
		propPunWeekStart:      p.WeekStart.String(),
		propPunWeekEnd:        p.WeekEnd.String(),
		propPunCompletedDate:  p.CompletedDate.String(),
		propPunCompletedBy:    p.CompletedBy,
	}
	switch p.Category {
	case domain.CategorySavings:
		props[propPunSavingsOriginal] = money(p.SavingsRateOriginal)
		props[propPunSavingsNew] = money(p.SavingsRateNew)
		props[propPunTargetStart] = p.TargetWeekStart.String()
		props[propPunTargetEnd] = p.TargetWeekEnd.String()
	case domain.CategoryEarnings:
		props[propPunEarningsOriginal] = money(p.EarningsRequirementOriginal)
		props[propPunEarningsNew] = money(p.EarningsRequirementNew)
		props[propPunTargetStart] = p.TargetWeekStart.String()
		props[propPunTargetEnd] = p.TargetWeekEnd.String()
	}
	return props
}

func punishmentFromDocument(doc domain.Document) domain.Punishment {
	p := doc.Properties
	return domain.Punishment{
		ID:              doc.ID,
		Name:            str(p, propPunName),
		Type:            str(p, propPunType),
		Category:        domain.PunishmentCategory(str(p, propPunCategory)),
		Minutes:         integer(p, propPunMinutes),
		DateAssigned:    date(p, propDateAssigned, propDateAssignedFix),
		DueDate:         date(p, propPunDueDate),
		Status:          domain.PunishmentStatus(str(p, propPunStatus)),
		Reason:          str(p, propPunReason),
		Route:           integer(p, propPunRoute),
		ViolationCount:  integer(p, propPunViolationCount),
		EscalationLevel: integer(p, propPunEscalation),
		WeekStart:       date(p, propPunWeekStart),
		WeekEnd:         date(p, propPunWeekEnd),

		SavingsRateOriginal:         num(p, propPunSavingsOriginal),
		SavingsRateNew:              num(p, propPunSavingsNew),
		EarningsRequirementOriginal: num(p, propPunEarningsOriginal),
		EarningsRequirementNew:      num(p, propPunEarningsNew),
		TargetWeekStart:             date(p, propPunTargetStart),
		TargetWeekEnd:               date(p, propPunTargetEnd),

		CompletedDate: date(p, propPunCompletedDate),
		CompletedBy:   str(p, propPunCompletedBy),
	}
}
