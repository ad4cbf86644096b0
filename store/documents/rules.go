package documents

import (
	"context"

	"github.com/warp/accountability-engine/domain"
)

const (
	propRuleName        = "Name"
	propRuleType        = "Type"
	propRuleFrequency   = "Frequency"
	propRulePunishable  = "Punishable"
	propRuleBase        = "Base Value"
	propRuleModifier    = "Modifier %"
	propRuleCalculated  = "Calculated Value"
	propRuleDescription = "Description"

	propChangeRule     = "Rule"
	propChangePrevious = "Previous"
	propChangeNew      = "New"
	propChangeReason   = "Reason"
	propChangeDate     = "Date"
)

// RuleRepository implements domain.RuleStore.
type RuleRepository struct {
	docs domain.DocumentStore
}

func (r *RuleRepository) ListRules(ctx context.Context) ([]domain.Rule, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionRules, domain.Filter{})
	if err != nil {
		return nil, domain.ReadError(domain.CollectionRules, err)
	}
	rules := make([]domain.Rule, 0, len(docs))
	for _, d := range docs {
		rules = append(rules, ruleFromDocument(d))
	}
	return rules, nil
}

// SaveRule creates the rule when it has no id, otherwise updates it.
func (r *RuleRepository) SaveRule(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	props := ruleProperties(rule)
	if rule.ID == "" {
		doc, err := r.docs.Create(ctx, domain.CollectionRules, props)
		if err != nil {
			return domain.Rule{}, domain.WriteError(domain.CollectionRules, err)
		}
		return ruleFromDocument(doc), nil
	}
	doc, err := r.docs.Update(ctx, domain.CollectionRules, rule.ID, props)
	if err != nil {
		return domain.Rule{}, domain.WriteError(domain.CollectionRules, err)
	}
	return ruleFromDocument(doc), nil
}

func (r *RuleRepository) AppendRuleChange(ctx context.Context, change domain.RuleChange) error {
	_, err := r.docs.Create(ctx, domain.CollectionRuleChanges, domain.Properties{
		propChangeRule:     change.RuleName,
		propChangePrevious: change.Previous,
		propChangeNew:      change.New,
		propRuleModifier:   money(change.Modifier),
		propChangeReason:   change.Reason,
		propChangeDate:     change.At.String(),
	})
	if err != nil {
		return domain.WriteError(domain.CollectionRuleChanges, err)
	}
	return nil
}

func ruleProperties(rule domain.Rule) domain.Properties {
	return domain.Properties{
		propRuleName:        rule.Name,
		propRuleType:        string(rule.Type),
		propRuleFrequency:   string(rule.Frequency),
		propRulePunishable:  rule.Punishable,
		propRuleBase:        rule.BaseValue,
		propRuleModifier:    money(rule.ModifierPercent),
		propRuleCalculated:  rule.CalculatedValue,
		propRuleDescription: rule.Description,
	}
}

func ruleFromDocument(d domain.Document) domain.Rule {
	p := d.Properties
	return domain.Rule{
		ID:              d.ID,
		Name:            str(p, propRuleName),
		Type:            domain.RuleType(str(p, propRuleType)),
		Frequency:       domain.Frequency(str(p, propRuleFrequency)),
		Punishable:      boolean(p, propRulePunishable),
		BaseValue:       str(p, propRuleBase),
		ModifierPercent: num(p, propRuleModifier),
		CalculatedValue: str(p, propRuleCalculated),
		Description:     str(p, propRuleDescription),
	}
}
