/*
Package rules provides the Rules Store: cached, operator-edited knobs.

PURPOSE:
  Every threshold, bonus amount and rate the engines use is a Rule in the
  external store. This package reads them (through a 5 minute snapshot
  cache), exposes best-effort numeric lookups, and applies modifiers.

READS:
  All reads go through one snapshot keyed "all rules". A storage error on
  a read propagates, except in NumericValue / NumericOr where it is logged
  and the default returned.

WRITES:
  UpdateModifier recomputes CalculatedValue from BaseValue using the same
  "$"/"%" detection as the numeric parser, persists the rule, appends a
  Rule Changes audit record, and invalidates the cache.

MODIFIER SEMANTICS:
  A modifier is a percentage applied to the base, not compounded on top of
  the previous modifier. A zero modifier copies BaseValue verbatim, so
  ResetModifier always restores CalculatedValue == BaseValue.

EXAMPLE:
  base "$10", modifier 50   -> calculated "$15.00"
  base "60%", modifier -10  -> calculated "54%"
  base "3",   modifier 0    -> calculated "3"

SEE ALSO:
  - cache.go: TTL snapshot cache
  - domain/types.go: Rule, ParseNumeric
*/
package rules

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accountability-engine/domain"
)

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	repo  domain.RuleStore
	cache *Cache
	clock domain.Clock
}

func NewStore(repo domain.RuleStore, cache *Cache, clock domain.Clock) *Store {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if cache == nil {
		cache = NewCache(DefaultCacheTTL, clock)
	}
	return &Store{repo: repo, cache: cache, clock: clock}
}

// All returns every rule keyed by name.
func (s *Store) All(ctx context.Context) (map[string]domain.Rule, error) {
	if rules, ok := s.cache.Get(); ok {
		return rules, nil
	}

	list, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	rules := make(map[string]domain.Rule, len(list))
	for _, r := range list {
		rules[r.Name] = r
	}
	s.cache.Put(rules)
	return rules, nil
}

// GetRule returns nil (and no error) when the rule doesn't exist.
func (s *Store) GetRule(ctx context.Context, name string) (*domain.Rule, error) {
	rules, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := rules[name]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// NumericValue never fails: absent, unparsable or unreadable rules are 0.
func (s *Store) NumericValue(ctx context.Context, name string) decimal.Decimal {
	return s.NumericOr(ctx, name, decimal.Zero)
}

// NumericOr is NumericValue with a caller-supplied fallback.
func (s *Store) NumericOr(ctx context.Context, name string, fallback decimal.Decimal) decimal.Decimal {
	r, err := s.GetRule(ctx, name)
	if err != nil {
		log.Printf("[Rules] Error reading rule %s, using %s: %v", name, fallback, err)
		return fallback
	}
	if r == nil {
		return fallback
	}
	v, ok := domain.ParseNumeric(r.EffectiveValue())
	if !ok {
		return fallback
	}
	return v
}

// Exists reports whether a rule is defined. Read errors count as absent.
func (s *Store) Exists(ctx context.Context, name string) bool {
	r, err := s.GetRule(ctx, name)
	return err == nil && r != nil
}

// RulesByFrequency filters the snapshot.
func (s *Store) RulesByFrequency(ctx context.Context, f domain.Frequency) (map[string]domain.Rule, error) {
	rules, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Rule)
	for name, r := range rules {
		if r.Frequency == f {
			out[name] = r
		}
	}
	return out, nil
}

// =============================================================================
// MODIFIERS
// =============================================================================

// UpdatedRule describes the effect of a modifier change.
type UpdatedRule struct {
	Rule          domain.Rule
	PreviousValue string
	NewValue      string
	Reason        string
}

func (s *Store) UpdateModifier(ctx context.Context, name string, percent decimal.Decimal, reason string) (UpdatedRule, error) {
	if strings.TrimSpace(name) == "" {
		return UpdatedRule{}, &domain.ValidationError{Field: "rule_name", Message: "is required"}
	}

	// Writes always start from a fresh read.
	s.cache.Invalidate()
	r, err := s.GetRule(ctx, name)
	if err != nil {
		return UpdatedRule{}, err
	}
	if r == nil {
		return UpdatedRule{}, &domain.RuleNotFoundError{Name: name}
	}

	previous := r.EffectiveValue()
	updated := *r
	updated.ModifierPercent = percent
	updated.CalculatedValue = Calculate(r.BaseValue, percent)

	saved, err := s.repo.SaveRule(ctx, updated)
	s.cache.Invalidate()
	if err != nil {
		return UpdatedRule{}, err
	}

	change := domain.RuleChange{
		RuleName: name,
		Previous: previous,
		New:      saved.CalculatedValue,
		Modifier: percent,
		Reason:   reason,
		At:       domain.Today(s.clock),
	}
	if err := s.repo.AppendRuleChange(ctx, change); err != nil {
		// The rule itself is already saved; the audit row is best-effort.
		log.Printf("[Rules] Failed to record change for %s: %v", name, err)
	}

	log.Printf("[Rules] %s: %s -> %s (modifier %s%%, %s)", name, previous, saved.CalculatedValue, percent, reason)
	return UpdatedRule{Rule: saved, PreviousValue: previous, NewValue: saved.CalculatedValue, Reason: reason}, nil
}

func (s *Store) ResetModifier(ctx context.Context, name string) (UpdatedRule, error) {
	return s.UpdateModifier(ctx, name, decimal.Zero, "reset")
}

// Calculate applies percent to base, keeping base's "$" or "%" decoration.
func Calculate(base string, percent decimal.Decimal) string {
	if percent.IsZero() {
		return base
	}
	value, ok := domain.ParseNumeric(base)
	if !ok {
		return base
	}
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	adjusted := domain.Round2(value.Mul(factor))

	switch {
	case strings.Contains(base, "$"):
		return "$" + adjusted.StringFixed(2)
	case strings.Contains(base, "%"):
		return adjusted.String() + "%"
	default:
		return adjusted.String()
	}
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the payload behind GET /rules/status.
type Status struct {
	Count       int
	ByFrequency map[domain.Frequency][]domain.Rule
	Modified    []domain.Rule
	CacheAge    time.Duration
	Cached      bool
}

func (s *Store) Status(ctx context.Context) (Status, error) {
	rules, err := s.All(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{Count: len(rules), ByFrequency: make(map[domain.Frequency][]domain.Rule)}
	for _, r := range rules {
		st.ByFrequency[r.Frequency] = append(st.ByFrequency[r.Frequency], r)
		if !r.ModifierPercent.IsZero() {
			st.Modified = append(st.Modified, r)
		}
	}
	for f := range st.ByFrequency {
		list := st.ByFrequency[f]
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	sort.Slice(st.Modified, func(i, j int) bool { return st.Modified[i].Name < st.Modified[j].Name })
	st.CacheAge, st.Cached = s.cache.Age()
	return st, nil
}

func (st Status) String() string {
	return fmt.Sprintf("%d rules (%d modified)", st.Count, len(st.Modified))
}
