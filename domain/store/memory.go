// Package store provides an in-memory DocumentStore.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/accountability-engine/domain"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[string][]*domain.Document
	faults      map[fault]faultRule
	now         func() time.Time
}

type fault struct {
	Collection string
	Op         domain.StorageOp
}

// faultRule fails calls after skipping the first `after` of them.
type faultRule struct {
	err   error
	after int
	seen  int
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]*domain.Document),
		faults:      make(map[fault]faultRule),
		now:         time.Now,
	}
}

// FailOn makes every op on collection return err. Used by tests to simulate
// an unreachable document store.
func (m *Memory) FailOn(collection string, op domain.StorageOp, err error) {
	m.FailAfter(collection, op, 0, err)
}

// FailAfter lets the first n calls through, then fails.
func (m *Memory) FailAfter(collection string, op domain.StorageOp, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[fault{Collection: collection, Op: op}] = faultRule{err: err, after: n}
}

// ClearFaults removes all injected failures.
func (m *Memory) ClearFaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = make(map[fault]faultRule)
}

func (m *Memory) checkFaultLocked(collection string, op domain.StorageOp) error {
	k := fault{Collection: collection, Op: op}
	rule, ok := m.faults[k]
	if !ok {
		return nil
	}
	rule.seen++
	m.faults[k] = rule
	if rule.seen <= rule.after {
		return nil
	}
	return rule.err
}

func (m *Memory) Query(_ context.Context, collection string, filter domain.Filter) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFaultLocked(collection, domain.OpRead); err != nil {
		return nil, err
	}

	var result []domain.Document
	for _, doc := range m.collections[collection] {
		if filter.Matches(doc.Properties) {
			result = append(result, copyDocument(doc))
		}
	}
	return result, nil
}

func (m *Memory) Create(_ context.Context, collection string, props domain.Properties) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFaultLocked(collection, domain.OpWrite); err != nil {
		return domain.Document{}, err
	}

	now := m.now()
	doc := &domain.Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Properties: copyProperties(props),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.collections[collection] = append(m.collections[collection], doc)
	return copyDocument(doc), nil
}

func (m *Memory) Update(_ context.Context, collection, id string, props domain.Properties) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFaultLocked(collection, domain.OpWrite); err != nil {
		return domain.Document{}, err
	}

	for _, doc := range m.collections[collection] {
		if doc.ID != id {
			continue
		}
		for k, v := range props {
			doc.Properties[k] = v
		}
		doc.UpdatedAt = m.now()
		return copyDocument(doc), nil
	}
	return domain.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
}

// Len returns the number of documents in a collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func copyDocument(doc *domain.Document) domain.Document {
	out := *doc
	out.Properties = copyProperties(doc.Properties)
	return out
}

func copyProperties(props domain.Properties) domain.Properties {
	out := make(domain.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
