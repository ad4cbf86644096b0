package domain

import (
	"math/rand"
	"sync"
)

// =============================================================================
// BATCH RESULT - Sequential best-effort batches
// =============================================================================

// BatchFailure is one item that could not be processed.
type BatchFailure[T any] struct {
	Item  T
	Error error
}

// BatchResult separates what was committed from what was skipped. Batches
// run sequentially, so Succeeded is always a deterministic subset in input
// order.
type BatchResult[T any] struct {
	Succeeded []T
	Failed    []BatchFailure[T]
}

func (b *BatchResult[T]) Ok(item T) { b.Succeeded = append(b.Succeeded, item) }

func (b *BatchResult[T]) Fail(item T, err error) {
	b.Failed = append(b.Failed, BatchFailure[T]{Item: item, Error: err})
}

func (b BatchResult[T]) HasFailures() bool { return len(b.Failed) > 0 }

// =============================================================================
// RANDOM SOURCE
// =============================================================================

// Random picks indexes. Injected wherever assignment is randomized.
type Random interface {
	Intn(n int) int
}

// LockedRand is a seedable Random safe for concurrent handlers.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandom(seed int64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *LockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
