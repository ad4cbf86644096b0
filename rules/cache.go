package rules

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/warp/accountability-engine/domain"
)

const (
	// DefaultCacheTTL is how long a rules snapshot is served without a read.
	DefaultCacheTTL = 5 * time.Minute

	allRulesKey = "all_rules"
)

type cacheEntry struct {
	rules    map[string]domain.Rule
	storedAt time.Time
}

// Cache holds the whole-rules snapshot. It is an explicit object so each
// Store owns its cache and tests can drive expiry through the clock.
type Cache struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	clock domain.Clock
}

// NewCache returns an empty cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCache(ttl time.Duration, clock domain.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	// lru.New only errors on non-positive size.
	c, _ := lru.New[string, cacheEntry](1)
	return &Cache{lru: c, ttl: ttl, clock: clock}
}

// Get returns the snapshot if it is younger than the TTL.
func (c *Cache) Get() (map[string]domain.Rule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(allRulesKey)
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.storedAt) >= c.ttl {
		c.lru.Remove(allRulesKey)
		return nil, false
	}
	return entry.rules, true
}

func (c *Cache) Put(rules map[string]domain.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(allRulesKey, cacheEntry{rules: rules, storedAt: c.clock.Now()})
}

// Invalidate drops the snapshot. Every write must call this.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(allRulesKey)
}

// Age reports how old the current snapshot is.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Peek(allRulesKey)
	if !ok {
		return 0, false
	}
	return c.clock.Now().Sub(entry.storedAt), true
}
