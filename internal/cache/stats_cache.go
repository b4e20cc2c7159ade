package cache

import (
	"sync"
	"time"
)

// Clock abstracts time so staleness can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type statsEntry[V any] struct {
	value    V
	storedAt time.Time
}

// StatsCache is an in-process TTL cache for expensive aggregate queries. Entries older
// than the TTL are reported as missing; they are replaced on the next Set.
type StatsCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[string]statsEntry[V]
}

func NewStatsCache[V any](ttl time.Duration, clock Clock) *StatsCache[V] {
	if clock == nil {
		clock = SystemClock()
	}
	return &StatsCache[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]statsEntry[V]),
	}
}

// Get returns the value for key if it is still fresh.
func (c *StatsCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock.Now().Sub(entry.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *StatsCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = statsEntry[V]{value: value, storedAt: c.clock.Now()}
}

// Invalidate drops one key, or everything when no key is given.
func (c *StatsCache[V]) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(keys) == 0 {
		c.entries = make(map[string]statsEntry[V])
		return
	}
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// GetOrLoad returns the fresh value for key or stores the result of load.
func (c *StatsCache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}
