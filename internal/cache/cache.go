package cache

import (
	"sync"
	"time"
)

const (
	defaultTTL        = 5 * time.Second
	defaultMaxEntries = 1024
)

// TTL is an in-process map whose entries expire after a fixed duration.
// Once it holds maxEntries live keys, Set evicts expired entries first and
// then the entry closest to expiry.
type TTL[V any] struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	m          map[string]entry[V]
	now        func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[V any](ttl time.Duration, maxEntries int) *TTL[V] {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &TTL[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		m:          make(map[string]entry[V]),
		now:        time.Now,
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed the key
		if cur, ok := c.m[key]; ok && now.After(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

func (c *TTL[V]) Set(key string, val V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.m[key]; !exists && len(c.m) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.m[key] = entry[V]{val: val, exp: now.Add(c.ttl)}
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTL[V]) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestExp time.Time
	)

	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
			continue
		}
		if oldestKey == "" || e.exp.Before(oldestExp) {
			oldestKey, oldestExp = k, e.exp
		}
	}

	if len(c.m) >= c.maxEntries && oldestKey != "" {
		delete(c.m, oldestKey)
	}
}
