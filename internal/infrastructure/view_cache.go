package infrastructure

import (
	"context"
	"sync"
	"time"

	"kpidash/internal/domain"
)

var never = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is the in-process domain.ViewCache used when no Redis address
// is configured. Expired entries are dropped lazily on read and on Set.
type MemoryCache struct {
	entries map[string]cacheEntry
	maxSize int
	mutex   sync.RWMutex
	now     func() time.Time
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize < 1 {
		maxSize = 256
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	entry, ok := c.entries[key]
	c.mutex.RUnlock()

	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, domain.ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores value; a zero ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if len(c.entries) >= c.maxSize {
		c.evict(now)
	}

	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

// evict drops expired entries, then the one expiring soonest if the cache
// is still full. Caller holds the write lock.
func (c *MemoryCache) evict(now time.Time) {
	for k, e := range c.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxSize {
		return
	}
	var victim string
	var soonest time.Time
	for k, e := range c.entries {
		exp := e.expiresAt
		if exp.IsZero() {
			exp = never
		}
		if victim == "" || exp.Before(soonest) {
			victim, soonest = k, exp
		}
	}
	delete(c.entries, victim)
}

func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}
