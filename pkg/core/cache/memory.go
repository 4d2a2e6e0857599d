package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	answer    string
	createdAt time.Time
}

// MemoryCache is an in-process Cache used when no database is configured and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Purger = (*MemoryCache)(nil)
)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || Expired(e.createdAt, c.now(), c.ttl) {
		return "", false, nil
	}
	return e.answer, true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{answer: answer, createdAt: c.now()}
	return nil
}

func (c *MemoryCache) PurgeExpired(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var n int64
	for k, e := range c.entries {
		if Expired(e.createdAt, now, c.ttl) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, fresh or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
