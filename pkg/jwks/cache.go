package jwks

import (
	"sync"
	"time"
)

// keySetCache holds at most one key set: the whole document is cached, not individual keys.
type keySetCache struct {
	maxAge time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	keys      []SigningKey
	fetchedAt time.Time
}

func newKeySetCache(maxAge time.Duration) *keySetCache {
	return &keySetCache{
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (c *keySetCache) Get() ([]SigningKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.keys == nil || !c.now().Before(c.fetchedAt.Add(c.maxAge)) {
		return nil, false
	}

	return c.keys, true
}

func (c *keySetCache) Set(keys []SigningKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if keys == nil {
		keys = []SigningKey{}
	}

	c.keys = keys
	c.fetchedAt = c.now()
}

func (c *keySetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keys = nil
	c.fetchedAt = time.Time{}
}

func (c *keySetCache) snapshot() (int, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.keys), c.fetchedAt
}
