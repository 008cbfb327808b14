// Package memcache is an in-process TTL-map implementation of
// cache.Cache, used as the default backend when no Redis endpoint is
// configured.
package memcache

import (
	"context"
	"sync"
	"time"

	"github.com/oceanbase/agentmem/pkg/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a mutex-guarded in-memory TTL cache with a background janitor
// that periodically sweeps expired entries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	stop chan struct{}
	once sync.Once
}

// New returns a Cache whose janitor sweeps expired entries every
// sweepInterval. A sweepInterval of 0 disables the background janitor;
// expired entries are still hidden from Get, just not actively reclaimed.
func New(sweepInterval time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.janitor(sweepInterval)
	}
	return c
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

// Get implements cache.Cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Delete implements cache.Cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Close stops the janitor goroutine, if running.
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

var _ cache.Cache = (*Cache)(nil)
