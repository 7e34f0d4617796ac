// Package cache implements a small in-process TTL cache used by Store to
// avoid repeated driver round-trips for hot, rarely-changing lookups.
package cache

import (
	"sync"
	"time"
)

// Config controls eviction behavior for a Cache.
type Config struct {
	// DefaultTTL is applied to entries set without an explicit TTL.
	DefaultTTL time.Duration
	// CleanupInterval controls how often expired entries are swept.
	CleanupInterval time.Duration
	// MaxItems bounds the cache size; 0 means unbounded.
	MaxItems int
	// OnEviction, if set, is called for every entry removed by the
	// cleanup goroutine (expiry) or by a MaxItems eviction.
	OnEviction func(key string, value any)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a mutex-protected map with background TTL expiry, grounded on
// the session-map-plus-cleanup-ticker idiom used for session lifecycle
// management elsewhere in this codebase.
type Cache struct {
	mu      sync.Mutex
	items   map[string]entry
	config  Config
	done    chan struct{}
	closeOn sync.Once
}

// New creates a Cache and starts its background cleanup goroutine.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	c := &Cache{
		items:  make(map[string]entry),
		config: config,
		done:   make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Set stores a value under key using the cache's DefaultTTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.config.DefaultTTL)
}

// SetTTL stores a value under key with an explicit TTL.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldestLocked()
		}
	}

	c.items[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.items, key)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, e.value)
		}
		return nil, false
	}
	return e.value, true
}

// Delete removes key from the cache, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of entries currently held, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the background cleanup goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOn.Do(func() {
		close(c.done)
	})
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			if c.config.OnEviction != nil {
				c.config.OnEviction(key, e.value)
			}
		}
	}
}

// evictOldestLocked removes one arbitrary entry to make room under MaxItems.
// Map iteration order is randomized by the runtime, which is an acceptable
// approximation of LRU for a bounded hot-path cache.
// Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	for key, e := range c.items {
		delete(c.items, key)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, e.value)
		}
		return
	}
}
