package cache

import (
	"context"
	"sync"
	"time"
)

type CacheItem struct {
	Value     interface{}
	ExpiresAt time.Time
}

// Cache is an in-process key store with per-key expiry. It satisfies dedup.Store
// but does not survive a restart.
type Cache struct {
	mu    sync.RWMutex
	items map[string]CacheItem
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type Option func(*Cache)

// WithClock replaces time.Now, so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		items: make(map[string]CacheItem),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCleanup drops expired items every interval until Close is called.
func (c *Cache) StartCleanup(interval time.Duration) {
	go c.cleanupLoop(interval)
}

func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheItem{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if !c.now().Before(item.ExpiresAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.ExpiresAt == item.ExpiresAt {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return item.Value, true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.Get(key)
	return ok, nil
}

func (c *Cache) SetEX(_ context.Context, key string, ttl time.Duration) error {
	c.Set(key, "1", ttl)
	return nil
}

func (c *Cache) Ping(context.Context) error { return nil }

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if !now.Before(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}
