package basic

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bacalhau-project/simverify/pkg/cache"
)

type BasicCache[T any] struct {
	mu               sync.RWMutex
	items            map[string]CacheItem[T]
	cost             uint64
	maxCost          uint64
	defaultTTL       time.Duration
	clock            clock.Clock
	closer           chan struct{}
	closeOnce        sync.Once
	evictionFunction EvictItemFunc
}

type CacheItem[T any] struct {
	contents  T
	cost      uint64
	expiresAt time.Time
}

func NewCache[T any](options ...Option) (*BasicCache[T], error) {
	// initialize config with default values (these could be constants).
	config := &Config{
		maxCost:          1000,
		cleanupFrequency: time.Hour,
		defaultTTL:       time.Hour,
		clock:            clock.New(),
		evictionFunction: func(key string, cost uint64, expiresAt time.Time, now time.Time) bool {
			return !expiresAt.IsZero() && !expiresAt.After(now)
		},
	}

	// override defaults with passed options.
	for _, opt := range options {
		opt(config)
	}

	c := &BasicCache[T]{
		items:            make(map[string]CacheItem[T]),
		maxCost:          config.maxCost,
		defaultTTL:       config.defaultTTL,
		clock:            config.clock,
		closer:           make(chan struct{}),
		evictionFunction: config.evictionFunction,
	}

	go c.cleanup(config.cleanupFrequency)
	return c, nil
}

// Get returns the value stored under key. Items past their expiry are never
// returned, even before the cleanup loop has evicted them.
func (c *BasicCache[T]) Get(key string) (T, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	result, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return *new(T), false
	}
	if !c.evictionFunction(key, result.cost, result.expiresAt, now) {
		return result.contents, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// the item may have been replaced since the read lock was released
	if current, ok := c.items[key]; ok && c.evictionFunction(key, current.cost, current.expiresAt, now) {
		c.cost -= current.cost
		delete(c.items, key)
	}
	return *new(T), false
}

func (c *BasicCache[T]) Set(key string, value T, cost uint64, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	item := CacheItem[T]{
		contents:  value,
		cost:      cost,
		expiresAt: c.clock.Now().Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var replaced uint64
	if old, ok := c.items[key]; ok {
		replaced = old.cost
	}
	if c.cost-replaced+cost > c.maxCost {
		return cache.ErrCacheTooCostly
	}
	c.cost = c.cost - replaced + cost
	c.items[key] = item
	return nil
}

func (c *BasicCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok {
		c.cost -= item.cost
		delete(c.items, key)
	}
}

func (c *BasicCache[T]) Close() {
	c.closeOnce.Do(func() { close(c.closer) })
}

func (c *BasicCache[T]) cleanup(frequency time.Duration) {
	ticker := c.clock.Ticker(frequency)
	defer ticker.Stop()
	for {
		select {
		case <-c.closer:
			return
		case <-ticker.C:
			c.evict()
		}
	}
}

func (c *BasicCache[T]) evict() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if c.evictionFunction(key, item.cost, item.expiresAt, now) {
			delete(c.items, key)
			c.cost -= item.cost
		}
	}
}

// compile time check whether the BasicCache implements the Cache interface.
var _ cache.Cache[string] = (*BasicCache[string])(nil)
