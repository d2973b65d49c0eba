package cache

import "time"

// Cache is a keyed store of values that expire after a time to live.
type Cache[T any] interface {
	Get(key string) (T, bool)
	// Set stores value under key. A zero ttl uses the cache default; the cost is
	// charged against the cache capacity until the item is evicted.
	Set(key string, value T, cost uint64, ttl time.Duration) error
	Delete(key string)
	Close()
}
