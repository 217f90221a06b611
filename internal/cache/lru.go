package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTL provides a thread-safe, size-bounded LRU cache with per-entry
// expiration. It backs read paths for immutable metadata (bandit arm lists
// are fixed at experiment creation, so cached reads can never go stale
// before the TTL evicts them).
type TTL[K comparable, V any] struct {
	mu     sync.RWMutex
	cache  *lru.Cache[K, *entry[V]]
	ttl    time.Duration
	hits   uint64
	misses uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a cache holding at most size entries. ttl of 0 disables
// expiration.
func NewTTL[K comparable, V any](size int, ttl time.Duration) (*TTL[K, V], error) {
	c, err := lru.New[K, *entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[K, V]{cache: c, ttl: ttl}, nil
}

// Get returns the cached value if present and unexpired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache.Get(key)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.cache.Remove(key)
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.cache.Add(key, &entry[V]{value: value, expiresAt: expiresAt})
}

// Remove drops a key.
func (c *TTL[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Stats reports hit/miss counters and current size.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func (c *TTL[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.cache.Len()}
}
