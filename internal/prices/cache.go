package prices

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache memoizes fetched price history keyed by (ticker, date-range) so
// repeated dashboard interactions do not trigger redundant network round
// trips. Entries expire after a TTL; price history for a closed range only
// changes on upstream restatements, so hours-long TTLs are fine.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// MemoryCache is the in-process TTL cache used when no Redis address is
// configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	hits   int64
	misses int64
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached value if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		c.mu.Lock()
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.value, true
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Stats returns hit/miss counters for metrics.
func (c *MemoryCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// RedisCache backs the memoization with Redis so multiple dashboard
// processes share one fetch. Failures degrade to cache misses; the caller
// refetches from the upstream provider.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the given Redis address.
func NewRedisCache(addr string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "macrorisk:prices:",
	}
}

// Get returns the cached value if Redis holds it.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("redis get failed, treating as miss")
		}
		return nil, false
	}
	return val, true
}

// Set stores a value with the given TTL; errors are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("redis set failed")
	}
}
