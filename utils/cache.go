package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PageCache stores rendered page bodies for a fixed window. Implementations
// must serve the cached bytes unchanged until the entry expires or Clear is
// called; writes to the underlying store never invalidate an entry early.
type PageCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Clear()
}

// NewPageCache picks the Redis-backed cache when Redis answered the boot
// ping, and the in-process cache otherwise.
func NewPageCache(prefix string) PageCache {
	if RedisHealthy() {
		return NewRedisPageCache(GetRedis(), prefix)
	}
	return NewMemoryPageCache()
}

// RedisPageCache keeps pages in Redis under a common key prefix so that
// Clear only touches its own entries.
type RedisPageCache struct {
	client *redis.Client
	prefix string
}

// NewRedisPageCache creates a PageCache over the given client and key prefix.
func NewRedisPageCache(client *redis.Client, prefix string) *RedisPageCache {
	return &RedisPageCache{client: client, prefix: prefix}
}

// Get returns the cached bytes for key, if present and unexpired.
func (c *RedisPageCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil && Sugar != nil {
			Sugar.Debugf("page cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// Set stores value under key for ttl.
func (c *RedisPageCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("page cache set failed key=%s err=%v", key, err)
		}
	}
}

// Clear deletes every key under the cache prefix using SCAN, the only way to
// force freshness before an entry's window expires.
func (c *RedisPageCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // bound rounds to avoid long loops
		keys, cur, err := c.client.Scan(ctx, cursor, c.prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryPageCache is a process-local PageCache used when Redis is not
// reachable (single-instance only).
type MemoryPageCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryPageCache creates an empty in-process cache.
func NewMemoryPageCache() *MemoryPageCache {
	return &MemoryPageCache{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

// Get returns the cached bytes for key, if present and unexpired.
func (c *MemoryPageCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key for ttl.
func (c *MemoryPageCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *MemoryPageCache) Clear() {
	c.mu.Lock()
	c.entries = map[string]memoryEntry{}
	c.mu.Unlock()
}
