package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"shopfront-backend/pkg/cache"
)

type memoryCache struct {
	store *gocache.Cache
}

var _ cache.CacheService = (*memoryCache)(nil)

// NewMemoryCache returns a go-cache backed CacheService. Expired entries are
// swept every cleanupInterval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) cache.CacheService {
	return &memoryCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *memoryCache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *memoryCache) Delete(key string) {
	c.store.Delete(key)
}
