package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"shopfront-backend/internal/domain"
)

const dedupKeyPrefix = "webhook:event:"

// RedisDeduplicator claims processor event ids with SET NX so every replica
// of the service agrees on which deliveries were seen.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.EventDeduplicator = (*RedisDeduplicator)(nil)

func NewRedisDeduplicator(client *redis.Client, ttl time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+id, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis setnx")
	}
	return ok, nil
}

func (d *RedisDeduplicator) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupKeyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

// MemoryDeduplicator is the single-instance fallback used when no Redis is configured.
type MemoryDeduplicator struct {
	store *gocache.Cache
	ttl   time.Duration
}

var _ domain.EventDeduplicator = (*MemoryDeduplicator)(nil)

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{store: gocache.New(ttl, ttl/4+time.Minute), ttl: ttl}
}

func (d *MemoryDeduplicator) Claim(_ context.Context, id string) (bool, error) {
	// Add fails when the key is present and not expired
	return d.store.Add(id, struct{}{}, d.ttl) == nil, nil
}

func (d *MemoryDeduplicator) Release(_ context.Context, id string) error {
	d.store.Delete(id)
	return nil
}
