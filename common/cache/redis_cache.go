package cache

import (
	"context"
	"time"

	"github.com/orbitalflow/engine/common/redis"
)

// RedisCache implements Cache over the shared Redis client, selected by
// CacheConfig.Backend == "redis" instead of the default MemoryCache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetWithExpiry(ctx, key, string(value), ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, key)
}

func (c *RedisCache) Close() error {
	return nil
}
