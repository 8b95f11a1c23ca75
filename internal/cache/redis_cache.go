package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "analytics:"

type RedisAnalyticsCache struct {
	client *redis.Client
}

func NewRedisAnalyticsCache(addr string, password string, db int) *RedisAnalyticsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisAnalyticsCache{client: client}
}

func (c *RedisAnalyticsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAnalyticsCache) Close() error {
	return c.client.Close()
}

func (c *RedisAnalyticsCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisAnalyticsCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}

// Invalidate is best effort; a missed delete just means the entry ages out
// at its TTL.
func (c *RedisAnalyticsCache) Invalidate(ctx context.Context, storeID string) {
	for _, scope := range []string{storeID, "all"} {
		iter := c.client.Scan(ctx, 0, keyPrefix+scope+":*", 64).Iterator()
		for iter.Next(ctx) {
			_ = c.client.Del(ctx, iter.Val()).Err()
		}
	}
}
