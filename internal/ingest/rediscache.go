package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "jobsift:seen:"

// RedisCache implements Cache on Redis with a per-key TTL, so re-crawls of
// stable listings skip the store round trip.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing Redis client. A zero ttl keeps keys for
// a week.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Seen reports whether the URL was marked within the TTL.
func (c *RedisCache) Seen(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, seenKeyPrefix+url).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records the URL, refreshing its TTL.
func (c *RedisCache) MarkSeen(ctx context.Context, url string) error {
	return c.client.Set(ctx, seenKeyPrefix+url, 1, c.ttl).Err()
}
