package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounter backs the limiter with a shared Redis instance so counts
// hold across process replicas.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps an existing Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr atomically increments the key.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on the key.
func (c *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}
