package idgen

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ticket:seq:"

// RedisCounter keeps sequences as Redis integers advanced with INCR.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter builds a counter over client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Increment implements CounterStore.
func (c *RedisCounter) Increment(ctx context.Context, areaID string) (int64, error) {
	return c.client.Incr(ctx, redisKeyPrefix+areaID).Result()
}
