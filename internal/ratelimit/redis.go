// redis.go implements the shared Store on redis_rate's sliding-window
// limiter, for deployments running more than one server instance.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisStore counts request budgets in Redis so all instances share them.
type RedisStore struct {
	limiter *redis_rate.Limiter
}

// NewRedisStore creates a RedisStore on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{limiter: redis_rate.NewLimiter(client)}
}

// Take consumes one unit of budget for key.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	res, err := s.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: window,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Reset clears the counter for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.limiter.Reset(ctx, key)
}
