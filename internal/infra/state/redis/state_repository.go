package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStateRepository holds the small pieces of shared mutable state that
// live outside the relational store: the per-period call-number counter and
// the rate-limit counters.
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository creates a RedisStateRepository.
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "dc:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisStateRepository) callNumberKey(period string) string {
	return fmt.Sprintf("%scallno:%s", r.keyPrefix, period)
}

// NextCallNumber atomically allocates the next call number within period.
// INCR guarantees monotonic, gap-free allocation across concurrent creators.
func (r *RedisStateRepository) NextCallNumber(ctx context.Context, period string) (int64, error) {
	key := r.callNumberKey(period)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: increment call number for period %s on key %s: %w", period, key, err)
	}
	// Counters for past periods are never read again; let them age out.
	r.client.Expire(ctx, key, 90*24*time.Hour)
	return seq, nil
}

// CheckRateLimit increments the counter behind key and reports whether the
// caller exceeded limit within duration.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
