package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally records in one round trip so
// concurrent instances cannot both admit the max-th request.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] max, ARGV[4] member
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
if count >= max then
  return 1
end

redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 0
`)

// RedisBackend shares limiter state between instances through Redis.
type RedisBackend struct {
	redis redis.UniversalClient

	// Now is the clock used for window scores.
	Now func() time.Time
}

// NewRedisBackend creates a [RedisBackend] on the given client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{
		redis: client,
		Now:   time.Now,
	}
}

// CheckRateLimit implements [Backend] with a sorted set scored by request time.
func (r *RedisBackend) CheckRateLimit(ctx context.Context, key string, window time.Duration, max int) (bool, error) {
	now := r.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	blocked, err := slidingWindowScript.Run(ctx, r.redis, []string{key},
		now, window.Milliseconds(), max, member).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return blocked == 1, nil
}

// IsInCooldown implements [Backend]. SET NX PX stamps the key only when no younger
// stamp exists, which matches the in-memory admit-then-stamp behaviour.
func (r *RedisBackend) IsInCooldown(ctx context.Context, key string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return false, nil
	}

	ok, err := r.redis.SetNX(ctx, key, r.Now().UnixMilli(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return !ok, nil
}
