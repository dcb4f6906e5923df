package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("blueprint/internal/llm")

// slidingWindowScript trims the window, counts, and records the call only
// when under the limit, as one atomic step.
// KEYS[1] key; ARGV now_ms, window_start_ms, limit, ttl_ms, member.
// Returns {allowed, count_before}.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {1, count}
`)

// RedisRateLimiter is a sliding-window limiter shared by every replica of
// the service, so a provider quota holds across processes.
type RedisRateLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	poll   time.Duration
}

func NewRedisRateLimiter(rdb redis.UniversalClient, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = "blueprint:ratelimit:"
	}
	return &RedisRateLimiter{rdb: rdb, prefix: prefix, poll: 100 * time.Millisecond}
}

// Allow records a request under key if fewer than limit requests were
// recorded in the trailing window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow")
	span.SetAttributes(
		attribute.String("ratelimit.key", key),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.rdb, []string{l.prefix + key},
		now, now-window.Milliseconds(), limit, window.Milliseconds()*2, uuid.NewString()).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("ratelimit: %w", err)
	}

	allowed := res[0] == 1
	span.SetAttributes(
		attribute.Int64("ratelimit.current_count", res[1]),
		attribute.Bool("ratelimit.allowed", allowed),
	)
	return allowed, nil
}

// For returns a Limiter admitting at most limit calls per window for key.
func (l *RedisRateLimiter) For(key string, limit int, window time.Duration) Limiter {
	return &redisKeyLimiter{parent: l, key: key, limit: limit, window: window}
}

type redisKeyLimiter struct {
	parent *RedisRateLimiter
	key    string
	limit  int
	window time.Duration
}

// Acquire polls until the window admits the call.
func (k *redisKeyLimiter) Acquire(ctx context.Context) error {
	if k.limit <= 0 {
		return nil
	}
	for {
		ok, err := k.parent.Allow(ctx, k.key, k.limit, k.window)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.parent.poll):
		}
	}
}
