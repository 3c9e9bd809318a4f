package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit"

// RedisLimiter counts requests in Redis so every API instance shares the same windows.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	clock  func() time.Time
}

// RedisOption customises RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithKeyPrefix namespaces the counters, e.g. per route group.
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewRedisLimiter returns nil when limit or window is not positive, which admits everything.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration, opts ...RedisOption) *RedisLimiter {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	l := &RedisLimiter{
		client: client,
		prefix: defaultKeyPrefix,
		limit:  limit,
		window: window,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Allow implements Limiter. The counter key embeds the window start so a lost EXPIRE cannot
// pin a caller at the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	start := windowStart(l.clock(), l.window)
	redisKey := l.prefix + ":" + normaliseKey(key) + ":" + strconv.FormatInt(start.Unix(), 10)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: increment %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire %s: %w", redisKey, err)
		}
	}
	return count <= int64(l.limit), nil
}
