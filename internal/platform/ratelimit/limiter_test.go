package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := base
	limiter := NewMemoryLimiter(2, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := limiter.Allow(ctx, "u1")
	assert.False(t, ok, "third call in the window must be rejected")

	ok, _ = limiter.Allow(ctx, "u2")
	assert.True(t, ok, "keys are independent")

	now = base.Add(time.Minute)
	ok, _ = limiter.Allow(ctx, "u1")
	assert.True(t, ok, "next window resets the counter")
}

func TestNilLimiterAdmitsEverything(t *testing.T) {
	assert.Nil(t, NewMemoryLimiter(0, time.Minute, nil))
	assert.Nil(t, NewRedisLimiter(nil, 5, time.Minute))

	var limiter *MemoryLimiter
	ok, err := limiter.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterSharesCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := base.Add(10 * time.Second)
	clock := WithClock(func() time.Time { return now })
	first := NewRedisLimiter(client, 3, time.Minute, clock, WithKeyPrefix("orders"))
	second := NewRedisLimiter(client, 3, time.Minute, clock, WithKeyPrefix("orders"))
	ctx := context.Background()

	for _, l := range []*RedisLimiter{first, second, first} {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := second.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "instances must share one window")

	key := "orders:u1:" + "1709294400"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	now = base.Add(time.Minute)
	ok, err = first.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiterReportsOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	limiter := NewRedisLimiter(client, 1, time.Minute)
	_, err := limiter.Allow(context.Background(), "u1")
	assert.Error(t, err)
}
