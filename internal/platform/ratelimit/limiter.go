package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Limiter admits at most a fixed number of requests per key within each window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func normaliseKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "anonymous"
	}
	return key
}

// windowStart truncates now to the start of the fixed window it falls in.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}
