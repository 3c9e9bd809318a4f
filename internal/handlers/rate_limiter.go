package handlers

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/foodhub/api/internal/platform/auth"
	"github.com/foodhub/api/internal/platform/httpx"
	"github.com/foodhub/api/internal/platform/ratelimit"
	"github.com/foodhub/api/internal/platform/requestctx"
)

// RateLimit throttles requests per authenticated caller, falling back to the client address.
// Limiter failures admit the request.
func RateLimit(limiter ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := scope + ":" + rateLimitKey(r)
			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				requestctx.Logger(ctx).Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				httpx.WriteError(ctx, w, httpx.NewError(http.StatusTooManyRequests, "too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.UID != "" {
		return identity.UID
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
