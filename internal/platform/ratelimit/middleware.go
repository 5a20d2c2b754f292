package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/techfy/storefront-api/internal/platform/httpx"
	"github.com/techfy/storefront-api/internal/platform/requestctx"
)

// Middleware rejects requests over the limit with 429 rate_limited. Requests are keyed by
// scope and client IP. Limiter failures let the request through.
func Middleware(limiter Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := scope + ":" + requestctx.ClientIP(ctx)
			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				requestctx.Logger(ctx).Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests, try again later", http.StatusTooManyRequests).
					WithDetails(map[string]any{"retry_after_seconds": seconds}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
