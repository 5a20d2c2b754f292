package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techfy/storefront-api/internal/platform/requestctx"
)

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(2, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "support:203.0.113.9")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, _ := limiter.Allow(ctx, "support:203.0.113.9")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, _ := limiter.Allow(ctx, "support:203.0.113.10")
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(time.Minute)
	d, _ = limiter.Allow(ctx, "support:203.0.113.9")
	assert.True(t, d.Allowed, "window resets")
	assert.Equal(t, 1, d.Remaining)
}

func TestNewMemoryLimiterDisabled(t *testing.T) {
	limiter := NewMemoryLimiter(0, time.Minute, nil)
	assert.Nil(t, limiter)
	d, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

type limiterFunc func(ctx context.Context, key string) (Decision, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (Decision, error) { return f(ctx, key) }

func TestMiddlewareRejectsWithRetryAfter(t *testing.T) {
	var seenKey string
	limiter := limiterFunc(func(_ context.Context, key string) (Decision, error) {
		seenKey = key
		return Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
	})
	var reached bool
	handler := Middleware(limiter, "support")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/support/orders", nil)
	req = req.WithContext(requestctx.WithClientIP(req.Context(), "198.51.100.7"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, reached, "handler should not run")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), `"rate_limited"`)
	assert.Equal(t, "support:198.51.100.7", seenKey)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := limiterFunc(func(context.Context, string) (Decision, error) {
		return Decision{}, errors.New("redis down")
	})
	called := false
	handler := Middleware(limiter, "api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	rr := httptest.NewRecorder()
	Middleware(nil, "api")(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
