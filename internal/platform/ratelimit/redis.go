package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLimiter shares a fixed-window counter across replicas. The window starts with the first
// request for a key and expires with the key.
type RedisLimiter struct {
	client goredis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter returns nil when limit or window is not positive.
func NewRedisLimiter(client goredis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	redisKey := l.prefix + ":" + normalizeKey(key)

	var incr *goredis.IntCmd
	var ttl *goredis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, l.window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	count := int(incr.Val())
	if count > l.limit {
		retry := ttl.Val()
		if retry <= 0 {
			retry = l.window
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}
