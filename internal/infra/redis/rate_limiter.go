package redis

import (
	"context"
	"time"

	"telegram-playlist-bot/internal/domain/ports/adapter"
)

var _ adapter.Throttle = (*RateLimiter)(nil)

// RateLimiter is a fixed-window counter: INCR the key, set the expiry on the
// first hit, deny once the count passes limit.
type RateLimiter struct {
	client RedisClient
	prefix string
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, prefix: "rate_limit:"}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = r.prefix + key
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}
