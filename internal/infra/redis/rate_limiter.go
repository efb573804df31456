package redis

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter counts hits per key in fixed windows that start at the first hit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether the hit is within limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := r.client.IncrWindow(ctx, key, window)
	if err != nil {
		return false, err
	}
	return n <= int64(limit), nil
}

// UserCommandKey scopes a limit to one Telegram user and action.
func UserCommandKey(userID int64, action string) string {
	return "ratelimit:" + strconv.FormatInt(userID, 10) + ":" + action
}
