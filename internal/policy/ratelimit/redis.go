package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/JakeFAU/lite-site-auditor/internal/metrics"
)

// counter is the subset of *redis.Client the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Redis is a fixed-window counter shared by every replica. Keys look like
// <prefix><client>:<window-start-unix>.
type Redis struct {
	client counter
	cfg    Config
	prefix string
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

// NewRedis creates a limiter on client. A nil client is rejected.
func NewRedis(client *redis.Client, prefix string, cfg Config) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newRedis(client, prefix, cfg), nil
}

func newRedis(client counter, prefix string, cfg Config) *Redis {
	return &Redis{client: client, cfg: cfg.normalized(), prefix: prefix, now: time.Now}
}

// Allow increments the client's counter for the current window.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	window := r.now().Truncate(r.cfg.Window)
	k := r.prefix + key + ":" + strconv.FormatInt(window.Unix(), 10)

	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return true, fmt.Errorf("incr %s: %w", k, err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.cfg.Window).Err(); err != nil {
			return true, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	if n > int64(r.cfg.Requests) {
		metrics.ObserveRateLimited("redis")
		return false, nil
	}
	return true, nil
}
