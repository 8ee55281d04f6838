package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable indicates the counter backend is unreachable.
var ErrLimiterUnavailable = errors.New("limiter backend unavailable")

// DelayConfig tunes the progressive-delay counter.
type DelayConfig struct {
	Base       time.Duration
	Max        time.Duration
	CounterTTL time.Duration
}

// DelayTracker maintains the cache-only counter behind progressive login
// delays: delay = min(base * 2^(n-1), max) for the n-th consecutive
// failure.
type DelayTracker struct {
	redis  redis.UniversalClient
	prefix string
	config DelayConfig
}

// NewDelayTracker creates a delay tracker.
func NewDelayTracker(redisClient redis.UniversalClient, prefix string, cfg DelayConfig) *DelayTracker {
	if prefix == "" {
		prefix = "ag"
	}
	if cfg.Base <= 0 {
		cfg.Base = 5 * time.Second
	}
	if cfg.Max <= 0 {
		cfg.Max = 60 * time.Second
	}
	if cfg.CounterTTL <= 0 {
		cfg.CounterTTL = time.Hour
	}
	return &DelayTracker{redis: redisClient, prefix: prefix, config: cfg}
}

func (d *DelayTracker) key(identifier string) string {
	return d.prefix + ":dl:" + identifier
}

// Next records a failure and returns the delay to impose before the next
// attempt is considered.
func (d *DelayTracker) Next(ctx context.Context, identifier string) (time.Duration, error) {
	key := d.key(identifier)

	count, err := d.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		// TTL on first failure; the counter auto-resets without cleanup.
		if err := d.redis.Expire(ctx, key, d.config.CounterTTL).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return d.delayFor(count), nil
}

// Count returns the current failure count without incrementing.
func (d *DelayTracker) Count(ctx context.Context, identifier string) (int, error) {
	count, err := d.redis.Get(ctx, d.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return int(count), nil
}

// Reset clears the counter. Called on successful login.
func (d *DelayTracker) Reset(ctx context.Context, identifier string) error {
	if err := d.redis.Del(ctx, d.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}

func (d *DelayTracker) delayFor(count int64) time.Duration {
	if count <= 0 {
		return 0
	}
	delay := d.config.Base
	for i := int64(1); i < count; i++ {
		delay *= 2
		if delay >= d.config.Max {
			return d.config.Max
		}
	}
	if delay > d.config.Max {
		return d.config.Max
	}
	return delay
}
