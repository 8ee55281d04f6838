package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IPFailureConfig tunes the per-IP failure counter.
type IPFailureConfig struct {
	Threshold int
	Window    time.Duration
}

// IPFailureLimiter counts login failures per source IP. Crossing the
// threshold within the window tells the caller to hard-block the IP.
// Unknown-identifier failures feed this counter too, so probing for
// account existence costs the prober the same as real failures.
type IPFailureLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config IPFailureConfig
}

// NewIPFailureLimiter creates a per-IP failure limiter.
func NewIPFailureLimiter(redisClient redis.UniversalClient, prefix string, cfg IPFailureConfig) *IPFailureLimiter {
	if prefix == "" {
		prefix = "ag"
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &IPFailureLimiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *IPFailureLimiter) key(ip string) string {
	return l.prefix + ":ipf:" + ip
}

// RecordFailure increments the IP's failure counter. Returns true when the
// threshold has been reached and the caller should impose the hard block.
func (l *IPFailureLimiter) RecordFailure(ctx context.Context, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	key := l.key(ip)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return count >= int64(l.config.Threshold), nil
}

// Count returns the IP's current failure count.
func (l *IPFailureLimiter) Count(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return int(count), nil
}
