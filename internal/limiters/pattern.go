package limiters

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PatternConfig tunes the suspicious-pattern trackers.
type PatternConfig struct {
	DeviceThreshold   int
	DeviceWindow      time.Duration
	VelocityThreshold int
	VelocityWindow    time.Duration
}

// PatternTracker flags suspicious per-principal activity: too many
// distinct device fingerprints in a day, or too many mixed IP/device
// failures in a short burst. Both are audit signals, never lock triggers.
type PatternTracker struct {
	redis  redis.UniversalClient
	prefix string
	config PatternConfig
}

// NewPatternTracker creates a pattern tracker.
func NewPatternTracker(redisClient redis.UniversalClient, prefix string, cfg PatternConfig) *PatternTracker {
	if prefix == "" {
		prefix = "ag"
	}
	if cfg.DeviceThreshold <= 0 {
		cfg.DeviceThreshold = 3
	}
	if cfg.DeviceWindow <= 0 {
		cfg.DeviceWindow = 24 * time.Hour
	}
	if cfg.VelocityThreshold <= 0 {
		cfg.VelocityThreshold = 5
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = 15 * time.Minute
	}
	return &PatternTracker{redis: redisClient, prefix: prefix, config: cfg}
}

func (p *PatternTracker) deviceKey(identifier string) string {
	return p.prefix + ":dev:" + identifier
}

func (p *PatternTracker) velocityKey(identifier string) string {
	return p.prefix + ":vel:" + identifier
}

// RecordDevice tracks a device fingerprint seen for the identifier.
// Returns true when the distinct-device threshold is crossed within the
// window.
func (p *PatternTracker) RecordDevice(ctx context.Context, identifier, deviceHash string) (bool, error) {
	if identifier == "" || deviceHash == "" {
		return false, nil
	}

	key := p.deviceKey(identifier)
	added, err := p.redis.SAdd(ctx, key, deviceHash).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if added > 0 {
		// NX so a later device does not extend the original window.
		if err := p.redis.ExpireNX(ctx, key, p.config.DeviceWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	distinct, err := p.redis.SCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return distinct >= int64(p.config.DeviceThreshold), nil
}

// RecordVelocity counts an attempt toward the identifier's burst window.
// Returns true when the velocity threshold is crossed.
func (p *PatternTracker) RecordVelocity(ctx context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}

	key := p.velocityKey(identifier)
	count, err := p.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		if err := p.redis.Expire(ctx, key, p.config.VelocityWindow).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	return count >= int64(p.config.VelocityThreshold), nil
}

// Reset clears both trackers for the identifier. Called on successful
// login.
func (p *PatternTracker) Reset(ctx context.Context, identifier string) error {
	if err := p.redis.Del(ctx, p.deviceKey(identifier), p.velocityKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
