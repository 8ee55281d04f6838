package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Category tags a request class with its own {limit, window} rule.
type Category string

const (
	// CategoryAPI covers general API calls.
	CategoryAPI Category = "api"
	// CategoryLogin covers login attempts.
	CategoryLogin Category = "login"
	// CategorySensitive covers high-value operations.
	CategorySensitive Category = "sensitive"
	// CategoryPasswordReset covers password-reset requests.
	CategoryPasswordReset Category = "password_reset"
	// CategoryMFA covers MFA attempts.
	CategoryMFA Category = "mfa"
)

// Rule is one row of the category table.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules is the closed category table. Callers select a row by tag;
// there is no per-category branching anywhere else.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		CategoryAPI:           {Limit: 100, Window: time.Minute},
		CategoryLogin:         {Limit: 20, Window: time.Hour},
		CategorySensitive:     {Limit: 10, Window: time.Minute},
		CategoryPasswordReset: {Limit: 5, Window: time.Hour},
		CategoryMFA:           {Limit: 10, Window: 15 * time.Minute},
	}
}

// Status is the read-only view returned by [Limiter.Status].
type Status struct {
	Limit     int
	Remaining int
	ResetTime time.Time
	Blocked   bool
}

// Config holds limiter tuning parameters.
type Config struct {
	Rules map[Category]Rule
	// TTLBuffer pads each window key's TTL past the window itself so a
	// key never expires while it still holds countable events.
	TTLBuffer time.Duration
}

// Limiter is the Redis-backed sliding-window limiter.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a Limiter. Missing rules fall back to [DefaultRules]; a zero
// TTLBuffer defaults to one minute.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "ag"
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.TTLBuffer <= 0 {
		cfg.TTLBuffer = time.Minute
	}
	return &Limiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *Limiter) windowKey(key string, category Category) string {
	return l.prefix + ":rl:" + string(category) + ":" + key
}

func (l *Limiter) blockKey(identifier string) string {
	return l.prefix + ":blk:" + identifier
}

// Admit decides whether cost more events fit the key's window. On success
// the events are recorded and the key's TTL refreshed; on denial the
// window is left as pruned. Any Redis failure is reported, never guessed
// around — the engine's admission wrapper fails open.
func (l *Limiter) Admit(ctx context.Context, key string, category Category, cost int) (bool, error) {
	rule, ok := l.config.Rules[category]
	if !ok {
		return false, ErrUnknownCategory
	}
	if cost <= 0 {
		cost = 1
	}

	wkey := l.windowKey(key, category)
	now := time.Now()
	cutoff := now.Add(-rule.Window).UnixNano()

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, wkey, "0", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, wkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count+int64(cost) > int64(rule.Limit) {
		return false, nil
	}

	members := make([]redis.Z, cost)
	for i := range members {
		members[i] = redis.Z{
			Score:  float64(now.UnixNano()),
			Member: strconv.FormatInt(now.UnixNano(), 36) + ":" + uuid.NewString(),
		}
	}

	_, err = l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, wkey, members...)
		pipe.PExpire(ctx, wkey, rule.Window+l.config.TTLBuffer)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return true, nil
}

// Status reports the key's current window state without mutating it: no
// pruning writes, no TTL refresh.
func (l *Limiter) Status(ctx context.Context, key string, category Category) (*Status, error) {
	rule, ok := l.config.Rules[category]
	if !ok {
		return nil, ErrUnknownCategory
	}

	wkey := l.windowKey(key, category)
	now := time.Now()
	cutoff := now.Add(-rule.Window).UnixNano()
	min := strconv.FormatInt(cutoff, 10)

	pipe := l.redis.Pipeline()
	countCmd := pipe.ZCount(ctx, wkey, min, "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, wkey, &redis.ZRangeBy{
		Min: min, Max: "+inf", Offset: 0, Count: 1,
	})
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := countCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	// The window resets when its oldest event ages out.
	reset := now
	if oldest, oerr := oldestCmd.Result(); oerr == nil && len(oldest) > 0 {
		reset = time.Unix(0, int64(oldest[0].Score)).Add(rule.Window)
	}

	return &Status{
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: reset,
		Blocked:   remaining == 0,
	}, nil
}

// Block hard-blocks an identifier for the given duration, independent of
// any window state.
func (l *Limiter) Block(ctx context.Context, identifier, reason string, duration time.Duration) error {
	if duration <= 0 {
		return errors.New("block duration must be positive")
	}
	if err := l.redis.Set(ctx, l.blockKey(identifier), reason, duration).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlocked reports whether the identifier is currently hard-blocked.
func (l *Limiter) IsBlocked(ctx context.Context, identifier string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.blockKey(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
