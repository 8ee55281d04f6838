// Package blacklist stores revoked token ids in Redis. Entries live
// exactly as long as the revoked token would have — never longer, and a
// token that has already expired is never written at all.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is the Redis-backed token blacklist.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a blacklist store under the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ag"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(tokenID string) string {
	return s.prefix + ":bl:" + tokenID
}

// Add blacklists a token id for the token's remaining lifetime. A
// non-positive remaining lifetime is a no-op: the token is already dead
// and the entry would either never expire or be rejected by Redis.
func (s *Store) Add(ctx context.Context, tokenID, reason string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(tokenID), reason, remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Contains reports whether the token id is blacklisted, with the stored
// revocation reason. Callers decide the failure policy; validation treats
// an ErrRedisUnavailable as not-blacklisted (fail open).
func (s *Store) Contains(ctx context.Context, tokenID string) (bool, string, error) {
	reason, err := s.redis.Get(ctx, s.key(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, reason, nil
}
