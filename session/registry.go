package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrFamilyNotFound is returned when a token family has no current
	// refresh state (revoked, evicted, or expired).
	ErrFamilyNotFound = errors.New("token family not found")
	// ErrFamilyMismatch is returned when the presented refresh token id is
	// not the family's current one. This is the reuse signal.
	ErrFamilyMismatch = errors.New("refresh token not current for family")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// rotateFamilyScript swaps the family's current refresh token id only when
// the caller presents the id currently stored. Losing the swap means the
// presented token was already rotated out.
const rotateFamilyScript = `
local cur = redis.call("GET", KEYS[1])
if not cur then
  return 0
end
if cur ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateFamilyLua = redis.NewScript(rotateFamilyScript)

// Registry is the Redis-backed session registry. It enforces the
// per-principal session cap and owns refresh-family rotation state.
type Registry struct {
	redis           redis.UniversalClient
	prefix          string
	maxPerPrincipal int
}

// NewRegistry creates a Registry. prefix namespaces all keys;
// maxPerPrincipal caps concurrent sessions per principal (0 disables the
// cap).
func NewRegistry(redisClient redis.UniversalClient, prefix string, maxPerPrincipal int) *Registry {
	if prefix == "" {
		prefix = "ag"
	}
	return &Registry{
		redis:           redisClient,
		prefix:          prefix,
		maxPerPrincipal: maxPerPrincipal,
	}
}

func (r *Registry) sessionKey(sessionID string) string {
	return r.prefix + ":s:" + sessionID
}

func (r *Registry) principalKey(principalID string) string {
	return r.prefix + ":p:" + principalID
}

func (r *Registry) familyKey(familyID string) string {
	return r.prefix + ":f:" + familyID
}

// Save persists a session, indexes it for its principal, and records the
// family's current refresh token id. When the principal's session count
// exceeds the cap, the single oldest-by-creation-time session is evicted
// (its family key goes with it, so refreshing that lineage fails). The
// evicted session, if any, is returned for auditing.
func (r *Registry) Save(ctx context.Context, sess *Session, ttl time.Duration, refreshTokenID string, refreshTTL time.Duration) (*Session, error) {
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, r.principalKey(sess.PrincipalID), sess.SessionID)
		pipe.Expire(ctx, r.principalKey(sess.PrincipalID), ttl)
		pipe.Set(ctx, r.familyKey(sess.FamilyID), refreshTokenID, refreshTTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if r.maxPerPrincipal <= 0 {
		return nil, nil
	}

	live, err := r.Active(ctx, sess.PrincipalID)
	if err != nil {
		return nil, err
	}
	if len(live) <= r.maxPerPrincipal {
		return nil, nil
	}

	// The set is re-evaluated on every insert, so a session racing this
	// pass is caught by the next one.
	oldest := live[0]
	for _, candidate := range live[1:] {
		if candidate.CreatedAt < oldest.CreatedAt {
			oldest = candidate
		}
	}
	if oldest.SessionID == sess.SessionID {
		return nil, nil
	}
	if err := r.Invalidate(ctx, oldest); err != nil {
		return nil, err
	}
	return oldest, nil
}

// Get fetches a session by id without mutating registry state. Sessions
// whose stored expiry has passed are treated as missing.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.redis.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > sess.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Active returns the principal's live sessions, lazily pruning index
// entries whose session key is gone or expired.
func (r *Registry) Active(ctx context.Context, principalID string) ([]*Session, error) {
	principalKey := r.principalKey(principalID)

	ids, err := r.redis.SMembers(ctx, principalKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := r.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, r.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	nowUnix := time.Now().Unix()
	sessions := make([]*Session, 0, len(ids))
	var dead []interface{}

	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				dead = append(dead, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		if nowUnix > sess.ExpiresAt {
			dead = append(dead, ids[i])
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(dead) > 0 {
		if err := r.redis.SRem(ctx, principalKey, dead...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return sessions, nil
}

// Touch updates the session's last-activity timestamp in place, keeping
// the key's remaining TTL.
func (r *Registry) Touch(ctx context.Context, sess *Session, now time.Time) error {
	sess.LastActivity = now.Unix()
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.sessionKey(sess.SessionID), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Invalidate removes a session, its index entry, and its family key.
// Deleting the family key first-class is what makes a concurrent refresh
// against this session observe the miss and fail closed.
func (r *Registry) Invalidate(ctx context.Context, sess *Session) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(sess.SessionID))
		pipe.SRem(ctx, r.principalKey(sess.PrincipalID), sess.SessionID)
		pipe.Del(ctx, r.familyKey(sess.FamilyID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// InvalidateByID resolves and invalidates a session. A missing session is
// not an error; invalidation is idempotent.
func (r *Registry) InvalidateByID(ctx context.Context, sessionID string) error {
	sess, err := r.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return r.Invalidate(ctx, sess)
}

// RotateFamily atomically swaps the family's current refresh token id from
// providedTokenID to nextTokenID. ErrFamilyMismatch means the presented
// token was already rotated out — the anti-replay signal. Any transport
// failure is returned as-is so the caller can fail closed.
func (r *Registry) RotateFamily(ctx context.Context, familyID, providedTokenID, nextTokenID string, ttl time.Duration) error {
	result, err := rotateFamilyLua.Run(
		ctx,
		r.redis,
		[]string{r.familyKey(familyID)},
		providedTokenID,
		nextTokenID,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch result {
	case rotateStatusNotFound:
		return ErrFamilyNotFound
	case rotateStatusMismatch:
		return ErrFamilyMismatch
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, result)
	}
}

// FamilyCurrent returns the family's current refresh token id. Used by
// revocation and by tests; refresh itself goes through RotateFamily.
func (r *Registry) FamilyCurrent(ctx context.Context, familyID string) (string, error) {
	current, err := r.redis.Get(ctx, r.familyKey(familyID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrFamilyNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return current, nil
}
