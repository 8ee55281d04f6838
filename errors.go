package authguard

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for bad credentials and unknown
	// identifiers alike; callers must not be able to tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned once the lockout threshold is reached.
	// Use [AsLocked] to recover the unlock time.
	ErrAccountLocked = errors.New("account locked")
	// ErrIPBlocked is returned when the source address carries a hard block.
	ErrIPBlocked = errors.New("ip blocked")
	// ErrRateLimited is returned when sliding-window admission denied the call.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenInvalid covers malformed, expired, blacklisted, and
	// wrong-type tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrDeviceMismatch is returned when a refresh presents a device
	// fingerprint that differs from the one bound at issuance.
	ErrDeviceMismatch = errors.New("device fingerprint mismatch")
	// ErrRefreshReuse is returned when an already-rotated refresh token is
	// presented again.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned when a token references a session that
	// no longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPrincipalNotFound is returned by credential stores for unknown
	// identifiers. The engine folds it into ErrInvalidCredentials before it
	// reaches callers.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrSigningKeyMissing is returned at construction when no signing key
	// was configured. Keys are never generated implicitly.
	ErrSigningKeyMissing = errors.New("signing key missing")
	// ErrCacheUnavailable wraps Redis transport failures.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrStoreUnavailable wraps credential store transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrGuardNotReady is returned when methods are invoked on a nil or
	// unbuilt Guard.
	ErrGuardNotReady = errors.New("guard not initialized")
)

// LockedError carries the unlock time alongside ErrAccountLocked.
type LockedError struct {
	Until time.Time
}

// Error implements error.
func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Unwrap makes errors.Is(err, ErrAccountLocked) hold.
func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// AsLocked extracts the unlock time from an ErrAccountLocked error chain.
func AsLocked(err error) (time.Time, bool) {
	var le *LockedError
	if errors.As(err, &le) {
		return le.Until, true
	}
	return time.Time{}, false
}
