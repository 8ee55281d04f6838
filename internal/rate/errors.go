package rate

import "errors"

var (
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrUnknownCategory is returned for a category tag missing from the
	// rule table.
	ErrUnknownCategory = errors.New("unknown rate limit category")
)
