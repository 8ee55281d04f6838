// Package rate implements sliding-window admission control over Redis
// sorted sets, plus an explicit hard-block layer used once abuse
// thresholds are crossed elsewhere.
//
// Each admission key holds a sorted set of event timestamps. Admission
// prunes entries older than the category window inline, compares the
// remaining count against the category limit, and records the new events.
// No background sweeper exists; key TTLs are the only cleanup.
//
// Categories are a closed lookup table of {limit, window} pairs. Adding a
// category is a table entry, not a new code path.
//
// The failure policy lives in the caller: this package reports
// ErrRedisUnavailable and the engine decides to fail open.
package rate
