// Package authguard provides an authentication session and abuse-protection
// engine: signed access/refresh token pairs with single-use rotation,
// Redis-backed session control with a per-principal cap, progressive
// failed-login lockout, sliding-window rate limiting, and an async audit
// trail.
//
// The package is designed for concurrent server workloads: Guard methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authguard is the public surface. It exposes [Guard], [Builder], [Config],
// and value types (ProtectionResult, RateLimitStatus, SessionInfo, etc.).
// Internal coordination — session encoding, counters, audit dispatch —
// lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Perform I/O outside of Guard methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authguard (no import cycles).
//
// # Failure policy
//
// Dependency failures are asymmetric. Rate-limit admission and blacklist
// checks fail open: availability wins. Refresh rotation fails closed:
// replay-safety wins. The policy is fixed, not configurable.
package authguard
