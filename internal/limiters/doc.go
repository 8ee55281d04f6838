// Package limiters holds the cache-side counters behind the failed-login
// guard: the progressive-delay counter, the per-IP failure counter, and the
// suspicious-pattern trackers (device churn and attempt velocity).
//
// Every counter is a pure function of (key, now) plus its stored value,
// and every key carries its own TTL — cache expiry is the only cleanup
// mechanism. The lock decision itself is not here: the persisted attempt
// counter on the credential record is authoritative for lock and captcha
// transitions, while these counters shape delay and abuse signals.
package limiters
