package internaldefs

import (
	authguard "github.com/authguard-dev/authguard"
)

// CounterDef binds a counter slot to its exported name.
type CounterDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram slot to its exported name.
type HistogramDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in slot order.
var CounterDefs = []CounterDef{
	{ID: authguard.MetricTokenIssued, Name: "authguard_token_issued_total", Help: "Issued access/refresh token pairs."},
	{ID: authguard.MetricTokenValidateSuccess, Name: "authguard_token_validate_success_total", Help: "Access tokens accepted by validation."},
	{ID: authguard.MetricTokenValidateFailure, Name: "authguard_token_validate_failure_total", Help: "Access tokens rejected by validation."},
	{ID: authguard.MetricTokenRevoked, Name: "authguard_token_revoked_total", Help: "Tokens explicitly revoked to the denylist."},
	{ID: authguard.MetricRefreshSuccess, Name: "authguard_refresh_success_total", Help: "Completed refresh rotations."},
	{ID: authguard.MetricRefreshFailure, Name: "authguard_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: authguard.MetricRefreshReuseDetected, Name: "authguard_refresh_reuse_detected_total", Help: "Refresh rotation conflicts treated as token theft."},
	{ID: authguard.MetricDeviceMismatchSoft, Name: "authguard_device_mismatch_soft_total", Help: "Device-binding mismatches observed during validation."},
	{ID: authguard.MetricDeviceMismatchHard, Name: "authguard_device_mismatch_hard_total", Help: "Device-binding mismatches that rejected a refresh."},
	{ID: authguard.MetricLoginFailureRecorded, Name: "authguard_login_failure_recorded_total", Help: "Recorded failed credential attempts."},
	{ID: authguard.MetricAccountLocked, Name: "authguard_account_locked_total", Help: "Lockouts applied by the protection state machine."},
	{ID: authguard.MetricIPBlocked, Name: "authguard_ip_blocked_total", Help: "Source addresses hard-blocked for failure volume."},
	{ID: authguard.MetricSuspiciousPattern, Name: "authguard_suspicious_pattern_total", Help: "Device-churn and velocity flags raised."},
	{ID: authguard.MetricRateLimitAllowed, Name: "authguard_rate_limit_allowed_total", Help: "Admitted rate-limit checks."},
	{ID: authguard.MetricRateLimitDenied, Name: "authguard_rate_limit_denied_total", Help: "Denied rate-limit checks."},
	{ID: authguard.MetricRateLimitFailOpen, Name: "authguard_rate_limit_fail_open_total", Help: "Checks admitted because the cache was unreachable."},
	{ID: authguard.MetricSessionEvicted, Name: "authguard_session_evicted_total", Help: "Sessions evicted by the per-principal cap."},
	{ID: authguard.MetricSessionInvalidated, Name: "authguard_session_invalidated_total", Help: "Sessions removed by logout or revocation."},
}

// HistogramDefs lists every exported histogram in slot order.
var HistogramDefs = []HistogramDef{
	{ID: authguard.MetricValidateLatency, Name: "authguard_validate_latency_seconds", Help: "Validation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus style.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix gives a name-safe suffix per bucket bound.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative le counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
