package authguard

import (
	internalmetrics "github.com/authguard-dev/authguard/internal/metrics"
)

// MetricID identifies a single engine counter or histogram.
type MetricID = internalmetrics.ID

// MetricsSnapshot is a point-in-time copy of every engine metric.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricTokenIssued          = internalmetrics.IDTokenIssued
	MetricTokenValidateSuccess = internalmetrics.IDTokenValidateSuccess
	MetricTokenValidateFailure = internalmetrics.IDTokenValidateFailure
	MetricTokenRevoked         = internalmetrics.IDTokenRevoked
	MetricRefreshSuccess       = internalmetrics.IDRefreshSuccess
	MetricRefreshFailure       = internalmetrics.IDRefreshFailure
	MetricRefreshReuseDetected = internalmetrics.IDRefreshReuseDetected
	MetricDeviceMismatchSoft   = internalmetrics.IDDeviceMismatchSoft
	MetricDeviceMismatchHard   = internalmetrics.IDDeviceMismatchHard
	MetricLoginFailureRecorded = internalmetrics.IDLoginFailureRecorded
	MetricAccountLocked        = internalmetrics.IDAccountLocked
	MetricIPBlocked            = internalmetrics.IDIPBlocked
	MetricSuspiciousPattern    = internalmetrics.IDSuspiciousPattern
	MetricRateLimitAllowed     = internalmetrics.IDRateLimitAllowed
	MetricRateLimitDenied      = internalmetrics.IDRateLimitDenied
	MetricRateLimitFailOpen    = internalmetrics.IDRateLimitFailOpen
	MetricSessionEvicted       = internalmetrics.IDSessionEvicted
	MetricSessionInvalidated   = internalmetrics.IDSessionInvalidated
	MetricValidateLatency      = internalmetrics.IDValidateLatency
)
