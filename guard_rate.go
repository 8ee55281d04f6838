package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/authguard-dev/authguard/internal/rate"
)

// AdmitRequest checks one event against the category's sliding window.
// Cache failures fail open: the request is admitted and the failure
// logged, audited, and counted. An unknown category is a configuration
// error and is reported, not admitted.
func (g *Guard) AdmitRequest(ctx context.Context, key string, category RateCategory) (bool, error) {
	return g.AdmitRequestCost(ctx, key, category, 1)
}

// AdmitRequestCost is AdmitRequest for operations that consume more than
// one unit of budget.
func (g *Guard) AdmitRequestCost(ctx context.Context, key string, category RateCategory, cost int) (bool, error) {
	if g == nil {
		return false, ErrGuardNotReady
	}

	allowed, err := g.limiter.Admit(ctx, key, category, cost)
	if err != nil {
		if errors.Is(err, rate.ErrUnknownCategory) {
			return false, err
		}
		// Fail open: availability beats strict enforcement here.
		g.logger.Warn("rate limit admission failed open", zap.String("key", key), zap.Error(err))
		g.metricInc(MetricRateLimitFailOpen)
		g.emitAudit(ctx, auditEventRateLimitFailOpen, AuditWarning, true,
			"", "", "", "rate limiter unavailable; request admitted", err,
			map[string]string{"key": key, "category": string(category)})
		return true, nil
	}

	if !allowed {
		g.metricInc(MetricRateLimitDenied)
		g.emitAudit(ctx, auditEventRateLimited, AuditWarning, false,
			"", "", "", "rate limit exceeded", nil,
			map[string]string{"key": key, "category": string(category)})
		return false, nil
	}

	g.metricInc(MetricRateLimitAllowed)
	return true, nil
}

// GetRateLimitStatus reads a key's window without mutating it.
func (g *Guard) GetRateLimitStatus(ctx context.Context, key string, category RateCategory) (*RateLimitStatus, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}

	status, err := g.limiter.Status(ctx, key, category)
	if err != nil {
		if errors.Is(err, rate.ErrUnknownCategory) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	blocked := status.Blocked
	if hard, herr := g.limiter.IsBlocked(ctx, key); herr == nil && hard {
		blocked = true
	}

	return &RateLimitStatus{
		Limit:     status.Limit,
		Remaining: status.Remaining,
		ResetTime: status.ResetTime,
		Blocked:   blocked,
	}, nil
}

// BlockIdentifier applies an explicit hard block independent of any
// window state, used once abuse thresholds are crossed elsewhere.
func (g *Guard) BlockIdentifier(ctx context.Context, identifier, reason string, duration time.Duration) error {
	if g == nil {
		return ErrGuardNotReady
	}
	if err := g.limiter.Block(ctx, identifier, reason, duration); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	g.emitAudit(ctx, auditEventIPBlocked, AuditCritical, false,
		"", "", "", "identifier hard-blocked", nil,
		map[string]string{"identifier": identifier, "reason": reason, "duration": duration.String()})
	return nil
}

// IsBlocked reports whether an identifier carries a hard block. Lookup
// failures fail open.
func (g *Guard) IsBlocked(ctx context.Context, identifier string) bool {
	if g == nil {
		return false
	}
	blocked, err := g.limiter.IsBlocked(ctx, identifier)
	if err != nil {
		g.logger.Warn("hard block check failed", zap.Error(err))
		return false
	}
	return blocked
}
