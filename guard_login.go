package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/authguard-dev/authguard/internal"
)

// CheckLoginAllowed gates a login attempt before any credential
// comparison happens. It rejects hard-blocked source addresses and
// accounts currently held by the lockout state machine. An expired lock
// is cleared lazily here; no sweeper exists.
func (g *Guard) CheckLoginAllowed(ctx context.Context, identifier, ip string) error {
	if g == nil {
		return ErrGuardNotReady
	}
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}

	if ip != "" {
		// Block lookup fails open like every availability-side check.
		if blocked, err := g.limiter.IsBlocked(ctx, ip); err != nil {
			g.logger.Warn("ip block check failed", zap.Error(err))
		} else if blocked {
			return ErrIPBlocked
		}
	}

	record, err := g.credentials.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			// Unknown identifiers pass this gate; the credential
			// comparison downstream fails them indistinguishably.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	if record.Status == StatusLocked {
		if record.LockedUntil.After(now) {
			return &LockedError{Until: record.LockedUntil}
		}
		if !record.LockedByGuard {
			// Operator locks have no expiry the engine may honor. A zero
			// LockedUntil means locked until an operator clears it.
			return &LockedError{Until: record.LockedUntil}
		}
		// Engine lock expired: transition back to normal on this read.
		record.Status = StatusActive
		record.AttemptCount = 0
		record.LockedUntil = time.Time{}
		record.LockedByGuard = false
		if serr := g.credentials.Save(ctx, record); serr != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, serr)
		}
	}
	if record.Status == StatusDisabled {
		return ErrInvalidCredentials
	}

	return nil
}

// RecordFailedLogin runs the protection state machine after a failed
// credential comparison. The persisted attempt counter decides lock and
// captcha transitions; the cache-only counter drives the progressive
// delay. Unknown identifiers still feed the per-IP and pattern counters
// so probing reveals nothing, but no account can transition to locked.
func (g *Guard) RecordFailedLogin(ctx context.Context, identifier, ip, deviceFingerprint string) (*ProtectionResult, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}
	if deviceFingerprint == "" {
		deviceFingerprint = deviceFingerprintFromContext(ctx)
	}

	now := time.Now().UTC()
	g.metricInc(MetricLoginFailureRecorded)
	g.emitAudit(ctx, auditEventLoginFailure, AuditWarning, false,
		identifier, "", "", "failed login recorded", nil, nil)

	g.recordSecondaryCounters(ctx, identifier, ip, deviceFingerprint)

	record, err := g.credentials.FindByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, ErrPrincipalNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if record == nil {
		// No account, no lock. Delay and captcha mirror the known-account
		// shape from the cache counter alone.
		delay, derr := g.delays.Next(ctx, identifier)
		if derr != nil {
			g.logger.Warn("delay counter failed", zap.Error(derr))
		}
		count, _ := g.delays.Count(ctx, identifier)
		remaining := g.config.Lockout.MaxAttempts - count
		if remaining < 0 {
			remaining = 0
		}
		return &ProtectionResult{
			Locked:            false,
			DelaySeconds:      int(delay.Seconds()),
			RequiresCaptcha:   count >= g.config.Lockout.CaptchaThreshold,
			RemainingAttempts: remaining,
			Message:           "invalid credentials",
		}, nil
	}

	record.AttemptCount++

	if record.AttemptCount >= g.config.Lockout.MaxAttempts {
		// Two racing failures may both land here; the lock write is an
		// idempotent timestamp overwrite, so that is harmless.
		record.Status = StatusLocked
		record.LockedUntil = now.Add(g.config.Lockout.LockDuration)
		record.LockedByGuard = true
		if err := g.credentials.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		g.metricInc(MetricAccountLocked)
		g.emitAudit(ctx, auditEventAccountLocked, AuditCritical, false,
			record.PrincipalID, "", "",
			"account locked after repeated failures", nil,
			map[string]string{"locked_until": record.LockedUntil.Format(time.RFC3339)})

		return &ProtectionResult{
			Locked:            true,
			LockUntil:         record.LockedUntil,
			DelaySeconds:      0,
			RequiresCaptcha:   false,
			RemainingAttempts: 0,
			Message:           "account locked",
		}, nil
	}

	if err := g.credentials.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	delay, derr := g.delays.Next(ctx, identifier)
	if derr != nil {
		g.logger.Warn("delay counter failed", zap.Error(derr))
	}

	return &ProtectionResult{
		Locked:            false,
		DelaySeconds:      int(delay.Seconds()),
		RequiresCaptcha:   record.AttemptCount >= g.config.Lockout.CaptchaThreshold,
		RemainingAttempts: g.config.Lockout.MaxAttempts - record.AttemptCount,
		Message:           "invalid credentials",
	}, nil
}

// recordSecondaryCounters feeds the independent per-IP and per-principal
// abuse counters. Each has its own TTL and none blocks the caller; the IP
// counter is the only one that escalates to a hard block.
func (g *Guard) recordSecondaryCounters(ctx context.Context, identifier, ip, deviceFingerprint string) {
	if ip != "" {
		crossed, err := g.ipFailures.RecordFailure(ctx, ip)
		if err != nil {
			g.logger.Warn("ip failure counter failed", zap.Error(err))
		} else if crossed {
			if berr := g.limiter.Block(ctx, ip, "excessive login failures", g.config.Lockout.IPBlockDuration); berr != nil {
				g.logger.Error("ip block write failed", zap.Error(berr))
			} else {
				g.metricInc(MetricIPBlocked)
				g.emitAudit(ctx, auditEventIPBlocked, AuditCritical, false,
					identifier, "", "", "source ip hard-blocked", nil,
					map[string]string{"block_duration": g.config.Lockout.IPBlockDuration.String()})
			}
		}
	}

	if deviceFingerprint != "" {
		deviceHash := internal.HashBindingValueHex(deviceFingerprint)
		flagged, err := g.patterns.RecordDevice(ctx, identifier, deviceHash)
		if err != nil {
			g.logger.Warn("device churn counter failed", zap.Error(err))
		} else if flagged {
			g.metricInc(MetricSuspiciousPattern)
			g.emitAudit(ctx, auditEventSuspiciousPattern, AuditWarning, false,
				identifier, "", deviceHash, "device churn threshold crossed", nil, nil)
		}
	}

	flagged, err := g.patterns.RecordVelocity(ctx, identifier)
	if err != nil {
		g.logger.Warn("velocity counter failed", zap.Error(err))
	} else if flagged {
		g.metricInc(MetricSuspiciousPattern)
		g.emitAudit(ctx, auditEventSuspiciousPattern, AuditWarning, false,
			identifier, "", "", "failure velocity threshold crossed", nil, nil)
	}
}

// RecordLoginSuccess resets the protection state after a successful
// authentication: persisted counter to zero, transient delay/captcha and
// pattern keys cleared, and the lock lifted when this engine set it.
func (g *Guard) RecordLoginSuccess(ctx context.Context, identifier string) error {
	if g == nil {
		return ErrGuardNotReady
	}

	if err := g.delays.Reset(ctx, identifier); err != nil {
		g.logger.Warn("delay counter reset failed", zap.Error(err))
	}
	if err := g.patterns.Reset(ctx, identifier); err != nil {
		g.logger.Warn("pattern counter reset failed", zap.Error(err))
	}

	record, err := g.credentials.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	record.AttemptCount = 0
	if record.Status == StatusLocked && record.LockedByGuard {
		record.Status = StatusActive
		record.LockedUntil = time.Time{}
		record.LockedByGuard = false
	}
	if err := g.credentials.Save(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	g.emitAudit(ctx, auditEventLoginSuccess, AuditInfo, true,
		record.PrincipalID, "", "", "login success; counters reset", nil, nil)
	return nil
}
