package authguard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventTokenIssued         = "token_issued"
	auditEventTokenValidateFailed = "token_validate_failed"
	auditEventTokenRevoked        = "token_revoked"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventRefreshReuse        = "refresh_reuse_detected"
	auditEventDeviceMismatch      = "device_mismatch"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginSuccess        = "login_success"
	auditEventAccountLocked       = "account_locked"
	auditEventIPBlocked           = "ip_blocked"
	auditEventSuspiciousPattern   = "suspicious_pattern"
	auditEventRateLimited         = "rate_limited"
	auditEventRateLimitFailOpen   = "rate_limit_fail_open"
	auditEventSessionEvicted      = "session_evicted"
	auditEventSessionInvalidated  = "session_invalidated"
)

// emitAudit queues one audit event. Every guard transition goes through
// here, success or failure; the dispatcher being nil (auditing disabled)
// makes it a no-op.
func (g *Guard) emitAudit(
	ctx context.Context,
	eventType string,
	severity AuditSeverity,
	success bool,
	principalID string,
	sessionID string,
	device string,
	description string,
	err error,
	data map[string]string,
) {
	if g == nil || g.audit == nil {
		return
	}

	event := AuditEvent{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		PrincipalID: principalID,
		SessionID:   sessionID,
		Device:      device,
		IP:          clientIPFromContext(ctx),
		Description: description,
		Success:     success,
		Data:        data,
	}
	if err != nil {
		event.Error = err.Error()
	}

	g.audit.Emit(ctx, event)
}
