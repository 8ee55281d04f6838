package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authguard-dev/authguard/internal"
	"github.com/authguard-dev/authguard/session"
	"github.com/authguard-dev/authguard/token"
)

// IssueTokenPair signs a fresh access/refresh pair for principal, opens a
// session bound to the device fingerprint and source IP, and enforces the
// per-principal session cap. The refresh token starts a new token family.
func (g *Guard) IssueTokenPair(ctx context.Context, principal *Principal, deviceFingerprint, ip string) (*TokenPair, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}
	if principal == nil || principal.ID == "" {
		return nil, errors.New("principal required")
	}
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}
	if deviceFingerprint == "" {
		deviceFingerprint = deviceFingerprintFromContext(ctx)
	}

	now := time.Now().UTC()
	sessionID := uuid.NewString()
	familyID := uuid.NewString()

	deviceHash := ""
	if deviceFingerprint != "" {
		deviceHash = internal.HashBindingValueHex(deviceFingerprint)
	}

	accessTTL := g.accessTTLFor(principal.Class)
	refreshTTL := g.config.Token.RefreshTTL

	refreshToken, refreshClaims, err := g.tokens.Create(
		token.TypeRefresh, principal.ID, principal.Roles,
		sessionID, familyID, deviceHash, ip, refreshTTL, now,
	)
	if err != nil {
		return nil, err
	}

	accessToken, _, err := g.tokens.Create(
		token.TypeAccess, principal.ID, principal.Roles,
		sessionID, familyID, deviceHash, ip, accessTTL, now,
	)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		SessionID:    sessionID,
		PrincipalID:  principal.ID,
		FamilyID:     familyID,
		DeviceHash:   internal.HashBindingValue(deviceFingerprint),
		IPHash:       internal.HashBindingValue(ip),
		CreatedAt:    now.Unix(),
		LastActivity: now.Unix(),
		ExpiresAt:    now.Add(g.config.Session.Lifetime).Unix(),
	}

	evicted, err := g.sessions.Save(ctx, sess, g.config.Session.Lifetime, refreshClaims.ID, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if evicted != nil {
		g.metricInc(MetricSessionEvicted)
		g.emitAudit(ctx, auditEventSessionEvicted, AuditWarning, true,
			evicted.PrincipalID, evicted.SessionID, "",
			"session evicted by concurrency cap", nil,
			map[string]string{"replaced_by": sessionID})
	}

	g.metricInc(MetricTokenIssued)
	g.emitAudit(ctx, auditEventTokenIssued, AuditInfo, true,
		principal.ID, sessionID, deviceHash, "token pair issued", nil, nil)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token. The presented token must be of type
// "refresh", match the bound device fingerprint exactly, and be the
// current token for its family. Reuse of an already-rotated token is
// treated as theft: the whole session is invalidated. All rotation checks
// fail closed.
func (g *Guard) Refresh(ctx context.Context, refreshToken, deviceFingerprint, ip string) (*TokenPair, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}
	if deviceFingerprint == "" {
		deviceFingerprint = deviceFingerprintFromContext(ctx)
	}
	if ip == "" {
		ip = clientIPFromContext(ctx)
	}

	claims, err := g.tokens.ParseTyped(refreshToken, token.TypeRefresh)
	if err != nil {
		g.metricInc(MetricRefreshFailure)
		g.emitAudit(ctx, auditEventRefreshInvalid, AuditError, false,
			"", "", "", "refresh token rejected", err, nil)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	// Denylist lookup fails open: a down cache must not strand every
	// client, and rotation below still guards against replay.
	if blocked, reason, derr := g.denylist.Contains(ctx, claims.ID); derr != nil {
		g.logger.Warn("denylist check failed during refresh", zap.Error(derr))
	} else if blocked {
		g.metricInc(MetricRefreshFailure)
		g.emitAudit(ctx, auditEventRefreshInvalid, AuditError, false,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"refresh token revoked", nil, map[string]string{"reason": reason})
		return nil, ErrTokenInvalid
	}

	// Hard binding: a fingerprint mismatch on refresh always rejects,
	// unlike validation.
	presentedHash := ""
	if deviceFingerprint != "" {
		presentedHash = internal.HashBindingValueHex(deviceFingerprint)
	}
	if claims.DeviceHash != "" && presentedHash != claims.DeviceHash {
		g.metricInc(MetricDeviceMismatchHard)
		g.metricInc(MetricRefreshFailure)
		g.emitAudit(ctx, auditEventDeviceMismatch, AuditError, false,
			claims.Subject, claims.SessionID, presentedHash,
			"device mismatch on refresh", nil, nil)
		return nil, ErrDeviceMismatch
	}

	sess, err := g.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		g.metricInc(MetricRefreshFailure)
		if errors.Is(err, session.ErrSessionNotFound) {
			g.emitAudit(ctx, auditEventRefreshInvalid, AuditError, false,
				claims.Subject, claims.SessionID, claims.DeviceHash,
				"refresh against missing session", nil, nil)
			return nil, ErrSessionNotFound
		}
		// Rotation state unknown: fail closed.
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	now := time.Now().UTC()
	refreshTTL := g.config.Token.RefreshTTL

	newRefresh, newRefreshClaims, err := g.tokens.Create(
		token.TypeRefresh, claims.Subject, claims.Roles,
		claims.SessionID, claims.FamilyID, claims.DeviceHash, ip, refreshTTL, now,
	)
	if err != nil {
		return nil, err
	}

	err = g.sessions.RotateFamily(ctx, claims.FamilyID, claims.ID, newRefreshClaims.ID, refreshTTL)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrFamilyMismatch):
		// The token was already rotated once. Treat as replay and burn
		// the session; the legitimate holder must authenticate again.
		g.metricInc(MetricRefreshReuseDetected)
		if ierr := g.sessions.Invalidate(ctx, sess); ierr != nil {
			g.logger.Error("session invalidation after reuse failed", zap.Error(ierr))
		}
		g.emitAudit(ctx, auditEventRefreshReuse, AuditCritical, false,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"refresh token reuse detected; session invalidated", nil, nil)
		return nil, ErrRefreshReuse
	case errors.Is(err, session.ErrFamilyNotFound):
		// Family evicted or invalidated. A refresh racing either must
		// observe the miss and fail closed.
		g.metricInc(MetricRefreshFailure)
		g.emitAudit(ctx, auditEventRefreshInvalid, AuditError, false,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"refresh against dead token family", nil, nil)
		return nil, ErrTokenInvalid
	default:
		g.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	accessTTL := g.config.Token.AccessTTL
	newAccess, _, err := g.tokens.Create(
		token.TypeAccess, claims.Subject, claims.Roles,
		claims.SessionID, claims.FamilyID, claims.DeviceHash, ip, accessTTL, now,
	)
	if err != nil {
		return nil, err
	}

	if terr := g.sessions.Touch(ctx, sess, now); terr != nil {
		g.logger.Warn("session touch failed", zap.Error(terr))
	}

	g.metricInc(MetricRefreshSuccess)
	g.emitAudit(ctx, auditEventRefreshSuccess, AuditInfo, true,
		claims.Subject, claims.SessionID, claims.DeviceHash,
		"refresh token rotated", nil, nil)

	return &TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		SessionID:    claims.SessionID,
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, nil
}

// ValidateToken verifies an access token: signature, expiry, not-before,
// issued-at skew, denylist, and session existence. A device fingerprint
// mismatch is recorded but never fails validation; roaming clients are
// tolerated here. Denylist and session checks fail open.
func (g *Guard) ValidateToken(ctx context.Context, tokenStr, deviceFingerprint, ip string) bool {
	if g == nil {
		return false
	}
	start := time.Now()
	defer g.observeValidate(start)

	claims, err := g.tokens.ParseTyped(tokenStr, token.TypeAccess)
	if err != nil {
		g.metricInc(MetricTokenValidateFailure)
		g.emitAudit(ctx, auditEventTokenValidateFailed, AuditWarning, false,
			"", "", "", "access token rejected", err, nil)
		return false
	}

	if blocked, reason, derr := g.denylist.Contains(ctx, claims.ID); derr != nil {
		g.logger.Warn("denylist check failed during validation", zap.Error(derr))
	} else if blocked {
		g.metricInc(MetricTokenValidateFailure)
		g.emitAudit(ctx, auditEventTokenValidateFailed, AuditWarning, false,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"access token revoked", nil, map[string]string{"reason": reason})
		return false
	}

	if _, serr := g.sessions.Get(ctx, claims.SessionID); serr != nil {
		if errors.Is(serr, session.ErrSessionNotFound) {
			g.metricInc(MetricTokenValidateFailure)
			g.emitAudit(ctx, auditEventTokenValidateFailed, AuditWarning, false,
				claims.Subject, claims.SessionID, claims.DeviceHash,
				"access token for missing session", nil, nil)
			return false
		}
		g.logger.Warn("session check failed during validation", zap.Error(serr))
	}

	if deviceFingerprint == "" {
		deviceFingerprint = deviceFingerprintFromContext(ctx)
	}
	if claims.DeviceHash != "" && deviceFingerprint != "" &&
		internal.HashBindingValueHex(deviceFingerprint) != claims.DeviceHash {
		// Soft mismatch: logged, counted, allowed through.
		g.metricInc(MetricDeviceMismatchSoft)
		g.emitAudit(ctx, auditEventDeviceMismatch, AuditWarning, true,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"device mismatch on validation", nil,
			map[string]string{"ip": ip})
	}

	g.metricInc(MetricTokenValidateSuccess)
	return true
}

// GetSecurityContext decodes a valid access token into its identity
// claims. Unlike ValidateToken it does not consult the denylist or the
// session registry; use it after validation to avoid double round-trips.
func (g *Guard) GetSecurityContext(tokenStr string) (*SecurityContext, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}

	claims, err := g.tokens.ParseTyped(tokenStr, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	sc := &SecurityContext{
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
		FamilyID:  claims.FamilyID,
		Device:    claims.DeviceHash,
		IP:        claims.IP,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		sc.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		sc.IssuedAt = claims.IssuedAt.Time
	}
	return sc, nil
}

// RevokeToken denylists a token for exactly its remaining lifetime. An
// already-expired token is a no-op and is never written.
func (g *Guard) RevokeToken(ctx context.Context, tokenStr, reason string) error {
	if g == nil {
		return ErrGuardNotReady
	}

	claims, expired, err := g.tokens.ParseExpired(tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if expired {
		g.emitAudit(ctx, auditEventTokenRevoked, AuditInfo, true,
			claims.Subject, claims.SessionID, claims.DeviceHash,
			"revoke of expired token skipped", nil,
			map[string]string{"reason": reason})
		return nil
	}

	remaining := time.Duration(0)
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	if err := g.denylist.Add(ctx, claims.ID, reason, remaining); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	g.metricInc(MetricTokenRevoked)
	g.emitAudit(ctx, auditEventTokenRevoked, AuditInfo, true,
		claims.Subject, claims.SessionID, claims.DeviceHash,
		"token revoked", nil, map[string]string{"reason": reason})
	return nil
}

// Logout revokes the presented access token and invalidates its session,
// killing the refresh family with it.
func (g *Guard) Logout(ctx context.Context, tokenStr string) error {
	if g == nil {
		return ErrGuardNotReady
	}

	claims, expired, err := g.tokens.ParseExpired(tokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !expired && claims.ExpiresAt != nil {
		if derr := g.denylist.Add(ctx, claims.ID, "logout", time.Until(claims.ExpiresAt.Time)); derr != nil {
			g.logger.Warn("denylist write failed during logout", zap.Error(derr))
		}
	}

	if err := g.sessions.InvalidateByID(ctx, claims.SessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	g.metricInc(MetricSessionInvalidated)
	g.emitAudit(ctx, auditEventSessionInvalidated, AuditInfo, true,
		claims.Subject, claims.SessionID, claims.DeviceHash,
		"logout", nil, nil)
	return nil
}
