package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authguard-dev/authguard/session"
)

// ActiveSessions lists the principal's live sessions. Expired descriptors
// are pruned lazily during the read; there is no background sweep.
func (g *Guard) ActiveSessions(ctx context.Context, principalID string) ([]SessionInfo, error) {
	if g == nil {
		return nil, ErrGuardNotReady
	}

	live, err := g.sessions.Active(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(live))
	for _, s := range live {
		out = append(out, SessionInfo{
			SessionID:    s.SessionID,
			PrincipalID:  s.PrincipalID,
			CreatedAt:    time.Unix(s.CreatedAt, 0).UTC(),
			LastActivity: time.Unix(s.LastActivity, 0).UTC(),
			ExpiresAt:    time.Unix(s.ExpiresAt, 0).UTC(),
		})
	}
	return out, nil
}

// InvalidateSession removes one session and its refresh family. A refresh
// racing this call observes the family-key miss and fails closed.
func (g *Guard) InvalidateSession(ctx context.Context, sessionID, reason string) error {
	if g == nil {
		return ErrGuardNotReady
	}

	sess, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if err := g.sessions.Invalidate(ctx, sess); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	g.metricInc(MetricSessionInvalidated)
	g.emitAudit(ctx, auditEventSessionInvalidated, AuditInfo, true,
		sess.PrincipalID, sess.SessionID, "", "session invalidated", nil,
		map[string]string{"reason": reason})
	return nil
}
