package authguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestActiveSessionsListsIssuedPairs(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	if sessions, err := guard.ActiveSessions(ctx, "p1"); err != nil || len(sessions) != 0 {
		t.Fatalf("fresh principal: sessions=%d err=%v", len(sessions), err)
	}

	principal := &Principal{ID: "p1", Identifier: "user1", Class: ClassUser}
	for i := 0; i < 3; i++ {
		if _, err := guard.IssueTokenPair(ctx, principal, "dev", "198.51.100.1"); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := guard.ActiveSessions(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	now := time.Now()
	for _, s := range sessions {
		if s.PrincipalID != "p1" {
			t.Errorf("session %s has principal %q", s.SessionID, s.PrincipalID)
		}
		if s.ExpiresAt.Before(now) {
			t.Errorf("session %s already expired: %v", s.SessionID, s.ExpiresAt)
		}
		if s.CreatedAt.IsZero() || s.LastActivity.IsZero() {
			t.Errorf("session %s has zero timestamps", s.SessionID)
		}
	}
}

func TestActiveSessionsPrunesExpired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Lifetime = time.Second
	guard, mr, _ := newTestGuard(t, cfg)
	ctx := context.Background()

	principal := &Principal{ID: "p1", Identifier: "user1", Class: ClassUser}
	if _, err := guard.IssueTokenPair(ctx, principal, "dev", "198.51.100.1"); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(5 * time.Second)
	time.Sleep(1100 * time.Millisecond)

	sessions, err := guard.ActiveSessions(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expired session still listed: %+v", sessions)
	}
}

func TestInvalidateSessionUnknown(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))

	err := guard.InvalidateSession(context.Background(), "no-such-session", "test")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInvalidateSessionRemovesIt(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	principal := &Principal{ID: "p1", Identifier: "user1", Class: ClassUser}
	pair, err := guard.IssueTokenPair(ctx, principal, "dev", "198.51.100.1")
	if err != nil {
		t.Fatal(err)
	}
	sessions, err := guard.ActiveSessions(ctx, "p1")
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions=%d err=%v", len(sessions), err)
	}

	if err := guard.InvalidateSession(ctx, sessions[0].SessionID, "operator"); err != nil {
		t.Fatal(err)
	}

	if sessions, _ := guard.ActiveSessions(ctx, "p1"); len(sessions) != 0 {
		t.Fatal("session still listed after invalidation")
	}
	if _, err := guard.Refresh(ctx, pair.RefreshToken, "dev", "198.51.100.1"); err == nil {
		t.Fatal("refresh survived session invalidation")
	}
}
