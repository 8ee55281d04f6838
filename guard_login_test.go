package authguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordFailedLoginLocksAtThreshold(t *testing.T) {
	guard, _, store := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	var last *ProtectionResult
	for i := 0; i < 3; i++ {
		result, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		last = result
	}

	if !last.Locked {
		t.Fatal("expected locked=true on third failure")
	}
	if last.RemainingAttempts != 0 {
		t.Errorf("RemainingAttempts = %d, want 0", last.RemainingAttempts)
	}
	if last.DelaySeconds != 0 {
		t.Errorf("DelaySeconds = %d, want 0", last.DelaySeconds)
	}
	wantUntil := time.Now().Add(15 * time.Minute)
	if diff := last.LockUntil.Sub(wantUntil); diff < -time.Minute || diff > time.Minute {
		t.Errorf("LockUntil = %v, want ~%v", last.LockUntil, wantUntil)
	}

	record := store.get("user1")
	if record.Status != StatusLocked || !record.LockedByGuard {
		t.Errorf("stored record = %+v, want locked by guard", record)
	}
}

func TestLockedAccountRejectedBeforeCredentialComparison(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	err := guard.CheckLoginAllowed(ctx, "user1", "198.51.100.1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	until, ok := AsLocked(err)
	if !ok || !until.After(time.Now()) {
		t.Errorf("AsLocked = (%v, %v), want future unlock time", until, ok)
	}
}

func TestProgressiveDelaySequence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.MaxAttempts = 10
	guard, _, _ := newTestGuard(t, cfg)
	ctx := context.Background()

	want := []int{5, 10, 20, 40, 60, 60}
	for i, wantDelay := range want {
		result, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if result.DelaySeconds != wantDelay {
			t.Errorf("attempt %d: DelaySeconds = %d, want %d", i+1, result.DelaySeconds, wantDelay)
		}
	}
}

func TestCaptchaRequiredAtThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.MaxAttempts = 5
	guard, _, _ := newTestGuard(t, cfg)
	ctx := context.Background()

	first, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a")
	if err != nil {
		t.Fatal(err)
	}
	if first.RequiresCaptcha {
		t.Error("captcha required after one failure")
	}

	second, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a")
	if err != nil {
		t.Fatal(err)
	}
	if !second.RequiresCaptcha {
		t.Error("captcha not required at threshold")
	}
}

func TestLoginSuccessResetsState(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.MaxAttempts = 5
	guard, _, store := newTestGuard(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a"); err != nil {
			t.Fatal(err)
		}
	}
	if err := guard.RecordLoginSuccess(ctx, "user1"); err != nil {
		t.Fatal(err)
	}

	if record := store.get("user1"); record.AttemptCount != 0 {
		t.Errorf("AttemptCount after success = %d, want 0", record.AttemptCount)
	}

	// Delay restarts from the base value.
	result, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a")
	if err != nil {
		t.Fatal(err)
	}
	if result.DelaySeconds != 5 {
		t.Errorf("DelaySeconds after reset = %d, want 5", result.DelaySeconds)
	}
	if result.RequiresCaptcha {
		t.Error("captcha still required after reset")
	}
}

func TestLockExpiryClearsLazily(t *testing.T) {
	guard, _, store := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	record := store.get("user1")
	record.Status = StatusLocked
	record.LockedUntil = time.Now().Add(-time.Minute)
	record.LockedByGuard = true
	record.AttemptCount = 3
	if err := store.Save(ctx, record); err != nil {
		t.Fatal(err)
	}

	if err := guard.CheckLoginAllowed(ctx, "user1", "198.51.100.1"); err != nil {
		t.Fatalf("expected expired lock to clear, got %v", err)
	}
	cleared := store.get("user1")
	if cleared.Status != StatusActive || cleared.AttemptCount != 0 {
		t.Errorf("record after lazy clear = %+v", cleared)
	}
}

func TestOperatorLockNotClearedBySuccess(t *testing.T) {
	guard, _, store := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	record := store.get("user1")
	record.Status = StatusLocked
	record.LockedUntil = time.Now().Add(time.Hour)
	record.LockedByGuard = false
	if err := store.Save(ctx, record); err != nil {
		t.Fatal(err)
	}

	if err := guard.RecordLoginSuccess(ctx, "user1"); err != nil {
		t.Fatal(err)
	}
	if after := store.get("user1"); after.Status != StatusLocked {
		t.Error("success cleared a lock this engine did not set")
	}
}

func TestOperatorLockWithoutExpiryHolds(t *testing.T) {
	guard, _, store := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	record := store.get("user1")
	record.Status = StatusLocked
	record.LockedByGuard = false
	if err := store.Save(ctx, record); err != nil {
		t.Fatal(err)
	}

	// No LockedUntil at all: locked until an operator clears it.
	err := guard.CheckLoginAllowed(ctx, "user1", "198.51.100.1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("zero-expiry operator lock passed the gate: %v", err)
	}

	// A stale past expiry on an operator lock holds too.
	record = store.get("user1")
	record.LockedUntil = time.Now().Add(-time.Hour)
	if err := store.Save(ctx, record); err != nil {
		t.Fatal(err)
	}
	err = guard.CheckLoginAllowed(ctx, "user1", "198.51.100.1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("past-expiry operator lock passed the gate: %v", err)
	}
	if after := store.get("user1"); after.Status != StatusLocked {
		t.Error("gate mutated a lock this engine did not set")
	}
}

func TestUnknownIdentifierNeverLocks(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := guard.RecordFailedLogin(ctx, "ghost@example.com", "198.51.100.1", "dev-a")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if result.Locked {
			t.Fatalf("attempt %d: unknown identifier reported locked", i+1)
		}
	}

	if err := guard.CheckLoginAllowed(ctx, "ghost@example.com", "198.51.100.1"); err != nil {
		t.Fatalf("unknown identifier gate = %v, want nil", err)
	}
}

func TestIPHardBlockAfterThreshold(t *testing.T) {
	guard, _, _ := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	// Unknown identifiers still feed the per-IP counter.
	for i := 0; i < 10; i++ {
		if _, err := guard.RecordFailedLogin(ctx, "ghost@example.com", "203.0.113.50", "dev-a"); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	err := guard.CheckLoginAllowed(ctx, "user1", "203.0.113.50")
	if !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("expected ErrIPBlocked, got %v", err)
	}

	// A clean address is unaffected.
	if err := guard.CheckLoginAllowed(ctx, "user1", "198.51.100.9"); err != nil {
		t.Fatalf("clean ip gate = %v, want nil", err)
	}
}

func TestAlternateIdentifierResolvesSameAccount(t *testing.T) {
	guard, _, store := newTestGuard(t, testConfig(t))
	ctx := context.Background()

	if _, err := guard.RecordFailedLogin(ctx, "user1", "198.51.100.1", "dev-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := guard.RecordFailedLogin(ctx, "user1@example.com", "198.51.100.1", "dev-a"); err != nil {
		t.Fatal(err)
	}

	if record := store.get("user1"); record.AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2 across alternate identifiers", record.AttemptCount)
	}
}
