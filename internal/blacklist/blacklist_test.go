package blacklist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ag"), mr
}

func TestAdd_Contains(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, "jti-1", "logout", time.Minute); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	found, reason, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !found || reason != "logout" {
		t.Fatalf("expected blacklisted with reason logout, got %v %q", found, reason)
	}

	found, _, err = store.Contains(ctx, "jti-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("unknown token id reported blacklisted")
	}
}

func TestAdd_ExpiredTokenNeverStored(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, "jti-dead", "revoked", -time.Second); err != nil {
		t.Fatalf("Add of expired token should be a no-op, got %v", err)
	}
	if err := store.Add(ctx, "jti-dead", "revoked", 0); err != nil {
		t.Fatalf("Add with zero remaining should be a no-op, got %v", err)
	}
	if mr.Exists("ag:bl:jti-dead") {
		t.Fatal("expired token was written to the blacklist")
	}
}

func TestEntry_ExpiresWithToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Add(ctx, "jti-1", "revoked", 30*time.Second); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("ag:bl:jti-1"); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("blacklist TTL exceeds remaining token lifetime: %v", ttl)
	}

	mr.FastForward(time.Minute)

	found, _, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("entry outlived the token's natural lifetime")
	}
}
