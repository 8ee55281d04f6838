package authguard

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memCredentialStore is an in-memory CredentialStore. Identifier lookup
// resolves via any alternate key registered for the account.
type memCredentialStore struct {
	mu      sync.Mutex
	records map[string]*CredentialRecord
	aliases map[string]string
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{
		records: make(map[string]*CredentialRecord),
		aliases: make(map[string]string),
	}
}

func (s *memCredentialStore) add(record *CredentialRecord, identifiers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.PrincipalID] = record
	for _, id := range identifiers {
		s.aliases[strings.ToLower(id)] = record.PrincipalID
	}
}

func (s *memCredentialStore) FindByIdentifier(_ context.Context, identifier string) (*CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	principalID, ok := s.aliases[strings.ToLower(identifier)]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	record := *s.records[principalID]
	return &record, nil
}

func (s *memCredentialStore) Save(_ context.Context, record *CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *record
	s.records[record.PrincipalID] = &saved
	return nil
}

func (s *memCredentialStore) get(principalID string) *CredentialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[principalID]; ok {
		out := *r
		return &out
	}
	return nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	return cfg
}

func newTestGuard(t *testing.T, cfg Config) (*Guard, *miniredis.Miniredis, *memCredentialStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMemCredentialStore()
	store.add(&CredentialRecord{PrincipalID: "user1", Status: StatusActive},
		"user1", "user1@example.com")

	guard, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(guard.Close)

	return guard, mr, store
}
