package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/authguard-dev/authguard"
)

// PgxPool is the subset of pgxpool.Pool the store uses. It is satisfied
// by *pgxpool.Pool and by pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements authguard.CredentialStore on PostgreSQL.
type Store struct {
	pool PgxPool
}

// New connects a pool for the given DSN and wraps it in a Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authguard.ErrStoreUnavailable, err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. Useful for tests and shared pools.
func NewWithPool(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

const findQuery = `
SELECT principal_id, attempt_count, locked_until, status, locked_by_guard
FROM guard_credentials
WHERE lower(username) = $1 OR lower(email) = $1 OR phone = $1`

// FindByIdentifier resolves username, email, or phone to the account's
// protection record. Identifier matching is case-insensitive for
// username and email.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*authguard.CredentialRecord, error) {
	ident := strings.ToLower(strings.TrimSpace(identifier))
	if ident == "" {
		return nil, authguard.ErrPrincipalNotFound
	}

	var (
		record      authguard.CredentialRecord
		lockedUntil *time.Time
		status      string
	)
	row := s.pool.QueryRow(ctx, findQuery, ident)
	err := row.Scan(&record.PrincipalID, &record.AttemptCount, &lockedUntil, &status, &record.LockedByGuard)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authguard.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: %v", authguard.ErrStoreUnavailable, err)
	}

	if lockedUntil != nil {
		record.LockedUntil = lockedUntil.UTC()
	}
	record.Status, err = parseStatus(status)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

const saveQuery = `
UPDATE guard_credentials
SET attempt_count = $2, locked_until = $3, status = $4, locked_by_guard = $5
WHERE principal_id = $1`

// Save writes the record's protection fields back to its row.
func (s *Store) Save(ctx context.Context, record *authguard.CredentialRecord) error {
	var lockedUntil *time.Time
	if !record.LockedUntil.IsZero() {
		u := record.LockedUntil.UTC()
		lockedUntil = &u
	}

	tag, err := s.pool.Exec(ctx, saveQuery,
		record.PrincipalID, record.AttemptCount, lockedUntil,
		statusString(record.Status), record.LockedByGuard)
	if err != nil {
		return fmt.Errorf("%w: %v", authguard.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authguard.ErrPrincipalNotFound
	}
	return nil
}

func parseStatus(s string) (authguard.CredentialStatus, error) {
	switch s {
	case "active":
		return authguard.StatusActive, nil
	case "locked":
		return authguard.StatusLocked, nil
	case "disabled":
		return authguard.StatusDisabled, nil
	default:
		return 0, fmt.Errorf("%w: unknown credential status %q", authguard.ErrStoreUnavailable, s)
	}
}

func statusString(s authguard.CredentialStatus) string {
	switch s {
	case authguard.StatusLocked:
		return "locked"
	case authguard.StatusDisabled:
		return "disabled"
	default:
		return "active"
	}
}
