package authguard

import (
	"context"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/authguard-dev/authguard/internal/audit"
	"github.com/authguard-dev/authguard/internal/rate"
)

// PrincipalClass selects the token TTL profile for a principal. Service
// principals typically get longer-lived access tokens than interactive
// users.
type PrincipalClass uint8

const (
	// ClassUser is the default interactive-user profile.
	ClassUser PrincipalClass = iota
	// ClassService is the machine-to-machine profile.
	ClassService
	// ClassAdmin is the short-TTL elevated profile.
	ClassAdmin
)

// Principal is the authenticated subject a token pair is issued for.
type Principal struct {
	ID         string
	Identifier string
	Roles      []string
	Class      PrincipalClass
}

// CredentialStatus is the lifecycle state of a credential record.
type CredentialStatus uint8

const (
	// StatusActive means the account may authenticate.
	StatusActive CredentialStatus = iota
	// StatusLocked means the lockout state machine holds the account.
	StatusLocked
	// StatusDisabled means an operator disabled the account.
	StatusDisabled
)

// CredentialRecord is the durable protection state for one account. It is
// deliberately minimal: credential verification itself happens outside
// this engine.
type CredentialRecord struct {
	PrincipalID  string
	AttemptCount int
	LockedUntil  time.Time
	Status       CredentialStatus
	// LockedByGuard records whether the engine applied the current lock.
	// Success-reset only clears locks the engine itself set.
	LockedByGuard bool
}

// CredentialStore is the durable backend for protection state. Identifier
// lookup must resolve via any of the account's alternate keys (username,
// email, phone).
type CredentialStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*CredentialRecord, error)
	Save(ctx context.Context, record *CredentialRecord) error
}

// TokenPair is the result of issuance and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int64
}

// SecurityContext is the decoded identity carried by a valid access token.
type SecurityContext struct {
	Subject   string
	Roles     []string
	SessionID string
	FamilyID  string
	Device    string
	IP        string
	ExpiresAt time.Time
	IssuedAt  time.Time
	TokenID   string
}

// ProtectionResult reports the lockout state machine's verdict after a
// recorded failure.
type ProtectionResult struct {
	Locked            bool
	LockUntil         time.Time
	DelaySeconds      int
	RequiresCaptcha   bool
	RemainingAttempts int
	Message           string
}

// RateLimitStatus is a pure read of one key's sliding window.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	ResetTime time.Time
	Blocked   bool
}

// SessionInfo is the externally visible session descriptor.
type SessionInfo struct {
	SessionID    string
	PrincipalID  string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// RateCategory selects a (limit, window) pair from the admission table.
type RateCategory = rate.Category

const (
	CategoryAPI           = rate.CategoryAPI
	CategoryLogin         = rate.CategoryLogin
	CategorySensitive     = rate.CategorySensitive
	CategoryPasswordReset = rate.CategoryPasswordReset
	CategoryMFA           = rate.CategoryMFA
)

// AuditEvent is the record emitted on every guard transition.
type AuditEvent = internalaudit.Event

// AuditSink receives emitted audit events.
type AuditSink = internalaudit.Sink

// AuditSeverity classifies an audit event.
type AuditSeverity = internalaudit.Severity

const (
	AuditInfo     = internalaudit.SeverityInfo
	AuditWarning  = internalaudit.SeverityWarning
	AuditError    = internalaudit.SeverityError
	AuditCritical = internalaudit.SeverityCritical
)

// NewChannelAuditSink returns a sink backed by a buffered channel.
func NewChannelAuditSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink writing one JSON line per event.
func NewJSONAuditSink(w io.Writer) *internalaudit.JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapAuditSink returns a sink logging each event at the
// severity-appropriate level.
func NewZapAuditSink(logger *zap.Logger) *internalaudit.ZapSink {
	return internalaudit.NewZapSink(logger)
}

// NewRedisAuditSink returns a sink persisting events for point lookup and
// per-day time-series queries.
func NewRedisAuditSink(client redis.UniversalClient, prefix string) *internalaudit.RedisSink {
	return internalaudit.NewRedisSink(client, prefix)
}

// NewSentryAuditSink returns a sink forwarding critical events to Sentry.
func NewSentryAuditSink() *internalaudit.SentrySink {
	return internalaudit.NewSentrySink()
}

// NewMultiAuditSink fans events out to every given sink.
func NewMultiAuditSink(sinks ...AuditSink) *internalaudit.MultiSink {
	return internalaudit.NewMultiSink(sinks...)
}
