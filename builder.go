package authguard

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/authguard-dev/authguard/internal/audit"
	"github.com/authguard-dev/authguard/internal/blacklist"
	"github.com/authguard-dev/authguard/internal/limiters"
	internalmetrics "github.com/authguard-dev/authguard/internal/metrics"
	"github.com/authguard-dev/authguard/internal/rate"
	"github.com/authguard-dev/authguard/session"
	"github.com/authguard-dev/authguard/token"
)

// Builder assembles a [Guard]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	auditSink   AuditSink
	logger      *zap.Logger

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache client backing sessions, counters, and the
// rate limiter.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the durable protection-state backend.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithAuditSink sets the audit destination. Combine several with
// [NewMultiAuditSink]. Setting a sink enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithLogger sets the structured logger for operational messages.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles counter recording.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine together.
func (b *Builder) Build() (*Guard, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tm, err := token.NewManager(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		MaxFutureIAT:  cfg.Token.MaxFutureIAT,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	guard := &Guard{
		config:   cfg,
		logger:   logger,
		tokens:   tm,
		sessions: session.NewRegistry(b.redis, prefix, cfg.Session.MaxPerPrincipal),
		denylist: blacklist.NewStore(b.redis, prefix),
		limiter: rate.New(b.redis, prefix, rate.Config{
			Rules:     cfg.RateLimit.Rules,
			TTLBuffer: cfg.RateLimit.TTLBuffer,
		}),
		delays: limiters.NewDelayTracker(b.redis, prefix, limiters.DelayConfig{
			Base:       cfg.Lockout.DelayBase,
			Max:        cfg.Lockout.DelayMax,
			CounterTTL: cfg.Lockout.DelayCounterTTL,
		}),
		ipFailures: limiters.NewIPFailureLimiter(b.redis, prefix, limiters.IPFailureConfig{
			Threshold: cfg.Lockout.IPFailureThreshold,
			Window:    cfg.Lockout.IPFailureWindow,
		}),
		patterns: limiters.NewPatternTracker(b.redis, prefix, limiters.PatternConfig{
			DeviceThreshold:   cfg.Lockout.DeviceChurnThreshold,
			DeviceWindow:      cfg.Lockout.DeviceChurnWindow,
			VelocityThreshold: cfg.Lockout.VelocityThreshold,
			VelocityWindow:    cfg.Lockout.VelocityWindow,
		}),
		credentials: b.credentials,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatencyHistograms,
		}),
	}

	guard.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return guard, nil
}
