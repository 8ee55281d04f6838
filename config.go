package authguard

import (
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/authguard-dev/authguard/internal/rate"
)

// Config is the full engine configuration. Zero values are filled from
// [DefaultConfig] by the Builder; only signing keys have no default.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	Lockout   LockoutConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig controls signing and lifetime of issued tokens.
type TokenConfig struct {
	// AccessTTL is the access token lifetime for ClassUser principals.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ServiceAccessTTL and AdminAccessTTL override AccessTTL per class.
	// Zero means "use AccessTTL".
	ServiceAccessTTL time.Duration
	AdminAccessTTL   time.Duration

	// SigningMethod is "ed25519" or "hs256".
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte

	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp/nbf. MaxFutureIAT bounds how far
	// in the future an issued-at may sit before the token is rejected as
	// clock tampering.
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// SessionConfig controls the Redis session registry.
type SessionConfig struct {
	RedisPrefix string
	// MaxPerPrincipal caps concurrent sessions; exceeding it evicts the
	// oldest session by creation time.
	MaxPerPrincipal int
	// Lifetime is the absolute session TTL. Sessions also die when their
	// refresh family does.
	Lifetime time.Duration
}

// LockoutConfig controls the failed-login state machine and its secondary
// counters.
type LockoutConfig struct {
	MaxAttempts      int
	LockDuration     time.Duration
	CaptchaThreshold int

	DelayBase       time.Duration
	DelayMax        time.Duration
	DelayCounterTTL time.Duration

	IPFailureThreshold int
	IPFailureWindow    time.Duration
	IPBlockDuration    time.Duration

	DeviceChurnThreshold int
	DeviceChurnWindow    time.Duration
	VelocityThreshold    int
	VelocityWindow       time.Duration
}

// RateLimitConfig controls sliding-window admission.
type RateLimitConfig struct {
	// Rules maps category tags to (limit, window) pairs. Empty means the
	// default table.
	Rules map[RateCategory]rate.Rule
	// TTLBuffer pads the window key TTL so a key cannot expire mid-window.
	TTLBuffer time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull trades completeness for non-blocking emission under
	// backpressure.
	DropIfFull bool
}

// MetricsConfig controls in-process metric recording.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the stock configuration. Signing keys must still
// be supplied before Build.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       7 * 24 * time.Hour,
			ServiceAccessTTL: time.Hour,
			AdminAccessTTL:   5 * time.Minute,
			SigningMethod:    "ed25519",
			Issuer:           "authguard",
			Audience:         "authguard",
			Leeway:           30 * time.Second,
			MaxFutureIAT:     time.Minute,
		},
		Session: SessionConfig{
			RedisPrefix:     "ag",
			MaxPerPrincipal: 5,
			Lifetime:        7 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			MaxAttempts:          3,
			LockDuration:         15 * time.Minute,
			CaptchaThreshold:     2,
			DelayBase:            5 * time.Second,
			DelayMax:             60 * time.Second,
			DelayCounterTTL:      time.Hour,
			IPFailureThreshold:   10,
			IPFailureWindow:      time.Hour,
			IPBlockDuration:      time.Hour,
			DeviceChurnThreshold: 3,
			DeviceChurnWindow:    24 * time.Hour,
			VelocityThreshold:    5,
			VelocityWindow:       15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Rules:     rate.DefaultRules(),
			TTLBuffer: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// ConfigFromEnv loads a .env file when present and overlays environment
// variables onto [DefaultConfig]. Unset variables keep their defaults.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_SIGNING_METHOD")); v != "" {
		cfg.Token.SigningMethod = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_PRIVATE_KEY")); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return Config{}, errors.New("AUTHGUARD_PRIVATE_KEY is not valid base64")
		}
		cfg.Token.PrivateKey = key
	}
	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_PUBLIC_KEY")); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return Config{}, errors.New("AUTHGUARD_PUBLIC_KEY is not valid base64")
		}
		cfg.Token.PublicKey = key
	}
	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_ISSUER")); v != "" {
		cfg.Token.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_AUDIENCE")); v != "" {
		cfg.Token.Audience = v
	}

	var err error
	if cfg.Token.AccessTTL, err = envDuration("AUTHGUARD_ACCESS_TTL", cfg.Token.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.Token.RefreshTTL, err = envDuration("AUTHGUARD_REFRESH_TTL", cfg.Token.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.Lockout.LockDuration, err = envDuration("AUTHGUARD_LOCK_DURATION", cfg.Lockout.LockDuration); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("AUTHGUARD_REDIS_PREFIX")); v != "" {
		cfg.Session.RedisPrefix = v
	}
	if cfg.Session.MaxPerPrincipal, err = envInt("AUTHGUARD_MAX_SESSIONS", cfg.Session.MaxPerPrincipal); err != nil {
		return Config{}, err
	}
	if cfg.Lockout.MaxAttempts, err = envInt("AUTHGUARD_MAX_ATTEMPTS", cfg.Lockout.MaxAttempts); err != nil {
		return Config{}, err
	}

	cfg.Audit.Enabled = envBool("AUTHGUARD_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = envBool("AUTHGUARD_METRICS_ENABLED", cfg.Metrics.Enabled)

	return cfg, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(name + " is not a valid duration")
	}
	return d, nil
}

func envInt(name string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(name + " is not a valid integer")
	}
	return n, nil
}

func envBool(name string, fallback bool) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.SigningMethod != "ed25519" && c.Token.SigningMethod != "hs256" {
		return errors.New("unsupported signing method")
	}
	if len(c.Token.PrivateKey) == 0 {
		return ErrSigningKeyMissing
	}
	if c.Token.SigningMethod == "ed25519" && len(c.Token.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.Token.Leeway < 0 || c.Token.MaxFutureIAT < 0 {
		return errors.New("Token Leeway and MaxFutureIAT must be >= 0")
	}

	if c.Session.MaxPerPrincipal <= 0 {
		return errors.New("Session MaxPerPrincipal must be > 0")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout LockDuration must be > 0")
	}
	if c.Lockout.CaptchaThreshold <= 0 || c.Lockout.CaptchaThreshold > c.Lockout.MaxAttempts {
		return errors.New("Lockout CaptchaThreshold must be in 1..MaxAttempts")
	}
	if c.Lockout.DelayBase <= 0 || c.Lockout.DelayMax < c.Lockout.DelayBase {
		return errors.New("Lockout delay bounds invalid")
	}
	if c.Lockout.IPFailureThreshold <= 0 || c.Lockout.IPFailureWindow <= 0 || c.Lockout.IPBlockDuration <= 0 {
		return errors.New("Lockout IP failure settings must be > 0")
	}

	for category, rule := range c.RateLimit.Rules {
		if rule.Limit <= 0 || rule.Window <= 0 {
			return errors.New("RateLimit rule for " + string(category) + " must have positive limit and window")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	if cfg.RateLimit.Rules != nil {
		rules := make(map[RateCategory]rate.Rule, len(cfg.RateLimit.Rules))
		for k, v := range cfg.RateLimit.Rules {
			rules[k] = v
		}
		out.RateLimit.Rules = rules
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
