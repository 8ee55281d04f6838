package authguard

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authguard-dev/authguard/internal/rate"
)

func TestConfigFromEnvRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("AUTHGUARD_SIGNING_METHOD", "ed25519")
	t.Setenv("AUTHGUARD_PRIVATE_KEY", base64.StdEncoding.EncodeToString(priv))
	t.Setenv("AUTHGUARD_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))
	t.Setenv("AUTHGUARD_ISSUER", "issuer-x")
	t.Setenv("AUTHGUARD_AUDIENCE", "aud-y")
	t.Setenv("AUTHGUARD_ACCESS_TTL", "10m")
	t.Setenv("AUTHGUARD_REFRESH_TTL", "48h")
	t.Setenv("AUTHGUARD_LOCK_DURATION", "30m")
	t.Setenv("AUTHGUARD_REDIS_PREFIX", "envpfx")
	t.Setenv("AUTHGUARD_MAX_SESSIONS", "2")
	t.Setenv("AUTHGUARD_MAX_ATTEMPTS", "7")
	t.Setenv("AUTHGUARD_AUDIT_ENABLED", "yes")
	t.Setenv("AUTHGUARD_METRICS_ENABLED", "1")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if string(cfg.Token.PrivateKey) != string(priv) || string(cfg.Token.PublicKey) != string(pub) {
		t.Error("keys did not survive the base64 round trip")
	}
	if cfg.Token.Issuer != "issuer-x" || cfg.Token.Audience != "aud-y" {
		t.Errorf("issuer/audience: %q/%q", cfg.Token.Issuer, cfg.Token.Audience)
	}
	if cfg.Token.AccessTTL != 10*time.Minute || cfg.Token.RefreshTTL != 48*time.Hour {
		t.Errorf("ttls: %v/%v", cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
	}
	if cfg.Lockout.LockDuration != 30*time.Minute || cfg.Lockout.MaxAttempts != 7 {
		t.Errorf("lockout: %v/%d", cfg.Lockout.LockDuration, cfg.Lockout.MaxAttempts)
	}
	if cfg.Session.RedisPrefix != "envpfx" || cfg.Session.MaxPerPrincipal != 2 {
		t.Errorf("session: %q/%d", cfg.Session.RedisPrefix, cfg.Session.MaxPerPrincipal)
	}
	if !cfg.Audit.Enabled || !cfg.Metrics.Enabled {
		t.Error("boolean toggles not applied")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("round-tripped config failed validation: %v", err)
	}
}

func TestConfigFromEnvKeepsDefaultsWhenUnset(t *testing.T) {
	for _, name := range []string{
		"AUTHGUARD_SIGNING_METHOD", "AUTHGUARD_PRIVATE_KEY", "AUTHGUARD_PUBLIC_KEY",
		"AUTHGUARD_ISSUER", "AUTHGUARD_AUDIENCE", "AUTHGUARD_ACCESS_TTL",
		"AUTHGUARD_REFRESH_TTL", "AUTHGUARD_LOCK_DURATION", "AUTHGUARD_REDIS_PREFIX",
		"AUTHGUARD_MAX_SESSIONS", "AUTHGUARD_MAX_ATTEMPTS",
		"AUTHGUARD_AUDIT_ENABLED", "AUTHGUARD_METRICS_ENABLED",
	} {
		t.Setenv(name, "")
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	if cfg.Token.AccessTTL != want.Token.AccessTTL ||
		cfg.Token.Issuer != want.Token.Issuer ||
		cfg.Session.RedisPrefix != want.Session.RedisPrefix ||
		cfg.Lockout.MaxAttempts != want.Lockout.MaxAttempts ||
		cfg.Audit.Enabled != want.Audit.Enabled {
		t.Errorf("empty environment changed defaults: %+v", cfg)
	}
}

func TestConfigFromEnvRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		name, env, value string
	}{
		{"bad private key base64", "AUTHGUARD_PRIVATE_KEY", "!!not-base64!!"},
		{"bad public key base64", "AUTHGUARD_PUBLIC_KEY", "!!not-base64!!"},
		{"bad access ttl", "AUTHGUARD_ACCESS_TTL", "fifteen minutes"},
		{"bad refresh ttl", "AUTHGUARD_REFRESH_TTL", "7w"},
		{"bad lock duration", "AUTHGUARD_LOCK_DURATION", "soon"},
		{"bad max sessions", "AUTHGUARD_MAX_SESSIONS", "five"},
		{"bad max attempts", "AUTHGUARD_MAX_ATTEMPTS", "3.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)
			if _, err := ConfigFromEnv(); err == nil {
				t.Errorf("%s=%q accepted", tc.env, tc.value)
			}
		})
	}
}

func TestEnvBoolUnrecognizedKeepsDefault(t *testing.T) {
	t.Setenv("AUTHGUARD_AUDIT_ENABLED", "maybe")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audit.Enabled != DefaultConfig().Audit.Enabled {
		t.Error("unrecognized boolean changed the default")
	}
}

func TestBuildFailsWithoutSigningKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, err := New().
		WithConfig(DefaultConfig()).
		WithRedis(client).
		WithCredentialStore(newMemCredentialStore()).
		Build()
	if !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"unknown signing method", func(c *Config) { c.Token.SigningMethod = "rs256" }},
		{"ed25519 without public key", func(c *Config) { c.Token.PublicKey = nil }},
		{"zero session cap", func(c *Config) { c.Session.MaxPerPrincipal = 0 }},
		{"captcha above max attempts", func(c *Config) { c.Lockout.CaptchaThreshold = c.Lockout.MaxAttempts + 1 }},
		{"delay max below base", func(c *Config) { c.Lockout.DelayMax = c.Lockout.DelayBase - time.Second }},
		{"zero-window rate rule", func(c *Config) { c.RateLimit.Rules[CategoryAPI] = rate.Rule{Limit: 10} }},
		{"audit enabled without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("broken config validated")
			}
		})
	}
}
