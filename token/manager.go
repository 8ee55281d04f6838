package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Curve25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// Token type claim values.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrSigningKeyMissing is returned by NewManager when no signing key is
	// configured. An unconfigured key is a startup error, never substituted
	// with an ephemeral one: verification must stay consistent across
	// instances.
	ErrSigningKeyMissing = errors.New("signing key not configured")
	// ErrTokenInvalid is returned for malformed, unverifiable, or
	// wrong-shape tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrFutureIssued is returned when a token claims an issued-at further
	// in the future than the configured skew allowance. Treated as a
	// clock-tamper signal.
	ErrFutureIssued = errors.New("token issued-at too far in the future")
	// ErrWrongType is returned when the "typ" claim does not match the
	// type the caller required.
	ErrWrongType = errors.New("wrong token type")
)

// Config holds signing parameters and claim-validation tuning.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// Claims is the flat claim bundle carried by every issued token.
type Claims struct {
	SessionID  string   `json:"sid"`
	FamilyID   string   `json:"fam"`
	DeviceHash string   `json:"dev,omitempty"`
	IP         string   `json:"ip,omitempty"`
	TokenType  string   `json:"typ"`
	Roles      []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses token pairs.
type Manager struct {
	config Config
}

// NewManager validates the configuration and returns a ready Manager.
// Missing or malformed key material is rejected here rather than at first
// use.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, ErrSigningKeyMissing
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) == 0 {
			return nil, ErrSigningKeyMissing
		}
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// Create signs a token of the given type. subject is the principal id;
// deviceHash is the hex form of the device-fingerprint hash. The returned
// Claims carry the generated token id (jti).
func (m *Manager) Create(
	tokenType string,
	subject string,
	roles []string,
	sessionID string,
	familyID string,
	deviceHash string,
	ip string,
	ttl time.Duration,
	now time.Time,
) (string, *Claims, error) {
	if tokenType != TypeAccess && tokenType != TypeRefresh {
		return "", nil, ErrWrongType
	}
	if ttl <= 0 {
		return "", nil, errors.New("invalid token ttl")
	}

	claims := &Claims{
		SessionID:  sessionID,
		FamilyID:   familyID,
		DeviceHash: deviceHash,
		IP:         ip,
		TokenType:  tokenType,
		Roles:      roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	tok := jwt.NewWithClaims(m.getMethod(), claims)
	signKey, err := m.getSignKey()
	if err != nil {
		return "", nil, err
	}

	signed, err := tok.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies the signature and the registered time claims (expiry,
// not-before, issued-at skew). It does not check the "typ" claim; use
// [Manager.ParseTyped] when a specific type is required.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.getVerifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		if claims.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
			return nil, ErrFutureIssued
		}
	}

	return claims, nil
}

// ParseTyped verifies the token and additionally requires the "typ" claim
// to match tokenType.
func (m *Manager) ParseTyped(tokenStr, tokenType string) (*Claims, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongType
	}
	return claims, nil
}

// ParseExpired verifies the signature but tolerates an expired token,
// reporting expiry through the second return value. Used by revocation,
// where an already-expired token is a no-op rather than an error.
func (m *Manager) ParseExpired(tokenStr string) (*Claims, bool, error) {
	claims, err := m.Parse(tokenStr)
	if err == nil {
		return claims, false, nil
	}
	if !errors.Is(err, ErrTokenExpired) {
		return nil, false, err
	}

	// Signature already verified; re-parse without claim validation to
	// recover the claim set.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	tok, perr := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.getVerifyKey()
	})
	if perr != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrTokenInvalid, perr)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, false, ErrTokenInvalid
	}
	return claims, true, nil
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
