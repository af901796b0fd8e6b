package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects which secret and token_type discriminator a token is bound to.
type Kind string

const (
	// KindAccess marks short-lived access tokens.
	KindAccess Kind = "access"
	// KindRefresh marks persisted refresh tokens.
	KindRefresh Kind = "refresh"
)

// MinSecretLength is the minimum HS512 key size in bytes (512 bits).
const MinSecretLength = 64

// MaxClockSkew bounds the tolerance accepted by Verify.
const MaxClockSkew = 5 * time.Minute

// Config holds the signing material for both token kinds.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
}

// Manager signs and verifies access and refresh tokens with HS512.
//
// Manager holds no mutable state and is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the claim set carried by both token kinds.
type Claims struct {
	TokenType string `json:"token_type"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager. The secrets are copied.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < MinSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d bytes", MinSecretLength)
	}
	if len(cfg.RefreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretLength)
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}

	cfg.AccessSecret = append([]byte(nil), cfg.AccessSecret...)
	cfg.RefreshSecret = append([]byte(nil), cfg.RefreshSecret...)
	return &Manager{config: cfg}, nil
}

// Sign mints a token of the given kind for subject. Every call embeds a
// fresh jti, so two tokens signed with identical inputs never collide.
func (m *Manager) Sign(kind Kind, subject string, issuedAt, expiry time.Time) (string, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return "", err
	}
	if !expiry.After(issuedAt) {
		return "", errors.New("expiry must be after issued-at")
	}

	issuedAt = issuedAt.UTC()
	claims := Claims{
		TokenType: string(kind),
		Email:     subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiry.UTC()),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(secret)
}

// Verify checks token against the secret, issuer, audience and lifetime
// configured for kind, using the wall clock.
func (m *Manager) Verify(kind Kind, token string, skew time.Duration) (*Claims, error) {
	return m.VerifyAt(kind, token, skew, time.Now())
}

// VerifyAt is Verify evaluated at now. Every failure is a *VerificationError.
func (m *Manager) VerifyAt(kind Kind, token string, skew time.Duration, now time.Time) (*Claims, error) {
	secret, err := m.secret(kind)
	if err != nil {
		return nil, newVerificationError(ReasonMalformed, err)
	}
	if skew < 0 {
		skew = 0
	}
	if skew > MaxClockSkew {
		skew = MaxClockSkew
	}
	if strings.TrimSpace(token) == "" {
		return nil, newVerificationError(ReasonMalformed, errors.New("empty token"))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithLeeway(skew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, newVerificationError(ReasonMalformed, jwt.ErrTokenInvalidClaims)
	}
	if claims.NotBefore == nil {
		return nil, newVerificationError(ReasonMalformed, errors.New("missing nbf claim"))
	}
	if claims.TokenType != string(kind) {
		return nil, newVerificationError(ReasonWrongType, fmt.Errorf("token_type %q, want %q", claims.TokenType, kind))
	}

	return claims, nil
}

func (m *Manager) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return m.config.AccessSecret, nil
	case KindRefresh:
		return m.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}

// classify maps golang-jwt's joined parser errors onto a single reason.
// Structural and signature problems outrank claim problems.
func classify(err error) *VerificationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newVerificationError(ReasonMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newVerificationError(ReasonBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newVerificationError(ReasonExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return newVerificationError(ReasonNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return newVerificationError(ReasonWrongIssuer, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return newVerificationError(ReasonWrongAudience, err)
	default:
		return newVerificationError(ReasonMalformed, err)
	}
}
