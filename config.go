package goToken

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/jwt"
)

// Config is captured by Build and never changes afterwards.
type Config struct {
	Token     TokenConfig
	Store     StoreConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds the signing material and lifetimes. Access and refresh
// secrets must differ and be at least jwt.MinSecretLength bytes each.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// ClockSkew widens the nbf/exp window on verification. At most jwt.MaxClockSkew.
	ClockSkew time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig tunes the Redis-backed revocation store created by WithRedis.
type StoreConfig struct {
	RedisPrefix string
	// RetentionGrace keeps a record around after its expiry so a revoked
	// token is still known as revoked while clock skew could let it verify.
	RetentionGrace time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig enables Redis counters for failed logins and renewals.
// Any enabled throttle requires WithRedis.
type RateLimitConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
	EnableRenewThrottle bool
	MaxRenewAttempts    int
	RenewCooldown       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the defaults. Secrets, issuer and audience are left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			ClockSkew:  30 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix:    "gt",
			RetentionGrace: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			EnableLoginThrottle: false,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
			EnableRenewThrottle: false,
			MaxRenewAttempts:    30,
			RenewCooldown:       time.Minute,
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

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = cloneBytes(cfg.Token.AccessSecret)
	out.Token.RefreshSecret = cloneBytes(cfg.Token.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.AccessSecret) < jwt.MinSecretLength {
		return fmt.Errorf("Token AccessSecret must be at least %d bytes", jwt.MinSecretLength)
	}
	if len(c.Token.RefreshSecret) < jwt.MinSecretLength {
		return fmt.Errorf("Token RefreshSecret must be at least %d bytes", jwt.MinSecretLength)
	}
	if subtle.ConstantTimeCompare(c.Token.AccessSecret, c.Token.RefreshSecret) == 1 {
		return errors.New("Token AccessSecret and RefreshSecret must differ")
	}
	if c.Token.Issuer == "" {
		return errors.New("Token Issuer is required")
	}
	if c.Token.Audience == "" {
		return errors.New("Token Audience is required")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("Token AccessTTL must not exceed RefreshTTL")
	}
	if c.Token.ClockSkew < 0 || c.Token.ClockSkew > jwt.MaxClockSkew {
		return fmt.Errorf("Token ClockSkew must be between 0 and %s", jwt.MaxClockSkew)
	}

	// Store
	if c.Store.RetentionGrace < 0 {
		return errors.New("Store RetentionGrace must be >= 0")
	}

	// Rate limits
	if c.RateLimit.EnableIPThrottle && !c.RateLimit.EnableLoginThrottle {
		return errors.New("RateLimit EnableIPThrottle requires EnableLoginThrottle")
	}
	if c.RateLimit.EnableLoginThrottle {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.LoginCooldown <= 0 {
			return errors.New("RateLimit LoginCooldown must be > 0")
		}
	}
	if c.RateLimit.EnableRenewThrottle {
		if c.RateLimit.MaxRenewAttempts <= 0 {
			return errors.New("RateLimit MaxRenewAttempts must be > 0")
		}
		if c.RateLimit.RenewCooldown <= 0 {
			return errors.New("RateLimit RenewCooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
