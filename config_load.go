package goToken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// FileConfig is the YAML/env shape of Config. Secrets are base64 encoded.
// cmd/tokend reads its own server section from the same file.
type FileConfig struct {
	Token struct {
		AccessSecret  string        `yaml:"access_secret" env:"GOTOKEN_ACCESS_SECRET"`
		RefreshSecret string        `yaml:"refresh_secret" env:"GOTOKEN_REFRESH_SECRET"`
		Issuer        string        `yaml:"issuer" env:"GOTOKEN_ISSUER"`
		Audience      string        `yaml:"audience" env:"GOTOKEN_AUDIENCE"`
		AccessTTL     time.Duration `yaml:"access_ttl" env:"GOTOKEN_ACCESS_TTL" env-default:"30m"`
		RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"GOTOKEN_REFRESH_TTL" env-default:"720h"`
		ClockSkew     time.Duration `yaml:"clock_skew" env:"GOTOKEN_CLOCK_SKEW" env-default:"30s"`
	} `yaml:"token"`
	Store struct {
		RedisPrefix    string        `yaml:"redis_prefix" env:"GOTOKEN_REDIS_PREFIX" env-default:"gt"`
		RetentionGrace time.Duration `yaml:"retention_grace" env:"GOTOKEN_RETENTION_GRACE" env-default:"24h"`
	} `yaml:"store"`
	RateLimit struct {
		EnableLoginThrottle bool          `yaml:"login_throttle" env:"GOTOKEN_LOGIN_THROTTLE"`
		EnableIPThrottle    bool          `yaml:"ip_throttle" env:"GOTOKEN_IP_THROTTLE"`
		MaxLoginAttempts    int           `yaml:"max_login_attempts" env:"GOTOKEN_MAX_LOGIN_ATTEMPTS" env-default:"5"`
		LoginCooldown       time.Duration `yaml:"login_cooldown" env:"GOTOKEN_LOGIN_COOLDOWN" env-default:"15m"`
		EnableRenewThrottle bool          `yaml:"renew_throttle" env:"GOTOKEN_RENEW_THROTTLE"`
		MaxRenewAttempts    int           `yaml:"max_renew_attempts" env:"GOTOKEN_MAX_RENEW_ATTEMPTS" env-default:"30"`
		RenewCooldown       time.Duration `yaml:"renew_cooldown" env:"GOTOKEN_RENEW_COOLDOWN" env-default:"1m"`
	} `yaml:"rate_limit"`
	Audit struct {
		Enabled    bool `yaml:"enabled" env:"GOTOKEN_AUDIT_ENABLED"`
		BufferSize int  `yaml:"buffer_size" env:"GOTOKEN_AUDIT_BUFFER" env-default:"1024"`
		DropIfFull bool `yaml:"drop_if_full" env:"GOTOKEN_AUDIT_DROP_IF_FULL"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled                 bool `yaml:"enabled" env:"GOTOKEN_METRICS_ENABLED"`
		EnableLatencyHistograms bool `yaml:"latency_histograms" env:"GOTOKEN_METRICS_LATENCY"`
	} `yaml:"metrics"`
}

// LoadConfig reads path (YAML) with GOTOKEN_* environment overrides, after
// loading dotenv files into the environment. With no dotenv argument ".env"
// is tried; a missing dotenv file is not an error. An empty path reads the
// environment only. The result is validated.
func LoadConfig(path string, dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var fc FileConfig
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&fc)
	} else {
		err = cleanenv.ReadConfig(path, &fc)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := fc.Config()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Config decodes secrets and converts fc to a Config. It does not validate.
func (fc FileConfig) Config() (Config, error) {
	access, err := decodeSecret("token.access_secret", fc.Token.AccessSecret)
	if err != nil {
		return Config{}, err
	}
	refresh, err := decodeSecret("token.refresh_secret", fc.Token.RefreshSecret)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Token = TokenConfig{
		AccessSecret:  access,
		RefreshSecret: refresh,
		Issuer:        fc.Token.Issuer,
		Audience:      fc.Token.Audience,
		AccessTTL:     fc.Token.AccessTTL,
		RefreshTTL:    fc.Token.RefreshTTL,
		ClockSkew:     fc.Token.ClockSkew,
	}
	cfg.Store = StoreConfig{
		RedisPrefix:    fc.Store.RedisPrefix,
		RetentionGrace: fc.Store.RetentionGrace,
	}
	cfg.RateLimit = RateLimitConfig{
		EnableLoginThrottle: fc.RateLimit.EnableLoginThrottle,
		EnableIPThrottle:    fc.RateLimit.EnableIPThrottle,
		MaxLoginAttempts:    fc.RateLimit.MaxLoginAttempts,
		LoginCooldown:       fc.RateLimit.LoginCooldown,
		EnableRenewThrottle: fc.RateLimit.EnableRenewThrottle,
		MaxRenewAttempts:    fc.RateLimit.MaxRenewAttempts,
		RenewCooldown:       fc.RateLimit.RenewCooldown,
	}
	cfg.Audit = AuditConfig{
		Enabled:    fc.Audit.Enabled,
		BufferSize: fc.Audit.BufferSize,
		DropIfFull: fc.Audit.DropIfFull,
	}
	cfg.Metrics = MetricsConfig{
		Enabled:                 fc.Metrics.Enabled,
		EnableLatencyHistograms: fc.Metrics.EnableLatencyHistograms,
	}
	return cfg, nil
}

func decodeSecret(field, raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base64: %w", field, err)
	}
	return b, nil
}
