package goToken

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secrets valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "short access secret invalid",
			mutate: func(c *Config) {
				c.Token.AccessSecret = []byte("short")
			},
		},
		{
			name: "short refresh secret invalid",
			mutate: func(c *Config) {
				c.Token.RefreshSecret = c.Token.RefreshSecret[:63]
			},
		},
		{
			name: "shared secrets invalid",
			mutate: func(c *Config) {
				c.Token.RefreshSecret = c.Token.AccessSecret
			},
		},
		{
			name: "issuer required",
			mutate: func(c *Config) {
				c.Token.Issuer = ""
			},
		},
		{
			name: "audience required",
			mutate: func(c *Config) {
				c.Token.Audience = ""
			},
		},
		{
			name: "access ttl zero invalid",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 0
			},
		},
		{
			name: "access longer than refresh invalid",
			mutate: func(c *Config) {
				c.Token.AccessTTL = 3 * time.Hour
			},
		},
		{
			name: "clock skew at max valid",
			mutate: func(c *Config) {
				c.Token.ClockSkew = 5 * time.Minute
			},
			wantValid: true,
		},
		{
			name: "clock skew above max invalid",
			mutate: func(c *Config) {
				c.Token.ClockSkew = 6 * time.Minute
			},
		},
		{
			name: "negative retention invalid",
			mutate: func(c *Config) {
				c.Store.RetentionGrace = -time.Second
			},
		},
		{
			name: "ip throttle without login throttle invalid",
			mutate: func(c *Config) {
				c.RateLimit.EnableIPThrottle = true
			},
		},
		{
			name: "login throttle zero attempts invalid",
			mutate: func(c *Config) {
				c.RateLimit.EnableLoginThrottle = true
				c.RateLimit.MaxLoginAttempts = 0
			},
		},
		{
			name: "renew throttle zero cooldown invalid",
			mutate: func(c *Config) {
				c.RateLimit.EnableRenewThrottle = true
				c.RateLimit.RenewCooldown = 0
			},
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without secrets must not validate")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gotoken.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func yamlSecrets() (string, string) {
	return base64.StdEncoding.EncodeToString(testAccessSecret),
		base64.StdEncoding.EncodeToString(testRefreshSecret)
}

func TestLoadConfigYAML(t *testing.T) {
	access, refresh := yamlSecrets()
	path := writeConfigFile(t, strings.Join([]string{
		"token:",
		"  access_secret: " + access,
		"  refresh_secret: " + refresh,
		"  issuer: auth.example.com",
		"  audience: api.example.com",
		"  access_ttl: 5m",
		"  refresh_ttl: 24h",
		"store:",
		"  redis_prefix: tok",
		"rate_limit:",
		"  renew_throttle: true",
		"  max_renew_attempts: 7",
		"audit:",
		"  enabled: true",
		"  drop_if_full: false",
		"",
	}, "\n"))

	cfg, err := LoadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Issuer != "auth.example.com" || cfg.Token.Audience != "api.example.com" {
		t.Fatalf("unexpected issuer/audience %q %q", cfg.Token.Issuer, cfg.Token.Audience)
	}
	if cfg.Token.AccessTTL != 5*time.Minute || cfg.Token.RefreshTTL != 24*time.Hour {
		t.Fatalf("unexpected ttls %v %v", cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
	}
	if cfg.Token.ClockSkew != 30*time.Second {
		t.Fatalf("expected default skew, got %v", cfg.Token.ClockSkew)
	}
	if string(cfg.Token.AccessSecret) != string(testAccessSecret) {
		t.Fatal("access secret not decoded")
	}
	if cfg.Store.RedisPrefix != "tok" || cfg.Store.RetentionGrace != 24*time.Hour {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if !cfg.RateLimit.EnableRenewThrottle || cfg.RateLimit.MaxRenewAttempts != 7 || cfg.RateLimit.RenewCooldown != time.Minute {
		t.Fatalf("unexpected rate limit config %+v", cfg.RateLimit)
	}
	if !cfg.Audit.Enabled || cfg.Audit.DropIfFull || cfg.Audit.BufferSize != 1024 {
		t.Fatalf("unexpected audit config %+v", cfg.Audit)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	access, refresh := yamlSecrets()
	path := writeConfigFile(t, strings.Join([]string{
		"token:",
		"  access_secret: " + access,
		"  refresh_secret: " + refresh,
		"  issuer: file-issuer",
		"  audience: api",
		"",
	}, "\n"))
	t.Setenv("GOTOKEN_ISSUER", "env-issuer")
	t.Setenv("GOTOKEN_CLOCK_SKEW", "1m")

	cfg, err := LoadConfig(path, filepath.Join(t.TempDir(), "none.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Issuer != "env-issuer" {
		t.Fatalf("expected env issuer, got %q", cfg.Token.Issuer)
	}
	if cfg.Token.ClockSkew != time.Minute {
		t.Fatalf("expected 1m skew, got %v", cfg.Token.ClockSkew)
	}
}

func TestLoadConfigDotenv(t *testing.T) {
	access, refresh := yamlSecrets()
	dotenv := filepath.Join(t.TempDir(), "test.env")
	body := strings.Join([]string{
		"GOTOKEN_ACCESS_SECRET=" + access,
		"GOTOKEN_REFRESH_SECRET=" + refresh,
		"GOTOKEN_ISSUER=dotenv-issuer",
		"GOTOKEN_AUDIENCE=dotenv-audience",
		"",
	}, "\n")
	if err := os.WriteFile(dotenv, []byte(body), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	// godotenv never overrides existing variables; register cleanup for the
	// ones it sets.
	for _, k := range []string{"GOTOKEN_ACCESS_SECRET", "GOTOKEN_REFRESH_SECRET", "GOTOKEN_ISSUER", "GOTOKEN_AUDIENCE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadConfig("", dotenv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Token.Issuer != "dotenv-issuer" || cfg.Token.Audience != "dotenv-audience" {
		t.Fatalf("unexpected issuer/audience %q %q", cfg.Token.Issuer, cfg.Token.Audience)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	access, _ := yamlSecrets()
	noEnv := filepath.Join(t.TempDir(), "none.env")

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing refresh secret",
			body: "token:\n  access_secret: " + access + "\n  issuer: i\n  audience: a\n",
		},
		{
			name: "bad base64",
			body: "token:\n  access_secret: '!!!'\n  refresh_secret: '???'\n  issuer: i\n  audience: a\n",
		},
		{
			name: "shared secret",
			body: "token:\n  access_secret: " + access + "\n  refresh_secret: " + access + "\n  issuer: i\n  audience: a\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfigFile(t, tc.body), noEnv); err == nil {
				t.Fatal("expected load error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), noEnv); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
