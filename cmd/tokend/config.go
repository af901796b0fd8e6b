package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// serverConfig is the tokend section of the shared config file. Engine
// settings are read separately by goToken.LoadConfig.
type serverConfig struct {
	Server struct {
		Listen          string        `yaml:"listen" env:"TOKEND_LISTEN" env-default:":8080"`
		TrustForwarded  bool          `yaml:"trust_forwarded" env:"TOKEND_TRUST_FORWARDED"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"TOKEND_SHUTDOWN_TIMEOUT" env-default:"10s"`
	} `yaml:"server"`
	Backend struct {
		Kind          string `yaml:"kind" env:"TOKEND_BACKEND" env-default:"redis"`
		RedisAddr     string `yaml:"redis_addr" env:"TOKEND_REDIS_ADDR"`
		RedisPassword string `yaml:"redis_password" env:"TOKEND_REDIS_PASSWORD"`
		RedisDB       int    `yaml:"redis_db" env:"TOKEND_REDIS_DB"`
		PostgresDSN   string `yaml:"postgres_dsn" env:"TOKEND_POSTGRES_DSN"`
		Migrate       bool   `yaml:"migrate" env:"TOKEND_MIGRATE"`
	} `yaml:"backend"`
	Log struct {
		Level  string `yaml:"level" env:"TOKEND_LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"TOKEND_LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`
	// Users maps identifiers to base64 encoded bcrypt hashes.
	Users   map[string]string `yaml:"users"`
	Archive struct {
		Bucket        string        `yaml:"bucket" env:"TOKEND_ARCHIVE_BUCKET"`
		Prefix        string        `yaml:"prefix" env:"TOKEND_ARCHIVE_PREFIX" env-default:"audit"`
		Region        string        `yaml:"region" env:"TOKEND_ARCHIVE_REGION" env-default:"us-east-1"`
		Endpoint      string        `yaml:"endpoint" env:"TOKEND_ARCHIVE_ENDPOINT"`
		AccessKey     string        `yaml:"access_key" env:"TOKEND_ARCHIVE_ACCESS_KEY"`
		SecretKey     string        `yaml:"secret_key" env:"TOKEND_ARCHIVE_SECRET_KEY"`
		PathStyle     bool          `yaml:"path_style" env:"TOKEND_ARCHIVE_PATH_STYLE"`
		BatchSize     int           `yaml:"batch_size" env:"TOKEND_ARCHIVE_BATCH_SIZE" env-default:"500"`
		FlushInterval time.Duration `yaml:"flush_interval" env:"TOKEND_ARCHIVE_FLUSH_INTERVAL" env-default:"1m"`
	} `yaml:"archive"`
}

const (
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

func loadServerConfig(path string) (serverConfig, error) {
	var sc serverConfig
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&sc)
	} else {
		err = cleanenv.ReadConfig(path, &sc)
	}
	if err != nil {
		return serverConfig{}, fmt.Errorf("read server config: %w", err)
	}
	if err := sc.validate(); err != nil {
		return serverConfig{}, err
	}
	return sc, nil
}

func (sc serverConfig) validate() error {
	switch sc.Backend.Kind {
	case backendRedis:
		if sc.Backend.RedisAddr == "" {
			return errors.New("backend.redis_addr is required for the redis backend")
		}
	case backendPostgres:
		if sc.Backend.PostgresDSN == "" {
			return errors.New("backend.postgres_dsn is required for the postgres backend")
		}
	case backendMemory:
	default:
		return fmt.Errorf("unknown backend %q", sc.Backend.Kind)
	}
	if sc.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}
	return nil
}

func (sc serverConfig) userHashes() (map[string][]byte, error) {
	out := make(map[string][]byte, len(sc.Users))
	for id, raw := range sc.Users {
		hash, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("users.%s: invalid base64: %w", id, err)
		}
		out[id] = hash
	}
	return out, nil
}
