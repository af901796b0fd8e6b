package goToken

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single-use.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient

	validator CredentialValidator
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is deep-copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the revocation store. It takes precedence over the Redis
// store WithRedis would otherwise create.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis supplies the client used for rate limiting and, when no store
// was given, for a store.RedisStore configured from Config.Store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialValidator enables Engine.Login.
func (b *Builder) WithCredentialValidator(v CredentialValidator) *Builder {
	b.validator = v
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the time source used for signing and verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := b.store
	if st == nil {
		if b.redis == nil {
			return nil, errors.New("revocation store required: use WithStore or WithRedis")
		}
		st = store.NewRedisStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.RetentionGrace)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.EnableLoginThrottle || cfg.RateLimit.EnableRenewThrottle {
		if b.redis == nil {
			return nil, errors.New("RateLimit throttles require a redis client")
		}
		limiter = rate.New(b.redis, rate.Config{
			Prefix:              cfg.Store.RedisPrefix,
			EnableLoginThrottle: cfg.RateLimit.EnableLoginThrottle,
			EnableIPThrottle:    cfg.RateLimit.EnableIPThrottle,
			MaxLoginAttempts:    cfg.RateLimit.MaxLoginAttempts,
			LoginCooldown:       cfg.RateLimit.LoginCooldown,
			EnableRenewThrottle: cfg.RateLimit.EnableRenewThrottle,
			MaxRenewAttempts:    cfg.RateLimit.MaxRenewAttempts,
			RenewCooldown:       cfg.RateLimit.RenewCooldown,
		})
	}

	manager, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
	})
	if err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:    cfg,
		store:     st,
		jwt:       manager,
		limiter:   limiter,
		validator: b.validator,
		metrics:   NewMetrics(cfg.Metrics),
		log:       logging.NewSlogLogger(b.logger).With("component", "gotoken"),
		now:       now,
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}

func (e *Engine) flowDeps() flows.Deps {
	minter := flows.Minter{
		Now:        e.now,
		NewID:      uuid.NewString,
		AccessTTL:  e.config.Token.AccessTTL,
		RefreshTTL: e.config.Token.RefreshTTL,
		Signer:     e.jwt,
	}
	warn := flows.Warnf(e.log.Warn)
	issue := flows.IssueDeps{Minter: minter, Store: e.store}

	deps := flows.Deps{
		Issue: issue,
		Renew: flows.RenewDeps{
			Minter:    minter,
			ClockSkew: e.config.Token.ClockSkew,
			Verifier:  e.jwt,
			Store:     e.store,
			Warn:      warn,
		},
		Revoke: flows.RevokeDeps{Store: e.store},
		Login: flows.LoginDeps{
			InvalidCredentials: ErrInvalidCredentials,
			Issue:              issue,
			Warn:               warn,
		},
	}
	if e.validator != nil {
		deps.Login.Validator = e.validator
	}
	if e.limiter != nil {
		deps.Renew.RateLimiter = e.limiter
		deps.Login.RateLimiter = e.limiter
	}
	return deps
}
