package goAccounts

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/goAccounts/internal/audit"
	"github.com/MrEthical07/goAccounts/internal/rate"
	"github.com/MrEthical07/goAccounts/jwt"
	"github.com/MrEthical07/goAccounts/password"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Builder assembles an Engine from a Config and its collaborators.
//
// Builder instances are single-use: a second call to Build fails.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store  AccountStore
	hasher Hasher
	signer Signer

	auditSink      AuditSink
	logger         *slog.Logger
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration. The value is copied, so later
// changes to cfg do not reach the Builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. It is required.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithRedis sets the client used by the rate limiter. It is required when
// RateLimit.Enabled is set and ignored otherwise.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHasher replaces the configured password hasher.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

// WithSigner replaces the configured token signer. Token key material in the
// Config is not required when a signer is supplied.
func (b *Builder) WithSigner(s Signer) *Builder {
	b.signer = s
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink has no effect unless Audit.Enabled is set.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for warnings the engine cannot return to
// the caller. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithTracerProvider enables spans around every engine operation.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid, a required collaborator is missing, or the Builder was already used.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.validate(b.signer == nil); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}

	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("RateLimit requires redis client")
	}

	engine := &Engine{
		config: cloneConfig(cfg),
		store:  b.store,
		hasher: b.hasher,
		signer: b.signer,
		logger: b.logger,
	}

	if engine.logger == nil {
		engine.logger = slog.New(slog.DiscardHandler)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	engine.tracer = tp.Tracer(tracerName)

	if engine.hasher == nil {
		h, err := password.New(password.Config{
			Algorithm: cfg.Password.Algorithm,
			Cost:      cfg.Password.Cost,
			Argon2: password.Argon2Config{
				Memory:      cfg.Password.Memory,
				Time:        cfg.Password.Time,
				Parallelism: cfg.Password.Parallelism,
				SaltLength:  cfg.Password.SaltLength,
				KeyLength:   cfg.Password.KeyLength,
			},
		})
		if err != nil {
			return nil, err
		}
		engine.hasher = h
	}

	if engine.signer == nil {
		signingKey := cloneBytes(cfg.Token.PrivateKey)
		if jwt.SigningMethod(cfg.Token.SigningMethod) == jwt.MethodHS256 {
			signingKey = []byte(cfg.Token.Secret)
		}
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.Token.SigningMethod),
			PrivateKey:    signingKey,
			PublicKey:     cloneBytes(cfg.Token.PublicKey),
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
			Leeway:        cfg.Token.Leeway,
			RequireIAT:    cfg.Token.RequireIAT,
			MaxFutureIAT:  cfg.Token.MaxFutureIAT,
			KeyID:         cfg.Token.KeyID,
			VerifyKeys:    cfg.Token.VerifyKeys,
		})
		if err != nil {
			return nil, err
		}
		engine.signer = jm
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, cfg.RateLimit.RedisPrefix)
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
