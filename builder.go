package connectauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth/internal/audit"
	"github.com/MrEthical07/connectauth/internal/flows"
	"github.com/MrEthical07/connectauth/internal/rate"
	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/password"
	"github.com/MrEthical07/connectauth/session"
	"github.com/MrEthical07/connectauth/store"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	store  store.Store
	mailer Mailer
	rate   LimiterBackend
	logger zerolog.Logger

	auditSink AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithMailer sets the email sender. Required.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLimiterBackend sets where rate-limit state lives. The default is an
// in-process backend, which is not shared between instances.
func (b *Builder) WithLimiterBackend(backend LimiterBackend) *Builder {
	b.rate = backend
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
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

// Build validates the configuration and wires the engine. Every failure wraps
// [ErrMisconfigured].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: store required", ErrMisconfigured)
	}
	if b.mailer == nil {
		return nil, fmt.Errorf("%w: mailer required", ErrMisconfigured)
	}

	backend := b.rate
	if backend == nil {
		backend = rate.NewMemoryBackend()
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Issuer:     cfg.JWT.Issuer,
		Leeway:     cfg.JWT.Leeway,
		KeyID:      cfg.JWT.KeyID,
		VerifyKeys: cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	passwords, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	otps, err := password.NewOTPHasher(cfg.Verification.OTPCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}

	logger := b.logger.With().Str("component", "connectauth").Logger()

	e := &Engine{
		config:    cfg,
		store:     b.store,
		mailer:    b.mailer,
		limiter:   rate.New(backend, cfg.RateLimit.Prefix),
		tracker:   session.NewTracker(b.store, cfg.Session.OnlineWindow, b.logger),
		jwt:       jwtManager,
		passwords: passwords,
		otps:      otps,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     time.Now,
	}
	e.flows = flows.Deps{
		Refresh: flows.RefreshDeps{
			ParseRefresh: jwtManager.ParseRefresh,
			LoadUser:     e.loadActiveUser,
			IssueAccess:  e.issueAccess,
			IssueRefresh: jwtManager.IssueRefresh,
			RefreshTTL:   cfg.JWT.RefreshTTL,
			Tokens:       b.store,
		},
		Logout: flows.LogoutDeps{
			ParseAccess:  jwtManager.ParseAccess,
			ParseRefresh: jwtManager.ParseRefresh,
			Store:        b.store,
			Warn: func(msg string, err error) {
				logger.Warn().Err(err).Msg(msg)
			},
		},
	}

	b.built = true
	return e, nil
}
