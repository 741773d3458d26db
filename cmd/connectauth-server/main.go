package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MrEthical07/connectauth"
	"github.com/MrEthical07/connectauth/internal/audit"
	"github.com/MrEthical07/connectauth/internal/config"
	"github.com/MrEthical07/connectauth/internal/httpapi"
	"github.com/MrEthical07/connectauth/internal/mailer"
	"github.com/MrEthical07/connectauth/internal/rate"
	"github.com/MrEthical07/connectauth/internal/telemetry"
	promexport "github.com/MrEthical07/connectauth/metrics/export/prometheus"
	"github.com/MrEthical07/connectauth/store"
)

const serviceName = "connectauth"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogger(cfg)

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	backend, closeBackend, err := openRateBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open rate limit backend")
	}
	defer closeBackend()

	mail, err := openMailer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("configure mailer")
	}

	engine, err := connectauth.New().
		WithConfig(cfg.Engine()).
		WithStore(st).
		WithMailer(mail).
		WithLimiterBackend(backend).
		WithLogger(log.Logger).
		WithAuditSink(audit.NewLogSink(log.Logger)).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Info().
		Dur("access_ttl", report.AccessTTL).
		Dur("refresh_ttl", report.RefreshTTL).
		Uint32("argon2_memory_kb", report.Argon2.Memory).
		Bool("secure_cookies", report.SecureCookies).
		Bool("rate_limiting", report.RateLimitingActive).
		Bool("rate_limit_fail_open", report.RateLimitFailOpen).
		Bool("audit", report.AuditEnabled).
		Msg("security configuration")

	handler := httpapi.NewRouter(httpapi.Options{
		Engine:         engine,
		Logger:         log.Logger,
		AllowedOrigins: cfg.AllowedOrigins,
		GlobalRPM:      cfg.GlobalRPM,
		Metrics:        promexport.NewPrometheusExporter(engine).Handler(),
		Trace:          telemetry.Middleware(serviceName),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("starting connectauth-server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.Store == "memory" {
		log.Warn().Msg("using the in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("disconnect mongo")
		}
	}

	st, err := store.NewMongoStore(ctx, client.Database(cfg.MongoDatabase), log.Logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return st, closeFn, nil
}

// openRateBackend shares limiter state through Redis when REDIS_URL is set. The
// memory backend only limits a single instance.
func openRateBackend(ctx context.Context, cfg config.Config) (connectauth.LimiterBackend, func(), error) {
	if cfg.RedisURL == "" {
		backend := rate.NewMemoryBackend()
		go backend.RunSweeper(ctx, time.Minute, 10*time.Minute)
		return backend, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return rate.NewRedisBackend(client), func() { _ = client.Close() }, nil
}

func openMailer(cfg config.Config) (connectauth.Mailer, error) {
	if cfg.SMTPHost == "" {
		if cfg.Production() {
			return nil, errors.New("SMTP_HOST is required in production")
		}
		log.Warn().Msg("SMTP_HOST not set; emails are written to the log")
		return mailer.NewLogMailer(log.Logger), nil
	}
	m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
