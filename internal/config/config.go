package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/MrEthical07/connectauth"
)

// Config holds the process configuration of connectauth-server.
type Config struct {
	Addr    string `env:"ADDR,default=:8080"`
	Env     string `env:"APP_ENV,default=development"`
	BaseURL string `env:"APP_BASE_URL,default=http://localhost:3000"`

	JWTSecret string `env:"JWT_SECRET,required"`

	Store           string `env:"STORE,default=mongo"`
	MongoURI        string `env:"MONGODB_URI,default=mongodb://localhost:27017"`
	MongoDatabase   string `env:"MONGODB_DATABASE,default=connectauth"`
	RedisURL        string `env:"REDIS_URL"`
	RateLimitPrefix string `env:"RATE_LIMIT_PREFIX,default=rl"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM,default=no-reply@localhost"`

	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	GlobalRPM      int           `env:"GLOBAL_REQUESTS_PER_MINUTE,default=600"`
	ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE,default=10s"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
	LogFormat    string `env:"LOG_FORMAT,default=console"`

	AuditEnabled bool `env:"AUDIT_ENABLED,default=true"`
}

// Load reads .env when present and then the process environment. Variables
// already set in the environment win over .env.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper(), ".env")
}

func load(ctx context.Context, lookuper envconfig.Lookuper, dotenv ...string) (Config, error) {
	if len(dotenv) > 0 {
		// A missing .env is normal outside development.
		_ = godotenv.Load(dotenv...)
	}

	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "mongo", "memory":
	default:
		return fmt.Errorf("config: STORE must be mongo or memory, got %q", c.Store)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is empty")
	}
	return nil
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Engine maps the process configuration onto the engine defaults.
func (c Config) Engine() connectauth.Config {
	cfg := connectauth.DefaultConfig()
	cfg.JWT.Secret = []byte(c.JWTSecret)
	cfg.URLs.BaseURL = c.BaseURL
	cfg.Cookie.Secure = c.Production()
	cfg.RateLimit.Prefix = c.RateLimitPrefix
	cfg.Audit.Enabled = c.AuditEnabled
	return cfg
}
