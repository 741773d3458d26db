package connectauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of the engine. Build it with [DefaultConfig] and
// override fields; [Builder.Build] validates and copies it.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Session      SessionConfig
	Cookie       CookieConfig
	URLs         URLConfig
	Admin        AdminConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. Secret is required.
type JWTConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig covers the email tokens: verification link, OTP and magic link.
type VerificationConfig struct {
	LinkTTL      time.Duration
	OTPTTL       time.Duration
	OTPDigits    int
	OTPCost      int
	MagicLinkTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy is the limiter budget of one flow. Zero limits disable that check.
type RatePolicy struct {
	Window      time.Duration
	MaxPerIP    int
	MaxPerEmail int
	Cooldown    time.Duration
}

// RateLimitConfig holds one policy per unauthenticated flow.
type RateLimitConfig struct {
	Prefix    string
	Register  RatePolicy
	Login     RatePolicy
	VerifyOTP RatePolicy
	Resend    RatePolicy
	MagicLink RatePolicy
	// FailOpen admits requests when the limiter backend errors. Limiting is abuse
	// mitigation, so an unreachable Redis should not take login down with it.
	FailOpen bool
}

/*
====================================
SESSION & COOKIE CONFIG
====================================
*/

// SessionConfig configures presence.
type SessionConfig struct {
	OnlineWindow time.Duration
}

// CookieConfig describes the session and refresh cookies. Secure is set in production.
type CookieConfig struct {
	SessionName string
	RefreshName string
	Path        string
	Domain      string
	Secure      bool
}

/*
====================================
URL CONFIG
====================================
*/

// URLConfig holds the public base URL and the paths embedded in emails and redirects.
type URLConfig struct {
	BaseURL         string
	VerifyEmailPath string
	MagicLinkPath   string
	DashboardPath   string
	OnboardingPath  string
}

/*
====================================
ADMIN, AUDIT & METRICS CONFIG
====================================
*/

// AdminConfig bounds admin listings.
type AdminConfig struct {
	SearchLimit   int
	ActivityLimit int
}

// AuditConfig configures the async security-event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.Secret and URLs.BaseURL must
// still be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			LinkTTL:      10 * time.Minute,
			OTPTTL:       10 * time.Minute,
			OTPDigits:    6,
			OTPCost:      10,
			MagicLinkTTL: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Prefix:    "rl",
			Register:  RatePolicy{Window: time.Minute, MaxPerIP: 5, MaxPerEmail: 3, Cooldown: time.Minute},
			Login:     RatePolicy{Window: time.Minute, MaxPerIP: 10, MaxPerEmail: 5, Cooldown: time.Minute},
			VerifyOTP: RatePolicy{Window: time.Minute, MaxPerIP: 5, MaxPerEmail: 3, Cooldown: time.Minute},
			Resend:    RatePolicy{Window: time.Minute, MaxPerIP: 5, MaxPerEmail: 3, Cooldown: time.Minute},
			MagicLink: RatePolicy{Window: time.Minute, MaxPerIP: 5, MaxPerEmail: 3, Cooldown: time.Minute},
			FailOpen:  true,
		},
		Session: SessionConfig{
			OnlineWindow: 5 * time.Minute,
		},
		Cookie: CookieConfig{
			SessionName: "session",
			RefreshName: "refreshToken",
			Path:        "/",
		},
		URLs: URLConfig{
			VerifyEmailPath: "/verify-email",
			MagicLinkPath:   "/api/auth/magiclink/verify",
			DashboardPath:   "/dashboard",
			OnboardingPath:  "/onboarding",
		},
		Admin: AdminConfig{
			SearchLimit:   20,
			ActivityLimit: 100,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
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

// Validate reports the first invalid setting, wrapped in [ErrMisconfigured].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	return nil
}

func (c *Config) validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be > AccessTTL")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength != 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Verification
	if c.Verification.LinkTTL <= 0 || c.Verification.OTPTTL <= 0 || c.Verification.MagicLinkTTL <= 0 {
		return errors.New("Verification TTLs must be > 0")
	}
	if c.Verification.OTPDigits < 6 || c.Verification.OTPDigits > 10 {
		return errors.New("Verification OTPDigits must be between 6 and 10")
	}

	// Rate limits
	for name, p := range map[string]RatePolicy{
		"Register":  c.RateLimit.Register,
		"Login":     c.RateLimit.Login,
		"VerifyOTP": c.RateLimit.VerifyOTP,
		"Resend":    c.RateLimit.Resend,
		"MagicLink": c.RateLimit.MagicLink,
	} {
		if p.MaxPerIP < 0 || p.MaxPerEmail < 0 || p.Cooldown < 0 {
			return fmt.Errorf("RateLimit %s limits must be >= 0", name)
		}
		if (p.MaxPerIP > 0 || p.MaxPerEmail > 0) && p.Window <= 0 {
			return fmt.Errorf("RateLimit %s Window must be > 0", name)
		}
	}

	// Session & cookies
	if c.Session.OnlineWindow <= 0 {
		return errors.New("Session OnlineWindow must be > 0")
	}
	if c.Cookie.SessionName == "" || c.Cookie.RefreshName == "" || c.Cookie.SessionName == c.Cookie.RefreshName {
		return errors.New("Cookie names must be set and distinct")
	}

	// URLs
	if c.URLs.BaseURL == "" {
		return errors.New("URLs BaseURL is required")
	}
	u, err := url.Parse(c.URLs.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("URLs BaseURL must be an absolute URL")
	}
	for _, p := range []string{c.URLs.VerifyEmailPath, c.URLs.MagicLinkPath, c.URLs.DashboardPath, c.URLs.OnboardingPath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("URLs path %q must start with /", p)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func (c *Config) link(path, token string) string {
	return strings.TrimRight(c.URLs.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}
