package connectauth

import (
	"testing"
	"time"
)

func TestSecurityReportReflectsConfig(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Cookie.Secure = true
		cfg.Audit.Enabled = true
		cfg.JWT.KeyID = "current"
		cfg.JWT.VerifyKeys = map[string][]byte{"old": []byte("previous-secret")}
	})

	report := env.engine.SecurityReport()
	if report.SigningAlgorithm != "HS256" {
		t.Fatalf("unexpected algorithm %q", report.SigningAlgorithm)
	}
	if report.AccessTTL != time.Hour || report.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected ttls %s / %s", report.AccessTTL, report.RefreshTTL)
	}
	if report.Argon2.Memory != 8*1024 || report.Argon2.Time != 1 {
		t.Fatalf("unexpected argon2 report %+v", report.Argon2)
	}
	if !report.SecureCookies || !report.AuditEnabled || !report.RateLimitingActive || !report.RateLimitFailOpen {
		t.Fatalf("unexpected flags %+v", report)
	}
	if report.AdditionalVerifyKeys != 1 {
		t.Fatalf("expected 1 verify key, got %d", report.AdditionalVerifyKeys)
	}
}

func TestSecurityReportRateLimitingOff(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		for _, p := range []*RatePolicy{
			&cfg.RateLimit.Register, &cfg.RateLimit.Login, &cfg.RateLimit.VerifyOTP,
			&cfg.RateLimit.Resend, &cfg.RateLimit.MagicLink,
		} {
			*p = RatePolicy{}
		}
	})

	if env.engine.SecurityReport().RateLimitingActive {
		t.Fatal("expected rate limiting to be reported inactive")
	}
	var nilEngine *Engine
	if nilEngine.SecurityReport() != (SecurityReport{}) {
		t.Fatal("nil engine must report zero value")
	}
}
