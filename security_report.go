package connectauth

import "time"

// SecurityReport summarizes the security-relevant configuration of an engine.
// It carries no secrets and is safe to log at startup.
type SecurityReport struct {
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	Argon2               PasswordConfigReport
	OTPDigits            int
	SecureCookies        bool
	RateLimitingActive   bool
	RateLimitFailOpen    bool
	HashUpgradeOnLogin   bool
	AuditEnabled         bool
	MetricsEnabled       bool
	VerificationLinkTTL  time.Duration
	MagicLinkTTL         time.Duration
	AdditionalVerifyKeys int
}

// PasswordConfigReport is the argon2id cost in effect for new hashes.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	rl := e.config.RateLimit
	rateLimiting := false
	for _, p := range []RatePolicy{rl.Register, rl.Login, rl.VerifyOTP, rl.Resend, rl.MagicLink} {
		if p.MaxPerIP > 0 || p.MaxPerEmail > 0 || p.Cooldown > 0 {
			rateLimiting = true
			break
		}
	}

	return SecurityReport{
		SigningAlgorithm: "HS256",
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		OTPDigits:            e.config.Verification.OTPDigits,
		SecureCookies:        e.config.Cookie.Secure,
		RateLimitingActive:   rateLimiting,
		RateLimitFailOpen:    rl.FailOpen,
		HashUpgradeOnLogin:   e.config.Password.UpgradeOnLogin,
		AuditEnabled:         e.audit != nil,
		MetricsEnabled:       e.config.Metrics.Enabled,
		VerificationLinkTTL:  e.config.Verification.LinkTTL,
		MagicLinkTTL:         e.config.Verification.MagicLinkTTL,
		AdditionalVerifyKeys: len(e.config.JWT.VerifyKeys),
	}
}
