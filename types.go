package connectauth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth/internal/audit"
)

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// TokenPair is a signed access token and, when rotated, a refresh token, together
// with the cookie lifetimes they were issued for.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// LoginResult is returned by password and magic-link login.
type LoginResult struct {
	TokenPair
	UserID    string
	SessionID string
	Onboarded bool
	// Redirect is the landing path: onboarding for new users, dashboard otherwise.
	Redirect string
}

// VerifyResult is returned by a successful email verification.
type VerifyResult struct {
	UserID    string
	Onboarded bool
	Redirect  string
}

// SessionInfo is the identity behind a valid access token.
type SessionInfo struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Onboarded bool   `json:"onboarded"`
	SessionID string `json:"sessionId,omitempty"`
}

// LimiterBackend stores rate-limit windows and cooldown stamps. The in-memory
// backend is per process; a Redis backend is shared across instances.
type LimiterBackend interface {
	// CheckRateLimit reports whether key has reached max requests within window.
	// Admitted requests are recorded; blocked ones are not.
	CheckRateLimit(ctx context.Context, key string, window time.Duration, max int) (bool, error)
	// IsInCooldown reports whether key was admitted less than cooldown ago, and
	// stamps the key when it was not.
	IsInCooldown(ctx context.Context, key string, cooldown time.Duration) (bool, error)
}

// AuditEvent is one security event delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = audit.ChannelSink

// LogSink writes audit events through zerolog.
type LogSink = audit.LogSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewLogSink returns a [LogSink] writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}
