package connectauth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth/internal"
	"github.com/MrEthical07/connectauth/internal/audit"
	"github.com/MrEthical07/connectauth/internal/flows"
	"github.com/MrEthical07/connectauth/internal/rate"
	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/password"
	"github.com/MrEthical07/connectauth/session"
	"github.com/MrEthical07/connectauth/store"
)

// Flow names used for rate-limit keys, metrics and audit metadata.
const (
	flowRegister  = "register"
	flowLogin     = "login"
	flowVerifyOTP = "verifyOTP"
	flowResend    = "resend"
	flowMagicLink = "magiclink"
)

// Activity actions persisted to the user's activity log.
const (
	ActivityLogin              = "Login"
	ActivityMagicLinkRequested = "MagicLinkRequested"
	ActivityLogout             = "Logout"
	ActivityOnboarded          = "Onboarded"
	ActivityEmailVerified      = "EmailVerified"
	ActivityBanned             = "Banned"
	ActivityUnbanned           = "Unbanned"
)

// Engine runs every authentication flow. Build one with [Builder]; it is safe
// for concurrent use.
type Engine struct {
	config    Config
	store     store.Store
	mailer    Mailer
	limiter   *rate.Limiter
	tracker   *session.Tracker
	jwt       *jwt.Manager
	passwords *password.Argon2
	otps      *password.OTPHasher
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    zerolog.Logger
	flows     flows.Deps
	now       func() time.Time
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Ping reports whether the credential store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// limit applies policy to the request's IP and email. Backend failures are logged
// and, with FailOpen, admitted.
func (e *Engine) limit(ctx context.Context, flow string, policy RatePolicy, email string) error {
	err := e.limiter.Check(ctx, flow, rate.Policy{
		Window:      policy.Window,
		MaxPerIP:    policy.MaxPerIP,
		MaxPerEmail: policy.MaxPerEmail,
		Cooldown:    policy.Cooldown,
	}, clientIPFromContext(ctx), email)
	if err == nil {
		return nil
	}

	var le *rate.LimitError
	if errors.As(err, &le) {
		e.metricInc(MetricRateLimitHit)
		rlErr := &RateLimitError{Flow: le.Flow, Dimension: string(le.Dimension)}
		e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", rlErr, func() map[string]string {
			return map[string]string{"flow": le.Flow, "dimension": string(le.Dimension)}
		})
		return rlErr
	}

	e.metricInc(MetricRateLimitBackendError)
	e.logger.Error().Err(err).Str("flow", flow).Bool("fail_open", e.config.RateLimit.FailOpen).Msg("rate limit backend failed")
	if e.config.RateLimit.FailOpen {
		return nil
	}
	return storeErr(err)
}

// recordActivity appends to the user's activity log. Failures are logged only.
func (e *Engine) recordActivity(ctx context.Context, userID, action string, details map[string]string) {
	err := e.store.CreateActivity(ctx, &store.Activity{
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: e.now().UTC(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Str("action", action).Msg("activity write failed")
	}
}

// touchLastSeen stamps User.LastSeen. Failures are logged only.
func (e *Engine) touchLastSeen(ctx context.Context, userID string) {
	now := e.now().UTC()
	if _, err := e.store.UpdateUser(ctx, userID, store.UserPatch{LastSeen: &now}); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("last seen update failed")
	}
}

func (e *Engine) redirectFor(onboarded bool) string {
	if onboarded {
		return e.config.URLs.DashboardPath
	}
	return e.config.URLs.OnboardingPath
}

// userErr maps a user lookup failure: a missing record becomes notFound, anything
// else is a store failure.
func (e *Engine) userErr(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	e.logger.Error().Err(err).Msg("user lookup failed")
	return storeErr(err)
}

func normalizeEmail(email string) string {
	return internal.NormalizeEmail(email)
}
