package internaldefs

import (
	"github.com/MrEthical07/connectauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   connectauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   connectauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: connectauth.MetricRegisterSuccess, Name: "connectauth_register_success_total", Help: "Accounts registered."},
	{ID: connectauth.MetricRegisterDuplicate, Name: "connectauth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: connectauth.MetricVerificationSuccess, Name: "connectauth_verification_success_total", Help: "Successful email verifications by link or OTP."},
	{ID: connectauth.MetricVerificationFailure, Name: "connectauth_verification_failure_total", Help: "Rejected verification links and codes."},
	{ID: connectauth.MetricVerificationResent, Name: "connectauth_verification_resent_total", Help: "Verification emails sent again on request."},
	{ID: connectauth.MetricLoginSuccess, Name: "connectauth_login_success_total", Help: "Successful password logins."},
	{ID: connectauth.MetricLoginFailure, Name: "connectauth_login_failure_total", Help: "Password logins rejected for bad credentials."},
	{ID: connectauth.MetricLoginUnverified, Name: "connectauth_login_unverified_total", Help: "Logins rejected because the email is unverified."},
	{ID: connectauth.MetricLoginBanned, Name: "connectauth_login_banned_total", Help: "Logins rejected for banned accounts."},
	{ID: connectauth.MetricMagicLinkRequested, Name: "connectauth_magiclink_requested_total", Help: "Magic links emailed."},
	{ID: connectauth.MetricMagicLinkSuccess, Name: "connectauth_magiclink_success_total", Help: "Magic links consumed into a session."},
	{ID: connectauth.MetricMagicLinkFailure, Name: "connectauth_magiclink_failure_total", Help: "Rejected magic links."},
	{ID: connectauth.MetricRefreshSuccess, Name: "connectauth_refresh_success_total", Help: "Successful token rotations."},
	{ID: connectauth.MetricRefreshFailure, Name: "connectauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: connectauth.MetricRefreshReplay, Name: "connectauth_refresh_replay_total", Help: "Validly signed refresh tokens with no live record."},
	{ID: connectauth.MetricLogout, Name: "connectauth_logout_total", Help: "Logout requests."},
	{ID: connectauth.MetricSessionCreated, Name: "connectauth_session_created_total", Help: "Sessions created by login or magic link."},
	{ID: connectauth.MetricSessionCheckFailure, Name: "connectauth_session_check_failure_total", Help: "Rejected session checks and heartbeats."},
	{ID: connectauth.MetricSessionTouchFailure, Name: "connectauth_session_touch_failure_total", Help: "Best-effort session touches that failed."},
	{ID: connectauth.MetricOnboarded, Name: "connectauth_onboarded_total", Help: "Users marked onboarded."},
	{ID: connectauth.MetricUserBanned, Name: "connectauth_user_banned_total", Help: "Ban operations."},
	{ID: connectauth.MetricUserUnbanned, Name: "connectauth_user_unbanned_total", Help: "Unban operations."},
	{ID: connectauth.MetricRateLimitHit, Name: "connectauth_rate_limit_hit_total", Help: "Requests blocked by a flow limiter or cooldown."},
	{ID: connectauth.MetricRateLimitBackendError, Name: "connectauth_rate_limit_backend_error_total", Help: "Limiter backend failures."},
	{ID: connectauth.MetricEmailFailure, Name: "connectauth_email_failure_total", Help: "Emails the mailer failed to send."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: connectauth.MetricSessionCheckLatency, Name: "connectauth_session_check_latency_seconds", Help: "Session check latency."},
}

// AuditDroppedName is the counter for audit events dropped under backpressure.
const AuditDroppedName = "connectauth_audit_dropped_total"

// HistogramBounds are the bucket labels in exposition order.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The +Inf bucket is implicit.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names per-bucket gauges for exporters without native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
