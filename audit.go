package connectauth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventRegister            = "register"
	auditEventVerification        = "email_verification"
	auditEventVerificationResent  = "verification_resent"
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventMagicLinkRequested  = "magic_link_requested"
	auditEventMagicLinkConsumed   = "magic_link_consumed"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshInvalid      = "refresh_invalid"
	auditEventRefreshReplay       = "refresh_replay"
	auditEventLogout              = "logout"
	auditEventOnboarded           = "onboarded"
	auditEventUserBanned          = "user_banned"
	auditEventUserUnbanned        = "user_unbanned"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventAdminActionRejected = "admin_action_rejected"
)

// AuditErrorCode is the stable reason string carried in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnverified         AuditErrorCode = "account_unverified"
	auditErrPasswordless       AuditErrorCode = "passwordless_account"
	auditErrBanned             AuditErrorCode = "account_banned"
	auditErrUnauthenticated    AuditErrorCode = "unauthenticated"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrMail               AuditErrorCode = "mail_failed"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountUnverified), errors.Is(err, ErrVerificationRequired):
		return auditErrUnverified
	case errors.Is(err, ErrPasswordlessAccount):
		return auditErrPasswordless
	case errors.Is(err, ErrAccountBanned):
		return auditErrBanned
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEmailExists):
		return auditErrDuplicate
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrSelfBan), errors.Is(err, ErrAdminTarget):
		return auditErrForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrMailUnavailable):
		return auditErrMail
	case KindOf(err) == KindValidation:
		return auditErrValidation
	default:
		return auditErrInternal
	}
}
