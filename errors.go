package connectauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("invalid request")
	// ErrPasswordPolicy is returned when a password is outside the accepted length range.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrRateLimited is returned (wrapped in [*RateLimitError]) when a flow's limiter trips.
	ErrRateLimited = errors.New("too many requests")

	// ErrUnauthenticated covers missing, malformed, expired, revoked and replayed
	// credentials. Callers cannot tell these apart.
	ErrUnauthenticated = errors.New("invalid or expired session")
	// ErrInvalidCredentials is the single login failure for unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountUnverified is returned when a flow requires a verified email.
	ErrAccountUnverified = errors.New("email not verified")
	// ErrVerificationRequired is returned when a magic link is requested for an
	// unverified account.
	ErrVerificationRequired = errors.New("verify your email before requesting a sign-in link")
	// ErrPasswordlessAccount is returned by password login for accounts without a
	// password. The client should offer a magic link instead.
	ErrPasswordlessAccount = errors.New("account has no password; use a magic link")

	// ErrAccountBanned is returned at every entry point for banned users.
	ErrAccountBanned = errors.New("account banned")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfBan is returned when an admin targets their own account.
	ErrSelfBan = errors.New("cannot ban or unban yourself")
	// ErrAdminTarget is returned when an admin targets another admin.
	ErrAdminTarget = errors.New("cannot ban or unban an admin")

	// ErrUserNotFound is returned when the addressed user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid is returned for unknown, consumed or expired email tokens and OTPs.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrAlreadyVerified is returned by resend when the email is already verified.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrMissingSessionID is returned by heartbeat when the access token has no session claim.
	ErrMissingSessionID = errors.New("session id missing from token")

	// ErrEmailExists is returned by register for an address that is already taken.
	ErrEmailExists = errors.New("email already registered")

	// ErrStoreUnavailable wraps credential store failures. Detail is logged, never returned.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMailUnavailable wraps email dispatch failures.
	ErrMailUnavailable = errors.New("email dispatch failed")
	// ErrMisconfigured is returned at build time for invalid configuration, including a
	// missing signing secret.
	ErrMisconfigured = errors.New("engine misconfigured")
)

// ErrorKind classifies errors for transport mapping.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindRateLimited
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindStoreUnavailable
	KindMisconfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindMisconfiguration:
		return "misconfiguration"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrPasswordPolicy, KindValidation},
	{ErrPasswordlessAccount, KindValidation},
	{ErrTokenInvalid, KindValidation},
	{ErrAlreadyVerified, KindValidation},
	{ErrMissingSessionID, KindValidation},
	{ErrRateLimited, KindRateLimited},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrInvalidCredentials, KindUnauthenticated},
	{ErrAccountUnverified, KindUnauthenticated},
	{ErrAccountBanned, KindForbidden},
	{ErrVerificationRequired, KindForbidden},
	{ErrForbidden, KindForbidden},
	{ErrSelfBan, KindForbidden},
	{ErrAdminTarget, KindForbidden},
	{ErrUserNotFound, KindNotFound},
	{ErrEmailExists, KindConflict},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrMisconfigured, KindMisconfiguration},
}

// KindOf returns the kind of err, or KindInternal for unknown errors.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps err to the status code of the auth API. Conflicts are reported as
// 400 so duplicate registration looks like any other rejected form.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RateLimitError reports which limiter check blocked a request.
type RateLimitError struct {
	Flow      string
	Dimension string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: flow=%s dimension=%s", ErrRateLimited, e.Flow, e.Dimension)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
