package connectauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/connectauth/internal"
	"github.com/MrEthical07/connectauth/password"
	"github.com/MrEthical07/connectauth/store"
)

// Register creates an unverified account and emails a verification link and OTP.
// Nothing secret is returned; the caller only learns that the email was sent.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) error {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" || !validEmail(email) {
		return ErrValidation
	}
	if err := e.passwords.CheckPolicy(req.Password); err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return err
	}

	if err := e.limit(ctx, flowRegister, e.config.RateLimit.Register, email); err != nil {
		return err
	}

	if _, err := e.store.FindUserByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegister, false, "", "", ErrEmailExists, nil)
		return ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return e.userErr(err, ErrUserNotFound)
	}

	hash, err := e.passwords.Hash(req.Password)
	if err != nil {
		return err
	}

	user := &store.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         store.RoleUser,
	}
	if err := e.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			e.metricInc(MetricRegisterDuplicate)
			return ErrEmailExists
		}
		e.logger.Error().Err(err).Msg("create user failed")
		return storeErr(err)
	}

	if err := e.sendVerification(ctx, user, "Verify your email address"); err != nil {
		e.emitAudit(ctx, auditEventRegister, false, user.ID, "", err, nil)
		return err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, "", nil, nil)
	return nil
}

// ResendVerification replaces the user's pending link and OTP and emails them again.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation
	}

	if err := e.limit(ctx, flowResend, e.config.RateLimit.Resend, email); err != nil {
		return err
	}

	user, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		return e.userErr(err, ErrUserNotFound)
	}
	if user.IsVerified() {
		return ErrAlreadyVerified
	}

	if err := e.store.DeleteTokensForUser(ctx, user.ID, store.TokenEmailVerification, store.TokenVerification); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("delete pending verification tokens failed")
		return storeErr(err)
	}

	if err := e.sendVerification(ctx, user, "Resend verification: verify your email address"); err != nil {
		return err
	}

	e.metricInc(MetricVerificationResent)
	e.emitAudit(ctx, auditEventVerificationResent, true, user.ID, "", nil, nil)
	return nil
}

// VerifyEmailLink consumes a verification link token and marks the email verified.
func (e *Engine) VerifyEmailLink(ctx context.Context, token string) (*VerifyResult, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	tok, err := e.store.ConsumeToken(ctx, token, store.TokenEmailVerification)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			e.metricInc(MetricVerificationFailure)
			e.emitAudit(ctx, auditEventVerification, false, "", "", ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		e.logger.Error().Err(err).Msg("consume verification token failed")
		return nil, storeErr(err)
	}

	user, err := e.store.FindUserByID(ctx, tok.UserID)
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}

	return e.completeVerification(ctx, user, "link")
}

// VerifyOTP checks a verification code for email and marks the email verified.
func (e *Engine) VerifyOTP(ctx context.Context, email, otp string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return nil, ErrValidation
	}

	if err := e.limit(ctx, flowVerifyOTP, e.config.RateLimit.VerifyOTP, email); err != nil {
		return nil, err
	}

	user, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}

	tok, err := e.store.FindToken(ctx, user.ID, store.TokenVerification)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.otpRejected(ctx, user.ID)
		}
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("find otp failed")
		return nil, storeErr(err)
	}
	if tok.Expired(e.now()) {
		_, _ = e.store.ConsumeTokenByID(ctx, tok.ID)
		return nil, e.otpRejected(ctx, user.ID)
	}

	ok, err := e.otps.Verify(otp, tok.Value)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("otp hash compare failed")
		return nil, e.otpRejected(ctx, user.ID)
	}
	if !ok {
		return nil, e.otpRejected(ctx, user.ID)
	}

	// Two concurrent correct submissions race here; only one consumes the record.
	if _, err := e.store.ConsumeTokenByID(ctx, tok.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			return nil, e.otpRejected(ctx, user.ID)
		}
		return nil, storeErr(err)
	}

	return e.completeVerification(ctx, user, "otp")
}

func (e *Engine) otpRejected(ctx context.Context, userID string) error {
	e.metricInc(MetricVerificationFailure)
	e.emitAudit(ctx, auditEventVerification, false, userID, "", ErrTokenInvalid, func() map[string]string {
		return map[string]string{"method": "otp"}
	})
	return ErrTokenInvalid
}

// completeVerification sets EmailVerified and drops every pending token of the user.
func (e *Engine) completeVerification(ctx context.Context, user *store.User, method string) (*VerifyResult, error) {
	now := e.now().UTC()
	updated, err := e.store.UpdateUser(ctx, user.ID, store.UserPatch{EmailVerified: &now})
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}

	if err := e.store.DeleteTokensForUser(ctx, user.ID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("delete tokens after verification failed")
	}

	e.recordActivity(ctx, user.ID, ActivityEmailVerified, map[string]string{"method": method})
	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerification, true, user.ID, "", nil, func() map[string]string {
		return map[string]string{"method": method}
	})

	return &VerifyResult{
		UserID:    updated.ID,
		Onboarded: updated.Onboarded,
		Redirect:  e.redirectFor(updated.Onboarded),
	}, nil
}

// sendVerification creates a fresh link token and OTP for user and emails both.
func (e *Engine) sendVerification(ctx context.Context, user *store.User, subject string) error {
	link, err := internal.NewLinkToken()
	if err != nil {
		return err
	}
	code, err := internal.NewOTP(e.config.Verification.OTPDigits)
	if err != nil {
		return err
	}
	codeHash, err := e.otps.Hash(code)
	if err != nil {
		return err
	}

	if _, err := e.store.CreateToken(ctx, user.ID, store.TokenEmailVerification, link, e.config.Verification.LinkTTL); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("create verification link failed")
		return storeErr(err)
	}
	if _, err := e.store.CreateToken(ctx, user.ID, store.TokenVerification, codeHash, e.config.Verification.OTPTTL); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("create verification otp failed")
		return storeErr(err)
	}

	msg, err := renderVerificationEmail(user.Email, subject, verificationMail{
		Name:    user.Name,
		Link:    e.config.link(e.config.URLs.VerifyEmailPath, link),
		OTP:     code,
		Expires: humanTTL(e.config.Verification.LinkTTL),
	})
	if err != nil {
		return err
	}
	return e.send(ctx, msg)
}

func (e *Engine) send(ctx context.Context, msg Email) error {
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricEmailFailure)
		e.logger.Error().Err(err).Str("subject", msg.Subject).Msg("email dispatch failed")
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
