package connectauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/connectauth/internal"
	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/store"
)

// Login authenticates email and password and opens a new session.
//
// Unknown email and wrong password both return [ErrInvalidCredentials]. Accounts
// without a password return [ErrPasswordlessAccount], unverified ones
// [ErrAccountUnverified] and banned ones [ErrAccountBanned], in that order.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || pass == "" {
		return nil, ErrValidation
	}

	if err := e.limit(ctx, flowLogin, e.config.RateLimit.Login, email); err != nil {
		return nil, err
	}

	user, err := e.store.FindUserByEmailWithPassword(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.loginRejected(ctx, "", MetricLoginFailure, ErrInvalidCredentials)
		}
		return nil, e.userErr(err, ErrInvalidCredentials)
	}

	if !user.HasPassword() {
		return nil, e.loginRejected(ctx, user.ID, MetricLoginFailure, ErrPasswordlessAccount)
	}

	ok, err := e.passwords.Verify(pass, user.PasswordHash)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return nil, e.loginRejected(ctx, user.ID, MetricLoginFailure, ErrInvalidCredentials)
	}
	if !ok {
		return nil, e.loginRejected(ctx, user.ID, MetricLoginFailure, ErrInvalidCredentials)
	}

	if !user.IsVerified() {
		return nil, e.loginRejected(ctx, user.ID, MetricLoginUnverified, ErrAccountUnverified)
	}
	if user.Banned {
		return nil, e.loginRejected(ctx, user.ID, MetricLoginBanned, ErrAccountBanned)
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradePasswordHash(ctx, user, pass)
	}

	res, err := e.issueSession(ctx, user, "password")
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)
	return res, nil
}

func (e *Engine) loginRejected(ctx context.Context, userID string, metric MetricID, err error) error {
	e.metricInc(metric)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, func() map[string]string {
		return map[string]string{"method": "password"}
	})
	return err
}

func (e *Engine) upgradePasswordHash(ctx context.Context, user *store.User, pass string) {
	stale, err := e.passwords.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := e.passwords.Hash(pass)
	if err != nil {
		return
	}
	if _, err := e.store.UpdateUser(ctx, user.ID, store.UserPatch{PasswordHash: &hash}); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
	}
}

// RequestMagicLink emails a single-use sign-in link. Prior links of the user are
// revoked first. No session exists until the link is consumed.
func (e *Engine) RequestMagicLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation
	}

	if err := e.limit(ctx, flowMagicLink, e.config.RateLimit.MagicLink, email); err != nil {
		return err
	}

	user, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		return e.userErr(err, ErrUserNotFound)
	}
	if user.Banned {
		e.emitAudit(ctx, auditEventMagicLinkRequested, false, user.ID, "", ErrAccountBanned, nil)
		return ErrAccountBanned
	}
	if !user.IsVerified() {
		e.emitAudit(ctx, auditEventMagicLinkRequested, false, user.ID, "", ErrVerificationRequired, nil)
		return ErrVerificationRequired
	}

	if err := e.store.DeleteTokensForUser(ctx, user.ID, store.TokenMagicLink); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("revoke prior magic links failed")
		return storeErr(err)
	}

	value, err := internal.NewLinkToken()
	if err != nil {
		return err
	}
	if _, err := e.store.CreateToken(ctx, user.ID, store.TokenMagicLink, value, e.config.Verification.MagicLinkTTL); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("create magic link failed")
		return storeErr(err)
	}

	e.recordActivity(ctx, user.ID, ActivityMagicLinkRequested, nil)

	msg, err := renderMagicLinkEmail(user.Email, magicLinkMail{
		Link:    e.config.link(e.config.URLs.MagicLinkPath, value),
		Expires: humanTTL(e.config.Verification.MagicLinkTTL),
	})
	if err != nil {
		return err
	}
	if err := e.send(ctx, msg); err != nil {
		return err
	}

	e.metricInc(MetricMagicLinkRequested)
	e.emitAudit(ctx, auditEventMagicLinkRequested, true, user.ID, "", nil, nil)
	return nil
}

// ConsumeMagicLink redeems a magic-link token and opens a session. Unknown,
// expired and already used tokens all return [ErrUnauthenticated].
func (e *Engine) ConsumeMagicLink(ctx context.Context, token string) (*LoginResult, error) {
	if token == "" {
		return nil, e.magicLinkRejected(ctx, "", ErrUnauthenticated)
	}

	tok, err := e.store.ConsumeToken(ctx, token, store.TokenMagicLink)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrExpired) {
			return nil, e.magicLinkRejected(ctx, "", ErrUnauthenticated)
		}
		e.logger.Error().Err(err).Msg("consume magic link failed")
		return nil, storeErr(err)
	}

	user, err := e.store.FindUserByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, e.magicLinkRejected(ctx, tok.UserID, ErrUnauthenticated)
		}
		return nil, e.userErr(err, ErrUnauthenticated)
	}
	if user.Banned {
		return nil, e.magicLinkRejected(ctx, user.ID, ErrAccountBanned)
	}

	res, err := e.issueSession(ctx, user, "magicLink")
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricMagicLinkSuccess)
	e.emitAudit(ctx, auditEventMagicLinkConsumed, true, user.ID, res.SessionID, nil, nil)
	return res, nil
}

func (e *Engine) magicLinkRejected(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricMagicLinkFailure)
	e.emitAudit(ctx, auditEventMagicLinkConsumed, false, userID, "", err, nil)
	return err
}

// issueSession creates the session record, signs both tokens and persists the
// refresh token.
func (e *Engine) issueSession(ctx context.Context, user *store.User, method string) (*LoginResult, error) {
	sessionID, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	if err := e.store.CreateSession(ctx, user.ID, sessionID); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("create session failed")
		return nil, storeErr(err)
	}

	access, err := e.issueAccess(user, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.jwt.IssueRefresh(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateRefreshToken(ctx, user.ID, sessionID, refresh, e.config.JWT.RefreshTTL); err != nil {
		e.logger.Error().Err(err).Str("user_id", user.ID).Msg("persist refresh token failed")
		return nil, storeErr(err)
	}

	e.touchLastSeen(ctx, user.ID)
	e.recordActivity(ctx, user.ID, ActivityLogin, map[string]string{"method": method})
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, sessionID, nil, func() map[string]string {
		return map[string]string{"method": method}
	})

	return &LoginResult{
		TokenPair: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			AccessTTL:    e.config.JWT.AccessTTL,
			RefreshTTL:   e.config.JWT.RefreshTTL,
		},
		UserID:    user.ID,
		SessionID: sessionID,
		Onboarded: user.Onboarded,
		Redirect:  e.redirectFor(user.Onboarded),
	}, nil
}

func (e *Engine) issueAccess(user *store.User, sessionID string) (string, error) {
	return e.jwt.IssueAccess(jwt.AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Onboarded: user.Onboarded,
		SessionID: sessionID,
		Role:      string(user.Role),
	})
}

// loadActiveUser returns the live record of a user who may hold a session.
func (e *Engine) loadActiveUser(ctx context.Context, userID string) (*store.User, error) {
	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, e.userErr(err, ErrUnauthenticated)
	}
	if user.Banned {
		return nil, ErrAccountBanned
	}
	return user, nil
}
