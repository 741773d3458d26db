package connectauth

import (
	"context"
	"time"

	"github.com/MrEthical07/connectauth/internal/flows"
	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/store"
)

// Refresh rotates a refresh token. Every failure, including replay of a rotated
// token and store errors, returns [ErrUnauthenticated].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if res.Failure != flows.RefreshFailureNone {
		e.refreshFailed(ctx, res)
		return nil, ErrUnauthenticated
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)

	return &TokenPair{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, res flows.RefreshResult) {
	switch res.Failure {
	case flows.RefreshFailureReplay:
		e.metricInc(MetricRefreshReplay)
		e.logger.Warn().Str("user_id", res.UserID).Str("session_id", res.SessionID).Msg("refresh token replayed or revoked")
		e.emitAudit(ctx, auditEventRefreshReplay, false, res.UserID, res.SessionID, ErrUnauthenticated, nil)
		return
	case flows.RefreshFailureStore, flows.RefreshFailurePersist, flows.RefreshFailureIssue:
		e.logger.Error().Err(res.Err).Str("user_id", res.UserID).Msg("refresh failed")
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.SessionID, ErrUnauthenticated, nil)
}

// Logout revokes the session named by the presented tokens. It never fails:
// unverifiable tokens are ignored and cleanup errors are logged.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) {
	res := flows.RunLogout(ctx, accessToken, refreshToken, e.flows.Logout)
	if res.UserID == "" {
		return
	}

	e.recordActivity(ctx, res.UserID, ActivityLogout, nil)
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.UserID, res.SessionID, nil, nil)
}

// CheckSession verifies an access token against the live user record and touches
// its session. Role always comes from the record; name and onboarded fall back to
// it when the token is stale.
func (e *Engine) CheckSession(ctx context.Context, accessToken string) (*SessionInfo, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricSessionCheckLatency, time.Since(start))
		}()
	}

	claims, user, err := e.authenticate(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricSessionCheckFailure)
		return nil, err
	}

	if claims.SessionID != "" && !e.tracker.Touch(ctx, claims.SessionID) {
		e.metricInc(MetricSessionTouchFailure)
	}

	info := &SessionInfo{
		UserID:    user.ID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      string(user.Role),
		Onboarded: claims.Onboarded || user.Onboarded,
		SessionID: claims.SessionID,
	}
	if info.Email == "" {
		info.Email = user.Email
	}
	if info.Name == "" {
		info.Name = user.Name
	}
	return info, nil
}

// Heartbeat marks the token's session active and stamps lastSeen.
func (e *Engine) Heartbeat(ctx context.Context, accessToken string) error {
	claims, user, err := e.authenticate(ctx, accessToken)
	if err != nil {
		return err
	}
	if claims.SessionID == "" {
		return ErrMissingSessionID
	}

	if !e.tracker.Touch(ctx, claims.SessionID) {
		e.metricInc(MetricSessionTouchFailure)
	}
	e.touchLastSeen(ctx, user.ID)
	return nil
}

// Onboard marks the caller onboarded and reissues the access token for the same
// session with the flag set. The refresh token is left as is.
func (e *Engine) Onboard(ctx context.Context, accessToken string) (*TokenPair, error) {
	claims, err := e.parseAccess(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := e.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}
	if user.Banned {
		return nil, ErrAccountBanned
	}

	onboarded := true
	user, err = e.store.UpdateUser(ctx, user.ID, store.UserPatch{Onboarded: &onboarded})
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}

	access, err := e.issueAccess(user, claims.SessionID)
	if err != nil {
		return nil, err
	}

	e.recordActivity(ctx, user.ID, ActivityOnboarded, nil)
	e.metricInc(MetricOnboarded)
	e.emitAudit(ctx, auditEventOnboarded, true, user.ID, claims.SessionID, nil, nil)

	return &TokenPair{
		AccessToken: access,
		AccessTTL:   e.config.JWT.AccessTTL,
	}, nil
}

// authenticate verifies the token and loads its user. A missing user is
// unauthenticated; a banned one is forbidden.
func (e *Engine) authenticate(ctx context.Context, accessToken string) (*jwt.AccessClaims, *store.User, error) {
	claims, err := e.parseAccess(accessToken)
	if err != nil {
		return nil, nil, err
	}
	user, err := e.loadActiveUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return claims, user, nil
}

func (e *Engine) parseAccess(accessToken string) (*jwt.AccessClaims, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := e.jwt.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Verify returns the claims of a valid access token without touching the store.
// It backs request guards that only need identity.
func (e *Engine) Verify(accessToken string) (*SessionInfo, error) {
	claims, err := e.parseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		Onboarded: claims.Onboarded,
		SessionID: claims.SessionID,
	}, nil
}

