package flows

import (
	"context"

	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/store"
)

// LogoutStore is the slice of the credential store logout needs.
type LogoutStore interface {
	DeleteRefreshToken(ctx context.Context, value, sessionID string) (*store.RefreshToken, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	ParseRefresh func(string) (*jwt.RefreshClaims, error)
	Store        LogoutStore
	// Warn receives cleanup failures. Logout itself never fails.
	Warn func(msg string, err error)
}

// LogoutResult reports what a logout managed to revoke.
type LogoutResult struct {
	UserID         string
	SessionID      string
	RefreshRevoked bool
	SessionRevoked bool
}

// RunLogout revokes whatever the presented credentials identify. The refresh token
// names the session when it verifies; otherwise the access token does. Tokens that
// do not verify are ignored. When both verify they must name the same session.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	var access *jwt.AccessClaims
	if accessToken != "" {
		if c, err := deps.ParseAccess(accessToken); err == nil {
			access = c
		}
	}
	var refresh *jwt.RefreshClaims
	if refreshToken != "" {
		if c, err := deps.ParseRefresh(refreshToken); err == nil {
			refresh = c
		}
	}

	if access != nil && refresh != nil && access.SessionID != refresh.SessionID {
		refresh = nil
	}

	switch {
	case refresh != nil:
		res.UserID, res.SessionID = refresh.UserID, refresh.SessionID
	case access != nil:
		res.UserID, res.SessionID = access.UserID, access.SessionID
	default:
		return res
	}

	if refresh != nil {
		if _, err := deps.Store.DeleteRefreshToken(ctx, refreshToken, refresh.SessionID); err == nil {
			res.RefreshRevoked = true
		} else if deps.Warn != nil {
			deps.Warn("logout refresh revoke failed", err)
		}
	}

	if res.SessionID != "" {
		if err := deps.Store.DeleteSession(ctx, res.SessionID); err == nil {
			res.SessionRevoked = true
		} else if deps.Warn != nil {
			deps.Warn("logout session delete failed", err)
		}
	}

	return res
}
