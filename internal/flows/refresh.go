package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/connectauth/jwt"
	"github.com/MrEthical07/connectauth/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
// Every kind except RefreshFailureNone surfaces to the client as the same 401.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureDecode
	// RefreshFailureReplay means the token verified but no live record matched:
	// already rotated, logged out, or revoked by a ban.
	RefreshFailureReplay
	RefreshFailureStore
	RefreshFailureUser
	RefreshFailureIssue
	RefreshFailurePersist
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	SessionID    string
	User         *store.User
	AccessToken  string
	RefreshToken string
}

// RefreshTokenStore is the slice of the credential store rotation needs.
type RefreshTokenStore interface {
	DeleteRefreshToken(ctx context.Context, value, sessionID string) (*store.RefreshToken, error)
	CreateRefreshToken(ctx context.Context, userID, sessionID, value string, ttl time.Duration) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ParseRefresh func(string) (*jwt.RefreshClaims, error)
	// LoadUser returns the live user record, or an error when the user is gone or
	// may no longer hold a session.
	LoadUser     func(ctx context.Context, userID string) (*store.User, error)
	IssueAccess  func(user *store.User, sessionID string) (string, error)
	IssueRefresh func(userID, sessionID string) (string, error)
	RefreshTTL   time.Duration
	Tokens       RefreshTokenStore
}

// RunRefresh rotates a refresh token. The presented token is removed with a
// compare-and-delete before replacements are minted, so of two concurrent calls
// with the same token at most one gets past the delete.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureDecode,
			Err:     err,
		}
	}

	rec, err := deps.Tokens.DeleteRefreshToken(ctx, refreshToken, claims.SessionID)
	if err != nil {
		kind := RefreshFailureStore
		if errors.Is(err, store.ErrNotFound) {
			kind = RefreshFailureReplay
		}
		return RefreshResult{
			Failure:   kind,
			Err:       err,
			UserID:    claims.UserID,
			SessionID: claims.SessionID,
		}
	}
	if rec.UserID != claims.UserID {
		return RefreshResult{
			Failure:   RefreshFailureReplay,
			Err:       errors.New("refresh record owned by another user"),
			UserID:    claims.UserID,
			SessionID: claims.SessionID,
		}
	}

	user, err := deps.LoadUser(ctx, rec.UserID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureUser,
			Err:       err,
			UserID:    rec.UserID,
			SessionID: rec.SessionID,
		}
	}

	access, err := deps.IssueAccess(user, rec.SessionID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssue,
			Err:       err,
			UserID:    user.ID,
			SessionID: rec.SessionID,
			User:      user,
		}
	}

	refresh, err := deps.IssueRefresh(user.ID, rec.SessionID)
	if err != nil {
		return RefreshResult{
			Failure:   RefreshFailureIssue,
			Err:       err,
			UserID:    user.ID,
			SessionID: rec.SessionID,
			User:      user,
		}
	}

	if err := deps.Tokens.CreateRefreshToken(ctx, user.ID, rec.SessionID, refresh, deps.RefreshTTL); err != nil {
		return RefreshResult{
			Failure:   RefreshFailurePersist,
			Err:       err,
			UserID:    user.ID,
			SessionID: rec.SessionID,
			User:      user,
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       user.ID,
		SessionID:    rec.SessionID,
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
