package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExpired is returned by ConsumeToken when the token existed but was past its TTL.
	// The record is deleted either way.
	ErrExpired = errors.New("store: expired")
	// ErrDuplicate is returned when a unique constraint (user email, session id) is violated.
	ErrDuplicate = errors.New("store: duplicate")
)

// Users is the user-record slice of [Store].
type Users interface {
	// FindUserByEmail returns the user without its password hash.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByEmailWithPassword is the only lookup that includes PasswordHash.
	FindUserByEmailWithPassword(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	// CreateUser assigns ID and timestamps on u.
	CreateUser(ctx context.Context, u *User) error
	// UpdateUser applies patch and returns the updated record without its password hash.
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error)
	// ListUsers returns every user, newest first.
	ListUsers(ctx context.Context) ([]User, error)
	// SearchUsers matches query case-insensitively against name and email.
	SearchUsers(ctx context.Context, query string, limit int) ([]User, error)
}

// Tokens is the short-lived email token slice of [Store].
type Tokens interface {
	CreateToken(ctx context.Context, userID string, typ TokenType, value string, ttl time.Duration) (*Token, error)
	// ConsumeToken atomically finds and deletes the token with the given value and type.
	ConsumeToken(ctx context.Context, value string, typ TokenType) (*Token, error)
	// ConsumeTokenByID atomically deletes a token previously located with FindToken.
	ConsumeTokenByID(ctx context.Context, id string) (*Token, error)
	// FindToken returns the newest token of typ owned by userID.
	FindToken(ctx context.Context, userID string, typ TokenType) (*Token, error)
	// DeleteTokensForUser removes the user's tokens of the given types, or all of
	// them when no type is given.
	DeleteTokensForUser(ctx context.Context, userID string, types ...TokenType) error
}

// RefreshTokens is the refresh-token slice of [Store].
type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, userID, sessionID, value string, ttl time.Duration) error
	FindRefreshToken(ctx context.Context, value, sessionID string) (*RefreshToken, error)
	// DeleteRefreshToken is compare-and-delete on (value, sessionID). It returns the
	// deleted record, or ErrNotFound when another caller already removed it.
	DeleteRefreshToken(ctx context.Context, value, sessionID string) (*RefreshToken, error)
}

// Sessions is the presence slice of [Store].
type Sessions interface {
	CreateSession(ctx context.Context, userID, sessionID string) error
	// TouchSession sets LastActivity to now. A missing session is not an error.
	TouchSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	// ListRecentSessions returns sessions whose LastActivity is at or after since.
	ListRecentSessions(ctx context.Context, since time.Time) ([]Session, error)
	// ListUserSessions returns every session owned by userID.
	ListUserSessions(ctx context.Context, userID string) ([]Session, error)
}

// Activities is the audit-trail slice of [Store].
type Activities interface {
	CreateActivity(ctx context.Context, a *Activity) error
	// ListActivity returns the user's entries, newest first. limit <= 0 means all.
	ListActivity(ctx context.Context, userID string, limit int) ([]Activity, error)
}

// Store is the full credential store.
type Store interface {
	Users
	Tokens
	RefreshTokens
	Sessions
	Activities

	// DeleteUserCascade revokes every refresh token and session of userID. The user
	// record itself is kept. Running it twice is harmless.
	DeleteUserCascade(ctx context.Context, userID string) error
	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
}
