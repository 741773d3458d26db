package store

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// TokenType distinguishes the purposes of short-lived email tokens.
type TokenType string

const (
	TokenMagicLink         TokenType = "magicLink"
	TokenVerification      TokenType = "verification"
	TokenEmailVerification TokenType = "emailVerification"
)

// User is the identity record. Email is stored normalized (trimmed, lowercased).
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Onboarded     bool       `json:"onboarded"`
	Banned        bool       `json:"banned"`
	LastSeen      *time.Time `json:"lastSeen,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsVerified reports whether a verification flow has completed.
func (u *User) IsVerified() bool {
	return u.EmailVerified != nil && !u.EmailVerified.IsZero()
}

// HasPassword reports whether the record carries a password hash. Accounts created
// without one can only sign in by magic link.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UserPatch lists the fields UpdateUser may change. Nil fields are left untouched.
type UserPatch struct {
	Name          *string
	PasswordHash  *string
	Role          *Role
	EmailVerified *time.Time
	Onboarded     *bool
	Banned        *bool
	LastSeen      *time.Time
}

// Token is a magic-link, verification-link or OTP secret. Value is the random link
// token for link types and the bcrypt hash of the code for OTPs.
type Token struct {
	ID        string
	UserID    string
	Value     string
	Type      TokenType
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its TTL at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshToken binds one signed refresh token to one session.
type RefreshToken struct {
	ID        string
	UserID    string
	SessionID string
	Value     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Session is the presence record of one login.
type Session struct {
	ID           string
	UserID       string
	SessionID    string
	LastActivity time.Time
	CreatedAt    time.Time
}

// Activity is one entry of a user's audit trail.
type Activity struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
