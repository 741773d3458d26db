package jwt

import (
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:     []byte("test-secret-test-secret-test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{AccessTTL: time.Hour, RefreshTTL: time.Hour})
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestAccessRoundTrip(t *testing.T) {
	m := newTestManager(t)

	tok, err := m.IssueAccess(AccessClaims{
		UserID:    "u1",
		Email:     "jane@x.com",
		Name:      "Jane",
		SessionID: "s1",
		Role:      "user",
	})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.UserID != "u1" || claims.SessionID != "s1" || claims.Email != "jane@x.com" || claims.Onboarded {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("access ttl = %v, want 1h", got)
	}
}

func TestRefreshTokensAreUniquePerIssue(t *testing.T) {
	m := newTestManager(t)

	a, err := m.IssueRefresh("u1", "s1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	b, err := m.IssueRefresh("u1", "s1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if a == b {
		t.Fatal("two refresh tokens for one session must differ")
	}

	claims, err := m.ParseRefresh(a)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if claims.UserID != "u1" || claims.SessionID != "s1" {
		t.Fatalf("unexpected refresh claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("refresh ttl = %v", got)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t)

	refresh, _ := m.IssueRefresh("u1", "s1")
	if _, err := m.ParseAccess(refresh); !errors.Is(err, ErrInvalid) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}

	access, _ := m.IssueAccess(AccessClaims{UserID: "u1", SessionID: "s1"})
	if _, err := m.ParseRefresh(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
}

func TestParseAccessExpired(t *testing.T) {
	m := newTestManager(t)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }

	tok, err := m.IssueAccess(AccessClaims{UserID: "u1", SessionID: "s1"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	m.now = time.Now
	if _, err := m.ParseAccess(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseAccessRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewManager(Config{Secret: []byte("another-secret"), AccessTTL: time.Hour, RefreshTTL: time.Hour})

	tok, _ := other.IssueAccess(AccessClaims{UserID: "u1", SessionID: "s1"})
	if _, err := m.ParseAccess(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t)

	claims := AccessClaims{UserID: "u1", SessionID: "s1", Type: typeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims)
	token, err := tok.SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
}

func TestParseAccessRequiresExpiry(t *testing.T) {
	m := newTestManager(t)

	claims := AccessClaims{UserID: "u1", SessionID: "s1", Type: typeAccess}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, _ := tok.SignedString(m.config.Secret)

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestParseAccessGarbage(t *testing.T) {
	m := newTestManager(t)
	for _, in := range []string{"", "abc", "a.b.c", "!!!.???.***"} {
		if _, err := m.ParseAccess(in); err == nil {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestKeyRotation(t *testing.T) {
	old, err := NewManager(Config{
		Secret:     []byte("old-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
		KeyID:      "k1",
	})
	if err != nil {
		t.Fatalf("old manager: %v", err)
	}
	rotated, err := NewManager(Config{
		Secret:     []byte("new-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
		KeyID:      "k2",
		VerifyKeys: map[string][]byte{"k1": []byte("old-secret")},
	})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}

	tok, _ := old.IssueRefresh("u1", "s1")
	if _, err := rotated.ParseRefresh(tok); err != nil {
		t.Fatalf("token signed with retired key should still verify: %v", err)
	}

	fresh, _ := rotated.IssueRefresh("u1", "s1")
	if _, err := old.ParseRefresh(fresh); err == nil {
		t.Fatal("old manager must not know the new kid")
	}
}
