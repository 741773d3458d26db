package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// runContract exercises the behaviour every Store implementation must share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UserEmailUnique", func(t *testing.T) { testUserEmailUnique(t, newStore(t)) })
	t.Run("PasswordProjection", func(t *testing.T) { testPasswordProjection(t, newStore(t)) })
	t.Run("UpdateUser", func(t *testing.T) { testUpdateUser(t, newStore(t)) })
	t.Run("TokenSingleUse", func(t *testing.T) { testTokenSingleUse(t, newStore(t)) })
	t.Run("DeleteTokensForUser", func(t *testing.T) { testDeleteTokensForUser(t, newStore(t)) })
	t.Run("RefreshCompareAndDelete", func(t *testing.T) { testRefreshCompareAndDelete(t, newStore(t)) })
	t.Run("RefreshSingleWinner", func(t *testing.T) { testRefreshSingleWinner(t, newStore(t)) })
	t.Run("SessionsAndCascade", func(t *testing.T) { testSessionsAndCascade(t, newStore(t)) })
	t.Run("SearchUsers", func(t *testing.T) { testSearchUsers(t, newStore(t)) })
	t.Run("Activity", func(t *testing.T) { testActivity(t, newStore(t)) })
}

func mustCreateUser(t *testing.T, s Store, email, name string) *User {
	t.Helper()
	u := &User{Email: email, Name: name, PasswordHash: "hash"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func testUserEmailUnique(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "jane@x.com", "Jane")
	if u.ID == "" || u.Role != RoleUser {
		t.Fatalf("CreateUser did not fill defaults: %+v", u)
	}

	err := s.CreateUser(ctx, &User{Email: "jane@x.com", Name: "Other"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func testPasswordProjection(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "p@x.com", "P")

	plain, err := s.FindUserByEmail(ctx, "p@x.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if plain.PasswordHash != "" {
		t.Fatal("default lookup must not include the password hash")
	}

	full, err := s.FindUserByEmailWithPassword(ctx, "p@x.com")
	if err != nil {
		t.Fatalf("FindUserByEmailWithPassword: %v", err)
	}
	if full.PasswordHash != "hash" || full.ID != u.ID {
		t.Fatalf("unexpected full user: %+v", full)
	}

	if _, err := s.FindUserByEmail(ctx, "none@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindUserByID(ctx, "not-an-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func testUpdateUser(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "u@x.com", "U")

	verified := time.Now().UTC().Truncate(time.Millisecond)
	onboarded := true
	got, err := s.UpdateUser(ctx, u.ID, UserPatch{EmailVerified: &verified, Onboarded: &onboarded})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if !got.IsVerified() || !got.Onboarded || got.Name != "U" {
		t.Fatalf("unexpected updated user: %+v", got)
	}
	if got.PasswordHash != "" {
		t.Fatal("UpdateUser must not return the password hash")
	}

	full, _ := s.FindUserByEmailWithPassword(ctx, "u@x.com")
	if full.PasswordHash != "hash" {
		t.Fatal("UpdateUser must leave unpatched fields alone")
	}
}

func testTokenSingleUse(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "t@x.com", "T")

	if _, err := s.CreateToken(ctx, u.ID, TokenMagicLink, "abc", time.Minute); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := s.ConsumeToken(ctx, "abc", TokenEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong type must not match: %v", err)
	}

	tok, err := s.ConsumeToken(ctx, "abc", TokenMagicLink)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if tok.UserID != u.ID {
		t.Fatalf("token owner = %q, want %q", tok.UserID, u.ID)
	}

	if _, err := s.ConsumeToken(ctx, "abc", TokenMagicLink); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume must fail with ErrNotFound, got %v", err)
	}

	if _, err := s.CreateToken(ctx, u.ID, TokenMagicLink, "gone", -time.Second); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := s.ConsumeToken(ctx, "gone", TokenMagicLink); err == nil {
		t.Fatal("expired token must not be consumable")
	}
}

func testDeleteTokensForUser(t *testing.T, s Store) {
	ctx := context.Background()
	a := mustCreateUser(t, s, "a@x.com", "A")
	b := mustCreateUser(t, s, "b@x.com", "B")

	s.CreateToken(ctx, a.ID, TokenMagicLink, "a-ml", time.Minute)
	s.CreateToken(ctx, a.ID, TokenVerification, "a-otp", time.Minute)
	s.CreateToken(ctx, b.ID, TokenMagicLink, "b-ml", time.Minute)

	if err := s.DeleteTokensForUser(ctx, a.ID, TokenMagicLink); err != nil {
		t.Fatalf("DeleteTokensForUser: %v", err)
	}
	if _, err := s.FindToken(ctx, a.ID, TokenMagicLink); !errors.Is(err, ErrNotFound) {
		t.Fatalf("magic link should be gone: %v", err)
	}
	if _, err := s.FindToken(ctx, a.ID, TokenVerification); err != nil {
		t.Fatalf("otp must survive a typed delete: %v", err)
	}
	if _, err := s.FindToken(ctx, b.ID, TokenMagicLink); err != nil {
		t.Fatalf("other user's token must survive: %v", err)
	}

	if err := s.DeleteTokensForUser(ctx, a.ID); err != nil {
		t.Fatalf("DeleteTokensForUser(all): %v", err)
	}
	if _, err := s.FindToken(ctx, a.ID, TokenVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("untyped delete must remove every type: %v", err)
	}
}

func testRefreshCompareAndDelete(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "r@x.com", "R")

	if err := s.CreateRefreshToken(ctx, u.ID, "s1", "r1", time.Hour); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	if _, err := s.FindRefreshToken(ctx, "r1", "s2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session mismatch must not match: %v", err)
	}
	if _, err := s.FindRefreshToken(ctx, "r1", "s1"); err != nil {
		t.Fatalf("FindRefreshToken: %v", err)
	}

	rt, err := s.DeleteRefreshToken(ctx, "r1", "s1")
	if err != nil {
		t.Fatalf("DeleteRefreshToken: %v", err)
	}
	if rt.UserID != u.ID {
		t.Fatalf("deleted token owner = %q", rt.UserID)
	}
	if _, err := s.DeleteRefreshToken(ctx, "r1", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete must report ErrNotFound, got %v", err)
	}
}

func testRefreshSingleWinner(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "race@x.com", "Race")
	if err := s.CreateRefreshToken(ctx, u.ID, "s1", "hot", time.Hour); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	const workers = 16
	var success int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.DeleteRefreshToken(ctx, "hot", "s1"); err == nil {
				atomic.AddInt32(&success, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func testSessionsAndCascade(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "s@x.com", "S")
	other := mustCreateUser(t, s, "o@x.com", "O")

	s.CreateSession(ctx, u.ID, "s1")
	s.CreateSession(ctx, u.ID, "s2")
	s.CreateSession(ctx, other.ID, "s3")
	s.CreateRefreshToken(ctx, u.ID, "s1", "r1", time.Hour)
	s.CreateRefreshToken(ctx, other.ID, "s3", "r3", time.Hour)

	if err := s.CreateSession(ctx, u.ID, "s1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate session id: %v", err)
	}

	if err := s.TouchSession(ctx, "missing"); err != nil {
		t.Fatalf("touching a missing session must not fail: %v", err)
	}

	recent, err := s.ListRecentSessions(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ListRecentSessions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent sessions, got %d", len(recent))
	}

	if err := s.DeleteUserCascade(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUserCascade: %v", err)
	}
	if err := s.DeleteUserCascade(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUserCascade must be idempotent: %v", err)
	}

	mine, _ := s.ListUserSessions(ctx, u.ID)
	if len(mine) != 0 {
		t.Fatalf("expected no sessions after cascade, got %d", len(mine))
	}
	if _, err := s.FindRefreshToken(ctx, "r1", "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("refresh token must be revoked: %v", err)
	}
	if _, err := s.FindRefreshToken(ctx, "r3", "s3"); err != nil {
		t.Fatalf("other user's refresh token must survive: %v", err)
	}
	if theirs, _ := s.ListUserSessions(ctx, other.ID); len(theirs) != 1 {
		t.Fatal("other user's session must survive")
	}
	if _, err := s.FindUserByID(ctx, u.ID); err != nil {
		t.Fatalf("cascade must keep the user record: %v", err)
	}
}

func testSearchUsers(t *testing.T, s Store) {
	ctx := context.Background()
	mustCreateUser(t, s, "jane@x.com", "Jane Doe")
	mustCreateUser(t, s, "john@y.com", "John")
	mustCreateUser(t, s, "zed@x.com", "Zed")

	got, err := s.SearchUsers(ctx, "JA", 20)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 1 || got[0].Email != "jane@x.com" {
		t.Fatalf("unexpected search result: %+v", got)
	}

	got, _ = s.SearchUsers(ctx, "x.com", 1)
	if len(got) != 1 {
		t.Fatalf("limit not applied: %d", len(got))
	}

	got, _ = s.SearchUsers(ctx, ".*", 20)
	if len(got) != 0 {
		t.Fatal("query must be matched literally")
	}

	all, _ := s.ListUsers(ctx)
	if len(all) != 3 {
		t.Fatalf("ListUsers returned %d users", len(all))
	}
}

func testActivity(t *testing.T, s Store) {
	ctx := context.Background()
	u := mustCreateUser(t, s, "act@x.com", "Act")

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, action := range []string{"Login", "Onboarded", "Logout"} {
		a := &Activity{UserID: u.ID, Action: action, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.CreateActivity(ctx, a); err != nil {
			t.Fatalf("CreateActivity: %v", err)
		}
	}

	got, err := s.ListActivity(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(got) != 2 || got[0].Action != "Logout" || got[1].Action != "Onboarded" {
		t.Fatalf("unexpected activity order: %+v", got)
	}
}
