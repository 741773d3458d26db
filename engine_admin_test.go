package connectauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBanInvalidatesCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	adminID := env.registerVerified(t, "Admin", "admin@x.com", "Secret123!")
	env.makeAdmin(t, adminID)
	env.registerVerified(t, "Jane", "jane@x.com", "Secret123!")

	first := env.login(t, "jane@x.com", "Secret123!")
	second := env.login(t, "jane@x.com", "Secret123!")
	ctx := testCtx()

	user, err := env.engine.BanUser(ctx, adminID, first.UserID)
	if err != nil {
		t.Fatalf("ban: %v", err)
	}
	if !user.Banned {
		t.Fatal("expected returned user to be banned")
	}

	for _, login := range []*LoginResult{first, second} {
		if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected refresh to fail after ban, got %v", err)
		}
		if err := env.engine.Heartbeat(ctx, login.AccessToken); !errors.Is(err, ErrAccountBanned) {
			t.Fatalf("expected heartbeat to fail after ban, got %v", err)
		}
		if _, err := env.engine.CheckSession(ctx, login.AccessToken); !errors.Is(err, ErrAccountBanned) {
			t.Fatalf("expected session check to fail after ban, got %v", err)
		}
	}

	sessions, err := env.store.ListUserSessions(context.Background(), first.UserID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected ban to delete sessions, %d left", len(sessions))
	}

	if _, err := env.engine.Login(ctx, "jane@x.com", "Secret123!"); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected login to fail after ban, got %v", err)
	}

	// Banning twice is harmless.
	if _, err := env.engine.BanUser(ctx, adminID, first.UserID); err != nil {
		t.Fatalf("second ban: %v", err)
	}

	if _, err := env.engine.UnbanUser(ctx, adminID, first.UserID); err != nil {
		t.Fatalf("unban: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("revoked tokens must stay revoked after unban, got %v", err)
	}
	env.login(t, "jane@x.com", "Secret123!")

	acts, err := env.engine.ListActivity(ctx, first.UserID)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	var sawBan, sawUnban bool
	for _, a := range acts {
		switch a.Action {
		case ActivityBanned:
			sawBan = a.Details["by"] == adminID
		case ActivityUnbanned:
			sawUnban = true
		}
	}
	if !sawBan || !sawUnban {
		t.Fatalf("expected ban and unban activity, got %+v", acts)
	}
}

func TestBanGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	adminID := env.registerVerified(t, "Admin", "admin@x.com", "Secret123!")
	env.makeAdmin(t, adminID)
	otherAdminID := env.registerVerified(t, "Other", "other@x.com", "Secret123!")
	env.makeAdmin(t, otherAdminID)
	userID := env.registerVerified(t, "Jane", "jane@x.com", "Secret123!")
	ctx := testCtx()

	tests := []struct {
		name    string
		actorID string
		userID  string
		want    error
	}{
		{"self", adminID, adminID, ErrSelfBan},
		{"other admin", adminID, otherAdminID, ErrAdminTarget},
		{"non admin actor", userID, otherAdminID, ErrForbidden},
		{"anonymous", "", userID, ErrUnauthenticated},
		{"missing target", adminID, "does-not-exist", ErrUserNotFound},
		{"empty target", adminID, "", ErrValidation},
	}
	for _, tt := range tests {
		if _, err := env.engine.BanUser(ctx, tt.actorID, tt.userID); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
		if _, err := env.engine.UnbanUser(ctx, tt.actorID, tt.userID); !errors.Is(err, tt.want) {
			t.Fatalf("%s (unban): expected %v, got %v", tt.name, tt.want, err)
		}
	}

	if HTTPStatus(ErrSelfBan) != 403 || HTTPStatus(ErrAdminTarget) != 403 {
		t.Fatal("self and admin guards must map to 403")
	}
}

func TestOnlineSessionsFreshestWins(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerVerified(t, "Jane", "jane@x.com", "Secret123!")
	env.registerVerified(t, "Bob", "bob@x.com", "Secret123!")

	now := time.Now()
	env.store.Now = func() time.Time { return now.Add(-10 * time.Minute) }
	jane := env.login(t, "jane@x.com", "Secret123!")
	bob := env.login(t, "bob@x.com", "Secret123!")

	recent := now.Add(-time.Minute)
	env.store.Now = func() time.Time { return recent }
	env.login(t, "jane@x.com", "Secret123!")

	online, err := env.engine.OnlineSessions(testCtx())
	if err != nil {
		t.Fatalf("online sessions: %v", err)
	}
	if len(online) != 1 {
		t.Fatalf("expected only jane online, got %v", online)
	}
	if got := online[jane.UserID]; !got.Equal(recent.UTC()) {
		t.Fatalf("expected freshest activity %v, got %v", recent.UTC(), got)
	}

	isOnline, last, err := env.engine.IsOnline(testCtx(), jane.UserID)
	if err != nil || !isOnline || !last.Equal(recent.UTC()) {
		t.Fatalf("expected jane online at %v, got %v %v (%v)", recent.UTC(), isOnline, last, err)
	}
	isOnline, last, err = env.engine.IsOnline(testCtx(), bob.UserID)
	if err != nil || isOnline || last.IsZero() {
		t.Fatalf("expected bob offline with a last activity, got %v %v (%v)", isOnline, last, err)
	}
}

func TestAdminDirectory(t *testing.T) {
	env := newTestEnv(t, nil)
	janeID := env.registerVerified(t, "Jane Doe", "jane@x.com", "Secret123!")
	env.registerVerified(t, "Bob", "bob@x.com", "Secret123!")
	ctx := testCtx()

	users, err := env.engine.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Fatalf("password hash leaked for %s", u.Email)
		}
	}

	hits, err := env.engine.SearchUsers(ctx, "DOE")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != janeID {
		t.Fatalf("expected jane only, got %+v", hits)
	}
	if _, err := env.engine.SearchUsers(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank query, got %v", err)
	}

	u, err := env.engine.GetUser(ctx, janeID)
	if err != nil || u.Email != "jane@x.com" {
		t.Fatalf("get user: %+v (%v)", u, err)
	}
	if _, err := env.engine.GetUser(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
