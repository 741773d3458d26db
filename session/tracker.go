package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth/store"
)

// DefaultWindow is the freshness window used when none is configured.
const DefaultWindow = 5 * time.Minute

// Tracker answers presence queries over [store.Sessions].
type Tracker struct {
	sessions store.Sessions
	window   time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewTracker returns a tracker. A non-positive window selects [DefaultWindow].
func NewTracker(sessions store.Sessions, window time.Duration, logger zerolog.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		sessions: sessions,
		window:   window,
		logger:   logger.With().Str("component", "session.tracker").Logger(),
		now:      time.Now,
	}
}

// Window returns the freshness window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Touch stamps lastActivity on sessionID. It reports whether the write succeeded
// but never returns an error; failures are logged.
func (t *Tracker) Touch(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	if err := t.sessions.TouchSession(ctx, sessionID); err != nil {
		t.logger.Warn().Err(err).Msg("session touch failed")
		return false
	}
	return true
}

// IsOnline reports whether any session of userID is fresh, together with the most
// recent lastActivity across all of the user's sessions (zero when there are none).
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, time.Time, error) {
	sessions, err := t.sessions.ListUserSessions(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}

	var latest time.Time
	for _, s := range sessions {
		if s.LastActivity.After(latest) {
			latest = s.LastActivity
		}
	}

	online := !latest.IsZero() && t.now().Sub(latest) < t.window
	return online, latest, nil
}

// AggregateOnlineUsers maps every online user to the freshest lastActivity among
// their sessions.
func (t *Tracker) AggregateOnlineUsers(ctx context.Context) (map[string]time.Time, error) {
	since := t.now().Add(-t.window)
	sessions, err := t.sessions.ListRecentSessions(ctx, since)
	if err != nil {
		return nil, err
	}

	return aggregate(sessions), nil
}

func aggregate(sessions []store.Session) map[string]time.Time {
	out := make(map[string]time.Time, len(sessions))
	for _, s := range sessions {
		if prev, ok := out[s.UserID]; !ok || s.LastActivity.After(prev) {
			out[s.UserID] = s.LastActivity
		}
	}
	return out
}
