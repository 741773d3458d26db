package connectauth

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/connectauth/store"
)

// BanUser bans userID and revokes every refresh token and session the user holds,
// so pre-ban credentials fail on their next refresh or session check.
func (e *Engine) BanUser(ctx context.Context, actorID, userID string) (*store.User, error) {
	return e.setBanned(ctx, actorID, userID, true)
}

// UnbanUser lifts a ban. Revoked credentials stay revoked.
func (e *Engine) UnbanUser(ctx context.Context, actorID, userID string) (*store.User, error) {
	return e.setBanned(ctx, actorID, userID, false)
}

func (e *Engine) setBanned(ctx context.Context, actorID, userID string, banned bool) (*store.User, error) {
	action, event, metric := ActivityUnbanned, auditEventUserUnbanned, MetricUserUnbanned
	if banned {
		action, event, metric = ActivityBanned, auditEventUserBanned, MetricUserBanned
	}

	if err := e.requireAdmin(ctx, actorID); err != nil {
		return nil, e.adminRejected(ctx, actorID, userID, event, err)
	}
	if userID == "" {
		return nil, ErrValidation
	}
	if userID == actorID {
		return nil, e.adminRejected(ctx, actorID, userID, event, ErrSelfBan)
	}

	target, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}
	if target.Role == store.RoleAdmin {
		return nil, e.adminRejected(ctx, actorID, userID, event, ErrAdminTarget)
	}

	updated, err := e.store.UpdateUser(ctx, userID, store.UserPatch{Banned: &banned})
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}

	if banned {
		if err := e.store.DeleteUserCascade(ctx, userID); err != nil {
			e.logger.Error().Err(err).Str("user_id", userID).Msg("ban cascade failed")
			return nil, storeErr(err)
		}
	}

	e.recordActivity(ctx, userID, action, map[string]string{"by": actorID})
	e.metricInc(metric)
	e.emitAudit(ctx, event, true, userID, "", nil, func() map[string]string {
		return map[string]string{"actor_id": actorID}
	})
	e.logger.Info().Str("user_id", userID).Str("actor_id", actorID).Bool("banned", banned).Msg("ban state changed")

	return updated, nil
}

// requireAdmin checks the actor's live record. Token roles are not trusted here.
func (e *Engine) requireAdmin(ctx context.Context, actorID string) error {
	if actorID == "" {
		return ErrUnauthenticated
	}
	actor, err := e.loadActiveUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != store.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (e *Engine) adminRejected(ctx context.Context, actorID, userID, event string, err error) error {
	e.emitAudit(ctx, auditEventAdminActionRejected, false, actorID, "", err, func() map[string]string {
		return map[string]string{"action": event, "target_id": userID}
	})
	return err
}

// OnlineSessions maps every user with a session active inside the online window
// to their freshest activity time.
func (e *Engine) OnlineSessions(ctx context.Context) (map[string]time.Time, error) {
	online, err := e.tracker.AggregateOnlineUsers(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("online session query failed")
		return nil, storeErr(err)
	}
	return online, nil
}

// IsOnline reports whether userID has a fresh session, and the latest activity
// across all of their sessions.
func (e *Engine) IsOnline(ctx context.Context, userID string) (bool, time.Time, error) {
	if userID == "" {
		return false, time.Time{}, ErrValidation
	}
	online, last, err := e.tracker.IsOnline(ctx, userID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("online check failed")
		return false, time.Time{}, storeErr(err)
	}
	return online, last, nil
}

// ListUsers returns every user, newest first.
func (e *Engine) ListUsers(ctx context.Context) ([]store.User, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("list users failed")
		return nil, storeErr(err)
	}
	return users, nil
}

func (e *Engine) GetUser(ctx context.Context, userID string) (*store.User, error) {
	if userID == "" {
		return nil, ErrValidation
	}
	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, e.userErr(err, ErrUserNotFound)
	}
	return user, nil
}

// SearchUsers matches query against name and email, up to Admin.SearchLimit hits.
func (e *Engine) SearchUsers(ctx context.Context, query string) ([]store.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrValidation
	}
	users, err := e.store.SearchUsers(ctx, query, e.config.Admin.SearchLimit)
	if err != nil {
		e.logger.Error().Err(err).Msg("search users failed")
		return nil, storeErr(err)
	}
	return users, nil
}

// ListActivity returns the user's activity log, newest first, up to
// Admin.ActivityLimit entries.
func (e *Engine) ListActivity(ctx context.Context, userID string) ([]store.Activity, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	acts, err := e.store.ListActivity(ctx, userID, e.config.Admin.ActivityLimit)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("list activity failed")
		return nil, storeErr(err)
	}
	return acts, nil
}
