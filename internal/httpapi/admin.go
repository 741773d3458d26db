package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/connectauth"
	"github.com/MrEthical07/connectauth/middleware"
	"github.com/MrEthical07/connectauth/store"
)

type userIDRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	s.setBanned(w, r, s.engine.BanUser)
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	s.setBanned(w, r, s.engine.UnbanUser)
}

func (s *Server) setBanned(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actorID, userID string) (*store.User, error)) {
	var req userIDRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, connectauth.ErrValidation)
		return
	}

	actor, _ := middleware.SessionFromContext(r.Context())
	user, err := apply(r.Context(), actor.UserID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleOnlineSessions(w http.ResponseWriter, r *http.Request) {
	online, err := s.engine.OnlineSessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]string, len(online))
	for userID, at := range online {
		out[userID] = at.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, map[string]any{"onlineSessions": out})
}

type onlineUserResponse struct {
	UserID       string     `json:"userId"`
	Online       bool       `json:"online"`
	LastActivity *time.Time `json:"lastActivity"`
}

func (s *Server) handleOnlineUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	online, last, err := s.engine.IsOnline(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := onlineUserResponse{UserID: userID, Online: online}
	if !last.IsZero() {
		last = last.UTC()
		res.LastActivity = &last
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.engine.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
