package httpapi

import (
	"net/http"

	"github.com/MrEthical07/connectauth/middleware"
)

func (s *Server) handleOnboarded(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.AccessToken(r, s.config.Cookie.SessionName)
	pair, err := s.engine.Onboard(r.Context(), access)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setTokenCookies(w, *pair)
	writeJSON(w, http.StatusOK, map[string]bool{"onboarded": true})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	info, _ := middleware.SessionFromContext(r.Context())
	acts, err := s.engine.ListActivity(r.Context(), info.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
}
