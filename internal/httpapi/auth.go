package httpapi

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/connectauth"
	"github.com/MrEthical07/connectauth/middleware"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.engine.Register(r.Context(), connectauth.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration successful. Check your email to verify your account.",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.VerifyEmailLink(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Email verified",
		"onboarded": res.Onboarded,
		"redirect":  res.Redirect,
	})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Email verified",
		"onboarded": res.Onboarded,
		"redirect":  res.Redirect,
	})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setTokenCookies(w, res.TokenPair)
	writeJSON(w, http.StatusOK, map[string]bool{"onboarded": res.Onboarded})
}

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.RequestMagicLink(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sign-in link sent. Check your email."})
}

func (s *Server) handleMagicLinkVerify(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ConsumeMagicLink(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setTokenCookies(w, res.TokenPair)
	http.Redirect(w, r, strings.TrimRight(s.config.URLs.BaseURL, "/")+res.Redirect, http.StatusSeeOther)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	pair, err := s.engine.Refresh(r.Context(), cookieValue(r, s.config.Cookie.RefreshName))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setTokenCookies(w, *pair)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.AccessToken(r, s.config.Cookie.SessionName)
	s.engine.Logout(r.Context(), access, cookieValue(r, s.config.Cookie.RefreshName))

	s.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
	*connectauth.SessionInfo
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.AccessToken(r, s.config.Cookie.SessionName)
	info, err := s.engine.CheckSession(r.Context(), access)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, SessionInfo: info})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.AccessToken(r, s.config.Cookie.SessionName)
	if err := s.engine.Heartbeat(r.Context(), access); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
