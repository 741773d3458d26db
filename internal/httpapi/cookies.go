package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/connectauth"
)

func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := s.config.Cookie
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setTokenCookies writes the session cookie and, when the pair carries one, the
// refresh cookie.
func (s *Server) setTokenCookies(w http.ResponseWriter, pair connectauth.TokenPair) {
	http.SetCookie(w, s.cookie(s.config.Cookie.SessionName, pair.AccessToken, pair.AccessTTL))
	if pair.RefreshToken != "" {
		http.SetCookie(w, s.cookie(s.config.Cookie.RefreshName, pair.RefreshToken, pair.RefreshTTL))
	}
}

func (s *Server) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{s.config.Cookie.SessionName, s.config.Cookie.RefreshName} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
