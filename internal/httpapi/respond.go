package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/connectauth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return connectauth.ErrValidation
	}
	return nil
}

type errorBody struct {
	Error        string `json:"error"`
	Unverified   bool   `json:"unverified,omitempty"`
	UseMagicLink bool   `json:"useMagicLink,omitempty"`
}

// writeError maps err to its status and a stable message. Store and internal
// failures are logged with detail and answered generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := connectauth.HTTPStatus(err)
	body := errorBody{Error: err.Error()}

	switch kind := connectauth.KindOf(err); {
	case kind == connectauth.KindRateLimited:
		body.Error = "Too many requests. Please try again later."
		var rl *connectauth.RateLimitError
		if errors.As(err, &rl) {
			if wait := s.retryAfter(rl.Flow); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
			}
		}
	case status >= http.StatusInternalServerError:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "Internal server error"
	}

	switch {
	case errors.Is(err, connectauth.ErrAccountUnverified):
		body.Unverified = true
	case errors.Is(err, connectauth.ErrPasswordlessAccount):
		body.UseMagicLink = true
	}

	writeJSON(w, status, body)
}

func (s *Server) retryAfter(flow string) time.Duration {
	rl := s.config.RateLimit
	policy := map[string]connectauth.RatePolicy{
		"register":  rl.Register,
		"login":     rl.Login,
		"verifyOTP": rl.VerifyOTP,
		"resend":    rl.Resend,
		"magiclink": rl.MagicLink,
	}[flow]
	if policy.Cooldown > policy.Window {
		return policy.Cooldown
	}
	return policy.Window
}
