package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/connectauth"
)

type sessionContextKey struct{}

// SessionFromContext returns the identity a guard attached to ctx.
func SessionFromContext(ctx context.Context) (*connectauth.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*connectauth.SessionInfo)
	return info, ok
}

// WithSession attaches info to ctx. Guards call it; tests may too.
func WithSession(ctx context.Context, info *connectauth.SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, info)
}

// Guard authenticates requests with Engine.CheckSession: the access token must
// verify, its user must exist and not be banned, and the session is touched.
// The token is read from the named cookie, then from a Bearer header.
func Guard(engine *connectauth.Engine, cookieName string) func(http.Handler) http.Handler {
	return guard(cookieName, func(r *http.Request, token string) (*connectauth.SessionInfo, error) {
		return engine.CheckSession(r.Context(), token)
	}, engine == nil)
}

func guard(cookieName string, check func(*http.Request, string) (*connectauth.SessionInfo, error), disabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				writeError(w, connectauth.ErrUnauthenticated)
				return
			}

			token, ok := AccessToken(r, cookieName)
			if !ok {
				writeError(w, connectauth.ErrUnauthenticated)
				return
			}

			info, err := check(r, token)
			if err != nil {
				writeError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), info)))
		})
	}
}

// AccessToken extracts the access token from the cookie or the Authorization header.
func AccessToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, err error) {
	status := connectauth.HTTPStatus(err)
	msg := http.StatusText(status)
	switch connectauth.KindOf(err) {
	case connectauth.KindUnauthenticated, connectauth.KindForbidden:
		msg = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
