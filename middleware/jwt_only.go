package middleware

import (
	"net/http"

	"github.com/MrEthical07/connectauth"
)

// RequireJWTOnly authenticates with signature and expiry checks alone. It never
// reads the store, so a ban takes effect only when the access token expires.
// Use it for cheap read-only routes.
func RequireJWTOnly(engine *connectauth.Engine, cookieName string) func(http.Handler) http.Handler {
	return guard(cookieName, func(_ *http.Request, token string) (*connectauth.SessionInfo, error) {
		return engine.Verify(token)
	}, engine == nil)
}
