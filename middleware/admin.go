package middleware

import (
	"net/http"

	"github.com/MrEthical07/connectauth"
)

// RequireAdmin rejects requests whose guarded session is not an admin. It must
// be mounted after [Guard], whose role comes from the live user record.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, connectauth.ErrUnauthenticated)
			return
		}
		if info.Role != "admin" {
			writeError(w, connectauth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
