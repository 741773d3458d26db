// Package connectauth is the authentication core of the Connect dashboard: password
// and magic-link login, email verification by link or OTP, rotating refresh tokens,
// session presence and admin ban controls, all behind per-flow rate limits.
//
// [Builder] assembles an [Engine] from a [Config], a credential [store.Store], a
// [Mailer] and a limiter backend. Engine methods are safe to call from many
// goroutines once built. The client IP used for rate limiting travels in the
// context; see [WithClientIP].
//
// # Architecture boundaries
//
// connectauth is the public surface. It exposes [Engine], [Builder], [Config], the
// request and result value types, sentinel errors and metrics. Token signing lives
// in jwt/, hashing in password/, persistence in store/, presence in session/.
// Rate limiting, audit dispatch and the refresh/logout orchestration live under
// internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Write HTTP responses or cookies. internal/httpapi owns the transport.
//   - Return store or mailer error detail to callers. Those are logged and wrapped
//     in [ErrStoreUnavailable] or [ErrMailUnavailable].
//   - Import any sub-package that re-imports connectauth (no import cycles).
package connectauth
