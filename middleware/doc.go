// Package middleware exposes HTTP guards built on connectauth.Engine.
//
// # Guards
//
//   - [Guard]: full session check against the live user record; touches the session.
//   - [RequireJWTOnly]: stateless token verification, no store call.
//   - [RequireAdmin]: role gate, mounted after Guard.
//
// Guards read the access token from the session cookie, falling back to a Bearer
// Authorization header, and attach a *connectauth.SessionInfo to the request
// context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access the credential store.
//   - Set or clear cookies.
package middleware
