// Package httpapi is the JSON-over-HTTP surface of connectauth: the /api/auth,
// /api/user and /api/admin routes, health and metrics.
//
// Access and refresh tokens travel only in http-only cookies. Error bodies carry
// a stable message and, for login, the unverified and useMagicLink hints.
//
// # Architecture boundaries
//
// Handlers decode requests, call one Engine method and encode the result. Cookie
// policy lives here; authentication decisions live in the Engine.
//
// # What this package must NOT do
//
//   - Return store or mail error detail to clients.
//   - Put tokens in response bodies.
package httpapi
