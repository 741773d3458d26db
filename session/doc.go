// Package session derives presence ("online") from the lastActivity stamps kept in
// the credential store.
//
// A user is online when at least one of their sessions was touched within the
// freshness window (5 minutes by default). Touches are best-effort: a failing touch
// is logged and swallowed so it never fails the request that carried the session.
//
// # What this package must NOT do
//
//   - Create or delete sessions; login and logout own the session lifecycle.
//   - Interpret tokens.
package session
