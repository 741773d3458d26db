// Package jwt issues and verifies the two signed credentials connectauth hands to
// clients: a short-lived access token carrying full identity claims and a long-lived
// refresh token carrying only the user and session identifiers.
//
// # Architecture boundaries
//
// Tokens are HS256 over a process-wide secret. Verification is fail-closed: any
// malformed, expired, wrong-algorithm, wrong-class or badly signed token yields an
// error and no claims. Revocation is not a concern of this package; refresh tokens
// are revoked by deleting their record in the credential store.
//
// # What this package must NOT do
//
//   - Read configuration from the environment.
//   - Look anything up in a store.
package jwt
