// Package internal contains helpers that are private to connectauth: random
// identifiers, link tokens, OTP codes and email normalization.
//
// # Sub-packages
//
//   - audit: async security-event dispatch (Dispatcher + Sink implementations)
//   - config: process configuration from the environment and .env
//   - flows: pure-function orchestrators for refresh and logout
//   - httpapi: chi router exposing the engine over HTTP
//   - mailer: SMTP and log-only email senders
//   - rate: sliding-window limiter and cooldown gate (memory and Redis)
//   - telemetry: OpenTelemetry tracer provider setup
//
// # What this package must NOT do
//
//   - Export types that appear in the public connectauth API.
//   - Be imported by any package outside the connectauth module.
package internal
