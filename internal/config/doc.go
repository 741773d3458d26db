// Package config loads connectauth-server settings from the environment.
//
// A .env file in the working directory is applied first with godotenv; values
// already present in the environment take precedence. Parsing and defaults are
// handled by go-envconfig struct tags.
//
// # Architecture boundaries
//
// This package only produces values. Opening connections and building the engine
// happen in cmd/connectauth-server.
//
// # What this package must NOT do
//
//   - Fall back to a built-in signing secret.
//   - Log secrets.
package config
