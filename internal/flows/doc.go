// Package flows holds the token-lifecycle orchestrators that need a precise
// ordering of store calls: refresh rotation and logout.
//
// Each Run* function accepts a typed dependency struct and returns a result value
// that the engine maps to errors, metrics and audit events. Flows never decide HTTP
// status codes.
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store and the token manager. They do NOT
// own either; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import connectauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
