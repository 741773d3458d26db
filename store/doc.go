// Package store is the credential store: users, short-lived email tokens, refresh
// tokens, presence sessions and the per-user activity log.
//
// # Architecture boundaries
//
// [Store] is the only persistence seam of connectauth. Every operation touches at
// most one record or one owner's records, and every invariant the engine relies on
// is enforced by a single atomic document operation:
//
//   - [Tokens.ConsumeToken] and [RefreshTokens.DeleteRefreshToken] are find-and-delete,
//     so exactly one concurrent caller observes the record.
//   - User email uniqueness is enforced by a unique index on the normalized email.
//
// [MongoStore] is the production implementation (mongo-driver v2, TTL indexes for
// expiry). [MemoryStore] backs tests and single-node development.
//
// # What this package must NOT do
//
//   - Hash, sign or verify credentials.
//   - Decide authorization; callers pass already-validated identifiers.
//   - Return password hashes from lookups other than FindUserByEmailWithPassword.
package store
