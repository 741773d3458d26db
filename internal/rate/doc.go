// Package rate provides the sliding-window rate limiter and the per-email cooldown
// gate used in front of every unauthenticated auth flow.
//
// # Window semantics
//
// Each key (client IP or normalized email, namespaced by flow) owns an ordered set of
// request timestamps. A check prunes timestamps that fell out of the window, compares
// the remaining count to the threshold and records the current request only when it
// is admitted. The cooldown gate keeps one "last attempt" stamp per key. Key layout:
//   - <prefix>:<flow>:ip:<ip>
//   - <prefix>:<flow>:email:<email>
//   - <prefix>:<flow>:cd:<email>
//
// # Backends
//
// [MemoryBackend] keeps state per process and resets on restart. It is not shared
// across instances. [RedisBackend] stores the same structures in Redis (sorted set
// plus SET NX PX) so several instances enforce one budget.
//
// # What this package must NOT do
//
//   - Touch the credential store or any user record.
//   - Be imported outside the connectauth module.
package rate
