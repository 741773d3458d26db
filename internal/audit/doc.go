// Package audit delivers security events off the request path.
//
// The engine hands each [Event] to a [Dispatcher], which queues it and relays it to
// one [Sink] from a single goroutine. [LogSink] writes events as zerolog records,
// [ChannelSink] exposes them to tests, and [NoOpSink] discards them. A full queue
// either drops the event (counted by Dropped) or blocks the caller until the
// request context ends.
//
// # Architecture boundaries
//
// The engine chooses which events exist and what they carry. This package only
// buffers and delivers them.
//
// # What this package must NOT do
//
//   - Filter or rewrite events.
//   - Import connectauth or any sibling internal package.
//   - Write to the credential store. The per-user activity log lives there instead.
package audit
