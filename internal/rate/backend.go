package rate

import (
	"context"
	"time"
)

// Backend is the keyed counter store behind a [Limiter].
//
// Both methods return true when the request must be blocked.
type Backend interface {
	// CheckRateLimit prunes entries older than window, reports whether max has been
	// reached and, when it has not, records the current request.
	CheckRateLimit(ctx context.Context, key string, window time.Duration, max int) (bool, error)
	// IsInCooldown reports whether the previous stamp for key is younger than cooldown.
	// The stamp is refreshed only when the request is admitted.
	IsInCooldown(ctx context.Context, key string, cooldown time.Duration) (bool, error)
}
