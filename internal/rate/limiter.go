package rate

import (
	"context"
	"time"
)

// Policy holds the per-flow knobs supplied by the engine.
type Policy struct {
	Window      time.Duration
	MaxPerIP    int
	MaxPerEmail int
	Cooldown    time.Duration
}

// Limiter applies a [Policy] to an (ip, email) pair on top of a [Backend].
type Limiter struct {
	backend Backend
	prefix  string
}

// New creates a [Limiter]. An empty prefix defaults to "rl".
func New(backend Backend, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{
		backend: backend,
		prefix:  prefix,
	}
}

// Check runs the IP window, the email window and the email cooldown in that order
// and stops at the first one that blocks. A zero limit disables its check. An empty
// ip is bucketed as "unknown"; an empty email skips the email checks.
func (l *Limiter) Check(ctx context.Context, flow string, policy Policy, ip, email string) error {
	if ip == "" {
		ip = "unknown"
	}

	if policy.MaxPerIP > 0 {
		blocked, err := l.backend.CheckRateLimit(ctx, l.key(flow, "ip", ip), policy.Window, policy.MaxPerIP)
		if err != nil {
			return err
		}
		if blocked {
			return &LimitError{Flow: flow, Dimension: DimensionIP}
		}
	}

	if email == "" {
		return nil
	}

	if policy.MaxPerEmail > 0 {
		blocked, err := l.backend.CheckRateLimit(ctx, l.key(flow, "email", email), policy.Window, policy.MaxPerEmail)
		if err != nil {
			return err
		}
		if blocked {
			return &LimitError{Flow: flow, Dimension: DimensionEmail}
		}
	}

	if policy.Cooldown > 0 {
		blocked, err := l.backend.IsInCooldown(ctx, l.key(flow, "cd", email), policy.Cooldown)
		if err != nil {
			return err
		}
		if blocked {
			return &LimitError{Flow: flow, Dimension: DimensionCooldown}
		}
	}

	return nil
}

func (l *Limiter) key(flow, dim, value string) string {
	return l.prefix + ":" + flow + ":" + dim + ":" + value
}
