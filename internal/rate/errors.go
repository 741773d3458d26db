package rate

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned (wrapped in [*LimitError]) when a window or cooldown trips.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps backend transport failures.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)

// Dimension names the check that blocked a request.
type Dimension string

const (
	DimensionIP       Dimension = "ip"
	DimensionEmail    Dimension = "email"
	DimensionCooldown Dimension = "cooldown"
)

// LimitError reports which flow and dimension tripped.
type LimitError struct {
	Flow      string
	Dimension Dimension
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited: flow=%s dimension=%s", e.Flow, e.Dimension)
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimited
}
