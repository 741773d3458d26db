package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps windows and cooldown stamps in process memory.
//
// State is guarded by a single mutex, so concurrent checks against one key are
// serialized and never admit more than max requests per window.
type MemoryBackend struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	cooldowns map[string]time.Time

	// Now is the clock; tests replace it to move time forward.
	Now func() time.Time
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		windows:   make(map[string][]time.Time),
		cooldowns: make(map[string]time.Time),
		Now:       time.Now,
	}
}

// CheckRateLimit implements [Backend].
func (m *MemoryBackend) CheckRateLimit(_ context.Context, key string, window time.Duration, max int) (bool, error) {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := prune(m.windows[key], now, window)
	if len(kept) >= max {
		m.windows[key] = kept
		return true, nil
	}

	m.windows[key] = append(kept, now)
	return false, nil
}

// IsInCooldown implements [Backend].
func (m *MemoryBackend) IsInCooldown(_ context.Context, key string, cooldown time.Duration) (bool, error) {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.cooldowns[key]; ok && now.Sub(last) < cooldown {
		return true, nil
	}

	m.cooldowns[key] = now
	return false, nil
}

// Sweep drops keys whose newest entry is older than maxAge. Without it the maps
// grow with every distinct IP and email seen since start.
func (m *MemoryBackend) Sweep(maxAge time.Duration) int {
	now := m.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, stamps := range m.windows {
		kept := prune(stamps, now, maxAge)
		if len(kept) == 0 {
			delete(m.windows, key)
			removed++
			continue
		}
		m.windows[key] = kept
	}
	for key, last := range m.cooldowns {
		if now.Sub(last) >= maxAge {
			delete(m.cooldowns, key)
			removed++
		}
	}

	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryBackend) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(maxAge)
		}
	}
}

// prune keeps timestamps strictly younger than window, reusing the backing array.
func prune(stamps []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	return kept
}
