package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter implements sliding-window admission control keyed by client
// identity. State lives in this process only: it is created at service start,
// never persisted, and resets on restart. Multi-instance deployments need an
// external shared counter, which this limiter does not provide.
type Limiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	clients   map[string][]time.Time
	now       func() time.Time
	nextSweep time.Time
}

// New constructs a Limiter admitting at most limit requests per key within a
// trailing window.
func New(window time.Duration, limit int) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records an attempt for key and reports whether it is admitted.
// Attempts from the same key are serialized, so two simultaneous requests
// can never both take the last remaining slot.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// One-off keys (e.g. unauthenticated IPs) would otherwise pin map
	// entries forever; once per window, drop every fully expired key.
	if !now.Before(l.nextSweep) {
		for k, stamps := range l.clients {
			if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
				delete(l.clients, k)
			}
		}
		l.nextSweep = now.Add(l.window)
	}

	stamps := l.clients[key]
	pruned := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= l.limit {
		l.clients[key] = pruned
		resetAt := pruned[0].Add(l.window)
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}
	}

	pruned = append(pruned, now)
	l.clients[key] = pruned
	return Decision{
		Allowed:   true,
		Remaining: l.limit - len(pruned),
		ResetAt:   pruned[0].Add(l.window),
	}
}

// Forget drops all recorded attempts for key.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, key)
}
