package nlp

import (
	"sync"
	"time"
)

// DefaultRateLimit is the per-tenant classifier budget per window.
const DefaultRateLimit = 30

// RateLimiter is a per-key sliding-window limiter. Safe for concurrent use.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter allows at most limit calls per key within window. Non-positive
// arguments select DefaultRateLimit and one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a call for key and reports whether it fits the budget.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.prune(key, now)
	if len(valid) >= r.limit {
		r.calls[key] = valid
		return false
	}
	r.calls[key] = append(valid, now)
	return true
}

// Remaining reports how many calls key may still make in the current window.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	valid := r.prune(key, r.now())
	r.calls[key] = valid
	if rem := r.limit - len(valid); rem > 0 {
		return rem
	}
	return 0
}

func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	existing := r.calls[key]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
