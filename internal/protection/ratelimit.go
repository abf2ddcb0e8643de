package protection

import (
	"sync"
	"time"
)

// RateLimiter counts authentication attempts per hashed IP over a sliding
// window. It counts successes and failures alike: this is load-shedding for
// the credential-verification path, not failure tracking.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	index       *keyIndex
	window      time.Duration
	maxAttempts int
}

// NewRateLimiter creates a sliding-window rate limiter
func NewRateLimiter(window time.Duration, maxAttempts, capacity int) *RateLimiter {
	return &RateLimiter{
		windows:     make(map[string][]time.Time),
		index:       newKeyIndex(capacity),
		window:      window,
		maxAttempts: maxAttempts,
	}
}

// RecordAttempt appends an attempt for the key, discards entries that have
// slid out of the window, and reports whether the key is now over its limit.
// limitMultiplier scales maxAttempts for keys flagged as shared IPs; values
// below 1 are treated as 1.
func (rl *RateLimiter) RecordAttempt(keyHash string, now time.Time, limitMultiplier int) (count int, over bool) {
	if limitMultiplier < 1 {
		limitMultiplier = 1
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	attempts := pruneBefore(rl.windows[keyHash], now.Add(-rl.window))
	attempts = append(attempts, now)
	rl.windows[keyHash] = attempts

	if evicted, ok := rl.index.touch(keyHash); ok {
		delete(rl.windows, evicted)
	}

	limit := rl.maxAttempts * limitMultiplier
	return len(attempts), len(attempts) > limit
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.index.len()
}

// Sweep drops keys whose windows are fully expired.
func (rl *RateLimiter) Sweep(now time.Time) {
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, attempts := range rl.windows {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(cutoff) {
			delete(rl.windows, key)
			rl.index.remove(key)
		}
	}
}

// pruneBefore discards timestamps at or before the cutoff. Timestamps are
// appended in order, so only the leading run is scanned; amortized cost is
// bounded by the window size, not total history.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0:0], stamps[i:]...)
}
