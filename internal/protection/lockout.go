package protection

import (
	"sync"
	"time"
)

// successTelemetryThreshold is the prior-failure count at which a successful
// login is worth reporting as tuning telemetry.
const successTelemetryThreshold = 3

type lockState struct {
	failures    []time.Time
	lockedUntil time.Time
}

// AccountLocker tracks authentication failures per hashed account and locks
// the account once failures within the lock window reach the threshold. A
// successful login is a hard reset: the failure list is cleared immediately
// rather than decaying out of the window.
type AccountLocker struct {
	mu           sync.Mutex
	accounts     map[string]*lockState
	index        *keyIndex
	window       time.Duration
	maxFailures  int
	lockDuration time.Duration
	emitter      Emitter
}

// NewAccountLocker creates an account locker
func NewAccountLocker(window time.Duration, maxFailures int, lockDuration time.Duration, capacity int, emitter Emitter) *AccountLocker {
	return &AccountLocker{
		accounts:     make(map[string]*lockState),
		index:        newKeyIndex(capacity),
		window:       window,
		maxFailures:  maxFailures,
		lockDuration: lockDuration,
		emitter:      emitter,
	}
}

// RecordFailure appends a failure for the account and locks it when failures
// within the window reach the threshold. thresholdMultiplier scales the
// threshold for requests arriving from shared IPs; values below 1 are treated
// as 1. Returns true when this failure triggered a lock.
func (al *AccountLocker) RecordFailure(accountHash string, now time.Time, thresholdMultiplier int) bool {
	if thresholdMultiplier < 1 {
		thresholdMultiplier = 1
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	state, exists := al.accounts[accountHash]
	if !exists {
		state = &lockState{}
		al.accounts[accountHash] = state
	}

	state.failures = append(pruneBefore(state.failures, now.Add(-al.window)), now)

	if evicted, ok := al.index.touch(accountHash); ok {
		delete(al.accounts, evicted)
	}

	threshold := al.maxFailures * thresholdMultiplier
	if len(state.failures) >= threshold && now.After(state.lockedUntil) {
		state.lockedUntil = now.Add(al.lockDuration)
		al.emitter.Emit(newEvent(EventAccountLocked, SeverityLow, accountHash, "failure_threshold_reached", now))
		return true
	}
	return false
}

// RecordSuccess clears the failure list unconditionally. When the account had
// accumulated several failures first, an informational signal is emitted; it
// feeds threshold tuning, not enforcement.
func (al *AccountLocker) RecordSuccess(accountHash string, now time.Time) {
	al.mu.Lock()
	defer al.mu.Unlock()

	state, exists := al.accounts[accountHash]
	if !exists {
		return
	}

	priorFailures := len(pruneBefore(state.failures, now.Add(-al.window)))
	delete(al.accounts, accountHash)
	al.index.remove(accountHash)

	if priorFailures >= successTelemetryThreshold {
		al.emitter.Emit(newEvent(EventAuthSuccessAfterFailures, SeverityLow, accountHash, "success_after_failures", now))
	}
}

// IsLocked reports whether the account is locked and how long remains.
func (al *AccountLocker) IsLocked(accountHash string, now time.Time) (remaining time.Duration, locked bool) {
	al.mu.Lock()
	defer al.mu.Unlock()

	state, exists := al.accounts[accountHash]
	if !exists || !now.Before(state.lockedUntil) {
		return 0, false
	}
	return state.lockedUntil.Sub(now), true
}

// ActiveLocks returns the number of accounts currently locked.
func (al *AccountLocker) ActiveLocks(now time.Time) int {
	al.mu.Lock()
	defer al.mu.Unlock()

	locked := 0
	for _, state := range al.accounts {
		if now.Before(state.lockedUntil) {
			locked++
		}
	}
	return locked
}

// Len returns the number of tracked accounts.
func (al *AccountLocker) Len() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.index.len()
}

// Sweep drops accounts whose lock has expired and whose failure window is
// empty.
func (al *AccountLocker) Sweep(now time.Time) {
	cutoff := now.Add(-al.window)

	al.mu.Lock()
	defer al.mu.Unlock()

	for key, state := range al.accounts {
		state.failures = pruneBefore(state.failures, cutoff)
		if len(state.failures) == 0 && !now.Before(state.lockedUntil) {
			delete(al.accounts, key)
			al.index.remove(key)
		}
	}
}
