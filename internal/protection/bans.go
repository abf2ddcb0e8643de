package protection

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Ban reasons used by the facade
const (
	BanReasonRateLimit    = "rate_limit_exceeded"
	BanReasonLockoutAbuse = "lockout_abuse"
)

// BanRecord describes an active or historical ban for a hashed IP.
type BanRecord struct {
	KeyHash         string    `json:"key_hash"`
	Reason          string    `json:"reason"`
	EscalationLevel int       `json:"escalation_level"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Active reports whether the ban is in force at the given instant.
func (br BanRecord) Active(now time.Time) bool {
	return now.Before(br.ExpiresAt)
}

// BanManager owns the ban table and the per-key escalation history. Repeat
// offenders within the escalation window serve geometrically longer bans;
// crossing the escalation threshold emits a HIGH severity signal.
type BanManager struct {
	mu                  sync.Mutex
	bans                map[string]*BanRecord
	history             map[string][]time.Time
	index               *keyIndex
	escalationWindow    time.Duration
	escalationThreshold int
	multiplier          float64
	emitter             Emitter
}

// NewBanManager creates a ban manager
func NewBanManager(escalationWindow time.Duration, escalationThreshold int, multiplier float64, capacity int, emitter Emitter) *BanManager {
	return &BanManager{
		bans:                make(map[string]*BanRecord),
		history:             make(map[string][]time.Time),
		index:               newKeyIndex(capacity),
		escalationWindow:    escalationWindow,
		escalationThreshold: escalationThreshold,
		multiplier:          multiplier,
		emitter:             emitter,
	}
}

// IsBanned reports whether the key has an active ban and how long remains.
func (bm *BanManager) IsBanned(keyHash string, now time.Time) (remaining time.Duration, banned bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	record, exists := bm.bans[keyHash]
	if !exists || !record.Active(now) {
		return 0, false
	}
	return record.ExpiresAt.Sub(now), true
}

// Ban records a new ban for the key. The escalation level is one more than
// the number of bans this key has accumulated within the escalation window,
// and the duration grows as baseDuration * multiplier^(level-1).
func (bm *BanManager) Ban(keyHash string, now time.Time, baseDuration time.Duration, reason string) BanRecord {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	prior := pruneBefore(bm.history[keyHash], now.Add(-bm.escalationWindow))
	level := len(prior) + 1
	duration := time.Duration(float64(baseDuration) * math.Pow(bm.multiplier, float64(level-1)))

	record := &BanRecord{
		KeyHash:         keyHash,
		Reason:          reason,
		EscalationLevel: level,
		CreatedAt:       now,
		ExpiresAt:       now.Add(duration),
	}
	bm.bans[keyHash] = record
	bm.history[keyHash] = append(prior, now)

	if evicted, ok := bm.index.touch(keyHash); ok {
		delete(bm.bans, evicted)
		delete(bm.history, evicted)
	}

	bm.emitter.Emit(newEvent(EventIPBanTriggered, SeverityLow, keyHash, reason, now))
	if level >= bm.escalationThreshold {
		bm.emitter.Emit(newEvent(EventPersistentAttackerDetected, SeverityHigh, keyHash, reason, now))
	}

	return *record
}

// Unban clears the active ban for the key. Escalation history is retained so
// that a repeat offense continues the escalation sequence; this is an
// administrative override, not forgiveness.
func (bm *BanManager) Unban(keyHash string) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if _, exists := bm.bans[keyHash]; !exists {
		return false
	}
	delete(bm.bans, keyHash)
	return true
}

// ActiveBans returns the bans in force at the given instant, longest remaining
// first.
func (bm *BanManager) ActiveBans(now time.Time) []BanRecord {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	var active []BanRecord
	for _, record := range bm.bans {
		if record.Active(now) {
			active = append(active, *record)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].EscalationLevel != active[j].EscalationLevel {
			return active[i].EscalationLevel > active[j].EscalationLevel
		}
		return active[i].ExpiresAt.After(active[j].ExpiresAt)
	})
	return active
}

// Counts returns the number of active bans and how many of those have reached
// the escalation threshold.
func (bm *BanManager) Counts(now time.Time) (active, escalated int) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, record := range bm.bans {
		if record.Active(now) {
			active++
			if record.EscalationLevel >= bm.escalationThreshold {
				escalated++
			}
		}
	}
	return active, escalated
}

// Len returns the number of tracked keys.
func (bm *BanManager) Len() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.index.len()
}

// Sweep drops keys whose ban has expired and whose escalation history has
// rolled off. A key with live history survives ban expiry so escalation
// still applies to its next offense.
func (bm *BanManager) Sweep(now time.Time) {
	historyCutoff := now.Add(-bm.escalationWindow)

	bm.mu.Lock()
	defer bm.mu.Unlock()

	for key, stamps := range bm.history {
		live := pruneBefore(stamps, historyCutoff)
		if len(live) > 0 {
			bm.history[key] = live
		} else {
			delete(bm.history, key)
		}
	}

	for key, record := range bm.bans {
		if !record.Active(now) {
			delete(bm.bans, key)
		}
	}

	for key := range bm.index.elements {
		_, banned := bm.bans[key]
		_, escalating := bm.history[key]
		if !banned && !escalating {
			bm.index.remove(key)
		}
	}
}
