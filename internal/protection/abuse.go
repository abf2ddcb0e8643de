package protection

import (
	"sync"
	"time"
)

// abuseWindow is the rolling period over which induced lockouts are counted.
const abuseWindow = time.Hour

// AbuseDetector counts, per hashed IP, the account lockouts that IP has
// induced within a rolling hour. An attacker can weaponize the account locker
// against real users by deliberately failing logins for their accounts; an IP
// that keeps triggering lockouts is itself banned.
type AbuseDetector struct {
	mu         sync.Mutex
	lockouts   map[string][]time.Time
	index      *keyIndex
	maxPerHour int
	emitter    Emitter
}

// NewAbuseDetector creates a lockout-abuse detector
func NewAbuseDetector(maxPerHour, capacity int, emitter Emitter) *AbuseDetector {
	return &AbuseDetector{
		lockouts:   make(map[string][]time.Time),
		index:      newKeyIndex(capacity),
		maxPerHour: maxPerHour,
		emitter:    emitter,
	}
}

// RecordLockoutTriggered notes that the IP induced an account lockout and
// reports whether the IP has now exceeded the hourly limit. The caller is
// expected to hand abusive IPs to the ban manager.
func (ad *AbuseDetector) RecordLockoutTriggered(ipHash string, now time.Time) (abusive bool) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	stamps := append(pruneBefore(ad.lockouts[ipHash], now.Add(-abuseWindow)), now)
	ad.lockouts[ipHash] = stamps

	if evicted, ok := ad.index.touch(ipHash); ok {
		delete(ad.lockouts, evicted)
	}

	if len(stamps) > ad.maxPerHour {
		ad.emitter.Emit(newEvent(EventLockoutAbuseDetected, SeverityHigh, ipHash, "lockout_abuse", now))
		return true
	}
	return false
}

// Len returns the number of tracked IPs.
func (ad *AbuseDetector) Len() int {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.index.len()
}

// Sweep drops IPs whose lockout history has rolled out of the window.
func (ad *AbuseDetector) Sweep(now time.Time) {
	cutoff := now.Add(-abuseWindow)

	ad.mu.Lock()
	defer ad.mu.Unlock()

	for key, stamps := range ad.lockouts {
		live := pruneBefore(stamps, cutoff)
		if len(live) == 0 {
			delete(ad.lockouts, key)
			ad.index.remove(key)
		} else {
			ad.lockouts[key] = live
		}
	}
}
