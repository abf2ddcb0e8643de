package protection

import (
	"sync"
	"time"
)

type sharedIPEntry struct {
	accounts map[string]struct{}
	shared   bool
}

// SharedIPDetector tracks how many distinct accounts each hashed IP has
// attempted to authenticate as. School networks and carrier NAT put many
// legitimate users behind one address; once an IP crosses the distinct-account
// threshold it is marked shared and the rate and lock thresholds for that IP
// are scaled up to cut false positives. The flag is sticky for the entry's
// lifetime.
type SharedIPDetector struct {
	mu         sync.Mutex
	entries    map[string]*sharedIPEntry
	index      *keyIndex
	threshold  int
	multiplier int
	emitter    Emitter
	clock      Clock
}

// NewSharedIPDetector creates a shared-IP detector
func NewSharedIPDetector(threshold, multiplier, capacity int, emitter Emitter, clock Clock) *SharedIPDetector {
	return &SharedIPDetector{
		entries:    make(map[string]*sharedIPEntry),
		index:      newKeyIndex(capacity),
		threshold:  threshold,
		multiplier: multiplier,
		emitter:    emitter,
		clock:      clock,
	}
}

// RecordAttempt adds the account to the IP's distinct-account set and marks
// the IP shared once the set reaches the threshold.
func (sd *SharedIPDetector) RecordAttempt(ipHash, accountHash string) {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	entry, exists := sd.entries[ipHash]
	if !exists {
		entry = &sharedIPEntry{accounts: make(map[string]struct{})}
		sd.entries[ipHash] = entry
	}
	entry.accounts[accountHash] = struct{}{}

	if evicted, ok := sd.index.touch(ipHash); ok {
		delete(sd.entries, evicted)
	}

	if !entry.shared && len(entry.accounts) >= sd.threshold {
		entry.shared = true
		sd.emitter.Emit(newEvent(EventSharedIPDetected, SeverityInfo, ipHash, "distinct_account_threshold_reached", sd.clock.Now()))
	}
}

// MultiplierFor returns the threshold multiplier for the IP: the configured
// shared-IP multiplier if the IP is marked shared, otherwise 1.
func (sd *SharedIPDetector) MultiplierFor(ipHash string) int {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	if entry, exists := sd.entries[ipHash]; exists && entry.shared {
		return sd.multiplier
	}
	return 1
}

// SharedCount returns the number of IPs currently marked shared.
func (sd *SharedIPDetector) SharedCount() int {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	count := 0
	for _, entry := range sd.entries {
		if entry.shared {
			count++
		}
	}
	return count
}

// Len returns the number of tracked IPs.
func (sd *SharedIPDetector) Len() int {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.index.len()
}

// Sweep is a no-op placeholder for interface symmetry: shared-IP entries carry
// no timestamps, so they age out through LRU eviction only.
func (sd *SharedIPDetector) Sweep(time.Time) {}
