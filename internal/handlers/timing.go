package handlers

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelayMs   int // minimum delay applied to failed logins
	RandomDelayMs int // random jitter range added on top
}

// TimingDelay pads failed login responses to a uniform duration so response
// time does not leak which verification step rejected the attempt.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// WaitFrom sleeps until the elapsed time since start reaches the target
// delay. Successful logins return immediately.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success {
		return
	}

	target := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		if jitter, err := cryptoRandIntn(td.config.RandomDelayMs); err == nil {
			target += time.Duration(jitter) * time.Millisecond
		}
	}

	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// cryptoRandIntn returns a random number in [0, max) from crypto/rand;
// math/rand is avoided for security-adjacent jitter.
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max)), nil
}
