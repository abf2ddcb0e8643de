package protection_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/bulwark/internal/protection"
)

func testGuardConfig() protection.Config {
	return protection.Config{
		Salt:                      testSalt,
		RateWindow:                30 * time.Second,
		RateMaxAttempts:           10,
		BanBaseDuration:           15 * time.Minute,
		LockWindow:                5 * time.Minute,
		LockMaxFailures:           5,
		LockDuration:              15 * time.Minute,
		EscalationWindow:          24 * time.Hour,
		EscalationBanThreshold:    3,
		EscalationMultiplier:      2.0,
		SharedIPUsernameThreshold: 3,
		SharedIPMultiplier:        3,
		MaxLockoutsPerIPPerHour:   3,
		MaxTrackedKeys:            100,
	}
}

func newTestGuard(t *testing.T, cfg protection.Config) (*protection.Guard, *recorderEmitter, *fakeClock) {
	t.Helper()

	emitter := &recorderEmitter{}
	clock := newFakeClock(testStart)
	guard, err := protection.NewGuard(cfg, emitter, testLogger(), protection.WithClock(clock))
	require.NoError(t, err)
	return guard, emitter, clock
}

func TestGuardRequiresSalt(t *testing.T) {
	cfg := testGuardConfig()
	cfg.Salt = ""
	_, err := protection.NewGuard(cfg, &recorderEmitter{}, testLogger())
	assert.Error(t, err)
}

// Scenario: 12 attempts in 20 seconds with maxAttempts=10. The first ten pass
// to the credential check, the rest are denied and the IP is banned.
func TestGuardRateLimitBansAtEleventhAttempt(t *testing.T) {
	guard, emitter, clock := newTestGuard(t, testGuardConfig())

	for i := 1; i <= 10; i++ {
		decision := guard.CheckAuthRate("203.0.113.7")
		assert.True(t, decision.Allowed, "attempt %d should pass", i)
		clock.Advance(time.Second)
	}

	for i := 11; i <= 12; i++ {
		decision := guard.CheckAuthRate("203.0.113.7")
		assert.False(t, decision.Allowed, "attempt %d should be denied", i)
		assert.GreaterOrEqual(t, decision.RetryAfter, time.Duration(0))
		clock.Advance(time.Second)
	}

	banned := guard.CheckIPBan("203.0.113.7")
	assert.False(t, banned.Allowed)
	assert.Len(t, emitter.byType(protection.EventIPBanTriggered), 1,
		"one offense episode issues one ban")
}

func TestGuardBanExpiryReturnsToClean(t *testing.T) {
	guard, _, clock := newTestGuard(t, testGuardConfig())

	for i := 0; i < 11; i++ {
		guard.CheckAuthRate("203.0.113.7")
	}
	require.False(t, guard.CheckIPBan("203.0.113.7").Allowed)

	clock.Advance(16 * time.Minute)
	assert.True(t, guard.CheckIPBan("203.0.113.7").Allowed)
}

// Scenario: five failures within the lock window lock the account; the next
// attempt is denied even before the credential check, and the lock lapses
// after the configured duration.
func TestGuardAccountLockLifecycle(t *testing.T) {
	guard, emitter, clock := newTestGuard(t, testGuardConfig())

	for i := 0; i < 5; i++ {
		guard.RecordAuthFailure("198.51.100.4", "a@test")
		clock.Advance(10 * time.Second)
	}

	decision := guard.CheckAccountLock("a@test")
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.Len(t, emitter.byType(protection.EventAccountLocked), 1)

	clock.Advance(15 * time.Minute)
	assert.True(t, guard.CheckAccountLock("a@test").Allowed)
}

func TestGuardSuccessResetsFailureCount(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	for i := 0; i < 4; i++ {
		guard.RecordAuthFailure("198.51.100.4", "a@test")
	}
	guard.RecordAuthSuccess("198.51.100.4", "a@test")
	for i := 0; i < 4; i++ {
		guard.RecordAuthFailure("198.51.100.4", "a@test")
	}

	assert.True(t, guard.CheckAccountLock("a@test").Allowed,
		"reset must zero the counter, not decay it")
}

// Scenario: an attacker deliberately locks out other users. The fourth induced
// lockout within an hour bans the attacking IP itself.
func TestGuardLockoutAbuseBansAttacker(t *testing.T) {
	cfg := testGuardConfig()
	// Keep the shared-IP multiplier out of play: four victim accounts from
	// one IP must still lock at the base threshold.
	cfg.SharedIPUsernameThreshold = 50
	guard, emitter, clock := newTestGuard(t, cfg)

	for account := 0; account < 4; account++ {
		target := fmt.Sprintf("victim-%d@test", account)
		for i := 0; i < 5; i++ {
			guard.RecordAuthFailure("192.0.2.66", target)
		}
		clock.Advance(time.Minute)
	}

	assert.False(t, guard.CheckIPBan("192.0.2.66").Allowed, "the abuser is banned")
	assert.NotEmpty(t, emitter.byType(protection.EventLockoutAbuseDetected))
}

func TestGuardSharedIPScalesRateThreshold(t *testing.T) {
	cfg := testGuardConfig()
	guard, emitter, clock := newTestGuard(t, cfg)

	// Three distinct accounts from one IP mark it shared
	for i := 0; i < 3; i++ {
		guard.RecordAuthSuccess("10.20.30.40", fmt.Sprintf("student-%d@school", i))
	}
	require.Len(t, emitter.byType(protection.EventSharedIPDetected), 1)

	// The effective attempt limit is now 10 * 3
	for i := 1; i <= 30; i++ {
		decision := guard.CheckAuthRate("10.20.30.40")
		assert.True(t, decision.Allowed, "attempt %d should be within the scaled limit", i)
		clock.Advance(500 * time.Millisecond)
	}
}

func TestGuardAllowlistBypassesRateAndBan(t *testing.T) {
	cfg := testGuardConfig()
	cfg.Allowlist = []string{"10.0.0.1"}
	guard, emitter, _ := newTestGuard(t, cfg)

	for i := 0; i < 100; i++ {
		assert.True(t, guard.CheckAuthRate("10.0.0.1").Allowed)
	}
	assert.True(t, guard.CheckIPBan("10.0.0.1").Allowed)

	bypass := emitter.byType(protection.EventAllowlistBypass)
	assert.NotEmpty(t, bypass)
	assert.Less(t, len(bypass), 100, "bypass events are throttled")
}

func TestGuardDeniesMalformedInput(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	assert.False(t, guard.CheckIPBan("").Allowed)
	assert.False(t, guard.CheckAuthRate("").Allowed)
	assert.False(t, guard.CheckAccountLock("").Allowed)
}

func TestGuardUnbanKeepsEscalation(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	for i := 0; i < 11; i++ {
		guard.CheckAuthRate("203.0.113.7")
	}
	bans := guard.TopBannedIPs(10)
	require.Len(t, bans, 1)
	require.Equal(t, 1, bans[0].EscalationLevel)

	assert.True(t, guard.UnbanIP(bans[0].KeyHash))
	assert.True(t, guard.CheckIPBan("203.0.113.7").Allowed)
	assert.False(t, guard.UnbanIP(bans[0].KeyHash), "second unban finds nothing")
}

func TestGuardStatsSnapshot(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	for i := 0; i < 11; i++ {
		guard.CheckAuthRate("203.0.113.7")
	}
	for i := 0; i < 5; i++ {
		guard.RecordAuthFailure("198.51.100.4", "a@test")
	}

	stats := guard.Stats()
	assert.Equal(t, 1, stats.ActiveBans)
	assert.Equal(t, 1, stats.ActiveLocks)
	assert.GreaterOrEqual(t, stats.TrackedIPs, 1)
	assert.GreaterOrEqual(t, stats.TrackedAccounts, 1)
	assert.Greater(t, stats.ApproxMemoryByte, int64(0))
}

func TestGuardSweepDropsExpiredState(t *testing.T) {
	guard, _, clock := newTestGuard(t, testGuardConfig())

	for i := 0; i < 11; i++ {
		guard.CheckAuthRate("203.0.113.7")
	}
	for i := 0; i < 5; i++ {
		guard.RecordAuthFailure("198.51.100.4", "a@test")
	}

	clock.Advance(25 * time.Hour)
	guard.Sweep()

	stats := guard.Stats()
	assert.Equal(t, 0, stats.ActiveBans)
	assert.Equal(t, 0, stats.ActiveLocks)
	assert.Equal(t, 0, stats.TrackedIPs)
	assert.Equal(t, 0, stats.TrackedAccounts)
}

func TestGuardTopBannedIPsLimit(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	for ip := 0; ip < 5; ip++ {
		addr := fmt.Sprintf("203.0.113.%d", ip)
		for i := 0; i < 11; i++ {
			guard.CheckAuthRate(addr)
		}
	}

	assert.Len(t, guard.TopBannedIPs(3), 3)
	assert.Len(t, guard.TopBannedIPs(10), 5)
}

func TestGuardConcurrentAccess(t *testing.T) {
	guard, _, _ := newTestGuard(t, testGuardConfig())

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			ip := fmt.Sprintf("198.18.0.%d", w)
			for i := 0; i < 200; i++ {
				guard.CheckIPBan(ip)
				guard.CheckAuthRate(ip)
				guard.RecordAuthFailure(ip, fmt.Sprintf("user-%d@test", i%5))
				guard.CheckAccountLock(fmt.Sprintf("user-%d@test", i%5))
				guard.Sweep()
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}
}
