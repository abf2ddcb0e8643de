package protection_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/bulwark/internal/protection"
)

func TestRateLimiterAllowsUpToMaxAttempts(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 100)
	now := testStart

	for i := 1; i <= 10; i++ {
		count, over := rl.RecordAttempt("ip-a", now, 1)
		assert.Equal(t, i, count)
		assert.False(t, over, "attempt %d should be within limit", i)
		now = now.Add(time.Second)
	}

	count, over := rl.RecordAttempt("ip-a", now, 1)
	assert.Equal(t, 11, count)
	assert.True(t, over, "attempt 11 should exceed the limit")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 100)
	now := testStart

	for i := 0; i < 10; i++ {
		rl.RecordAttempt("ip-a", now, 1)
	}

	// Entire window slides past; counting starts over
	now = now.Add(31 * time.Second)
	count, over := rl.RecordAttempt("ip-a", now, 1)
	assert.Equal(t, 1, count)
	assert.False(t, over)
}

func TestRateLimiterPartialSlide(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 100)
	now := testStart

	// 5 attempts at t=0, 5 more at t=20s
	for i := 0; i < 5; i++ {
		rl.RecordAttempt("ip-a", now, 1)
	}
	for i := 0; i < 5; i++ {
		rl.RecordAttempt("ip-a", now.Add(20*time.Second), 1)
	}

	// At t=35s the first batch has slid out
	count, over := rl.RecordAttempt("ip-a", now.Add(35*time.Second), 1)
	assert.Equal(t, 6, count)
	assert.False(t, over)
}

func TestRateLimiterSharedIPMultiplier(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 100)
	now := testStart

	// Multiplier 3 raises the effective limit to 30
	for i := 1; i <= 30; i++ {
		_, over := rl.RecordAttempt("nat-ip", now, 3)
		assert.False(t, over, "attempt %d should be within the scaled limit", i)
	}

	_, over := rl.RecordAttempt("nat-ip", now, 3)
	assert.True(t, over)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 2, 100)
	now := testStart

	rl.RecordAttempt("ip-a", now, 1)
	rl.RecordAttempt("ip-a", now, 1)
	_, over := rl.RecordAttempt("ip-a", now, 1)
	assert.True(t, over)

	_, over = rl.RecordAttempt("ip-b", now, 1)
	assert.False(t, over, "other keys keep their own windows")
}

func TestRateLimiterEvictsLeastRecentlyTouched(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 2)
	now := testStart

	rl.RecordAttempt("ip-a", now, 1)
	rl.RecordAttempt("ip-b", now, 1)
	rl.RecordAttempt("ip-c", now, 1) // evicts ip-a

	assert.Equal(t, 2, rl.Len())

	// ip-a history is gone; its next attempt counts from one
	count, _ := rl.RecordAttempt("ip-a", now, 1)
	assert.Equal(t, 1, count)
}

func TestRateLimiterSweepDropsExpiredWindows(t *testing.T) {
	rl := protection.NewRateLimiter(30*time.Second, 10, 100)
	now := testStart

	for i := 0; i < 50; i++ {
		rl.RecordAttempt(fmt.Sprintf("ip-%d", i), now, 1)
	}
	assert.Equal(t, 50, rl.Len())

	rl.Sweep(now.Add(31 * time.Second))
	assert.Equal(t, 0, rl.Len())
}
