package protection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/bulwark/internal/protection"
)

func newTestBanManager(emitter protection.Emitter) *protection.BanManager {
	return protection.NewBanManager(24*time.Hour, 3, 2.0, 100, emitter)
}

func TestBanManagerFirstBan(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	record := bm.Ban("ip-x", now, 15*time.Minute, protection.BanReasonRateLimit)

	assert.Equal(t, 1, record.EscalationLevel)
	assert.Equal(t, now.Add(15*time.Minute), record.ExpiresAt)

	remaining, banned := bm.IsBanned("ip-x", now.Add(5*time.Minute))
	assert.True(t, banned)
	assert.Equal(t, 10*time.Minute, remaining)

	assert.Len(t, emitter.byType(protection.EventIPBanTriggered), 1)
	assert.Empty(t, emitter.byType(protection.EventPersistentAttackerDetected))
}

func TestBanManagerEscalatesGeometrically(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart
	base := 15 * time.Minute

	// Repeat offenses within the escalation window: D, D*2, D*4
	durations := []time.Duration{base, 2 * base, 4 * base}
	for i, want := range durations {
		record := bm.Ban("ip-x", now, base, protection.BanReasonRateLimit)
		assert.Equal(t, i+1, record.EscalationLevel)
		assert.Equal(t, want, record.ExpiresAt.Sub(record.CreatedAt))
		now = record.ExpiresAt.Add(time.Minute)
	}
}

func TestBanManagerHighAlertAtThreshold(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	bm.Ban("ip-x", now, time.Minute, protection.BanReasonRateLimit)
	bm.Ban("ip-x", now.Add(time.Hour), time.Minute, protection.BanReasonRateLimit)
	assert.Empty(t, emitter.byType(protection.EventPersistentAttackerDetected))

	// Third ban within 24h crosses the escalation threshold
	bm.Ban("ip-x", now.Add(2*time.Hour), time.Minute, protection.BanReasonRateLimit)
	high := emitter.byType(protection.EventPersistentAttackerDetected)
	require.Len(t, high, 1)
	assert.Equal(t, protection.SeverityHigh, high[0].Severity)
}

func TestBanManagerEscalationWindowRollsOff(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	bm.Ban("ip-x", now, time.Minute, protection.BanReasonRateLimit)

	// 25 hours later the first offense no longer counts
	record := bm.Ban("ip-x", now.Add(25*time.Hour), time.Minute, protection.BanReasonRateLimit)
	assert.Equal(t, 1, record.EscalationLevel)
}

func TestBanManagerBanExpires(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	record := bm.Ban("ip-x", now, 15*time.Minute, protection.BanReasonRateLimit)

	_, banned := bm.IsBanned("ip-x", record.ExpiresAt)
	assert.False(t, banned, "a ban is active only strictly before expiry")
}

func TestBanManagerUnbanKeepsEscalationHistory(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	bm.Ban("ip-x", now, 15*time.Minute, protection.BanReasonRateLimit)
	assert.True(t, bm.Unban("ip-x"))

	_, banned := bm.IsBanned("ip-x", now)
	assert.False(t, banned)

	// The override lifted the ban, not the record of the offense
	record := bm.Ban("ip-x", now.Add(time.Minute), 15*time.Minute, protection.BanReasonRateLimit)
	assert.Equal(t, 2, record.EscalationLevel)
}

func TestBanManagerUnbanUnknownKey(t *testing.T) {
	bm := newTestBanManager(&recorderEmitter{})
	assert.False(t, bm.Unban("never-seen"))
}

func TestBanManagerActiveBansOrdering(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	bm.Ban("ip-a", now, time.Minute, protection.BanReasonRateLimit)
	bm.Ban("ip-b", now, time.Minute, protection.BanReasonRateLimit)
	bm.Ban("ip-b", now.Add(time.Second), time.Minute, protection.BanReasonRateLimit)

	active := bm.ActiveBans(now.Add(2 * time.Second))
	require.Len(t, active, 2)
	assert.Equal(t, "ip-b", active[0].KeyHash, "most escalated ban sorts first")
}

func TestBanManagerSweep(t *testing.T) {
	emitter := &recorderEmitter{}
	bm := newTestBanManager(emitter)
	now := testStart

	bm.Ban("ip-x", now, 15*time.Minute, protection.BanReasonRateLimit)

	// Ban expired but escalation history still live: the key survives
	bm.Sweep(now.Add(time.Hour))
	assert.Equal(t, 1, bm.Len())

	// History rolled off as well: the key is dropped
	bm.Sweep(now.Add(25 * time.Hour))
	assert.Equal(t, 0, bm.Len())
}
