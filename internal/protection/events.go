package protection

import (
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/bulwark/pkg/logger"
	"github.com/BradenHooton/bulwark/pkg/metrics"
)

// Event types emitted by the protection core
const (
	EventIPBanTriggered             = "IP_BAN_TRIGGERED"
	EventAccountLocked              = "ACCOUNT_LOCKED"
	EventPersistentAttackerDetected = "PERSISTENT_ATTACKER_DETECTED"
	EventLockoutAbuseDetected       = "LOCKOUT_ABUSE_DETECTED"
	EventAuthSuccessAfterFailures   = "AUTH_SUCCESS_AFTER_FAILURES"
	EventAllowlistBypass            = "ALLOWLIST_BYPASS"
	EventSharedIPDetected           = "SHARED_IP_DETECTED"
)

// Severity levels for emitted events
type Severity string

const (
	SeverityHigh Severity = "high"
	SeverityLow  Severity = "low"
	SeverityInfo Severity = "info"
)

// Event is a security signal emitted by the protection core. It carries only
// the opaque hashed identifier, never the raw IP or account value.
type Event struct {
	ID         uuid.UUID
	Type       string
	Severity   Severity
	KeyHash    string
	Reason     string
	OccurredAt time.Time
}

// Emitter consumes protection events. The production implementation forwards
// to the audit log and metrics; tests substitute an in-memory recorder.
type Emitter interface {
	Emit(event Event)
}

// AuditEmitter is the production Emitter: dual-write to the security audit
// logger and the Prometheus event counters.
type AuditEmitter struct {
	audit *logger.AuditLogger
}

// NewAuditEmitter creates an AuditEmitter backed by the given audit logger
func NewAuditEmitter(audit *logger.AuditLogger) *AuditEmitter {
	return &AuditEmitter{audit: audit}
}

// Emit implements the Emitter interface for *AuditEmitter.
func (ae *AuditEmitter) Emit(event Event) {
	ae.audit.LogSecurityEvent(logger.SecurityEvent{
		ID:         event.ID.String(),
		EventType:  event.Type,
		Severity:   string(event.Severity),
		KeyHash:    event.KeyHash,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt,
	})
	metrics.ProtectionEventsTotal.WithLabelValues(event.Type, string(event.Severity)).Inc()
}

// newEvent builds an event with a fresh ID
func newEvent(eventType string, severity Severity, keyHash, reason string, now time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Severity:   severity,
		KeyHash:    keyHash,
		Reason:     reason,
		OccurredAt: now,
	}
}
