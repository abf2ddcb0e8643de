package logger

import (
	"context"
	"log/slog"
	"time"
)

// SecurityEvent is an audit record for a protection-layer signal. KeyHash is
// the opaque salted hash of the subject identifier; raw IPs and account names
// never reach this type.
type SecurityEvent struct {
	ID         string
	EventType  string
	Severity   string
	KeyHash    string
	Reason     string
	OccurredAt time.Time
}

// AuditLogger provides structured audit logging for security events
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogSecurityEvent writes a protection event to the audit log. High severity
// events log at Warn so alerting pipelines can key off level alone.
func (al *AuditLogger) LogSecurityEvent(event SecurityEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "protection"),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("severity", event.Severity),
		slog.String("key_hash", event.KeyHash),
		slog.String("timestamp", event.OccurredAt.UTC().Format(time.RFC3339)),
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	level := slog.LevelInfo
	if event.Severity == "high" {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthOutcome logs the outcome of a credential check. The identifier is
// expected to be pre-sanitized by the caller.
func (al *AuditLogger) LogAuthOutcome(identifier string, success bool) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("identifier", identifier),
		slog.Bool("success", success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}
