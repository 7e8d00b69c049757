package logger

import (
	"context"
	"log/slog"
	"time"
)

// AlertEvent is the log-facing view of a persisted security alert
type AlertEvent struct {
	AlertID   string
	AlertType string
	Severity  string
	UserID    string
	AttemptID string
	Details   string
	Metadata  map[string]interface{}
}

// LoginEvent is the log-facing view of a recorded login attempt
type LoginEvent struct {
	AttemptID     string
	UserID        string
	Email         string
	IPAddress     string
	Outcome       string
	FailureReason string
}

// AuditLogger writes the structured audit trail that accompanies database writes
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogSecurityAlert logs a raised alert. HIGH and CRITICAL alerts are logged at warn level.
func (al *AuditLogger) LogSecurityAlert(ctx context.Context, event AlertEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security_alert"),
		slog.String("alert_id", event.AlertID),
		slog.String("alert_type", event.AlertType),
		slog.String("severity", event.Severity),
		slog.String("user_id", event.UserID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AttemptID != "" {
		attrs = append(attrs, slog.String("source_login_attempt_id", event.AttemptID))
	}
	if event.Details != "" {
		attrs = append(attrs, slog.String("details", event.Details))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	level := slog.LevelInfo
	if event.Severity == "HIGH" || event.Severity == "CRITICAL" {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLoginAttempt logs a recorded login attempt with the email masked
func (al *AuditLogger) LogLoginAttempt(ctx context.Context, event LoginEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login"),
		slog.String("attempt_id", event.AttemptID),
		slog.String("outcome", event.Outcome),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Outcome == "success" {
		al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
	}
}
