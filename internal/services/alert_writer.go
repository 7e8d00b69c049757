package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
)

// AlertRepository persists raised security alerts
type AlertRepository interface {
	Create(ctx context.Context, alert *models.SecurityAlert) error
}

// alertWriter persists alerts and mirrors them to the audit log
type alertWriter struct {
	alerts      AlertRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	timeout     time.Duration
}

func newAlertWriter(alerts AlertRepository, timeout time.Duration, logger *slog.Logger) alertWriter {
	return alertWriter{
		alerts:      alerts,
		auditLogger: pkglogger.NewAuditLogger(logger),
		logger:      logger,
		timeout:     timeout,
	}
}

// persist stores the alert under its own deadline. Pass the caller's context,
// not one already spent on detection queries.
func (w alertWriter) persist(ctx context.Context, alert *models.SecurityAlert) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if err := w.alerts.Create(ctx, alert); err != nil {
		w.logger.ErrorContext(ctx, "failed to persist security alert",
			slog.String("alert_type", string(alert.AlertType)),
			slog.String("user_id", alert.UserID.String()),
			slog.Any("error", err),
		)
		metrics.DetectionErrors.WithLabelValues("persist").Inc()
		return fmt.Errorf("failed to persist security alert: %w", err)
	}

	metrics.AlertsGenerated.WithLabelValues(string(alert.AlertType), string(alert.Severity)).Inc()
	w.auditLogger.LogSecurityAlert(ctx, pkglogger.AlertEvent{
		AlertID:   alert.ID.String(),
		AlertType: string(alert.AlertType),
		Severity:  string(alert.Severity),
		UserID:    alert.UserID.String(),
		AttemptID: alert.SourceLoginAttemptID.String(),
		Details:   alert.Details,
		Metadata:  alert.Metadata,
	})
	return nil
}
