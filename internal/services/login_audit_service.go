package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/pkg/device"
	pkglogger "github.com/BradenHooton/loginsentry/pkg/logger"
	"github.com/google/uuid"
)

// LoginAttemptRepository stores login attempts
type LoginAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DetectionSubmitter queues a recorded attempt for asynchronous detection
type DetectionSubmitter interface {
	Submit(attempt *models.LoginAttempt) bool
}

// LoginEvent is a login attempt as reported by the authentication subsystem
type LoginEvent struct {
	UserID            *uuid.UUID
	Email             string
	Timestamp         time.Time
	IPAddress         string
	UserAgent         string
	AcceptLanguage    string
	AcceptEncoding    string
	DeviceFingerprint *string
	Country           *string
	City              *string
	Latitude          *float64
	Longitude         *float64
	Outcome           models.LoginOutcome
	FailureReason     *string
}

// LoginAuditService records login attempts and hands them to detection
type LoginAuditService struct {
	repo        LoginAttemptRepository
	submitter   DetectionSubmitter
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewLoginAuditService creates a new LoginAuditService
func NewLoginAuditService(repo LoginAttemptRepository, submitter DetectionSubmitter, logger *slog.Logger) *LoginAuditService {
	return &LoginAuditService{
		repo:        repo,
		submitter:   submitter,
		auditLogger: pkglogger.NewAuditLogger(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// RecordLoginAttempt persists the event and submits it for detection.
// It returns the stored attempt, or nil when the attempt could not be stored.
// Failures are logged and never surface to the login flow.
func (s *LoginAuditService) RecordLoginAttempt(ctx context.Context, event LoginEvent) *models.LoginAttempt {
	attempt, err := s.buildAttempt(event)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected login event",
			slog.String("ip", event.IPAddress),
			slog.Any("error", err),
		)
		return nil
	}

	if err := s.repo.RecordAttempt(ctx, attempt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("ip", attempt.IPAddress),
			slog.String("outcome", string(attempt.Outcome)),
			slog.Any("error", err),
		)
		return nil
	}

	logEvent := pkglogger.LoginEvent{
		AttemptID: attempt.ID.String(),
		Email:     attempt.Email,
		IPAddress: attempt.IPAddress,
		Outcome:   string(attempt.Outcome),
	}
	if attempt.UserID != nil {
		logEvent.UserID = attempt.UserID.String()
	}
	if attempt.FailureReason != nil {
		logEvent.FailureReason = *attempt.FailureReason
	}
	s.auditLogger.LogLoginAttempt(ctx, logEvent)

	if s.submitter != nil && !s.submitter.Submit(attempt) {
		s.logger.WarnContext(ctx, "login attempt recorded but not queued for detection",
			slog.String("attempt_id", attempt.ID.String()),
		)
	}

	return attempt
}

// CleanupOldLoginAttempts deletes attempts older than cutoff and returns how many were removed.
// Errors are logged and reported as zero.
func (s *LoginAuditService) CleanupOldLoginAttempts(ctx context.Context, cutoff time.Time) int64 {
	deleted, err := s.repo.DeleteAttemptsBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to clean up old login attempts",
			slog.Time("cutoff", cutoff),
			slog.Any("error", err),
		)
		return 0
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "cleaned up old login attempts",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff),
		)
	}
	return deleted
}

func (s *LoginAuditService) buildAttempt(event LoginEvent) (*models.LoginAttempt, error) {
	if !event.Outcome.Valid() {
		return nil, fmt.Errorf("%w: unknown outcome %q", models.ErrBadRequest, event.Outcome)
	}
	if event.IPAddress == "" {
		return nil, fmt.Errorf("%w: ip address is required", models.ErrBadRequest)
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	fingerprint := event.DeviceFingerprint
	if (fingerprint == nil || *fingerprint == "") && event.UserAgent != "" {
		fp := device.Fingerprint(event.UserAgent, event.AcceptLanguage, event.AcceptEncoding)
		fingerprint = &fp
	}

	info := device.ParseUserAgent(event.UserAgent)

	return &models.LoginAttempt{
		ID:                uuid.New(),
		UserID:            event.UserID,
		Email:             event.Email,
		Timestamp:         timestamp.UTC(),
		IPAddress:         event.IPAddress,
		UserAgent:         event.UserAgent,
		DeviceFingerprint: fingerprint,
		Country:           event.Country,
		City:              event.City,
		Latitude:          event.Latitude,
		Longitude:         event.Longitude,
		Outcome:           event.Outcome,
		FailureReason:     event.FailureReason,
		Browser:           optional(info.Browser),
		OS:                optional(info.OS),
		DeviceName:        optional(info.DeviceName),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
