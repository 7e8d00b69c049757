package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
)

// FailedAttemptRepository supplies per-IP failure history
type FailedAttemptRepository interface {
	GetFailedAttemptCountByIP(ctx context.Context, ipAddress string, since time.Time) (int, error)
	// GetLatestAttributedAttemptByIP returns the newest attempt from the IP that names a user, or nil
	GetLatestAttributedAttemptByIP(ctx context.Context, ipAddress string, since time.Time) (*models.LoginAttempt, error)
}

// BruteForceService raises an alert when one IP accumulates too many failed logins
type BruteForceService struct {
	repo      FailedAttemptRepository
	writer    alertWriter
	window    time.Duration
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewBruteForceService creates a new BruteForceService
func NewBruteForceService(repo FailedAttemptRepository, alerts AlertRepository, config DetectionConfig, logger *slog.Logger) *BruteForceService {
	return &BruteForceService{
		repo:      repo,
		writer:    newAlertWriter(alerts, config.QueryTimeout, logger),
		window:    config.BruteForceWindow,
		threshold: config.BruteForceThreshold,
		timeout:   config.QueryTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// DetectBruteForce counts failures from ipAddress within the window and persists a
// BRUTE_FORCE alert once the threshold is reached. The alert is attributed to the
// most recent attempt from that IP that names a user; without one nothing is raised.
// Errors are logged and reported as no alert.
func (s *BruteForceService) DetectBruteForce(ctx context.Context, ipAddress string) *models.SecurityAlert {
	if ipAddress == "" {
		return nil
	}

	queryCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now()
	since := now.Add(-s.window)

	count, err := s.repo.GetFailedAttemptCountByIP(queryCtx, ipAddress, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count failed login attempts",
			slog.String("ip", ipAddress),
			slog.Any("error", err),
		)
		metrics.DetectionErrors.WithLabelValues("brute_force").Inc()
		return nil
	}

	if count < s.threshold {
		return nil
	}

	source, err := s.repo.GetLatestAttributedAttemptByIP(queryCtx, ipAddress, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load recent login attempts",
			slog.String("ip", ipAddress),
			slog.Any("error", err),
		)
		metrics.DetectionErrors.WithLabelValues("brute_force").Inc()
		return nil
	}
	if source == nil {
		s.logger.WarnContext(ctx, "brute force threshold reached without an attributable user",
			slog.String("ip", ipAddress),
			slog.Int("failed_attempts", count),
		)
		return nil
	}

	alert := models.NewSecurityAlert(*source.UserID, source.ID, models.BruteForceFinding{
		IPAddress:      ipAddress,
		FailedAttempts: count,
		Window:         s.window,
	}, now)

	if err := s.writer.persist(ctx, alert); err != nil {
		return nil
	}
	return alert
}
