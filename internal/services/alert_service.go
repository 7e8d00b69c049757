package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
)

// AlertReader lists stored alerts
type AlertReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// AlertService serves the read side of security alerts
type AlertService struct {
	repo   AlertReader
	logger *slog.Logger
}

// NewAlertService creates a new AlertService
func NewAlertService(repo AlertReader, logger *slog.Logger) *AlertService {
	return &AlertService{
		repo:   repo,
		logger: logger,
	}
}

// ListUserAlerts returns one page of a user's alerts, newest first, with the total count
func (s *AlertService) ListUserAlerts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, int, error) {
	if limit < 1 || limit > 100 {
		return nil, 0, fmt.Errorf("%w: limit must be between 1 and 100", models.ErrBadRequest)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("%w: offset cannot be negative", models.ErrBadRequest)
	}

	alerts, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list alerts",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return nil, 0, err
	}

	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count alerts",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return nil, 0, err
	}

	return alerts, total, nil
}
