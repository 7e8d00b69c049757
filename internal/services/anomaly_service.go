package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// AnomalyService runs the anomaly rules against successful logins and persists what they find
type AnomalyService struct {
	rules   []AnomalyRule
	writer  alertWriter
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewAnomalyService creates an AnomalyService with the impossible travel, new device,
// new location and unusual time rules
func NewAnomalyService(history LoginHistoryRepository, alerts AlertRepository, config DetectionConfig, logger *slog.Logger) *AnomalyService {
	rules := []AnomalyRule{
		NewImpossibleTravelRule(history, config),
		NewNewDeviceRule(history, config),
		NewNewLocationRule(history, config),
		NewUnusualTimeRule(history, config),
	}
	return NewAnomalyServiceWithRules(rules, alerts, config, logger)
}

// NewAnomalyServiceWithRules creates an AnomalyService with an explicit rule set
func NewAnomalyServiceWithRules(rules []AnomalyRule, alerts AlertRepository, config DetectionConfig, logger *slog.Logger) *AnomalyService {
	return &AnomalyService{
		rules:   rules,
		writer:  newAlertWriter(alerts, config.QueryTimeout, logger),
		timeout: config.QueryTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// DetectAnomalies evaluates every rule for a successful login with a known user and
// returns the alerts that were persisted. Failures are logged and never returned;
// a failing rule does not prevent the others from alerting.
func (s *AnomalyService) DetectAnomalies(ctx context.Context, attempt *models.LoginAttempt) []*models.SecurityAlert {
	alerts := []*models.SecurityAlert{}
	if attempt == nil || !attempt.IsSuccess() || attempt.UserID == nil {
		return alerts
	}

	start := time.Now()
	defer func() {
		metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	}()

	detectCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	userID := *attempt.UserID
	findings := make([]models.Finding, len(s.rules))

	// evaluate swallows rule errors, so the group only waits
	var g errgroup.Group
	for i, rule := range s.rules {
		g.Go(func() error {
			findings[i] = s.evaluate(detectCtx, rule, attempt, userID)
			return nil
		})
	}
	_ = g.Wait()

	for _, finding := range findings {
		if finding == nil {
			continue
		}

		alert := models.NewSecurityAlert(userID, attempt.ID, finding, s.now())
		if err := s.writer.persist(ctx, alert); err != nil {
			continue
		}
		alerts = append(alerts, alert)
	}

	return alerts
}

func (s *AnomalyService) evaluate(ctx context.Context, rule AnomalyRule, attempt *models.LoginAttempt, userID uuid.UUID) (finding models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "anomaly rule panicked",
				slog.String("rule", rule.Name()),
				slog.String("attempt_id", attempt.ID.String()),
				slog.Any("error", fmt.Errorf("panic: %v", r)),
			)
			metrics.DetectionErrors.WithLabelValues(rule.Name()).Inc()
			finding = nil
		}
	}()

	finding, err := rule.Evaluate(ctx, attempt, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "anomaly rule failed",
			slog.String("rule", rule.Name()),
			slog.String("attempt_id", attempt.ID.String()),
			slog.Any("error", err),
		)
		metrics.DetectionErrors.WithLabelValues(rule.Name()).Inc()
		return nil
	}

	return finding
}
