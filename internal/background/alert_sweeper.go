package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/lease"
	"github.com/BradenHooton/loginsentry/internal/metrics"
)

// AlertSweeperLease is the lease name shared by every instance running the sweeper
const AlertSweeperLease = "alert-retention-sweep"

// ResolvedAlertDeleter removes resolved alerts older than a cutoff
type ResolvedAlertDeleter interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertSweeper periodically deletes resolved alerts past their retention period.
// Unresolved alerts are never touched.
type AlertSweeper struct {
	repo     ResolvedAlertDeleter
	locker   lease.Locker
	schedule Schedule
	logger   *slog.Logger
	stopCh   chan struct{}
	now      func() time.Time
}

// NewAlertSweeper creates a new alert sweeper
func NewAlertSweeper(repo ResolvedAlertDeleter, locker lease.Locker, schedule Schedule, logger *slog.Logger) *AlertSweeper {
	return &AlertSweeper{
		repo:     repo,
		locker:   locker,
		schedule: schedule,
		logger:   logger,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start runs the sweep at every slot boundary until stopped
func (s *AlertSweeper) Start(ctx context.Context) {
	s.logger.Info("alert sweeper started", slog.Time("next_run", s.schedule.nextRun(s.now())))

	err := runOnSchedule(ctx, s.schedule, s.now, s.stopCh, func(ctx context.Context) {
		s.RunOnce(ctx)
	})
	if err != nil {
		s.logger.Info("alert sweeper context cancelled")
		return
	}
	s.logger.Info("alert sweeper stopped")
}

// RunOnce performs a single sweep if this instance wins the lease and returns the
// number of alerts deleted. Losing the lease or failing to delete yields 0.
func (s *AlertSweeper) RunOnce(ctx context.Context) int64 {
	runCtx, cancel := context.WithTimeout(ctx, s.schedule.runTimeout())
	defer cancel()

	now := s.now()

	var deleted int64
	ran, err := lease.Do(runCtx, s.locker, AlertSweeperLease, s.schedule.holdFor(now), s.schedule.MaxHold, func(ctx context.Context) error {
		cutoff := now.Add(-s.schedule.Retention)

		n, err := s.repo.DeleteResolvedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		deleted = n

		s.logger.Info("resolved alert sweep completed",
			slog.Int64("rows_deleted", n),
			slog.Time("cutoff", cutoff),
		)
		return nil
	})
	if err != nil {
		s.logger.Error("resolved alert sweep failed", slog.Any("error", err))
		return 0
	}
	if !ran {
		metrics.LeaseSkipped.WithLabelValues(AlertSweeperLease).Inc()
		s.logger.Debug("alert sweep skipped, lease held by another instance")
		return 0
	}

	metrics.SweeperDeleted.WithLabelValues(AlertSweeperLease).Add(float64(deleted))
	return deleted
}

// Stop signals the sweeper to stop
func (s *AlertSweeper) Stop() {
	close(s.stopCh)
}
