package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/lease"
	"github.com/BradenHooton/loginsentry/internal/metrics"
)

// LoginAttemptCleanupLease is the lease name shared by every instance running the cleanup
const LoginAttemptCleanupLease = "login-attempt-cleanup"

// LoginAttemptCleaner deletes login attempts older than a cutoff
type LoginAttemptCleaner interface {
	CleanupOldLoginAttempts(ctx context.Context, cutoff time.Time) int64
}

// CleanupManager periodically removes login attempts past their retention period
type CleanupManager struct {
	cleaner  LoginAttemptCleaner
	locker   lease.Locker
	schedule Schedule
	logger   *slog.Logger
	stopCh   chan struct{}
	now      func() time.Time
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	cleaner LoginAttemptCleaner,
	locker lease.Locker,
	schedule Schedule,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		locker:   locker,
		schedule: schedule,
		logger:   logger,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	err := runOnSchedule(ctx, cm.schedule, cm.now, cm.stopCh, func(ctx context.Context) {
		cm.runCleanup(ctx)
	})
	if err != nil {
		cm.logger.Info("cleanup manager context cancelled")
		return
	}
	cm.logger.Info("cleanup manager stopped")
}

// runCleanup removes old login attempts if this instance wins the lease
func (cm *CleanupManager) runCleanup(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, cm.schedule.runTimeout())
	defer cancel()

	now := cm.now()

	var rowsDeleted int64
	ran, err := lease.Do(cleanupCtx, cm.locker, LoginAttemptCleanupLease, cm.schedule.holdFor(now), cm.schedule.MaxHold, func(ctx context.Context) error {
		rowsDeleted = cm.cleaner.CleanupOldLoginAttempts(ctx, now.Add(-cm.schedule.Retention))
		return nil
	})
	if err != nil {
		cm.logger.Error("login attempt cleanup failed", slog.Any("error", err))
		return 0
	}
	if !ran {
		metrics.LeaseSkipped.WithLabelValues(LoginAttemptCleanupLease).Inc()
		return 0
	}

	metrics.SweeperDeleted.WithLabelValues(LoginAttemptCleanupLease).Add(float64(rowsDeleted))
	return rowsDeleted
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
