package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
)

// AnomalyDetector runs the per-user anomaly rules for a successful login
type AnomalyDetector interface {
	DetectAnomalies(ctx context.Context, attempt *models.LoginAttempt) []*models.SecurityAlert
}

// BruteForceDetector checks an IP for failed-login volume
type BruteForceDetector interface {
	DetectBruteForce(ctx context.Context, ipAddress string) *models.SecurityAlert
}

// DispatcherConfig sizes the detection worker pool
type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// AlertDispatcher runs detection off the login path on a fixed pool of workers
type AlertDispatcher struct {
	anomalies  AnomalyDetector
	bruteForce BruteForceDetector
	jobs       chan *models.LoginAttempt
	workers    int
	logger     *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewAlertDispatcher creates a dispatcher. Workers and QueueSize default to 1 when unset.
func NewAlertDispatcher(anomalies AnomalyDetector, bruteForce BruteForceDetector, config DispatcherConfig, logger *slog.Logger) *AlertDispatcher {
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := config.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	return &AlertDispatcher{
		anomalies:  anomalies,
		bruteForce: bruteForce,
		jobs:       make(chan *models.LoginAttempt, queueSize),
		workers:    workers,
		logger:     logger,
	}
}

// Start launches the workers. ctx is passed to every detection call.
func (d *AlertDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	d.logger.Info("alert dispatcher started",
		slog.Int("workers", d.workers),
		slog.Int("queue_size", cap(d.jobs)),
	)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Submit queues an attempt for detection without blocking. It returns false when
// the queue is full or the dispatcher has been stopped; the attempt is then dropped.
func (d *AlertDispatcher) Submit(attempt *models.LoginAttempt) bool {
	if attempt == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.jobs <- attempt:
		metrics.DispatchQueueDepth.Set(float64(len(d.jobs)))
		return true
	default:
		metrics.DispatchDropped.Inc()
		d.logger.Warn("detection queue full, dropping login attempt",
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("outcome", string(attempt.Outcome)),
		)
		return false
	}
}

// Stop rejects new submissions and waits for queued jobs to drain. If ctx ends
// first, Stop returns its error and the remaining jobs are abandoned; cancel the
// context given to Start to abort detections still running.
func (d *AlertDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.logger.Info("alert dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("alert dispatcher stop timed out",
			slog.Int("abandoned_jobs", len(d.jobs)),
			slog.Any("error", ctx.Err()),
		)
		return fmt.Errorf("alert dispatcher did not drain: %w", ctx.Err())
	}
}

func (d *AlertDispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for attempt := range d.jobs {
		metrics.DispatchQueueDepth.Set(float64(len(d.jobs)))
		d.process(ctx, attempt)
	}
}

func (d *AlertDispatcher) process(ctx context.Context, attempt *models.LoginAttempt) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("detection job panicked",
				slog.String("attempt_id", attempt.ID.String()),
				slog.Any("error", fmt.Errorf("panic: %v", r)),
			)
		}
	}()

	switch {
	case attempt.IsSuccess():
		d.anomalies.DetectAnomalies(ctx, attempt)
	case attempt.Outcome.IsFailure():
		d.bruteForce.DetectBruteForce(ctx, attempt.IPAddress)
	}
}
