package repositories

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/sony/gobreaker/v2"
)

const historyBreakerName = "login-history"

// historyReader is the read path the anomaly rules depend on
type historyReader interface {
	GetPreviousSuccess(ctx context.Context, w models.HistoryWindow) (*models.LoginAttempt, error)
	HasSuccessWithFingerprint(ctx context.Context, w models.HistoryWindow, fingerprint string) (bool, error)
	HasSuccessFromLocation(ctx context.Context, w models.HistoryWindow, country, city string) (bool, error)
	GetSuccessTimes(ctx context.Context, w models.HistoryWindow) ([]time.Time, error)
}

// BreakerConfig configures the history circuit breaker
type BreakerConfig struct {
	MaxFailures uint32        // Consecutive failures before opening
	OpenTimeout time.Duration // Time spent open before a trial request
}

// ResilientHistoryRepository fails history reads fast while the database is unhealthy.
// All reads share one breaker.
type ResilientHistoryRepository struct {
	next   historyReader
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

// NewResilientHistoryRepository wraps next with a circuit breaker
func NewResilientHistoryRepository(next historyReader, cfg BreakerConfig, logger *slog.Logger) *ResilientHistoryRepository {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(historyBreakerName).Set(0)

	settings := gobreaker.Settings{
		Name:        historyBreakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A caller giving up is not a database failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	}

	return &ResilientHistoryRepository{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		logger: logger,
	}
}

func (r *ResilientHistoryRepository) GetPreviousSuccess(ctx context.Context, w models.HistoryWindow) (*models.LoginAttempt, error) {
	return execute(r, func() (*models.LoginAttempt, error) {
		return r.next.GetPreviousSuccess(ctx, w)
	})
}

func (r *ResilientHistoryRepository) HasSuccessWithFingerprint(ctx context.Context, w models.HistoryWindow, fingerprint string) (bool, error) {
	return execute(r, func() (bool, error) {
		return r.next.HasSuccessWithFingerprint(ctx, w, fingerprint)
	})
}

func (r *ResilientHistoryRepository) HasSuccessFromLocation(ctx context.Context, w models.HistoryWindow, country, city string) (bool, error) {
	return execute(r, func() (bool, error) {
		return r.next.HasSuccessFromLocation(ctx, w, country, city)
	})
}

func (r *ResilientHistoryRepository) GetSuccessTimes(ctx context.Context, w models.HistoryWindow) ([]time.Time, error) {
	return execute(r, func() ([]time.Time, error) {
		return r.next.GetSuccessTimes(ctx, w)
	})
}

// execute runs fn through the breaker and restores its result type
func execute[T any](r *ResilientHistoryRepository, fn func() (T, error)) (T, error) {
	var zero T

	result, err := r.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRejected.WithLabelValues(historyBreakerName).Inc()
	}
	if err != nil {
		return zero, err
	}

	v, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// State reports the breaker state
func (r *ResilientHistoryRepository) State() gobreaker.State {
	return r.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
