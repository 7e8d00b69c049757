package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/pkg/geo"
	"github.com/BradenHooton/loginsentry/pkg/stats"
	"github.com/google/uuid"
)

// LoginHistoryRepository answers questions about a user's successful logins within a window
type LoginHistoryRepository interface {
	// GetPreviousSuccess returns the most recent login in the window, or nil
	GetPreviousSuccess(ctx context.Context, w models.HistoryWindow) (*models.LoginAttempt, error)
	HasSuccessWithFingerprint(ctx context.Context, w models.HistoryWindow, fingerprint string) (bool, error)
	HasSuccessFromLocation(ctx context.Context, w models.HistoryWindow, country, city string) (bool, error)
	GetSuccessTimes(ctx context.Context, w models.HistoryWindow) ([]time.Time, error)
}

// AnomalyRule evaluates one successful login against the user's history.
// A nil finding means the rule abstains.
type AnomalyRule interface {
	Name() string
	Evaluate(ctx context.Context, attempt *models.LoginAttempt, userID uuid.UUID) (models.Finding, error)
}

func historyError(err error) error {
	return fmt.Errorf("failed to load login history: %w", err)
}

// ImpossibleTravelRule flags a login too far from the previous one for the time between them
type ImpossibleTravelRule struct {
	history LoginHistoryRepository
	window  time.Duration
	maxKm   float64
}

// NewImpossibleTravelRule creates an ImpossibleTravelRule
func NewImpossibleTravelRule(history LoginHistoryRepository, config DetectionConfig) *ImpossibleTravelRule {
	return &ImpossibleTravelRule{
		history: history,
		window:  config.ImpossibleTravelWindow,
		maxKm:   config.ImpossibleTravelMaxKm,
	}
}

func (r *ImpossibleTravelRule) Name() string { return "impossible_travel" }

func (r *ImpossibleTravelRule) Evaluate(ctx context.Context, attempt *models.LoginAttempt, userID uuid.UUID) (models.Finding, error) {
	here, ok := attempt.Coordinates()
	if !ok {
		return nil, nil
	}

	previous, err := r.history.GetPreviousSuccess(ctx, models.NewHistoryWindow(attempt, userID, r.window))
	if err != nil {
		return nil, historyError(err)
	}
	if previous == nil {
		return nil, nil
	}

	there, ok := previous.Coordinates()
	if !ok {
		return nil, nil
	}

	distance := geo.Haversine(there, here)
	if distance <= r.maxKm {
		return nil, nil
	}

	fromCountry, fromCity, _ := previous.Location()
	toCountry, toCity, _ := attempt.Location()

	return models.ImpossibleTravelFinding{
		PreviousAttemptID: previous.ID,
		FromCountry:       fromCountry,
		FromCity:          fromCity,
		ToCountry:         toCountry,
		ToCity:            toCity,
		DistanceKm:        distance,
		ElapsedMinutes:    int(attempt.Timestamp.Sub(previous.Timestamp).Minutes()),
	}, nil
}

// NewDeviceRule flags a device fingerprint not seen in the user's recent logins
type NewDeviceRule struct {
	history LoginHistoryRepository
	window  time.Duration
}

// NewNewDeviceRule creates a NewDeviceRule
func NewNewDeviceRule(history LoginHistoryRepository, config DetectionConfig) *NewDeviceRule {
	return &NewDeviceRule{history: history, window: config.NewDeviceWindow}
}

func (r *NewDeviceRule) Name() string { return "new_device" }

func (r *NewDeviceRule) Evaluate(ctx context.Context, attempt *models.LoginAttempt, userID uuid.UUID) (models.Finding, error) {
	fingerprint := attempt.Fingerprint()
	if fingerprint == "" {
		return nil, nil
	}

	seen, err := r.history.HasSuccessWithFingerprint(ctx, models.NewHistoryWindow(attempt, userID, r.window), fingerprint)
	if err != nil {
		return nil, historyError(err)
	}
	if seen {
		return nil, nil
	}

	return models.NewDeviceFinding{
		Fingerprint: fingerprint,
		IPAddress:   attempt.IPAddress,
		UserAgent:   attempt.UserAgent,
	}, nil
}

// NewLocationRule flags a (country, city) pair not seen in the user's recent logins
type NewLocationRule struct {
	history LoginHistoryRepository
	window  time.Duration
}

// NewNewLocationRule creates a NewLocationRule
func NewNewLocationRule(history LoginHistoryRepository, config DetectionConfig) *NewLocationRule {
	return &NewLocationRule{history: history, window: config.NewLocationWindow}
}

func (r *NewLocationRule) Name() string { return "new_location" }

func (r *NewLocationRule) Evaluate(ctx context.Context, attempt *models.LoginAttempt, userID uuid.UUID) (models.Finding, error) {
	country, city, ok := attempt.Location()
	if !ok {
		return nil, nil
	}

	seen, err := r.history.HasSuccessFromLocation(ctx, models.NewHistoryWindow(attempt, userID, r.window), country, city)
	if err != nil {
		return nil, historyError(err)
	}
	if seen {
		return nil, nil
	}

	return models.NewLocationFinding{
		Country:   country,
		City:      city,
		IPAddress: attempt.IPAddress,
	}, nil
}

// UnusualTimeRule flags a login hour far from the user's usual login hours
type UnusualTimeRule struct {
	history    LoginHistoryRepository
	window     time.Duration
	minSamples int
	multiplier float64
	circular   bool
}

// NewUnusualTimeRule creates an UnusualTimeRule
func NewUnusualTimeRule(history LoginHistoryRepository, config DetectionConfig) *UnusualTimeRule {
	return &UnusualTimeRule{
		history:    history,
		window:     config.UnusualTimeWindow,
		minSamples: config.UnusualTimeMinSamples,
		multiplier: config.UnusualTimeStdDevMultiplier,
		circular:   config.CircularHourStats,
	}
}

func (r *UnusualTimeRule) Name() string { return "unusual_time" }

func (r *UnusualTimeRule) Evaluate(ctx context.Context, attempt *models.LoginAttempt, userID uuid.UUID) (models.Finding, error) {
	timestamps, err := r.history.GetSuccessTimes(ctx, models.NewHistoryWindow(attempt, userID, r.window))
	if err != nil {
		return nil, historyError(err)
	}

	baseline, err := r.baseline(timestamps)
	if errors.Is(err, stats.ErrInsufficientData) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	hour := attempt.Timestamp.UTC().Hour()
	if !baseline.Exceeds(hour, r.multiplier) {
		return nil, nil
	}

	return models.UnusualTimeFinding{
		Hour:     hour,
		Mean:     baseline.Mean,
		StdDev:   baseline.StdDev,
		Samples:  baseline.Samples,
		Circular: baseline.Circular,
	}, nil
}

func (r *UnusualTimeRule) baseline(timestamps []time.Time) (stats.Baseline, error) {
	if r.circular {
		return stats.CircularHourBaseline(timestamps, r.minSamples)
	}
	return stats.HourBaseline(timestamps, r.minSamples)
}
