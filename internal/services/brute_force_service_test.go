package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/metrics"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attackerIP = "198.51.100.23"

func failuresFrom(userID uuid.UUID, n int, age time.Duration) []*models.LoginAttempt {
	now := time.Now()
	attempts := make([]*models.LoginAttempt, 0, n)
	for i := 0; i < n; i++ {
		attempts = append(attempts, attemptAt(userID, now.Add(-age), withIP(attackerIP), withOutcome(models.LoginOutcomeFailure)))
	}
	return attempts
}

func TestDetectBruteForce_RaisesAlertAtThreshold(t *testing.T) {
	userID := uuid.New()
	store := services.NewMockLoginAttemptStore(failuresFrom(userID, 10, time.Minute)...)
	alerts := &services.MockAlertRepository{}
	service := services.NewBruteForceService(store, alerts, services.DefaultDetectionConfig(), newTestLogger())

	alert := service.DetectBruteForce(context.Background(), attackerIP)

	require.NotNil(t, alert)
	assert.Equal(t, models.AlertTypeBruteForce, alert.AlertType)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, userID, alert.UserID)
	assert.Equal(t, "10 failed login attempts from IP 198.51.100.23 within 5 minutes", alert.Details)
	assert.Len(t, alerts.Alerts(), 1)
}

func TestDetectBruteForce_BelowThreshold(t *testing.T) {
	store := services.NewMockLoginAttemptStore(failuresFrom(uuid.New(), 9, time.Minute)...)
	alerts := &services.MockAlertRepository{}
	service := services.NewBruteForceService(store, alerts, services.DefaultDetectionConfig(), newTestLogger())

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))
	assert.Empty(t, alerts.Alerts())
}

func TestDetectBruteForce_IgnoresAttemptsOutsideWindow(t *testing.T) {
	userID := uuid.New()
	store := services.NewMockLoginAttemptStore(failuresFrom(userID, 9, time.Minute)...)
	store.Add(failuresFrom(userID, 1, 6*time.Minute)...)
	service := services.NewBruteForceService(store, &services.MockAlertRepository{}, services.DefaultDetectionConfig(), newTestLogger())

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))
}

func TestDetectBruteForce_CountsLockedOutcomes(t *testing.T) {
	userID := uuid.New()
	store := services.NewMockLoginAttemptStore(failuresFrom(userID, 9, time.Minute)...)
	store.Add(attemptAt(userID, time.Now(), withIP(attackerIP), withOutcome(models.LoginOutcomeLocked)))
	service := services.NewBruteForceService(store, &services.MockAlertRepository{}, services.DefaultDetectionConfig(), newTestLogger())

	assert.NotNil(t, service.DetectBruteForce(context.Background(), attackerIP))
}

func TestDetectBruteForce_AttributesToLatestKnownUser(t *testing.T) {
	first, latest := uuid.New(), uuid.New()
	now := time.Now()

	store := services.NewMockLoginAttemptStore(failuresFrom(first, 9, 4*time.Minute)...)
	source := attemptAt(latest, now.Add(-time.Minute), withIP(attackerIP), withOutcome(models.LoginOutcomeFailure))
	store.Add(source)
	store.Add(attemptAt(uuid.Nil, now.Add(-10*time.Second), withIP(attackerIP), withoutUser(), withOutcome(models.LoginOutcomeFailure)))
	service := services.NewBruteForceService(store, &services.MockAlertRepository{}, services.DefaultDetectionConfig(), newTestLogger())

	alert := service.DetectBruteForce(context.Background(), attackerIP)

	require.NotNil(t, alert)
	assert.Equal(t, latest, alert.UserID)
	assert.Equal(t, source.ID, alert.SourceLoginAttemptID)
	assert.Equal(t, 11, alert.Metadata["failed_attempts"])
}

func TestDetectBruteForce_NoAttributableUser(t *testing.T) {
	store := services.NewMockLoginAttemptStore()
	for i := 0; i < 12; i++ {
		store.Add(attemptAt(uuid.Nil, time.Now(), withIP(attackerIP), withoutUser(), withOutcome(models.LoginOutcomeFailure)))
	}
	alerts := &services.MockAlertRepository{}
	service := services.NewBruteForceService(store, alerts, services.DefaultDetectionConfig(), newTestLogger())

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))
	assert.Empty(t, alerts.Alerts())
}

func TestDetectBruteForce_SwallowsErrors(t *testing.T) {
	store := services.NewMockLoginAttemptStore(failuresFrom(uuid.New(), 10, time.Minute)...)
	store.CountErr = errors.New("connection reset")
	service := services.NewBruteForceService(store, &services.MockAlertRepository{}, services.DefaultDetectionConfig(), newTestLogger())

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))
	assert.Nil(t, service.DetectBruteForce(context.Background(), ""))
}

func TestDetectBruteForce_PersistenceFailure(t *testing.T) {
	store := services.NewMockLoginAttemptStore(failuresFrom(uuid.New(), 10, time.Minute)...)
	alerts := &services.MockAlertRepository{
		CreateFunc: func(ctx context.Context, alert *models.SecurityAlert) error { return errors.New("disk full") },
	}
	service := services.NewBruteForceService(store, alerts, services.DefaultDetectionConfig(), newTestLogger())

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))
}

func TestDetectBruteForce_AttributesPastAnonymousFlood(t *testing.T) {
	victim := uuid.New()
	now := time.Now()

	store := services.NewMockLoginAttemptStore()
	source := attemptAt(victim, now.Add(-4*time.Minute), withIP(attackerIP), withOutcome(models.LoginOutcomeFailure))
	store.Add(source)
	for i := 0; i < 150; i++ {
		store.Add(attemptAt(uuid.Nil, now.Add(-time.Duration(i)*time.Second), withIP(attackerIP), withoutUser(), withOutcome(models.LoginOutcomeFailure)))
	}
	service := services.NewBruteForceService(store, &services.MockAlertRepository{}, services.DefaultDetectionConfig(), newTestLogger())

	alert := service.DetectBruteForce(context.Background(), attackerIP)

	require.NotNil(t, alert)
	assert.Equal(t, victim, alert.UserID)
	assert.Equal(t, source.ID, alert.SourceLoginAttemptID)
	assert.Equal(t, 151, alert.Metadata["failed_attempts"])
}

func TestDetectBruteForce_HungQueryTimesOut(t *testing.T) {
	store := services.NewMockLoginAttemptStore(failuresFrom(uuid.New(), 10, time.Minute)...)
	store.Block = true
	alerts := &services.MockAlertRepository{}

	config := services.DefaultDetectionConfig()
	config.QueryTimeout = 50 * time.Millisecond
	service := services.NewBruteForceService(store, alerts, config, newTestLogger())

	errorsBefore := testutil.ToFloat64(metrics.DetectionErrors.WithLabelValues("brute_force"))
	start := time.Now()

	assert.Nil(t, service.DetectBruteForce(context.Background(), attackerIP))

	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, alerts.Alerts())
	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(metrics.DetectionErrors.WithLabelValues("brute_force")))
}
