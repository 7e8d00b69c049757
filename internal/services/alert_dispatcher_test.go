package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDetector counts which detection path each job took
type recordingDetector struct {
	mu         sync.Mutex
	anomalies  []uuid.UUID
	bruteForce []string
	block      chan struct{}
}

func (d *recordingDetector) DetectAnomalies(ctx context.Context, attempt *models.LoginAttempt) []*models.SecurityAlert {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.anomalies = append(d.anomalies, attempt.ID)
	return nil
}

func (d *recordingDetector) DetectBruteForce(ctx context.Context, ipAddress string) *models.SecurityAlert {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bruteForce = append(d.bruteForce, ipAddress)
	return nil
}

func TestAlertDispatcher_RoutesByOutcome(t *testing.T) {
	detector := &recordingDetector{}
	dispatcher := services.NewAlertDispatcher(detector, detector, services.DispatcherConfig{Workers: 2, QueueSize: 10}, newTestLogger())
	dispatcher.Start(context.Background())

	success := attemptAt(uuid.New(), baseTime)
	failure := attemptAt(uuid.New(), baseTime, withOutcome(models.LoginOutcomeFailure), withIP("198.51.100.1"))
	locked := attemptAt(uuid.New(), baseTime, withOutcome(models.LoginOutcomeLocked), withIP("198.51.100.2"))
	mfa := attemptAt(uuid.New(), baseTime, withOutcome(models.LoginOutcomeMFARequired))

	for _, a := range []*models.LoginAttempt{success, failure, locked, mfa} {
		assert.True(t, dispatcher.Submit(a))
	}
	require.NoError(t, dispatcher.Stop(context.Background()))

	assert.Equal(t, []uuid.UUID{success.ID}, detector.anomalies)
	assert.ElementsMatch(t, []string{"198.51.100.1", "198.51.100.2"}, detector.bruteForce)
}

func TestAlertDispatcher_DropsWhenQueueFull(t *testing.T) {
	detector := &recordingDetector{}
	dispatcher := services.NewAlertDispatcher(detector, detector, services.DispatcherConfig{Workers: 1, QueueSize: 1}, newTestLogger())

	// Not started, so the single slot stays occupied
	assert.True(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
	assert.False(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
	assert.False(t, dispatcher.Submit(nil))

	require.NoError(t, dispatcher.Stop(context.Background()))
}

func TestAlertDispatcher_StopDrainsQueuedJobs(t *testing.T) {
	detector := &recordingDetector{block: make(chan struct{})}
	dispatcher := services.NewAlertDispatcher(detector, detector, services.DispatcherConfig{Workers: 1, QueueSize: 5}, newTestLogger())
	dispatcher.Start(context.Background())

	for i := 0; i < 3; i++ {
		assert.True(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
	}
	close(detector.block)
	require.NoError(t, dispatcher.Stop(context.Background()))

	assert.Len(t, detector.anomalies, 3)
	assert.False(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
}

func TestAlertDispatcher_StopHonoursDeadline(t *testing.T) {
	detector := &recordingDetector{block: make(chan struct{})}
	defer close(detector.block)

	dispatcher := services.NewAlertDispatcher(detector, detector, services.DispatcherConfig{Workers: 1, QueueSize: 5}, newTestLogger())
	dispatcher.Start(context.Background())
	require.True(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
	require.True(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()

	err := dispatcher.Stop(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, dispatcher.Submit(attemptAt(uuid.New(), baseTime)))
	assert.NoError(t, dispatcher.Stop(context.Background()), "second stop is a no-op")
}
