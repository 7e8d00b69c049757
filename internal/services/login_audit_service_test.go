package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	"github.com/BradenHooton/loginsentry/pkg/device"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mu        sync.Mutex
	submitted []*models.LoginAttempt
	accept    bool
}

func (m *MockSubmitter) Submit(attempt *models.LoginAttempt) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, attempt)
	return m.accept
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func TestRecordLoginAttempt_PersistsAndSubmits(t *testing.T) {
	store := services.NewMockLoginAttemptStore()
	submitter := &MockSubmitter{accept: true}
	service := services.NewLoginAuditService(store, submitter, newTestLogger())
	userID := uuid.New()

	attempt := service.RecordLoginAttempt(context.Background(), services.LoginEvent{
		UserID:         &userID,
		Email:          "user@example.com",
		Timestamp:      baseTime,
		IPAddress:      "203.0.113.10",
		UserAgent:      chromeUA,
		AcceptLanguage: "en-US",
		AcceptEncoding: "gzip",
		Country:        ptr("Saudi Arabia"),
		City:           ptr("Riyadh"),
		Outcome:        models.LoginOutcomeSuccess,
	})

	require.NotNil(t, attempt)
	assert.NotEqual(t, uuid.Nil, attempt.ID)
	assert.Equal(t, device.Fingerprint(chromeUA, "en-US", "gzip"), attempt.Fingerprint())
	assert.Len(t, attempt.Fingerprint(), 64)
	require.NotNil(t, attempt.Browser)
	assert.Equal(t, "Chrome", *attempt.Browser)
	assert.Equal(t, "Windows 10", *attempt.OS)
	assert.Equal(t, "Desktop", *attempt.DeviceName)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []*models.LoginAttempt{attempt}, submitter.submitted)
}

func TestRecordLoginAttempt_KeepsProvidedFingerprint(t *testing.T) {
	service := services.NewLoginAuditService(services.NewMockLoginAttemptStore(), &MockSubmitter{accept: true}, newTestLogger())

	attempt := service.RecordLoginAttempt(context.Background(), services.LoginEvent{
		IPAddress:         "203.0.113.10",
		UserAgent:         chromeUA,
		DeviceFingerprint: ptr("client-computed"),
		Outcome:           models.LoginOutcomeFailure,
		FailureReason:     ptr("invalid_credentials"),
	})

	require.NotNil(t, attempt)
	assert.Equal(t, "client-computed", attempt.Fingerprint())
	assert.Nil(t, attempt.UserID)
	assert.WithinDuration(t, time.Now(), attempt.Timestamp, 5*time.Second)
}

func TestRecordLoginAttempt_StorageFailureIsSwallowed(t *testing.T) {
	store := services.NewMockLoginAttemptStore()
	store.RecordErr = errors.New("connection refused")
	submitter := &MockSubmitter{accept: true}
	service := services.NewLoginAuditService(store, submitter, newTestLogger())

	var attempt *models.LoginAttempt
	assert.NotPanics(t, func() {
		attempt = service.RecordLoginAttempt(context.Background(), services.LoginEvent{
			IPAddress: "203.0.113.10",
			Outcome:   models.LoginOutcomeSuccess,
		})
	})

	assert.Nil(t, attempt)
	assert.Empty(t, submitter.submitted)
}

func TestRecordLoginAttempt_RejectsInvalidEvents(t *testing.T) {
	store := services.NewMockLoginAttemptStore()
	service := services.NewLoginAuditService(store, &MockSubmitter{accept: true}, newTestLogger())

	assert.Nil(t, service.RecordLoginAttempt(context.Background(), services.LoginEvent{IPAddress: "203.0.113.10", Outcome: "maybe"}))
	assert.Nil(t, service.RecordLoginAttempt(context.Background(), services.LoginEvent{Outcome: models.LoginOutcomeSuccess}))
	assert.Equal(t, 0, store.Len())
}

func TestRecordLoginAttempt_QueueFullStillRecords(t *testing.T) {
	store := services.NewMockLoginAttemptStore()
	service := services.NewLoginAuditService(store, &MockSubmitter{accept: false}, newTestLogger())

	attempt := service.RecordLoginAttempt(context.Background(), services.LoginEvent{
		IPAddress: "203.0.113.10",
		Outcome:   models.LoginOutcomeFailure,
	})

	assert.NotNil(t, attempt)
	assert.Equal(t, 1, store.Len())
}

func TestCleanupOldLoginAttempts(t *testing.T) {
	userID := uuid.New()
	store := services.NewMockLoginAttemptStore(
		attemptAt(userID, baseTime.AddDate(0, 0, -200)),
		attemptAt(userID, baseTime.AddDate(0, 0, -181)),
		attemptAt(userID, baseTime.AddDate(0, 0, -10)),
	)
	service := services.NewLoginAuditService(store, nil, newTestLogger())

	deleted := service.CleanupOldLoginAttempts(context.Background(), baseTime.AddDate(0, 0, -180))

	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 1, store.Len())
}
