package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
)

// MockLoginAttemptStore is an in-memory login attempt store for testing.
// It satisfies LoginHistoryRepository, FailedAttemptRepository and LoginAttemptRepository.
type MockLoginAttemptStore struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt

	// HistoryErrFunc, when set, can fail a history read based on its lower bound
	HistoryErrFunc func(since time.Time) error
	CountErr       error
	RecordErr      error
	// Block makes every read wait for its context to end, like a hung query
	Block bool
}

func NewMockLoginAttemptStore(attempts ...*models.LoginAttempt) *MockLoginAttemptStore {
	return &MockLoginAttemptStore{attempts: attempts}
}

func (m *MockLoginAttemptStore) Add(attempts ...*models.LoginAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempts...)
}

func (m *MockLoginAttemptStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func (m *MockLoginAttemptStore) wait(ctx context.Context) error {
	if !m.Block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

// window returns the attempts in w, newest first
func (m *MockLoginAttemptStore) window(ctx context.Context, w models.HistoryWindow) ([]*models.LoginAttempt, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.HistoryErrFunc != nil {
		if err := m.HistoryErrFunc(w.Since); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.LoginAttempt
	for _, a := range m.attempts {
		if w.Contains(a) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return result, nil
}

func (m *MockLoginAttemptStore) GetPreviousSuccess(ctx context.Context, w models.HistoryWindow) (*models.LoginAttempt, error) {
	attempts, err := m.window(ctx, w)
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	return attempts[0], nil
}

func (m *MockLoginAttemptStore) HasSuccessWithFingerprint(ctx context.Context, w models.HistoryWindow, fingerprint string) (bool, error) {
	attempts, err := m.window(ctx, w)
	if err != nil {
		return false, err
	}
	for _, a := range attempts {
		if a.Fingerprint() == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLoginAttemptStore) HasSuccessFromLocation(ctx context.Context, w models.HistoryWindow, country, city string) (bool, error) {
	attempts, err := m.window(ctx, w)
	if err != nil {
		return false, err
	}
	for _, a := range attempts {
		if c, ci, ok := a.Location(); ok && c == country && ci == city {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockLoginAttemptStore) GetSuccessTimes(ctx context.Context, w models.HistoryWindow) ([]time.Time, error) {
	attempts, err := m.window(ctx, w)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(attempts))
	for i, a := range attempts {
		times[i] = a.Timestamp
	}
	return times, nil
}

func (m *MockLoginAttemptStore) GetFailedAttemptCountByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	if m.CountErr != nil {
		return 0, m.CountErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.attempts {
		if a.IPAddress == ipAddress && a.Outcome.IsFailure() && !a.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MockLoginAttemptStore) GetLatestAttributedAttemptByIP(ctx context.Context, ipAddress string, since time.Time) (*models.LoginAttempt, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.LoginAttempt
	for _, a := range m.attempts {
		if a.IPAddress != ipAddress || a.UserID == nil || a.Timestamp.Before(since) {
			continue
		}
		if latest == nil || a.Timestamp.After(latest.Timestamp) {
			latest = a
		}
	}
	return latest, nil
}

func (m *MockLoginAttemptStore) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Add(attempt)
	return nil
}

func (m *MockLoginAttemptStore) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[:0]
	var deleted int64
	for _, a := range m.attempts {
		if a.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	m.attempts = kept
	return deleted, nil
}

// MockAlertRepository is an in-memory alert store for testing
type MockAlertRepository struct {
	mu     sync.Mutex
	alerts []*models.SecurityAlert

	CreateFunc func(ctx context.Context, alert *models.SecurityAlert) error
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *models.SecurityAlert) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, alert); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *MockAlertRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.SecurityAlert
	for _, a := range m.alerts {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return []*models.SecurityAlert{}, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockAlertRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.alerts {
		if a.UserID == userID {
			count++
		}
	}
	return count, nil
}

// Alerts returns a snapshot of the stored alerts
func (m *MockAlertRepository) Alerts() []*models.SecurityAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SecurityAlert(nil), m.alerts...)
}
