package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRequest creates an HTTP request with JSON body for testing
func newTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withURLParam attaches a chi route parameter to the request
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// assertJSONResponse checks that response has correct status and decodes JSON body
func assertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if target != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response")
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockRecorder captures the events the handler builds
type mockRecorder struct {
	mu     sync.Mutex
	events []services.LoginEvent
	fail   bool
}

func (m *mockRecorder) RecordLoginAttempt(ctx context.Context, event services.LoginEvent) *models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.fail {
		return nil
	}
	return &models.LoginAttempt{ID: uuid.New(), IPAddress: event.IPAddress, Outcome: event.Outcome}
}

func (m *mockRecorder) last() services.LoginEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

// mockAlertLister serves a fixed page
type mockAlertLister struct {
	alerts []*models.SecurityAlert
	total  int
	err    error

	gotLimit, gotOffset int
}

func (m *mockAlertLister) ListUserAlerts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, int, error) {
	m.gotLimit, m.gotOffset = limit, offset
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.alerts, m.total, nil
}
