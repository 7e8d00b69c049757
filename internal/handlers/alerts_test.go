package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listRequest(t *testing.T, userID, query string) *http.Request {
	req := newTestRequest(t, http.MethodGet, "/v1/users/"+userID+"/alerts"+query, nil)
	return withURLParam(req, "id", userID)
}

func TestListUserAlerts(t *testing.T) {
	userID := uuid.New()
	alert := models.NewSecurityAlert(userID, uuid.New(), models.NewLocationFinding{
		Country:   "SA",
		City:      "Jeddah",
		IPAddress: "203.0.113.7",
	}, time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC))

	lister := &mockAlertLister{alerts: []*models.SecurityAlert{alert}, total: 41}
	handler := NewAlertHandler(lister, newTestLogger())

	w := httptest.NewRecorder()
	handler.ListUserAlerts(w, listRequest(t, userID.String(), "?limit=1&offset=40"))

	var resp ListAlertsResponse
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 41, resp.Total)
	assert.Equal(t, 1, resp.Limit)
	assert.Equal(t, 40, resp.Offset)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "NEW_LOCATION", resp.Alerts[0].AlertType)
	assert.Equal(t, userID.String(), resp.Alerts[0].UserID)
	assert.Equal(t, "2026-03-01T08:15:00Z", resp.Alerts[0].CreatedAt)
	assert.Equal(t, "Jeddah", resp.Alerts[0].Metadata["city"])
}

func TestListUserAlerts_Defaults(t *testing.T) {
	lister := &mockAlertLister{}
	handler := NewAlertHandler(lister, newTestLogger())

	w := httptest.NewRecorder()
	handler.ListUserAlerts(w, listRequest(t, uuid.NewString(), ""))

	var resp ListAlertsResponse
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, defaultAlertPageSize, lister.gotLimit)
	assert.Equal(t, 0, lister.gotOffset)
	assert.NotNil(t, resp.Alerts)
	assert.Empty(t, resp.Alerts)
}

func TestListUserAlerts_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		query  string
		err    error
	}{
		{"invalid user id", "nope", "", nil},
		{"non-numeric limit", uuid.NewString(), "?limit=ten", nil},
		{"non-numeric offset", uuid.NewString(), "?offset=x", nil},
		{"rejected by service", uuid.NewString(), "?limit=500", fmt.Errorf("limit out of range: %w", models.ErrBadRequest)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAlertHandler(&mockAlertLister{err: tt.err}, newTestLogger())

			w := httptest.NewRecorder()
			handler.ListUserAlerts(w, listRequest(t, tt.userID, tt.query))

			assertJSONResponse(t, w, http.StatusBadRequest, nil)
		})
	}
}

func TestListUserAlerts_StorageError(t *testing.T) {
	handler := NewAlertHandler(&mockAlertLister{err: errors.New("connection refused")}, newTestLogger())

	w := httptest.NewRecorder()
	handler.ListUserAlerts(w, listRequest(t, uuid.NewString(), ""))

	assertJSONResponse(t, w, http.StatusInternalServerError, nil)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
