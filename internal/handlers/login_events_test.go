package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         "0b0c4b8e-8f5c-4c1e-9c53-6f1c0c9d7a10",
		"email":           "user@example.com",
		"timestamp":       "2026-03-01T08:15:00Z",
		"ip_address":      "203.0.113.7",
		"user_agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:89.0) Gecko/20100101 Firefox/89.0",
		"accept_language": "en-US",
		"accept_encoding": "gzip",
		"country":         "SA",
		"city":            "Riyadh",
		"latitude":        24.7136,
		"longitude":       46.6753,
		"outcome":         "success",
	}
}

func TestIngest_Accepted(t *testing.T) {
	recorder := &mockRecorder{}
	handler := NewLoginEventHandler(recorder, nil)

	w := httptest.NewRecorder()
	handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", validEvent()))

	var resp LoginEventResponse
	assertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.True(t, resp.Recorded)
	require.NotNil(t, resp.ID)

	event := recorder.last()
	require.NotNil(t, event.UserID)
	assert.Equal(t, "0b0c4b8e-8f5c-4c1e-9c53-6f1c0c9d7a10", event.UserID.String())
	assert.Equal(t, "203.0.113.7", event.IPAddress)
	assert.Equal(t, models.LoginOutcomeSuccess, event.Outcome)
	assert.True(t, event.Timestamp.Equal(time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)))
	require.NotNil(t, event.Latitude)
	assert.Equal(t, 24.7136, *event.Latitude)
}

func TestIngest_AnonymousFailure(t *testing.T) {
	recorder := &mockRecorder{}
	handler := NewLoginEventHandler(recorder, nil)

	body := validEvent()
	delete(body, "user_id")
	body["outcome"] = "failure"
	body["failure_reason"] = "unknown_user"

	w := httptest.NewRecorder()
	handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", body))

	assertJSONResponse(t, w, http.StatusAccepted, nil)
	assert.Nil(t, recorder.last().UserID)
	assert.Equal(t, models.LoginOutcomeFailure, recorder.last().Outcome)
}

func TestIngest_FallsBackToForwardedClientIP(t *testing.T) {
	recorder := &mockRecorder{}
	ipConfig, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	handler := NewLoginEventHandler(recorder, ipConfig)

	body := validEvent()
	delete(body, "ip_address")

	req := newTestRequest(t, http.MethodPost, "/v1/login-events", body)
	req.RemoteAddr = "10.1.2.3:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.23")

	w := httptest.NewRecorder()
	handler.Ingest(w, req)

	assertJSONResponse(t, w, http.StatusAccepted, nil)
	assert.Equal(t, "198.51.100.23", recorder.last().IPAddress)
}

func TestIngest_NormalizesMappedIPv4(t *testing.T) {
	recorder := &mockRecorder{}
	handler := NewLoginEventHandler(recorder, nil)

	body := validEvent()
	body["ip_address"] = "::ffff:203.0.113.7"

	w := httptest.NewRecorder()
	handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", body))

	assertJSONResponse(t, w, http.StatusAccepted, nil)
	assert.Equal(t, "203.0.113.7", recorder.last().IPAddress)
}

func TestIngest_StorageFailureStillAccepted(t *testing.T) {
	handler := NewLoginEventHandler(&mockRecorder{fail: true}, nil)

	w := httptest.NewRecorder()
	handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", validEvent()))

	var resp LoginEventResponse
	assertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.False(t, resp.Recorded)
	assert.Nil(t, resp.ID)
}

func TestIngest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		field  string
	}{
		{"missing outcome", func(b map[string]interface{}) { delete(b, "outcome") }, "outcome"},
		{"unknown outcome", func(b map[string]interface{}) { b["outcome"] = "maybe" }, "outcome"},
		{"bad ip", func(b map[string]interface{}) { b["ip_address"] = "999.0.0.1" }, "ip_address"},
		{"bad user id", func(b map[string]interface{}) { b["user_id"] = "not-a-uuid" }, "user_id"},
		{"latitude out of range", func(b map[string]interface{}) { b["latitude"] = 91.0 }, "latitude"},
		{"longitude without latitude", func(b map[string]interface{}) { delete(b, "latitude") }, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockRecorder{}
			handler := NewLoginEventHandler(recorder, nil)

			body := validEvent()
			tt.mutate(body)

			w := httptest.NewRecorder()
			handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", body))

			var resp pkghttp.ErrorResponse
			assertJSONResponse(t, w, http.StatusBadRequest, &resp)
			assert.Equal(t, "validation_failed", resp.Error)
			assert.Contains(t, resp.Details, tt.field)
			assert.Empty(t, recorder.events)
		})
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	handler := NewLoginEventHandler(&mockRecorder{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/login-events", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	handler.Ingest(w, req)

	assertJSONResponse(t, w, http.StatusBadRequest, nil)
}

func TestIngest_OversizedBody(t *testing.T) {
	handler := NewLoginEventHandler(&mockRecorder{}, nil)

	body := validEvent()
	body["user_agent"] = strings.Repeat("a", maxLoginEventBytes)

	w := httptest.NewRecorder()
	handler.Ingest(w, newTestRequest(t, http.MethodPost, "/v1/login-events", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
