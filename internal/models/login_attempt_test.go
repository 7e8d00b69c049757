package models

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestLoginOutcome(t *testing.T) {
	tests := []struct {
		outcome LoginOutcome
		valid   bool
		failure bool
	}{
		{LoginOutcomeSuccess, true, false},
		{LoginOutcomeFailure, true, true},
		{LoginOutcomeLocked, true, true},
		{LoginOutcomeMFARequired, true, false},
		{LoginOutcome("SUCCESS"), false, false},
		{LoginOutcome(""), false, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.outcome.Valid(), string(tt.outcome))
		assert.Equal(t, tt.failure, tt.outcome.IsFailure(), string(tt.outcome))
	}
}

func TestLoginAttempt_Coordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  *float64
		lon  *float64
		ok   bool
	}{
		{"both present", ptr(24.7136), ptr(46.6753), true},
		{"missing longitude", ptr(24.7136), nil, false},
		{"latitude out of range", ptr(91.0), ptr(0.0), false},
		{"longitude out of range", ptr(0.0), ptr(-181.0), false},
		{"nan", ptr(math.NaN()), ptr(0.0), false},
		{"infinite", ptr(0.0), ptr(math.Inf(1)), false},
		{"null island", ptr(0.0), ptr(0.0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &LoginAttempt{Latitude: tt.lat, Longitude: tt.lon}
			_, ok := a.Coordinates()
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLoginAttempt_Location(t *testing.T) {
	_, _, ok := (&LoginAttempt{City: ptr("Riyadh")}).Location()
	assert.False(t, ok)

	_, _, ok = (&LoginAttempt{Country: ptr("")}).Location()
	assert.False(t, ok)

	country, city, ok := (&LoginAttempt{Country: ptr("SA")}).Location()
	assert.True(t, ok)
	assert.Equal(t, "SA", country)
	assert.Empty(t, city)

	assert.Empty(t, (&LoginAttempt{}).Fingerprint())
	assert.Equal(t, "fp", (&LoginAttempt{DeviceFingerprint: ptr("fp")}).Fingerprint())
}

func TestHistoryWindow_Contains(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := &LoginAttempt{ID: uuid.New(), UserID: &userID, Timestamp: at, Outcome: LoginOutcomeSuccess}
	w := NewHistoryWindow(current, userID, time.Hour)

	success := func(ts time.Time) *LoginAttempt {
		return &LoginAttempt{ID: uuid.New(), UserID: &userID, Timestamp: ts, Outcome: LoginOutcomeSuccess}
	}
	other := uuid.New()

	tests := []struct {
		name    string
		attempt *LoginAttempt
		want    bool
	}{
		{"inside", success(at.Add(-30 * time.Minute)), true},
		{"lower bound inclusive", success(at.Add(-time.Hour)), true},
		{"upper bound inclusive", success(at), true},
		{"before window", success(at.Add(-time.Hour - time.Second)), false},
		{"after evaluated attempt", success(at.Add(time.Second)), false},
		{"evaluated attempt itself", current, false},
		{"failure", &LoginAttempt{ID: uuid.New(), UserID: &userID, Timestamp: at, Outcome: LoginOutcomeFailure}, false},
		{"other user", &LoginAttempt{ID: uuid.New(), UserID: &other, Timestamp: at, Outcome: LoginOutcomeSuccess}, false},
		{"anonymous", &LoginAttempt{ID: uuid.New(), Timestamp: at, Outcome: LoginOutcomeSuccess}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.attempt))
		})
	}
}
