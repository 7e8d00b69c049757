package models

import (
	"time"

	"github.com/BradenHooton/loginsentry/pkg/geo"
	"github.com/google/uuid"
)

// LoginOutcome is the result of an authentication attempt as reported by the auth subsystem
type LoginOutcome string

const (
	LoginOutcomeSuccess     LoginOutcome = "success"
	LoginOutcomeFailure     LoginOutcome = "failure"
	LoginOutcomeMFARequired LoginOutcome = "mfa_required"
	LoginOutcomeLocked      LoginOutcome = "locked"
)

// IsFailure reports whether the outcome counts towards brute-force volume
func (o LoginOutcome) IsFailure() bool {
	return o == LoginOutcomeFailure || o == LoginOutcomeLocked
}

// Valid reports whether o is one of the known outcomes
func (o LoginOutcome) Valid() bool {
	switch o {
	case LoginOutcomeSuccess, LoginOutcomeFailure, LoginOutcomeMFARequired, LoginOutcomeLocked:
		return true
	}
	return false
}

// LoginAttempt represents a single recorded login attempt
type LoginAttempt struct {
	ID                uuid.UUID    `db:"id"`
	UserID            *uuid.UUID   `db:"user_id"`
	Email             string       `db:"email"`
	Timestamp         time.Time    `db:"attempt_time"`
	IPAddress         string       `db:"ip_address"`
	UserAgent         string       `db:"user_agent"`
	DeviceFingerprint *string      `db:"device_fingerprint"`
	Country           *string      `db:"country"`
	City              *string      `db:"city"`
	Latitude          *float64     `db:"latitude"`
	Longitude         *float64     `db:"longitude"`
	Outcome           LoginOutcome `db:"outcome"`
	FailureReason     *string      `db:"failure_reason"`
	Browser           *string      `db:"browser"`
	OS                *string      `db:"os"`
	DeviceName        *string      `db:"device_name"`
}

// IsSuccess reports whether the attempt authenticated successfully
func (a *LoginAttempt) IsSuccess() bool {
	return a.Outcome == LoginOutcomeSuccess
}

// Coordinates returns the attempt's location if both coordinates are present,
// finite and within range
func (a *LoginAttempt) Coordinates() (geo.Coordinate, bool) {
	return geo.NewCoordinate(a.Latitude, a.Longitude)
}

// Fingerprint returns the device fingerprint, or "" when absent
func (a *LoginAttempt) Fingerprint() string {
	if a.DeviceFingerprint == nil {
		return ""
	}
	return *a.DeviceFingerprint
}

// Location returns the (country, city) pair. ok is false when no country is known.
func (a *LoginAttempt) Location() (country, city string, ok bool) {
	if a.Country == nil || *a.Country == "" {
		return "", "", false
	}
	if a.City != nil {
		city = *a.City
	}
	return *a.Country, city, true
}

// HistoryWindow selects a user's successful logins in [Since, Until] other than
// the attempt being evaluated
type HistoryWindow struct {
	UserID    uuid.UUID
	ExcludeID uuid.UUID
	Since     time.Time
	Until     time.Time
}

// NewHistoryWindow builds the window of length window ending at attempt
func NewHistoryWindow(attempt *LoginAttempt, userID uuid.UUID, window time.Duration) HistoryWindow {
	return HistoryWindow{
		UserID:    userID,
		ExcludeID: attempt.ID,
		Since:     attempt.Timestamp.Add(-window),
		Until:     attempt.Timestamp,
	}
}

// Contains reports whether a falls inside the window
func (w HistoryWindow) Contains(a *LoginAttempt) bool {
	return a.UserID != nil && *a.UserID == w.UserID &&
		a.ID != w.ExcludeID &&
		a.IsSuccess() &&
		!a.Timestamp.Before(w.Since) && !a.Timestamp.After(w.Until)
}
