package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType identifies which detection produced an alert
type AlertType string

const (
	AlertTypeImpossibleTravel AlertType = "IMPOSSIBLE_TRAVEL"
	AlertTypeNewDevice        AlertType = "NEW_DEVICE"
	AlertTypeNewLocation      AlertType = "NEW_LOCATION"
	AlertTypeUnusualTime      AlertType = "UNUSUAL_TIME"
	AlertTypeBruteForce       AlertType = "BRUTE_FORCE"
)

// ParseAlertType converts a stored alert type back into an AlertType
func ParseAlertType(s string) (AlertType, error) {
	switch t := AlertType(s); t {
	case AlertTypeImpossibleTravel, AlertTypeNewDevice, AlertTypeNewLocation, AlertTypeUnusualTime, AlertTypeBruteForce:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAlertType, s)
}

// Severity classifies how urgent an alert is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity converts a stored severity back into a Severity
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Finding is the closed set of detection results. Each variant fixes its own
// type, severity and human-readable details; the unexported marker keeps the
// set closed to this package.
type Finding interface {
	Type() AlertType
	Severity() Severity
	Details() string
	Metadata() AlertMetadata
	finding()
}

// ImpossibleTravelFinding is raised when two successful logins are too far apart
// for the time between them
type ImpossibleTravelFinding struct {
	PreviousAttemptID uuid.UUID
	FromCountry       string
	FromCity          string
	ToCountry         string
	ToCity            string
	DistanceKm        float64
	ElapsedMinutes    int
}

func (ImpossibleTravelFinding) Type() AlertType    { return AlertTypeImpossibleTravel }
func (ImpossibleTravelFinding) Severity() Severity { return SeverityCritical }
func (ImpossibleTravelFinding) finding()           {}

func (f ImpossibleTravelFinding) Details() string {
	return fmt.Sprintf("Login from %s is %.0f km from previous login in %s %d minutes earlier",
		FormatLocation(f.ToCountry, f.ToCity), f.DistanceKm, FormatLocation(f.FromCountry, f.FromCity), f.ElapsedMinutes)
}

func (f ImpossibleTravelFinding) Metadata() AlertMetadata {
	return AlertMetadata{
		"previous_attempt_id": f.PreviousAttemptID.String(),
		"distance_km":         f.DistanceKm,
		"elapsed_minutes":     f.ElapsedMinutes,
	}
}

// NewDeviceFinding is raised when a device fingerprint has not been seen recently
type NewDeviceFinding struct {
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

func (NewDeviceFinding) Type() AlertType    { return AlertTypeNewDevice }
func (NewDeviceFinding) Severity() Severity { return SeverityMedium }
func (NewDeviceFinding) finding()           {}

func (f NewDeviceFinding) Details() string {
	return fmt.Sprintf("Login from new device (IP: %s, User-Agent: %s)", f.IPAddress, f.UserAgent)
}

func (f NewDeviceFinding) Metadata() AlertMetadata {
	return AlertMetadata{"device_fingerprint": f.Fingerprint, "ip_address": f.IPAddress}
}

// NewLocationFinding is raised when a (country, city) pair has not been seen recently
type NewLocationFinding struct {
	Country   string
	City      string
	IPAddress string
}

func (NewLocationFinding) Type() AlertType    { return AlertTypeNewLocation }
func (NewLocationFinding) Severity() Severity { return SeverityMedium }
func (NewLocationFinding) finding()           {}

func (f NewLocationFinding) Details() string {
	return fmt.Sprintf("Login from new location: %s (IP: %s)", FormatLocation(f.Country, f.City), f.IPAddress)
}

func (f NewLocationFinding) Metadata() AlertMetadata {
	return AlertMetadata{"country": f.Country, "city": f.City, "ip_address": f.IPAddress}
}

// UnusualTimeFinding is raised when the login hour deviates from the user's baseline
type UnusualTimeFinding struct {
	Hour     int
	Mean     float64
	StdDev   float64
	Samples  int
	Circular bool
}

func (UnusualTimeFinding) Type() AlertType    { return AlertTypeUnusualTime }
func (UnusualTimeFinding) Severity() Severity { return SeverityLow }
func (UnusualTimeFinding) finding()           {}

func (f UnusualTimeFinding) Details() string {
	return fmt.Sprintf("Login at %02d:00 UTC is outside usual login hours (mean %.1f, stddev %.1f)",
		f.Hour, f.Mean, f.StdDev)
}

func (f UnusualTimeFinding) Metadata() AlertMetadata {
	return AlertMetadata{
		"hour":     f.Hour,
		"mean":     f.Mean,
		"stddev":   f.StdDev,
		"samples":  f.Samples,
		"circular": f.Circular,
	}
}

// BruteForceFinding is raised when one IP accumulates too many failed attempts
type BruteForceFinding struct {
	IPAddress      string
	FailedAttempts int
	Window         time.Duration
}

func (BruteForceFinding) Type() AlertType    { return AlertTypeBruteForce }
func (BruteForceFinding) Severity() Severity { return SeverityHigh }
func (BruteForceFinding) finding()           {}

func (f BruteForceFinding) Details() string {
	return fmt.Sprintf("%d failed login attempts from IP %s within %d minutes",
		f.FailedAttempts, f.IPAddress, int(f.Window.Minutes()))
}

func (f BruteForceFinding) Metadata() AlertMetadata {
	return AlertMetadata{
		"ip_address":      f.IPAddress,
		"failed_attempts": f.FailedAttempts,
		"window_minutes":  int(f.Window.Minutes()),
	}
}

// SecurityAlert is a durable, classified record of a detected anomaly
type SecurityAlert struct {
	ID                   uuid.UUID     `db:"id"`
	UserID               uuid.UUID     `db:"user_id"`
	AlertType            AlertType     `db:"alert_type"`
	Severity             Severity      `db:"severity"`
	Details              string        `db:"details"`
	SourceLoginAttemptID uuid.UUID     `db:"source_login_attempt_id"`
	Metadata             AlertMetadata `db:"metadata"`
	CreatedAt            time.Time     `db:"created_at"`
	Resolved             bool          `db:"resolved"`
}

// NewSecurityAlert builds an unresolved alert for userID from a finding
func NewSecurityAlert(userID, sourceAttemptID uuid.UUID, f Finding, now time.Time) *SecurityAlert {
	return &SecurityAlert{
		ID:                   uuid.New(),
		UserID:               userID,
		AlertType:            f.Type(),
		Severity:             f.Severity(),
		Details:              f.Details(),
		SourceLoginAttemptID: sourceAttemptID,
		Metadata:             f.Metadata(),
		CreatedAt:            now.UTC(),
	}
}

// FormatLocation renders a country/city pair for alert details
func FormatLocation(country, city string) string {
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case country != "":
		return country
	case city != "":
		return city
	}
	return "unknown location"
}

// AlertMetadata holds the raw numbers behind an alert
type AlertMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AlertMetadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*am = make(AlertMetadata)
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*am = AlertMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AlertMetadata) Value() (driver.Value, error) {
	if am == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(am))
}
