package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/database"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	loginAttemptColumns = `id, user_id, email, attempt_time, ip_address, user_agent, device_fingerprint,
		country, city, latitude, longitude, outcome, failure_reason, browser, os, device_name`

	// Successful logins by a user in [$2, $3], excluding attempt $4
	historyWindowFilter = `user_id = $1 AND outcome = 'success'
		AND attempt_time >= $2 AND attempt_time <= $3 AND id <> $4`
)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func scanLoginAttemptRow(row rowScanner) (*models.LoginAttempt, error) {
	var (
		attempt models.LoginAttempt
		outcome string
	)

	err := row.Scan(
		&attempt.ID, &attempt.UserID, &attempt.Email, &attempt.Timestamp,
		&attempt.IPAddress, &attempt.UserAgent, &attempt.DeviceFingerprint,
		&attempt.Country, &attempt.City, &attempt.Latitude, &attempt.Longitude,
		&outcome, &attempt.FailureReason, &attempt.Browser, &attempt.OS, &attempt.DeviceName,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	attempt.Outcome = models.LoginOutcome(outcome)
	return &attempt, nil
}

// RecordAttempt records a login attempt in the database
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}

	query := `
		INSERT INTO login_attempts (` + loginAttemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.Email,
		attempt.Timestamp,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.DeviceFingerprint,
		attempt.Country,
		attempt.City,
		attempt.Latitude,
		attempt.Longitude,
		string(attempt.Outcome),
		attempt.FailureReason,
		attempt.Browser,
		attempt.OS,
		attempt.DeviceName,
	)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
	}

	return nil
}

// GetPreviousSuccess returns the most recent successful login in the window, or nil
func (r *LoginAttemptRepository) GetPreviousSuccess(ctx context.Context, w models.HistoryWindow) (*models.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE ` + historyWindowFilter + `
		ORDER BY attempt_time DESC
		LIMIT 1
	`

	attempt, err := scanLoginAttemptRow(r.pool.QueryRow(ctx, query, w.UserID, w.Since, w.Until, w.ExcludeID))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous login: %w", err)
	}
	return attempt, nil
}

// HasSuccessWithFingerprint reports whether the user logged in from the device within the window
func (r *LoginAttemptRepository) HasSuccessWithFingerprint(ctx context.Context, w models.HistoryWindow, fingerprint string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM login_attempts
			WHERE ` + historyWindowFilter + ` AND device_fingerprint = $5
		)
	`

	var seen bool
	if err := r.pool.QueryRow(ctx, query, w.UserID, w.Since, w.Until, w.ExcludeID, fingerprint).Scan(&seen); err != nil {
		return false, fmt.Errorf("failed to query known devices: %w", database.MapPostgresError(err))
	}
	return seen, nil
}

// HasSuccessFromLocation reports whether the user logged in from (country, city) within
// the window. A missing city matches "".
func (r *LoginAttemptRepository) HasSuccessFromLocation(ctx context.Context, w models.HistoryWindow, country, city string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM login_attempts
			WHERE ` + historyWindowFilter + ` AND country = $5 AND COALESCE(city, '') = $6
		)
	`

	var seen bool
	if err := r.pool.QueryRow(ctx, query, w.UserID, w.Since, w.Until, w.ExcludeID, country, city).Scan(&seen); err != nil {
		return false, fmt.Errorf("failed to query known locations: %w", database.MapPostgresError(err))
	}
	return seen, nil
}

// GetSuccessTimes returns the timestamps of every successful login in the window
func (r *LoginAttemptRepository) GetSuccessTimes(ctx context.Context, w models.HistoryWindow) ([]time.Time, error) {
	query := `
		SELECT attempt_time FROM login_attempts
		WHERE ` + historyWindowFilter + `
		ORDER BY attempt_time
	`

	rows, err := r.pool.Query(ctx, query, w.UserID, w.Since, w.Until, w.ExcludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query login times: %w", database.MapPostgresError(err))
	}

	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("failed to scan login times: %w", err)
	}
	return times, nil
}

// GetFailedAttemptCountByIP returns the number of failed attempts from an IP within a time window
func (r *LoginAttemptRepository) GetFailedAttemptCountByIP(ctx context.Context, ipAddress string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND outcome IN ('failure', 'locked') AND attempt_time >= $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, ipAddress, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count failed attempts: %w", database.MapPostgresError(err))
	}
	return count, nil
}

// GetLatestAttributedAttemptByIP returns the most recent attempt of any outcome from an
// IP at or after since that names a user, or nil
func (r *LoginAttemptRepository) GetLatestAttributedAttemptByIP(ctx context.Context, ipAddress string, since time.Time) (*models.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE ip_address = $1 AND attempt_time >= $2 AND user_id IS NOT NULL
		ORDER BY attempt_time DESC
		LIMIT 1
	`

	attempt, err := scanLoginAttemptRow(r.pool.QueryRow(ctx, query, ipAddress, since))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts by ip: %w", err)
	}
	return attempt, nil
}

// DeleteAttemptsBefore removes login attempts older than cutoff
func (r *LoginAttemptRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
