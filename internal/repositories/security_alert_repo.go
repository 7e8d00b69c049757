package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/database"
	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const securityAlertColumns = `id, user_id, alert_type, severity, details, source_login_attempt_id, metadata, created_at, resolved`

// SecurityAlertRepository handles security alert data access
type SecurityAlertRepository struct {
	pool *pgxpool.Pool
}

// NewSecurityAlertRepository creates a new SecurityAlertRepository
func NewSecurityAlertRepository(db *database.DB) *SecurityAlertRepository {
	return &SecurityAlertRepository{pool: db.Pool}
}

func scanSecurityAlertRow(row rowScanner) (*models.SecurityAlert, error) {
	var (
		alert     models.SecurityAlert
		alertType string
		severity  string
	)

	err := row.Scan(
		&alert.ID, &alert.UserID, &alertType, &severity, &alert.Details,
		&alert.SourceLoginAttemptID, &alert.Metadata, &alert.CreatedAt, &alert.Resolved,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if alert.AlertType, err = models.ParseAlertType(alertType); err != nil {
		return nil, err
	}
	if alert.Severity, err = models.ParseSeverity(severity); err != nil {
		return nil, err
	}

	return &alert, nil
}

func scanSecurityAlertRows(rows pgx.Rows) ([]*models.SecurityAlert, error) {
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		alert, err := scanSecurityAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security alert rows: %w", err)
	}

	return alerts, nil
}

// Create inserts a new alert
func (r *SecurityAlertRepository) Create(ctx context.Context, alert *models.SecurityAlert) error {
	query := `
		INSERT INTO security_alerts (` + securityAlertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		alert.ID,
		alert.UserID,
		string(alert.AlertType),
		string(alert.Severity),
		alert.Details,
		alert.SourceLoginAttemptID,
		alert.Metadata,
		alert.CreatedAt,
		alert.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to create security alert: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListByUser returns a page of a user's alerts, newest first
func (r *SecurityAlertRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, error) {
	query := `
		SELECT ` + securityAlertColumns + `
		FROM security_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list security alerts: %w", err)
	}

	return scanSecurityAlertRows(rows)
}

// CountByUser returns the total number of alerts for a user
func (r *SecurityAlertRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM security_alerts WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count security alerts: %w", err)
	}
	return count, nil
}

// DeleteResolvedBefore removes resolved alerts created before cutoff. Unresolved alerts are never deleted.
func (r *SecurityAlertRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM security_alerts WHERE resolved = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolved security alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}
