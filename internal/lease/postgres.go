package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker implements Locker on the scheduler_locks table
type PostgresLocker struct {
	pool  *pgxpool.Pool
	owner string
}

// NewPostgresLocker creates a locker that records owner as the lock holder
func NewPostgresLocker(pool *pgxpool.Pool, owner string) *PostgresLocker {
	return &PostgresLocker{pool: pool, owner: owner}
}

func (l *PostgresLocker) Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (Lease, bool, error) {
	// The conflict update only fires once the previous holder's lock has run out
	query := `
		INSERT INTO scheduler_locks (name, locked_until, locked_at, locked_by)
		VALUES ($1, NOW() + $2::double precision * INTERVAL '1 millisecond', NOW(), $3)
		ON CONFLICT (name) DO UPDATE
		SET locked_until = EXCLUDED.locked_until,
		    locked_at = EXCLUDED.locked_at,
		    locked_by = EXCLUDED.locked_by
		WHERE scheduler_locks.locked_until <= NOW()
		RETURNING locked_at
	`

	var lockedAt time.Time
	err := l.pool.QueryRow(ctx, query, name, float64(maxHold.Milliseconds()), l.owner).Scan(&lockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres lease acquire failed: %w", err)
	}

	return &postgresLease{
		pool:     l.pool,
		name:     name,
		owner:    l.owner,
		lockedAt: lockedAt,
		minHold:  minHold,
	}, true, nil
}

type postgresLease struct {
	pool     *pgxpool.Pool
	name     string
	owner    string
	lockedAt time.Time
	minHold  time.Duration
}

func (l *postgresLease) Release(ctx context.Context) error {
	query := `
		UPDATE scheduler_locks
		SET locked_until = GREATEST(locked_at + $4::double precision * INTERVAL '1 millisecond', NOW())
		WHERE name = $1 AND locked_by = $2 AND locked_at = $3
	`

	tag, err := l.pool.Exec(ctx, query, l.name, l.owner, l.lockedAt, float64(l.minHold.Milliseconds()))
	if err != nil {
		return fmt.Errorf("postgres lease release failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrLeaseNotHeld
	}
	return nil
}
