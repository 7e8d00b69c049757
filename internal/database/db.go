package database

import (
	"errors"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes mapped onto model sentinels
var pgErrorCodes = map[string]error{
	"23505": models.ErrConflict,   // unique_violation
	"23503": models.ErrBadRequest, // foreign_key_violation
	"23502": models.ErrBadRequest, // not_null_violation
	"23514": models.ErrBadRequest, // check_violation
	"22P02": models.ErrBadRequest, // invalid_text_representation
}

// MapPostgresError converts driver errors into model sentinel errors.
// Unknown errors are returned unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := pgErrorCodes[pgErr.Code]; ok {
			return mapped
		}
	}

	return err
}
