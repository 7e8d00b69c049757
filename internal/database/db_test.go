package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"check violation", &pgconn.PgError{Code: "23514"}, models.ErrBadRequest},
		{"wrapped not null violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23502"}), models.ErrBadRequest},
		{"unmapped code", &pgconn.PgError{Code: "40P01"}, nil},
		{"other error", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPostgresError(tt.err)
			switch {
			case tt.name == "unmapped code":
				var pgErr *pgconn.PgError
				assert.True(t, errors.As(got, &pgErr))
			case tt.expected == nil:
				assert.NoError(t, got)
			default:
				assert.ErrorIs(t, got, tt.expected)
			}
		})
	}
}
