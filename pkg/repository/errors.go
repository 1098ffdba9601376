package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL class 23 integrity violation for duplicate keys.
const uniqueViolation = "23505"

// MapError translates storage-level errors into the domain errors supplied
// by the caller: sql.ErrNoRows becomes notFound, a unique constraint
// violation becomes duplicate. Anything else passes through unchanged.
func MapError(err, notFound, duplicate error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return duplicate
	}

	return err
}
