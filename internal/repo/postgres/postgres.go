// Package postgres implements the persistence layer on pgx. Default-scope
// filters (active users, non-secret tours) are explicit SQL fragments
// composed per query rather than hidden hook state, so every read's scope
// is visible at the call site.
package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const queryTimeout = 3 * time.Second

// isUniqueViolation reports a Postgres duplicate-key failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
