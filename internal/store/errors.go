package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the store distinguishes.
const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// IsPgDuplicateError checks if error is a unique constraint violation.
func IsPgDuplicateError(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

// IsPgUndefinedTableError checks if the products table is missing.
func IsPgUndefinedTableError(err error) bool {
	return pgCode(err) == pgUndefinedTable
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
