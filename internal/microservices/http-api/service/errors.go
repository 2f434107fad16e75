package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failure")
	ErrForbidden   = errors.New("forbidden")
)

// postgres SQLSTATE codes that mean the input referenced something invalid
const (
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// classifyWriteErr maps a storage error from a write onto the service taxonomy.
func classifyWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, ErrValidation, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
}

// classifyReadErr maps a storage error from a lookup onto the service taxonomy.
func classifyReadErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPersistence, err)
}
