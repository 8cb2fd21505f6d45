package persistence

import (
	"errors"
	"fmt"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the engine reacts to
const (
	pgLockNotAvailable = "55P03" // lock_timeout expired or NOWAIT failed
	pgUniqueViolation  = "23505"
	pgDeadlockDetected = "40P01"
)

// IsLockTimeout reports whether err is a row lock wait that ran out
func IsLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique index violation.
// gorm.ErrDuplicatedKey covers dialectors with TranslateError enabled.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// IsContention reports errors caused by a concurrent writer rather than a fault.
// The GORM logger downgrades them to Warn.
func IsContention(err error) bool {
	return IsLockTimeout(err) || IsUniqueViolation(err)
}

// translateError maps driver errors onto domain errors. onUnique is returned
// for unique violations, since only the caller knows which invariant the index backs.
func translateError(err error, onUnique *shared.DomainError) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case IsLockTimeout(err):
		return fmt.Errorf("%w: %v", shared.ErrLockTimeout, err)
	case IsUniqueViolation(err) && onUnique != nil:
		return onUnique
	default:
		return err
	}
}

// violatedConstraint returns the index name of a Postgres unique violation, "" otherwise
func violatedConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
