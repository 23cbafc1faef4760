package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/evmarket/internal/domain"
	"gorm.io/gorm"
)

// Common database errors that can be checked using errors.Is().
var (
	// ErrNotConnected is returned when the database handle is unavailable.
	ErrNotConnected = errors.New("database not connected")

	// ErrInvalidInput is returned when invalid input is provided to a store method.
	ErrInvalidInput = errors.New("invalid input data")
)

// DBError represents a database error with additional context.
type DBError struct {
	// The underlying error that was returned by the driver or a domain sentinel.
	err error

	// Context about the operation being performed when the error occurred.
	context string
}

// NewDBError creates a new DBError with the given error and context.
func NewDBError(err error, context string) *DBError {
	return &DBError{err: err, context: context}
}

// Error returns the error message.
func (e *DBError) Error() string {
	if e.err == nil {
		return e.context
	}
	return fmt.Sprintf("%s: %v", e.context, e.err)
}

// Unwrap returns the underlying error.
func (e *DBError) Unwrap() error {
	return e.err
}

// WrapError wraps err with additional context. If err is already a DBError
// its existing context is preserved after the new one.
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) && dbErr.context != "" {
		return &DBError{err: dbErr.err, context: fmt.Sprintf("%s: %s", context, dbErr.context)}
	}
	return NewDBError(err, context)
}

// translate maps driver and gorm errors onto domain sentinels so callers
// never need to import gorm to interpret a failure.
func translate(err error, context string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewDBError(domain.ErrNotFound, context)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return NewDBError(domain.ErrConflict, context)
	default:
		return NewDBError(err, context)
	}
}

// isUniqueViolation catches drivers that do not implement gorm's error
// translator.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
