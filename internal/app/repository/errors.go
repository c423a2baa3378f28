package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound signals that no link matched the given id or key within
	// the caller's authorization scope.
	ErrNotFound = errors.New("link not found")
	// ErrAlreadyExists signals a uniqueness violation on create, or a
	// conflicting share-state transition (sharing a shared link, unsharing
	// an unshared one).
	ErrAlreadyExists = errors.New("link already exists")
	// ErrDataInvalid signals that the link exists but is in a state the
	// request is incompatible with, such as reading the key of an unshared
	// link.
	ErrDataInvalid = errors.New("link state is invalid for this operation")
)

// IsDomainError reports whether err is one of the expected, recoverable
// repository errors as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrDataInvalid)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// SQLite used by the test suite reports constraint names in the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isSerializationFailure matches Postgres errors that abort a serializable
// transaction because of a concurrent conflicting one. Those are safe to
// retry as a whole unit.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
