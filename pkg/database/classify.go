package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ConstraintKind classifies driver errors into the small closed set the
// services care about, so no controller ever matches on raw SQLSTATE text.
type ConstraintKind int

const (
	// KindNone means the error is nil or not a recognised constraint failure.
	KindNone ConstraintKind = iota
	// KindNoRows maps sql.ErrNoRows.
	KindNoRows
	// KindUnique maps unique-constraint violations (SQLSTATE 23505).
	KindUnique
	// KindForeignKey maps foreign-key violations (SQLSTATE 23503).
	KindForeignKey
	// KindStorage covers every other driver or connectivity failure.
	KindStorage
)

// Classify maps a storage error to its ConstraintKind.
func Classify(err error) ConstraintKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNoRows
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return KindUnique
		case "23503":
			return KindForeignKey
		}
	}
	return KindStorage
}

// IsUniqueViolation reports whether err is a duplicate-key failure.
func IsUniqueViolation(err error) bool {
	return Classify(err) == KindUnique
}

// IsForeignKeyViolation reports whether err is a foreign-key failure.
func IsForeignKeyViolation(err error) bool {
	return Classify(err) == KindForeignKey
}
