package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/memoryd/engine/internal/errs"
)

// isTransient reports whether err looks like a SQLITE_BUSY/SQLITE_LOCKED
// condition worth retrying. modernc.org/sqlite surfaces these as plain
// errors whose message names the SQLite result code, so this matches
// on text rather than a typed sentinel modernc.org/sqlite doesn't
// export.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// wrapDBError maps a raw database/sql error to the engine's error
// taxonomy: sql.ErrNoRows to NotFound, a UNIQUE constraint violation to
// Conflict, anything else to a wrapped Storage error. kind/id name the
// entity for the NotFound case.
func wrapDBError(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(kind, id)
	}
	if isUniqueConstraint(err) {
		return errs.Conflict(op + ": duplicate " + kind + " " + id)
	}
	return errs.Storage(op, err)
}

func isUniqueConstraint(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
