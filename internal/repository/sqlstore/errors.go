// Package sqlstore implements the repositories on top of sqlx. Queries are
// written with '?' placeholders and rebound for the connected driver, so the
// same code serves PostgreSQL and SQLite.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/Kerhoff/academybot/internal/models"
)

// classify wraps a driver error, translating missing rows and constraint
// violations into the models sentinels.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, models.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, models.ErrInvalidReference)
		case "23514", "23502":
			return fmt.Errorf("%s: %w", op, models.ErrValidation)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", op, models.ErrConflict)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", op, models.ErrInvalidReference)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%s: %w", op, models.ErrValidation)
		}
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

// requireAffected turns a zero-row update or delete into ErrNotFound
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

// dbTime normalises a timestamp before it is written or compared. Times are
// stored in UTC with second precision so SQLite's textual timestamps order
// correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// setClause accumulates "column = ?" pairs for partial updates
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, v any) {
	s.cols = append(s.cols, col+" = ?")
	s.args = append(s.args, v)
}

func (s *setClause) empty() bool { return len(s.cols) == 0 }
