package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

type attendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *sqlx.DB) repository.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Mark(ctx context.Context, sessionID, childID int64, status models.AttendanceStatus, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("unknown attendance status %q: %w", status, models.ErrValidation)
	}
	query := r.db.Rebind(`
		INSERT INTO attendance (session_id, child_id, status, marked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, child_id)
		DO UPDATE SET status = excluded.status, marked_at = excluded.marked_at`)

	if _, err := r.db.ExecContext(ctx, query, sessionID, childID, status, dbTime(at)); err != nil {
		return classify(err, "mark attendance")
	}
	return nil
}

func (r *attendanceRepository) RollCall(ctx context.Context, sessionID int64) ([]*models.RollCallEntry, error) {
	var entries []*models.RollCallEntry
	query := r.db.Rebind(`
		SELECT c.id AS child_id, c.full_name, a.status
		FROM sessions s
		JOIN children c ON c.group_id = s.group_id
		LEFT JOIN attendance a ON a.session_id = s.id AND a.child_id = c.id
		WHERE s.id = ?
		ORDER BY c.full_name, c.id`)
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, classify(err, "load roll call")
	}
	return entries, nil
}

func (r *attendanceRepository) ListByChild(ctx context.Context, childID int64, since time.Time, limit int) ([]*models.AttendanceRecord, error) {
	var records []*models.AttendanceRecord
	query := r.db.Rebind(`
		SELECT a.status, s.type AS session_type, s.start_time, g.name AS group_name
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		JOIN groups_table g ON g.id = s.group_id
		WHERE a.child_id = ? AND s.start_time >= ?
		ORDER BY s.start_time DESC, s.id DESC
		LIMIT ?`)
	if err := r.db.SelectContext(ctx, &records, query, childID, dbTime(since), limit); err != nil {
		return nil, classify(err, "list child attendance")
	}
	return records, nil
}
