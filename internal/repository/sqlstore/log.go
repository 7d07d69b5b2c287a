package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

type logRepository struct {
	db *sqlx.DB
}

// NewLogRepository creates a new audit log repository
func NewLogRepository(db *sqlx.DB) repository.LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Append(ctx context.Context, entry *models.LogEntry) error {
	query := r.db.Rebind(`
		INSERT INTO logs (user_id, action, details, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	entry.CreatedAt = dbTime(time.Now())
	if err := r.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.Action, entry.Details, entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return classify(err, "append log entry")
	}
	return nil
}
