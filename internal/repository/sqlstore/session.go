package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

const sessionViewSelect = `
	SELECT s.id, s.type, s.trainer_id, s.group_id, s.start_time, s.end_time,
	       s.latitude, s.longitude, s.status,
	       g.name AS group_name,
	       b.name AS branch_name,
	       t.full_name AS trainer_name
	FROM sessions s
	JOIN groups_table g ON g.id = s.group_id
	JOIN branches b ON b.id = g.branch_id
	JOIN trainers t ON t.id = s.trainer_id`

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	query := r.db.Rebind(`
		INSERT INTO sessions (type, trainer_id, group_id, start_time, latitude, longitude, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	session.StartTime = dbTime(session.StartTime)
	session.Status = models.SessionStarted
	err := r.db.QueryRowxContext(ctx, query,
		session.Type,
		session.TrainerID,
		session.GroupID,
		session.StartTime,
		session.Latitude,
		session.Longitude,
		session.Status,
	).Scan(&session.ID)
	if err != nil {
		return nil, classify(err, "create session")
	}
	return session, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id int64) (*models.SessionView, error) {
	session := &models.SessionView{}
	if err := r.db.GetContext(ctx, session, r.db.Rebind(sessionViewSelect+` WHERE s.id = ?`), id); err != nil {
		return nil, classify(err, fmt.Sprintf("get session %d", id))
	}
	return session, nil
}

func (r *sessionRepository) GetActiveByTrainer(ctx context.Context, trainerID int64) (*models.SessionView, error) {
	session := &models.SessionView{}
	query := r.db.Rebind(sessionViewSelect + ` WHERE s.trainer_id = ? AND s.status = ?`)
	if err := r.db.GetContext(ctx, session, query, trainerID, models.SessionStarted); err != nil {
		return nil, classify(err, fmt.Sprintf("get active session of trainer %d", trainerID))
	}
	return session, nil
}

func (r *sessionRepository) Complete(ctx context.Context, id int64, end time.Time) error {
	query := r.db.Rebind(`UPDATE sessions SET status = ?, end_time = ? WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, query, models.SessionCompleted, dbTime(end), id, models.SessionStarted)
	if err != nil {
		return classify(err, "complete session")
	}
	return requireAffected(res, fmt.Sprintf("complete session %d", id))
}

func (r *sessionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*models.SessionView, error) {
	var sessions []*models.SessionView
	query := r.db.Rebind(sessionViewSelect + ` WHERE s.start_time >= ? AND s.start_time < ? ORDER BY s.start_time, s.id`)
	if err := r.db.SelectContext(ctx, &sessions, query, dbTime(from), dbTime(to)); err != nil {
		return nil, classify(err, "list sessions")
	}
	return sessions, nil
}

func (r *sessionRepository) ListStartedBetween(ctx context.Context, from, to time.Time) ([]*models.SessionView, error) {
	var sessions []*models.SessionView
	query := r.db.Rebind(sessionViewSelect + `
		WHERE s.start_time >= ? AND s.start_time < ? AND s.status = ?
		ORDER BY s.start_time, s.id`)
	if err := r.db.SelectContext(ctx, &sessions, query, dbTime(from), dbTime(to), models.SessionStarted); err != nil {
		return nil, classify(err, "list started sessions")
	}
	return sessions, nil
}

func (r *sessionRepository) CountByTrainer(ctx context.Context, trainerID int64, from, to time.Time) (int, int, error) {
	var counts struct {
		Trainings int `db:"trainings"`
		Games     int `db:"games"`
	}
	query := r.db.Rebind(`
		SELECT COALESCE(SUM(CASE WHEN type = 'training' THEN 1 ELSE 0 END), 0) AS trainings,
		       COALESCE(SUM(CASE WHEN type = 'game' THEN 1 ELSE 0 END), 0) AS games
		FROM sessions
		WHERE trainer_id = ? AND start_time >= ? AND start_time < ?`)
	if err := r.db.GetContext(ctx, &counts, query, trainerID, dbTime(from), dbTime(to)); err != nil {
		return 0, 0, classify(err, "count trainer sessions")
	}
	return counts.Trainings, counts.Games, nil
}
