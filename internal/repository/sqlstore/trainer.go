package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

const trainerViewSelect = `
	SELECT t.id, t.full_name, t.branch_id, t.user_id, t.created_at,
	       b.name AS branch_name,
	       (SELECT COUNT(*) FROM groups_table g WHERE g.trainer_id = t.id) AS groups_count
	FROM trainers t
	JOIN branches b ON b.id = t.branch_id`

type trainerRepository struct {
	db *sqlx.DB
}

// NewTrainerRepository creates a new trainer repository
func NewTrainerRepository(db *sqlx.DB) repository.TrainerRepository {
	return &trainerRepository{db: db}
}

func (r *trainerRepository) Create(ctx context.Context, trainer *models.Trainer) (*models.Trainer, error) {
	query := r.db.Rebind(`
		INSERT INTO trainers (full_name, branch_id, user_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	trainer.CreatedAt = dbTime(time.Now())
	err := r.db.QueryRowxContext(ctx, query,
		trainer.FullName, trainer.BranchID, trainer.UserID, trainer.CreatedAt,
	).Scan(&trainer.ID)
	if err != nil {
		return nil, classify(err, "create trainer")
	}
	return trainer, nil
}

func (r *trainerRepository) GetByID(ctx context.Context, id int64) (*models.TrainerView, error) {
	trainer := &models.TrainerView{}
	if err := r.db.GetContext(ctx, trainer, r.db.Rebind(trainerViewSelect+` WHERE t.id = ?`), id); err != nil {
		return nil, classify(err, fmt.Sprintf("get trainer %d", id))
	}
	return trainer, nil
}

func (r *trainerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Trainer, error) {
	trainer := &models.Trainer{}
	query := r.db.Rebind(`SELECT id, full_name, branch_id, user_id, created_at FROM trainers WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, trainer, query, userID); err != nil {
		return nil, classify(err, fmt.Sprintf("get trainer by user %d", userID))
	}
	return trainer, nil
}

func (r *trainerRepository) FindUnlinkedByName(ctx context.Context, fullName string) (*models.Trainer, error) {
	trainer := &models.Trainer{}
	query := r.db.Rebind(`
		SELECT id, full_name, branch_id, user_id, created_at
		FROM trainers
		WHERE full_name = ? AND user_id IS NULL
		ORDER BY id
		LIMIT 1`)
	if err := r.db.GetContext(ctx, trainer, query, fullName); err != nil {
		return nil, classify(err, fmt.Sprintf("find unlinked trainer %q", fullName))
	}
	return trainer, nil
}

func (r *trainerRepository) LinkUser(ctx context.Context, trainerID, userID int64) error {
	query := r.db.Rebind(`UPDATE trainers SET user_id = ? WHERE id = ? AND user_id IS NULL`)
	res, err := r.db.ExecContext(ctx, query, userID, trainerID)
	if err != nil {
		return classify(err, "link trainer")
	}
	return requireAffected(res, fmt.Sprintf("link trainer %d", trainerID))
}

func (r *trainerRepository) List(ctx context.Context, branchID *int64) ([]*models.TrainerView, error) {
	query := trainerViewSelect
	var args []any
	if branchID != nil {
		query += ` WHERE t.branch_id = ?`
		args = append(args, *branchID)
	}
	query += ` ORDER BY t.full_name, t.id`

	var trainers []*models.TrainerView
	if err := r.db.SelectContext(ctx, &trainers, r.db.Rebind(query), args...); err != nil {
		return nil, classify(err, "list trainers")
	}
	return trainers, nil
}

// Update changes the trainer's name or branch. Moving a trainer moves its
// groups along so the ownership chain stays consistent.
func (r *trainerRepository) Update(ctx context.Context, id int64, patch models.TrainerPatch) error {
	var set setClause
	if patch.FullName != nil {
		set.add("full_name", *patch.FullName)
	}
	if patch.BranchID != nil {
		set.add("branch_id", *patch.BranchID)
	}
	if set.empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`UPDATE trainers SET ` + strings.Join(set.cols, ", ") + ` WHERE id = ?`)
	res, err := tx.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return classify(err, "update trainer")
	}
	if err := requireAffected(res, fmt.Sprintf("update trainer %d", id)); err != nil {
		return err
	}

	if patch.BranchID != nil {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE groups_table SET branch_id = ? WHERE trainer_id = ?`),
			*patch.BranchID, id); err != nil {
			return classify(err, "move trainer groups")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trainer update: %w", err)
	}
	return nil
}

func (r *trainerRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM trainers WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete trainer")
	}
	return requireAffected(res, fmt.Sprintf("delete trainer %d", id))
}
