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

const childViewSelect = `
	SELECT c.id, c.full_name, c.parent_id, c.group_id, c.created_at,
	       g.name AS group_name,
	       b.name AS branch_name,
	       t.id AS trainer_id,
	       t.full_name AS trainer_name,
	       TRIM(u.first_name || ' ' || u.last_name) AS parent_name,
	       u.telegram_id AS parent_telegram_id
	FROM children c
	JOIN groups_table g ON g.id = c.group_id
	JOIN branches b ON b.id = g.branch_id
	JOIN trainers t ON t.id = g.trainer_id
	JOIN users u ON u.id = c.parent_id`

type childRepository struct {
	db *sqlx.DB
}

// NewChildRepository creates a new child repository
func NewChildRepository(db *sqlx.DB) repository.ChildRepository {
	return &childRepository{db: db}
}

func (r *childRepository) Create(ctx context.Context, child *models.Child) (*models.Child, error) {
	query := r.db.Rebind(`
		INSERT INTO children (full_name, parent_id, group_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	child.CreatedAt = dbTime(time.Now())
	err := r.db.QueryRowxContext(ctx, query,
		child.FullName, child.ParentID, child.GroupID, child.CreatedAt,
	).Scan(&child.ID)
	if err != nil {
		return nil, classify(err, "create child")
	}
	return child, nil
}

func (r *childRepository) GetByID(ctx context.Context, id int64) (*models.ChildView, error) {
	child := &models.ChildView{}
	if err := r.db.GetContext(ctx, child, r.db.Rebind(childViewSelect+` WHERE c.id = ?`), id); err != nil {
		return nil, classify(err, fmt.Sprintf("get child %d", id))
	}
	return child, nil
}

func (r *childRepository) List(ctx context.Context, filter models.ChildFilter) ([]*models.ChildView, error) {
	var (
		where []string
		args  []any
	)
	if filter.GroupID != nil {
		where = append(where, "c.group_id = ?")
		args = append(args, *filter.GroupID)
	}
	if filter.ParentID != nil {
		where = append(where, "c.parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.TrainerID != nil {
		where = append(where, "g.trainer_id = ?")
		args = append(args, *filter.TrainerID)
	}

	query := childViewSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY g.name, c.full_name, c.id`

	var children []*models.ChildView
	if err := r.db.SelectContext(ctx, &children, r.db.Rebind(query), args...); err != nil {
		return nil, classify(err, "list children")
	}
	return children, nil
}

func (r *childRepository) Update(ctx context.Context, id int64, patch models.ChildPatch) error {
	var set setClause
	if patch.FullName != nil {
		set.add("full_name", *patch.FullName)
	}
	if patch.ParentID != nil {
		set.add("parent_id", *patch.ParentID)
	}
	if patch.GroupID != nil {
		set.add("group_id", *patch.GroupID)
	}
	if set.empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	query := r.db.Rebind(`UPDATE children SET ` + strings.Join(set.cols, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return classify(err, "update child")
	}
	return requireAffected(res, fmt.Sprintf("update child %d", id))
}

func (r *childRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM children WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete child")
	}
	return requireAffected(res, fmt.Sprintf("delete child %d", id))
}
