package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

const groupViewSelect = `
	SELECT g.id, g.name, g.branch_id, g.trainer_id, g.created_at,
	       b.name AS branch_name,
	       t.full_name AS trainer_name,
	       (SELECT COUNT(*) FROM children c WHERE c.group_id = g.id) AS children_count
	FROM groups_table g
	JOIN branches b ON b.id = g.branch_id
	JOIN trainers t ON t.id = g.trainer_id`

type groupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *sqlx.DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

// Create inserts a group only when its trainer works in the group's branch.
func (r *groupRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query := r.db.Rebind(`
		INSERT INTO groups_table (name, branch_id, trainer_id, created_at)
		SELECT ?, t.branch_id, t.id, ?
		FROM trainers t
		WHERE t.id = ? AND t.branch_id = ?
		RETURNING id`)

	group.CreatedAt = dbTime(time.Now())
	err := r.db.QueryRowxContext(ctx, query,
		group.Name, group.CreatedAt, group.TrainerID, group.BranchID,
	).Scan(&group.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trainer %d not in branch %d: %w",
			group.TrainerID, group.BranchID, models.Invalid("This trainer works in another branch."))
	}
	if err != nil {
		return nil, classify(err, "create group")
	}
	return group, nil
}

func (r *groupRepository) GetByID(ctx context.Context, id int64) (*models.GroupView, error) {
	group := &models.GroupView{}
	if err := r.db.GetContext(ctx, group, r.db.Rebind(groupViewSelect+` WHERE g.id = ?`), id); err != nil {
		return nil, classify(err, fmt.Sprintf("get group %d", id))
	}
	return group, nil
}

func (r *groupRepository) List(ctx context.Context, filter models.GroupFilter) ([]*models.GroupView, error) {
	var (
		where []string
		args  []any
	)
	if filter.BranchID != nil {
		where = append(where, "g.branch_id = ?")
		args = append(args, *filter.BranchID)
	}
	if filter.TrainerID != nil {
		where = append(where, "g.trainer_id = ?")
		args = append(args, *filter.TrainerID)
	}

	query := groupViewSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY b.name, g.name, g.id`

	var groups []*models.GroupView
	if err := r.db.SelectContext(ctx, &groups, r.db.Rebind(query), args...); err != nil {
		return nil, classify(err, "list groups")
	}
	return groups, nil
}

// Update renames the group or hands it to another trainer of the same branch.
func (r *groupRepository) Update(ctx context.Context, id int64, patch models.GroupPatch) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}

	var set setClause
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.TrainerID != nil {
		set.add("trainer_id", *patch.TrainerID)
	}
	if set.empty() {
		return nil
	}

	query := `UPDATE groups_table SET ` + strings.Join(set.cols, ", ") + ` WHERE id = ?`
	args := append(set.args, id)
	if patch.TrainerID != nil {
		query += ` AND EXISTS (SELECT 1 FROM trainers t WHERE t.id = ? AND t.branch_id = groups_table.branch_id)`
		args = append(args, *patch.TrainerID)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return classify(err, "update group")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if patch.TrainerID != nil {
			return fmt.Errorf("update group %d, trainer %d: %w", id, *patch.TrainerID,
				models.Invalid("This trainer works in another branch."))
		}
		return fmt.Errorf("update group %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM groups_table WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete group")
	}
	return requireAffected(res, fmt.Sprintf("delete group %d", id))
}
