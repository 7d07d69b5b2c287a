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

type branchRepository struct {
	db *sqlx.DB
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *sqlx.DB) repository.BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *models.Branch) (*models.Branch, error) {
	query := r.db.Rebind(`INSERT INTO branches (name, address, created_at) VALUES (?, ?, ?) RETURNING id`)

	branch.CreatedAt = dbTime(time.Now())
	if err := r.db.QueryRowxContext(ctx, query, branch.Name, branch.Address, branch.CreatedAt).Scan(&branch.ID); err != nil {
		return nil, classify(err, "create branch")
	}
	return branch, nil
}

func (r *branchRepository) GetByID(ctx context.Context, id int64) (*models.Branch, error) {
	branch := &models.Branch{}
	query := r.db.Rebind(`SELECT id, name, address, created_at FROM branches WHERE id = ?`)
	if err := r.db.GetContext(ctx, branch, query, id); err != nil {
		return nil, classify(err, fmt.Sprintf("get branch %d", id))
	}
	return branch, nil
}

func (r *branchRepository) List(ctx context.Context) ([]*models.Branch, error) {
	var branches []*models.Branch
	if err := r.db.SelectContext(ctx, &branches,
		`SELECT id, name, address, created_at FROM branches ORDER BY name, id`); err != nil {
		return nil, classify(err, "list branches")
	}
	return branches, nil
}

func (r *branchRepository) Update(ctx context.Context, id int64, patch models.BranchPatch) error {
	var set setClause
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	switch {
	case patch.ClearAddress:
		set.add("address", nil)
	case patch.Address != nil:
		set.add("address", *patch.Address)
	}
	if set.empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}

	query := r.db.Rebind(`UPDATE branches SET ` + strings.Join(set.cols, ", ") + ` WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, append(set.args, id)...)
	if err != nil {
		return classify(err, "update branch")
	}
	return requireAffected(res, fmt.Sprintf("update branch %d", id))
}

func (r *branchRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM branches WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete branch")
	}
	return requireAffected(res, fmt.Sprintf("delete branch %d", id))
}
