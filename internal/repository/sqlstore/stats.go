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

type statsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a repository of derived figures
func NewStatsRepository(db *sqlx.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) AttendanceStats(ctx context.Context, childID int64, since time.Time) (models.AttendanceStats, error) {
	var stats models.AttendanceStats
	query := r.db.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN a.status = 'present' THEN 1 ELSE 0 END), 0) AS present
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE a.child_id = ? AND s.start_time >= ?`)
	if err := r.db.GetContext(ctx, &stats, query, childID, dbTime(since)); err != nil {
		return models.AttendanceStats{}, classify(err, "compute attendance stats")
	}
	return stats, nil
}

func (r *statsRepository) PaymentTotals(ctx context.Context, filter models.PaymentFilter) (models.MoneyTotals, error) {
	var (
		where []string
		args  []any
	)
	if filter.ChildID != nil {
		where = append(where, "child_id = ?")
		args = append(args, *filter.ChildID)
	}
	if filter.TrainerID != nil {
		where = append(where, "trainer_id = ?")
		args = append(args, *filter.TrainerID)
	}

	query := `
		SELECT COALESCE(SUM(CASE WHEN status = 'with_trainer' THEN amount ELSE 0 END), 0) AS with_trainer,
		       COALESCE(SUM(CASE WHEN status = 'in_cashbox' THEN amount ELSE 0 END), 0) AS in_cashbox
		FROM payments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	var totals models.MoneyTotals
	if err := r.db.GetContext(ctx, &totals, r.db.Rebind(query), args...); err != nil {
		return models.MoneyTotals{}, classify(err, "compute payment totals")
	}
	return totals, nil
}

func (r *statsRepository) Rollup(ctx context.Context, from, to time.Time, by models.RollupBy) ([]*models.RollupRow, error) {
	var query string
	switch by {
	case models.RollupByBranch:
		query = `
		SELECT b.name AS name,
		       (SELECT COUNT(*) FROM sessions s JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND s.start_time >= ? AND s.start_time < ?) AS sessions,
		       (SELECT COUNT(*) FROM sessions s JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND s.type = 'training' AND s.start_time >= ? AND s.start_time < ?) AS trainings,
		       (SELECT COUNT(*) FROM sessions s JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND s.type = 'game' AND s.start_time >= ? AND s.start_time < ?) AS games,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payments p JOIN trainers t ON t.id = p.trainer_id
		         WHERE t.branch_id = b.id AND p.payment_date >= ? AND p.payment_date < ?) AS collected
		FROM branches b
		ORDER BY b.name, b.id`
	case models.RollupByTrainer:
		query = `
		SELECT t.full_name AS name,
		       (SELECT COUNT(*) FROM sessions s
		         WHERE s.trainer_id = t.id AND s.start_time >= ? AND s.start_time < ?) AS sessions,
		       (SELECT COUNT(*) FROM sessions s
		         WHERE s.trainer_id = t.id AND s.type = 'training' AND s.start_time >= ? AND s.start_time < ?) AS trainings,
		       (SELECT COUNT(*) FROM sessions s
		         WHERE s.trainer_id = t.id AND s.type = 'game' AND s.start_time >= ? AND s.start_time < ?) AS games,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payments p
		         WHERE p.trainer_id = t.id AND p.payment_date >= ? AND p.payment_date < ?) AS collected
		FROM trainers t
		ORDER BY t.full_name, t.id`
	default:
		return nil, fmt.Errorf("unknown rollup %q: %w", by, models.ErrValidation)
	}

	f, t := dbTime(from), dbTime(to)
	var rows []*models.RollupRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), f, t, f, t, f, t, f, t); err != nil {
		return nil, classify(err, "compute rollup")
	}
	return rows, nil
}

func (r *statsRepository) BranchDaily(ctx context.Context, from, to time.Time) ([]*models.BranchDay, error) {
	query := r.db.Rebind(`
		SELECT b.name AS branch_name,
		       (SELECT COUNT(*) FROM sessions s JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND s.start_time >= ? AND s.start_time < ?) AS sessions,
		       (SELECT COUNT(*) FROM attendance a
		         JOIN sessions s ON s.id = a.session_id
		         JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND a.status = 'present' AND s.start_time >= ? AND s.start_time < ?) AS present,
		       (SELECT COUNT(*) FROM attendance a
		         JOIN sessions s ON s.id = a.session_id
		         JOIN groups_table g ON g.id = s.group_id
		         WHERE g.branch_id = b.id AND s.start_time >= ? AND s.start_time < ?) AS marked,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payments p JOIN trainers t ON t.id = p.trainer_id
		         WHERE t.branch_id = b.id AND p.payment_date >= ? AND p.payment_date < ?) AS received,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payments p JOIN trainers t ON t.id = p.trainer_id
		         WHERE t.branch_id = b.id AND p.cashbox_date >= ? AND p.cashbox_date < ?) AS handed_in
		FROM branches b
		ORDER BY b.name, b.id`)

	f, t := dbTime(from), dbTime(to)
	var rows []*models.BranchDay
	if err := r.db.SelectContext(ctx, &rows, query, f, t, f, t, f, t, f, t, f, t); err != nil {
		return nil, classify(err, "compute branch daily stats")
	}
	return rows, nil
}

// DeleteImpact counts what a cascade delete of the entity would also remove.
func (r *statsRepository) DeleteImpact(ctx context.Context, kind models.EntityKind, id int64) (models.DeleteImpact, error) {
	var (
		impact                     models.DeleteImpact
		trainers, groups, children []int64
		err                        error
	)

	table := map[models.EntityKind]string{
		models.KindBranch:  "branches",
		models.KindTrainer: "trainers",
		models.KindGroup:   "groups_table",
		models.KindChild:   "children",
	}[kind]
	if table == "" {
		return impact, fmt.Errorf("unknown entity kind %q: %w", kind, models.ErrValidation)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`), id); err != nil {
		return impact, classify(err, "check entity")
	}
	if exists == 0 {
		return impact, fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
	}

	switch kind {
	case models.KindBranch:
		if trainers, err = r.ids(ctx, `SELECT id FROM trainers WHERE branch_id = ?`, id); err != nil {
			return impact, err
		}
		if groups, err = r.ids(ctx, `SELECT id FROM groups_table WHERE branch_id = ?`, id); err != nil {
			return impact, err
		}
		impact.Trainers, impact.Groups = len(trainers), len(groups)
	case models.KindTrainer:
		trainers = []int64{id}
		if groups, err = r.ids(ctx, `SELECT id FROM groups_table WHERE trainer_id = ?`, id); err != nil {
			return impact, err
		}
		impact.Groups = len(groups)
	case models.KindGroup:
		groups = []int64{id}
	case models.KindChild:
		children = []int64{id}
	}

	if kind != models.KindChild {
		if children, err = r.idsIn(ctx, `SELECT id FROM children WHERE group_id IN (?)`, orNone(groups)); err != nil {
			return impact, err
		}
		impact.Children = len(children)
	}

	sessions, err := r.idsIn(ctx, `SELECT id FROM sessions WHERE group_id IN (?) OR trainer_id IN (?)`,
		orNone(groups), orNone(trainers))
	if err != nil {
		return impact, err
	}
	impact.Sessions = len(sessions)

	if impact.Attendance, err = r.countIn(ctx, `SELECT COUNT(*) FROM attendance WHERE session_id IN (?) OR child_id IN (?)`,
		orNone(sessions), orNone(children)); err != nil {
		return impact, err
	}
	if impact.Payments, err = r.countIn(ctx, `SELECT COUNT(*) FROM payments WHERE child_id IN (?) OR trainer_id IN (?)`,
		orNone(children), orNone(trainers)); err != nil {
		return impact, err
	}

	if kind == models.KindChild {
		impact.Sessions = 0
	}
	return impact, nil
}

func (r *statsRepository) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, classify(err, "collect ids")
	}
	return ids, nil
}

func (r *statsRepository) idsIn(ctx context.Context, query string, args ...any) ([]int64, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand query: %w", err)
	}
	return r.ids(ctx, expanded, expandedArgs...)
}

func (r *statsRepository) countIn(ctx context.Context, query string, args ...any) (int, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expand query: %w", err)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(expanded), expandedArgs...); err != nil {
		return 0, classify(err, "count rows")
	}
	return n, nil
}

// orNone keeps IN clauses valid for empty sets; ids start at 1 so 0 never matches.
func orNone(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{0}
	}
	return ids
}
