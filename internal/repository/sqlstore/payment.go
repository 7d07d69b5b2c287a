package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

const paymentViewSelect = `
	SELECT p.id, p.child_id, p.trainer_id, p.amount, p.status, p.payment_date,
	       p.cashbox_date, p.month_year,
	       c.full_name AS child_name,
	       t.full_name AS trainer_name
	FROM payments p
	JOIN children c ON c.id = p.child_id
	JOIN trainers t ON t.id = p.trainer_id`

type paymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB) repository.PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if !payment.Amount.IsPositive() {
		return nil, models.Invalid("The amount must be greater than zero.")
	}
	if _, err := models.ParseMonthYear(payment.MonthYear); err != nil {
		return nil, err
	}

	query := r.db.Rebind(`
		INSERT INTO payments (child_id, trainer_id, amount, status, payment_date, month_year)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	payment.Status = models.PaymentWithTrainer
	payment.PaymentDate = dbTime(payment.PaymentDate)
	payment.CashboxDate = nil
	err := r.db.QueryRowxContext(ctx, query,
		payment.ChildID,
		payment.TrainerID,
		payment.Amount,
		payment.Status,
		payment.PaymentDate,
		payment.MonthYear,
	).Scan(&payment.ID)
	if err != nil {
		return nil, classify(err, "create payment")
	}
	return payment, nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*models.PaymentView, error) {
	payment := &models.PaymentView{}
	if err := r.db.GetContext(ctx, payment, r.db.Rebind(paymentViewSelect+` WHERE p.id = ?`), id); err != nil {
		return nil, classify(err, fmt.Sprintf("get payment %d", id))
	}
	return payment, nil
}

func (r *paymentRepository) ListByChild(ctx context.Context, childID int64, limit int) ([]*models.PaymentView, error) {
	var payments []*models.PaymentView
	query := r.db.Rebind(paymentViewSelect + ` WHERE p.child_id = ? ORDER BY p.payment_date DESC, p.id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &payments, query, childID, limit); err != nil {
		return nil, classify(err, "list child payments")
	}
	return payments, nil
}

func (r *paymentRepository) ListWithTrainer(ctx context.Context, trainerID int64) ([]*models.PaymentView, error) {
	var payments []*models.PaymentView
	query := r.db.Rebind(paymentViewSelect + ` WHERE p.trainer_id = ? AND p.status = ? ORDER BY p.payment_date, p.id`)
	if err := r.db.SelectContext(ctx, &payments, query, trainerID, models.PaymentWithTrainer); err != nil {
		return nil, classify(err, "list trainer payments")
	}
	return payments, nil
}

func (r *paymentRepository) PendingByTrainer(ctx context.Context) ([]*models.TrainerCash, error) {
	var cash []*models.TrainerCash
	query := r.db.Rebind(`
		SELECT t.id AS trainer_id, t.full_name AS trainer_name,
		       COUNT(p.id) AS payments, COALESCE(SUM(p.amount), 0) AS total
		FROM payments p
		JOIN trainers t ON t.id = p.trainer_id
		WHERE p.status = ?
		GROUP BY t.id, t.full_name
		ORDER BY t.full_name, t.id`)
	if err := r.db.SelectContext(ctx, &cash, query, models.PaymentWithTrainer); err != nil {
		return nil, classify(err, "list pending cash")
	}
	return cash, nil
}

func (r *paymentRepository) MoveToCashbox(ctx context.Context, trainerID int64, at time.Time) (int, decimal.Decimal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pending struct {
		Count int             `db:"payments"`
		Total decimal.Decimal `db:"total"`
	}
	query := tx.Rebind(`
		SELECT COUNT(*) AS payments, COALESCE(SUM(amount), 0) AS total
		FROM payments
		WHERE trainer_id = ? AND status = ?`)
	if err := tx.GetContext(ctx, &pending, query, trainerID, models.PaymentWithTrainer); err != nil {
		return 0, decimal.Zero, classify(err, "sum trainer cash")
	}
	if pending.Count == 0 {
		return 0, decimal.Zero, nil
	}

	update := tx.Rebind(`UPDATE payments SET status = ?, cashbox_date = ? WHERE trainer_id = ? AND status = ?`)
	if _, err := tx.ExecContext(ctx, update,
		models.PaymentInCashbox, dbTime(at), trainerID, models.PaymentWithTrainer); err != nil {
		return 0, decimal.Zero, classify(err, "move cash to cashbox")
	}

	if err := tx.Commit(); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to commit cashbox move: %w", err)
	}
	return pending.Count, pending.Total, nil
}
