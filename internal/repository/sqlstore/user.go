package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/repository"
)

const userColumns = `id, telegram_id, username, first_name, last_name, phone, role, is_active, created_at`

type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := r.db.Rebind(`
		INSERT INTO users (telegram_id, username, first_name, last_name, phone, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	if !user.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", user.Role, models.ErrValidation)
	}
	user.CreatedAt = dbTime(time.Now())
	user.IsActive = true

	err := r.db.QueryRowxContext(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Role,
		user.IsActive,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, classify(err, "create user")
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, user, query, id); err != nil {
		return nil, classify(err, fmt.Sprintf("get user %d", id))
	}
	return user, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user := &models.User{}
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`)
	if err := r.db.GetContext(ctx, user, query, telegramID); err != nil {
		return nil, classify(err, fmt.Sprintf("get user by telegram id %d", telegramID))
	}
	return user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	var users []*models.User
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE role = ? AND is_active = ?
		ORDER BY first_name, last_name, id`)
	if err := r.db.SelectContext(ctx, &users, query, role, true); err != nil {
		return nil, classify(err, "list users by role")
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return classify(err, "delete user")
	}
	return requireAffected(res, fmt.Sprintf("delete user %d", id))
}
