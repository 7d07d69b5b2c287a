package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/models"
)

// Lookups of a missing id return models.ErrNotFound. Writes that reference a
// missing row return models.ErrInvalidReference.

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	Delete(ctx context.Context, id int64) error
}

// BranchRepository defines the interface for branch data operations
type BranchRepository interface {
	Create(ctx context.Context, branch *models.Branch) (*models.Branch, error)
	GetByID(ctx context.Context, id int64) (*models.Branch, error)
	List(ctx context.Context) ([]*models.Branch, error)
	Update(ctx context.Context, id int64, patch models.BranchPatch) error
	Delete(ctx context.Context, id int64) error
}

// TrainerRepository defines the interface for trainer profile operations
type TrainerRepository interface {
	Create(ctx context.Context, trainer *models.Trainer) (*models.Trainer, error)
	GetByID(ctx context.Context, id int64) (*models.TrainerView, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Trainer, error)
	FindUnlinkedByName(ctx context.Context, fullName string) (*models.Trainer, error)
	LinkUser(ctx context.Context, trainerID, userID int64) error
	List(ctx context.Context, branchID *int64) ([]*models.TrainerView, error)
	Update(ctx context.Context, id int64, patch models.TrainerPatch) error
	Delete(ctx context.Context, id int64) error
}

// GroupRepository defines the interface for group data operations
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, id int64) (*models.GroupView, error)
	List(ctx context.Context, filter models.GroupFilter) ([]*models.GroupView, error)
	Update(ctx context.Context, id int64, patch models.GroupPatch) error
	Delete(ctx context.Context, id int64) error
}

// ChildRepository defines the interface for child data operations
type ChildRepository interface {
	Create(ctx context.Context, child *models.Child) (*models.Child, error)
	GetByID(ctx context.Context, id int64) (*models.ChildView, error)
	List(ctx context.Context, filter models.ChildFilter) ([]*models.ChildView, error)
	Update(ctx context.Context, id int64, patch models.ChildPatch) error
	Delete(ctx context.Context, id int64) error
}

// SessionRepository defines the interface for training and game sessions
type SessionRepository interface {
	// Create returns models.ErrConflict when the trainer already has a started session.
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	GetByID(ctx context.Context, id int64) (*models.SessionView, error)
	GetActiveByTrainer(ctx context.Context, trainerID int64) (*models.SessionView, error)
	Complete(ctx context.Context, id int64, end time.Time) error
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.SessionView, error)
	ListStartedBetween(ctx context.Context, from, to time.Time) ([]*models.SessionView, error)
	CountByTrainer(ctx context.Context, trainerID int64, from, to time.Time) (trainings, games int, err error)
}

// AttendanceRepository defines the interface for attendance marks
type AttendanceRepository interface {
	// Mark inserts or overwrites the mark for the (session, child) pair.
	Mark(ctx context.Context, sessionID, childID int64, status models.AttendanceStatus, at time.Time) error
	RollCall(ctx context.Context, sessionID int64) ([]*models.RollCallEntry, error)
	ListByChild(ctx context.Context, childID int64, since time.Time, limit int) ([]*models.AttendanceRecord, error)
}

// PaymentRepository defines the interface for payment operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	GetByID(ctx context.Context, id int64) (*models.PaymentView, error)
	ListByChild(ctx context.Context, childID int64, limit int) ([]*models.PaymentView, error)
	ListWithTrainer(ctx context.Context, trainerID int64) ([]*models.PaymentView, error)
	PendingByTrainer(ctx context.Context) ([]*models.TrainerCash, error)
	// MoveToCashbox moves every with_trainer payment of the trainer to the cashbox.
	MoveToCashbox(ctx context.Context, trainerID int64, at time.Time) (int, decimal.Decimal, error)
}

// LogRepository appends audit records
type LogRepository interface {
	Append(ctx context.Context, entry *models.LogEntry) error
}

// StatsRepository computes derived, read-only figures
type StatsRepository interface {
	AttendanceStats(ctx context.Context, childID int64, since time.Time) (models.AttendanceStats, error)
	PaymentTotals(ctx context.Context, filter models.PaymentFilter) (models.MoneyTotals, error)
	Rollup(ctx context.Context, from, to time.Time, by models.RollupBy) ([]*models.RollupRow, error)
	BranchDaily(ctx context.Context, from, to time.Time) ([]*models.BranchDay, error)
	DeleteImpact(ctx context.Context, kind models.EntityKind, id int64) (models.DeleteImpact, error)
}

// Repositories bundles every repository the application layer needs
type Repositories struct {
	Users      UserRepository
	Branches   BranchRepository
	Trainers   TrainerRepository
	Groups     GroupRepository
	Children   ChildRepository
	Sessions   SessionRepository
	Attendance AttendanceRepository
	Payments   PaymentRepository
	Logs       LogRepository
	Stats      StatsRepository
}
