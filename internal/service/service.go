package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/notify"
	"github.com/Kerhoff/academybot/internal/repository"
)

// Service is the central business logic layer. It holds all repositories,
// the authorization gate and the notification dispatcher. Every operation
// performed on behalf of a user takes the acting user and asks the gate
// before it reads or writes anything.
type Service struct {
	repository.Repositories

	db       *sqlx.DB
	logger   *logrus.Logger
	gate     *auth.Gate
	notifier *notify.Dispatcher
	loc      *time.Location
	adminIDs map[int64]bool
	now      func() time.Time
}

// Options carries the settings the service reads from configuration
type Options struct {
	Location *time.Location
	AdminIDs map[int64]bool
	// Now replaces the wall clock in tests.
	Now func() time.Time
}

// New creates a new Service with all required dependencies.
func New(db *sqlx.DB, logger *logrus.Logger, repos repository.Repositories,
	gate *auth.Gate, notifier *notify.Dispatcher, opts Options,
) *Service {
	s := &Service{
		Repositories: repos,
		db:           db,
		logger:       logger,
		gate:         gate,
		notifier:     notifier,
		loc:          opts.Location,
		adminIDs:     opts.AdminIDs,
		now:          opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.adminIDs == nil {
		s.adminIDs = map[int64]bool{}
	}
	return s
}

// Gate returns the authorization gate, used by menus to hide buttons
func (s *Service) Gate() *auth.Gate {
	return s.gate
}

// Location returns the academy's timezone
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the current time in the academy's timezone
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

// Ping checks the database connection
func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// audit appends an entry to the audit log. A failure is logged and never
// fails the operation that was already committed.
func (s *Service) audit(ctx context.Context, actor *auth.Actor, action, details string) {
	entry := &models.LogEntry{UserID: actor.UserID(), Action: action, Details: details}
	if err := s.Logs.Append(ctx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": action,
			"error":  err,
		}).Error("Failed to write audit log")
	}
}

// trainerOf returns the trainer profile an operation runs under
func trainerOf(actor *auth.Actor) (*models.Trainer, error) {
	if actor == nil || actor.Trainer == nil {
		return nil, models.ErrNoTrainerProfile
	}
	return actor.Trainer, nil
}

// Period is a reporting window ending with the current day, week or month
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is a known period
func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodWeek || p == PeriodMonth
}

// Title returns the display name of the period
func (p Period) Title() string {
	switch p {
	case PeriodWeek:
		return "This week"
	case PeriodMonth:
		return "This month"
	default:
		return "Today"
	}
}

// Window returns [from, to) of the period containing t, in t's location
func (p Period) Window(t time.Time) (time.Time, time.Time) {
	day := startOfDay(t)
	switch p {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		from := day.AddDate(0, 0, -offset)
		return from, from.AddDate(0, 0, 7)
	case PeriodMonth:
		from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return from, from.AddDate(0, 1, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
