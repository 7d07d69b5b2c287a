package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

// HistoryLimit caps the marks and payments shown on a child card
const HistoryLimit = 10

// ChildAttendance is a child's attendance over the trailing window
type ChildAttendance struct {
	Child  *models.ChildView
	Stats  models.AttendanceStats
	Recent []*models.AttendanceRecord
}

// ChildAttendance returns 30-day attendance figures and the latest marks
func (s *Service) ChildAttendance(ctx context.Context, actor *auth.Actor, childID int64) (*ChildAttendance, error) {
	child, err := s.GetChild(ctx, actor, childID)
	if err != nil {
		return nil, err
	}
	since := s.now().Add(-models.AttendanceWindow)
	stats, err := s.Stats.AttendanceStats(ctx, child.ID, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.Attendance.ListByChild(ctx, child.ID, since, HistoryLimit)
	if err != nil {
		return nil, err
	}
	return &ChildAttendance{Child: child, Stats: stats, Recent: recent}, nil
}

// ChildPayments is a child's payment history and totals
type ChildPayments struct {
	Child    *models.ChildView
	Totals   models.MoneyTotals
	Payments []*models.PaymentView
}

// ChildPayments returns the latest payments for a child and the totals by holder
func (s *Service) ChildPayments(ctx context.Context, actor *auth.Actor, childID int64) (*ChildPayments, error) {
	child, err := s.GetChild(ctx, actor, childID)
	if err != nil {
		return nil, err
	}
	totals, err := s.Stats.PaymentTotals(ctx, models.PaymentFilter{ChildID: &child.ID})
	if err != nil {
		return nil, err
	}
	payments, err := s.Payments.ListByChild(ctx, child.ID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	return &ChildPayments{Child: child, Totals: totals, Payments: payments}, nil
}

// TrainerStats summarises the current month for the actor's trainer profile
func (s *Service) TrainerStats(ctx context.Context, actor *auth.Actor) (*models.TrainerStats, error) {
	if err := s.gate.Require(actor, auth.RunSessions); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}

	from, to := PeriodMonth.Window(s.Now())
	trainings, games, err := s.Sessions.CountByTrainer(ctx, trainer.ID, from, to)
	if err != nil {
		return nil, err
	}
	groups, err := s.Groups.List(ctx, models.GroupFilter{TrainerID: &trainer.ID})
	if err != nil {
		return nil, err
	}
	children, err := s.Children.List(ctx, models.ChildFilter{TrainerID: &trainer.ID})
	if err != nil {
		return nil, err
	}
	money, err := s.Stats.PaymentTotals(ctx, models.PaymentFilter{TrainerID: &trainer.ID})
	if err != nil {
		return nil, err
	}

	return &models.TrainerStats{
		Sessions:  trainings + games,
		Trainings: trainings,
		Games:     games,
		Groups:    len(groups),
		Children:  len(children),
		Money:     money,
	}, nil
}

// Rollup aggregates sessions and money of the period by branch or trainer
func (s *Service) Rollup(ctx context.Context, actor *auth.Actor, period Period, by models.RollupBy) ([]*models.RollupRow, error) {
	if err := s.gate.Require(actor, auth.ViewFinance); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, fmt.Errorf("unknown period %q: %w", period, models.ErrValidation)
	}
	from, to := period.Window(s.Now())
	return s.Stats.Rollup(ctx, from, to, by)
}

// DailyReport builds the digest of a day on demand
func (s *Service) DailyReport(ctx context.Context, actor *auth.Actor, day time.Time) (*models.DailyReport, error) {
	if err := s.gate.Require(actor, auth.ViewFinance); err != nil {
		return nil, err
	}
	return s.BuildDailyReport(ctx, day)
}

// RequestChild relays a parent's request for a new child to the head trainers
func (s *Service) RequestChild(ctx context.Context, actor *auth.Actor, childName string) error {
	if err := s.gate.Require(actor, auth.RequestChild); err != nil {
		return err
	}
	s.audit(ctx, actor, "child.request", childName)
	res := s.notifier.ChildRequested(ctx, actor.User, childName)
	if res.Sent == 0 {
		s.logger.WithField("user_id", actor.User.ID).Warn("Child request reached no head trainer")
	}
	return nil
}
