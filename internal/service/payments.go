package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

// PresetAmounts are the sums offered as buttons when recording a payment
var PresetAmounts = []decimal.Decimal{
	decimal.NewFromInt(100000),
	decimal.NewFromInt(150000),
	decimal.NewFromInt(200000),
	decimal.NewFromInt(250000),
}

// PaymentChildren returns the children the actor can take money for
func (s *Service) PaymentChildren(ctx context.Context, actor *auth.Actor) ([]*models.ChildView, error) {
	if err := s.gate.Require(actor, auth.RecordPayments); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}
	children, err := s.Children.List(ctx, models.ChildFilter{TrainerID: &trainer.ID})
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, models.ErrNoChildren
	}
	return children, nil
}

// RecordPayment stores cash taken by the actor's trainer profile for a child
// of one of their groups.
func (s *Service) RecordPayment(ctx context.Context, actor *auth.Actor, childID int64, amount decimal.Decimal, monthYear string) (*models.PaymentView, error) {
	if err := s.gate.Require(actor, auth.RecordPayments); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}
	child, err := s.Children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireChild(actor, auth.RecordPayments, child); err != nil {
		return nil, err
	}

	payment, err := s.Payments.Create(ctx, &models.Payment{
		ChildID:     child.ID,
		TrainerID:   trainer.ID,
		Amount:      amount,
		PaymentDate: s.now(),
		MonthYear:   monthYear,
	})
	if err != nil {
		return nil, err
	}

	view, err := s.Payments.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"payment_id": view.ID,
		"trainer_id": trainer.ID,
		"child_id":   child.ID,
	}).Info("Payment recorded")
	s.audit(ctx, actor, "payment.create",
		fmt.Sprintf("%s %s %s", child.FullName, models.FormatMoney(amount), monthYear))
	s.notifier.PaymentReceived(ctx, view)
	return view, nil
}

// MyCash lists the payments the actor's trainer profile still holds
func (s *Service) MyCash(ctx context.Context, actor *auth.Actor) ([]*models.PaymentView, decimal.Decimal, error) {
	if err := s.gate.Require(actor, auth.RecordPayments); err != nil {
		return nil, decimal.Zero, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, decimal.Zero, err
	}
	payments, err := s.Payments.ListWithTrainer(ctx, trainer.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return payments, total, nil
}

// HandInCash moves all money the actor's trainer profile holds to the cashbox
func (s *Service) HandInCash(ctx context.Context, actor *auth.Actor) (int, decimal.Decimal, error) {
	if err := s.gate.Require(actor, auth.RecordPayments); err != nil {
		return 0, decimal.Zero, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return s.moveToCashbox(ctx, actor, trainer.ID, trainer.FullName)
}

// PendingCash lists trainers who still hold money
func (s *Service) PendingCash(ctx context.Context, actor *auth.Actor) ([]*models.TrainerCash, error) {
	if err := s.gate.Require(actor, auth.CollectCash); err != nil {
		return nil, err
	}
	return s.Payments.PendingByTrainer(ctx)
}

// AcceptCash records that the cashier took a trainer's money
func (s *Service) AcceptCash(ctx context.Context, actor *auth.Actor, trainerID int64) (string, int, decimal.Decimal, error) {
	if err := s.gate.Require(actor, auth.CollectCash); err != nil {
		return "", 0, decimal.Zero, err
	}
	trainer, err := s.Trainers.GetByID(ctx, trainerID)
	if err != nil {
		return "", 0, decimal.Zero, err
	}
	n, total, err := s.moveToCashbox(ctx, actor, trainer.ID, trainer.FullName)
	return trainer.FullName, n, total, err
}

func (s *Service) moveToCashbox(ctx context.Context, actor *auth.Actor, trainerID int64, trainerName string) (int, decimal.Decimal, error) {
	n, total, err := s.Payments.MoveToCashbox(ctx, trainerID, s.now())
	if err != nil {
		return 0, decimal.Zero, err
	}
	if n == 0 {
		return 0, decimal.Zero, models.ErrNoPendingCash
	}

	s.logger.WithFields(logrus.Fields{
		"trainer_id": trainerID,
		"payments":   n,
		"total":      total.String(),
	}).Info("Cash moved to cashbox")
	s.audit(ctx, actor, "cash.handin", fmt.Sprintf("%s %d payments %s", trainerName, n, models.FormatMoney(total)))
	s.notifier.CashHandedIn(ctx, trainerName, actor.User.FullName(), n, total)
	return n, total, nil
}

// FinanceTotals returns academy-wide money split by holder
func (s *Service) FinanceTotals(ctx context.Context, actor *auth.Actor) (models.MoneyTotals, error) {
	if err := s.gate.Require(actor, auth.ViewFinance); err != nil {
		return models.MoneyTotals{}, err
	}
	return s.Stats.PaymentTotals(ctx, models.PaymentFilter{})
}
