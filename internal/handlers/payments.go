package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/service"
)

func (h *Handler) beginPayment(ctx context.Context, c *call) (Reply, error) {
	children, err := h.svc.PaymentChildren(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepPaymentChild)

	var rows [][]Button
	for _, ch := range children {
		rows = append(rows, row(btn(fmt.Sprintf("%s (%s)", ch.FullName, ch.GroupName), action.WithID(action.ChildPick, ch.ID))))
	}
	return prompt("💵 New payment\nWho paid?", rows...), nil
}

func (h *Handler) paymentChild(ctx context.Context, c *call) (Reply, error) {
	childID, err := c.picked(action.ChildPick)
	if err != nil {
		return Reply{}, err
	}
	child, err := h.svc.GetChild(ctx, c.actor, childID)
	if err != nil {
		return Reply{}, err
	}
	c.session.SetInt64(keyChild, child.ID)
	c.session.Set(keyName, child.FullName)
	c.session.Advance(stepPaymentAmount)

	var presets []Button
	for _, amount := range service.PresetAmounts {
		presets = append(presets, btn(models.FormatMoney(amount), action.WithValue(action.PaymentAmount, amount.String())))
	}
	return prompt(fmt.Sprintf("Amount for %s:", child.FullName),
		presets[:2], presets[2:],
		row(btn("✍️ Other amount", action.New(action.PaymentCustom))),
	), nil
}

func (h *Handler) paymentAmount(_ context.Context, c *call) (Reply, error) {
	var (
		amount decimal.Decimal
		err    error
	)
	switch {
	case c.pressed(action.PaymentCustom):
		return prompt("Type the amount, for example 150000:"), nil
	case c.pressed(action.PaymentAmount):
		a, _ := c.input()
		amount, err = conversation.ParseAmount(a.Value)
	case c.req.Action == nil:
		amount, err = conversation.ParseAmount(c.req.Text)
	default:
		return Reply{}, errUnexpected
	}
	if err != nil {
		return Reply{}, err
	}
	c.session.Set(keyAmount, amount.String())
	c.session.Advance(stepPaymentMonth)

	now := h.svc.Now()
	current := now.Format("2006-01")
	next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
	return prompt("Which month is it for? Press a button or type YYYY-MM.", row(
		btn(models.MonthLabel(current), action.WithValue(action.PaymentMonth, current)),
		btn(models.MonthLabel(next), action.WithValue(action.PaymentMonth, next)),
	)), nil
}

func (h *Handler) paymentMonth(_ context.Context, c *call) (Reply, error) {
	var raw string
	switch {
	case c.pressed(action.PaymentMonth):
		a, _ := c.input()
		raw = a.Value
	case c.req.Action == nil:
		raw = c.req.Text
	default:
		return Reply{}, errUnexpected
	}
	month, err := conversation.ParseMonth(raw)
	if err != nil {
		return Reply{}, err
	}
	c.session.Set(keyMonth, month)
	c.session.Advance(stepPaymentConfirm)

	amount, err := decimal.NewFromString(c.session.Get(keyAmount))
	if err != nil {
		return Reply{}, fmt.Errorf("corrupt amount in conversation scratch: %w", err)
	}
	text := fmt.Sprintf("Please confirm:\nChild: %s\nAmount: %s\nPeriod: %s",
		c.session.Get(keyName), models.FormatMoney(amount), models.MonthLabel(month))
	return prompt(text, row(btn("✅ Confirm", action.New(action.PaymentConfirm)))), nil
}

func (h *Handler) paymentConfirm(ctx context.Context, c *call) (Reply, error) {
	if !c.pressed(action.PaymentConfirm) {
		return Reply{}, errUnexpected
	}
	childID, err := c.scratchID(keyChild)
	if err != nil || childID == nil {
		return Reply{}, fmt.Errorf("payment without child: %w", err)
	}
	amount, err := decimal.NewFromString(c.session.Get(keyAmount))
	if err != nil {
		return Reply{}, fmt.Errorf("corrupt amount in conversation scratch: %w", err)
	}

	payment, err := h.svc.RecordPayment(ctx, c.actor, *childID, amount, c.session.Get(keyMonth))
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return Reply{
		Text: fmt.Sprintf("✅ Payment recorded\nChild: %s\nAmount: %s\nPeriod: %s",
			payment.ChildName, models.FormatMoney(payment.Amount), models.MonthLabel(payment.MonthYear)),
		Keyboard: [][]Button{row(btn("💵 Another payment", action.New(action.PaymentAdd)), btn("🏠 Menu", action.New(action.Home)))},
	}, nil
}

func (h *Handler) myCash(ctx context.Context, c *call) (Reply, error) {
	payments, total, err := h.svc.MyCash(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(payments) == 0 {
		return Reply{Text: "👛 You hold no cash.", Keyboard: homeRow()}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👛 Cash on hand: %s (%d payments)", models.FormatMoney(total), len(payments))
	for _, p := range payments {
		fmt.Fprintf(&b, "\n- %s: %s for %s", p.ChildName, models.FormatMoney(p.Amount), models.MonthLabel(p.MonthYear))
	}
	return Reply{Text: b.String(), Keyboard: [][]Button{
		row(btn("🏦 Hand in to cashbox", action.New(action.HandIn))),
		row(btn("🏠 Menu", action.New(action.Home))),
	}}, nil
}

func (h *Handler) handIn(ctx context.Context, c *call) (Reply, error) {
	n, total, err := h.svc.HandInCash(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	return h.home(ctx, c, fmt.Sprintf("🏦 Handed in %d payments, %s.", n, models.FormatMoney(total)))
}

func (h *Handler) pendingCash(ctx context.Context, c *call) (Reply, error) {
	pending, err := h.svc.PendingCash(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(pending) == 0 {
		return Reply{Text: "🏦 No trainer holds cash right now.", Keyboard: homeRow()}, nil
	}

	var b strings.Builder
	b.WriteString("🏦 Cash held by trainers")
	var kb [][]Button
	for _, p := range pending {
		fmt.Fprintf(&b, "\n- %s: %s (%d payments)", p.TrainerName, models.FormatMoney(p.Total), p.Payments)
		kb = append(kb, row(btn(fmt.Sprintf("Accept from %s", p.TrainerName), action.WithID(action.AcceptCash, p.TrainerID))))
	}
	kb = append(kb, homeRow()...)
	return Reply{Text: b.String(), Keyboard: kb}, nil
}

func (h *Handler) acceptCashPrompt(ctx context.Context, c *call, trainerID int64) (Reply, error) {
	pending, err := h.svc.PendingCash(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	for _, p := range pending {
		if p.TrainerID != trainerID {
			continue
		}
		return Reply{
			Text: fmt.Sprintf("Accept %s (%d payments) from %s?", models.FormatMoney(p.Total), p.Payments, p.TrainerName),
			Keyboard: [][]Button{row(
				btn("✅ Accept", action.WithID(action.AcceptCashConfirm, trainerID)),
				btn("✖️ Cancel", action.New(action.PendingCash)),
			)},
		}, nil
	}
	return Reply{}, models.ErrNoPendingCash
}

func (h *Handler) acceptCash(ctx context.Context, c *call, trainerID int64) (Reply, error) {
	name, n, total, err := h.svc.AcceptCash(ctx, c.actor, trainerID)
	if err != nil {
		return Reply{}, err
	}
	return h.home(ctx, c, fmt.Sprintf("✅ Accepted %s (%d payments) from %s.", models.FormatMoney(total), n, name))
}

func (h *Handler) finance(ctx context.Context, c *call) (Reply, error) {
	totals, err := h.svc.FinanceTotals(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	text := fmt.Sprintf("💰 Finance\nWith trainers: %s\nIn cashbox: %s\nTotal: %s",
		models.FormatMoney(totals.WithTrainer), models.FormatMoney(totals.InCashbox), models.FormatMoney(totals.Total()))
	return Reply{Text: text, Keyboard: [][]Button{
		row(btn("🏦 Pending cash", action.New(action.PendingCash)), btn("🏠 Menu", action.New(action.Home))),
	}}, nil
}
