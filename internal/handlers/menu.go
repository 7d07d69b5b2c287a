package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

func btn(label string, a action.Action) Button {
	return Button{Label: label, Action: a}
}

func row(buttons ...Button) []Button {
	return buttons
}

func homeRow() [][]Button {
	return [][]Button{row(btn("🏠 Menu", action.New(action.Home)))}
}

func cancelRow() [][]Button {
	return [][]Button{row(btn("✖️ Cancel", action.New(action.Back)))}
}

// home renders the role's main menu. Buttons for capabilities the actor
// lacks are left out; the service checks again when one is pressed anyway.
func (h *Handler) home(ctx context.Context, c *call, text string) (Reply, error) {
	if c.actor == nil {
		reply := notRegistered()
		if text != "" {
			reply.Text = text + "\n\n" + reply.Text
		}
		return reply, nil
	}
	gate := h.svc.Gate()
	actor := c.actor

	var kb [][]Button
	if gate.Can(actor, auth.ManageAcademy) {
		kb = append(kb,
			row(btn("🏢 Branches", action.New(action.BranchList)), btn("👤 Trainers", action.New(action.TrainerList))),
			row(btn("👥 Groups", action.New(action.GroupList)), btn("🧒 Children", action.New(action.ChildList))),
		)
	} else if gate.Can(actor, auth.ViewAcademy) {
		kb = append(kb, row(btn("👥 My groups", action.New(action.MyGroups)), btn("🧒 Children", action.New(action.ChildList))))
	}

	if gate.Can(actor, auth.RunSessions) && actor.Trainer != nil {
		active, err := h.activeSession(ctx, actor)
		if err != nil {
			return Reply{}, err
		}
		if active {
			kb = append(kb, row(btn("📋 Roll call", action.New(action.RollCall)), btn("🏁 End session", action.New(action.SessionEnd))))
		} else {
			kb = append(kb, row(btn("▶️ Start session", action.New(action.SessionStart))))
		}
	}
	if gate.Can(actor, auth.RecordPayments) && actor.Trainer != nil {
		kb = append(kb, row(btn("💵 Record payment", action.New(action.PaymentAdd)), btn("👛 My cash", action.New(action.MyCash))))
		kb = append(kb, row(btn("📈 My stats", action.New(action.MyStats))))
	}

	if gate.Can(actor, auth.ManageOwnChildren) {
		kb = append(kb, row(btn("🧒 My children", action.New(action.MyChildren))))
	}
	if gate.Can(actor, auth.RequestChild) {
		kb = append(kb, row(btn("➕ Add a child", action.New(action.ChildRequest))))
	}

	if gate.Can(actor, auth.CollectCash) {
		kb = append(kb, row(btn("🏦 Pending cash", action.New(action.PendingCash))))
	}
	if gate.Can(actor, auth.ViewFinance) {
		kb = append(kb,
			row(btn("💰 Finance", action.New(action.Finance)), btn("📊 Reports", action.New(action.Reports))),
			row(btn("🗓 Daily report", action.New(action.DailyReport))),
		)
	}

	var b strings.Builder
	if text != "" {
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "🏠 Main menu\n%s: %s", actor.Role().Title(), actor.User.FullName())
	return Reply{Text: b.String(), Keyboard: kb}, nil
}

func (h *Handler) activeSession(ctx context.Context, actor *auth.Actor) (bool, error) {
	_, err := h.svc.ActiveSession(ctx, actor)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, models.ErrPrecondition), errors.Is(err, models.ErrForbidden):
		return false, nil
	}
	return false, err
}

func helpText(actor *auth.Actor) string {
	common := "/menu - main menu\n/cancel - stop the current dialog\n/help - this message"
	if actor == nil {
		return "📚 Academy bot\n\n/register - sign up as a trainer, parent or cashier\n" + common
	}
	switch actor.Role() {
	case models.RoleHeadTrainer:
		return "📚 Head trainer\n\n" +
			"/branches, /trainers, /groups, /children - manage the academy\n" +
			"/finance, /reports, /daily - money and activity\n" +
			"/pending - accept cash from trainers\n" + common
	case models.RoleTrainer:
		return "📚 Trainer\n\n" +
			"/session - start a training or game\n/rollcall - mark attendance\n/end - finish the session\n" +
			"/pay - record a payment\n/cash - money you hold\n/stats - your month\n" + common
	case models.RoleParent:
		return "📚 Parent\n\n/kids - your children, their attendance and payments\n" + common
	case models.RoleCashier:
		return "📚 Cashier\n\n/pending - accept cash from trainers\n/finance, /reports - money reports\n" + common
	}
	return common
}
