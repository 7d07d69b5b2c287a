package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

func parentRows(parents []*models.User) [][]Button {
	var kb [][]Button
	for _, p := range parents {
		kb = append(kb, row(btn(p.DisplayName(), action.WithID(action.ParentPick, p.ID))))
	}
	return kb
}

func (h *Handler) childList(ctx context.Context, c *call) (Reply, error) {
	children, err := h.svc.ListChildren(ctx, c.actor, models.ChildFilter{})
	if err != nil {
		return Reply{}, err
	}
	gate := h.svc.Gate()
	own := c.actor.Role() == models.RoleParent

	var b strings.Builder
	if own {
		fmt.Fprintf(&b, "🧒 My children (%d)", len(children))
	} else {
		fmt.Fprintf(&b, "🧒 Children (%d)", len(children))
	}
	if len(children) == 0 {
		b.WriteString("\n\nNo children yet.")
	}

	var kb [][]Button
	for _, ch := range children {
		kb = append(kb, row(btn(fmt.Sprintf("%s (%s)", ch.FullName, ch.GroupName), action.WithID(action.ChildView, ch.ID))))
	}
	switch {
	case gate.Can(c.actor, auth.ManageAcademy):
		kb = append(kb, row(btn("➕ Add child", action.New(action.ChildAdd))))
	case gate.Can(c.actor, auth.RequestChild):
		kb = append(kb, row(btn("➕ Ask to add a child", action.New(action.ChildRequest))))
	}
	kb = append(kb, homeRow()...)
	return Reply{Text: b.String(), Keyboard: kb}, nil
}

func (h *Handler) childView(ctx context.Context, c *call, id int64) (Reply, error) {
	child, err := h.svc.GetChild(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	gate := h.svc.Gate()

	text := fmt.Sprintf("🧒 %s\nGroup: %s (%s)\nTrainer: %s\nParent: %s",
		child.FullName, child.GroupName, child.BranchName, child.TrainerName, child.ParentName)

	var kb [][]Button
	switch {
	case gate.Can(c.actor, auth.ManageAcademy):
		kb = append(kb, row(btn("✏️ Edit", action.WithID(action.ChildEdit, child.ID)), btn("🗑 Delete", action.WithID(action.ChildDelete, child.ID))))
	case gate.RequireChild(c.actor, auth.ManageOwnChildren, child) == nil:
		kb = append(kb, row(btn("✏️ Rename", action.WithID(action.ChildRename, child.ID)), btn("🗑 Delete", action.WithID(action.ChildDelete, child.ID))))
	}
	kb = append(kb,
		row(btn("📅 Attendance", action.WithID(action.ChildAttendance, child.ID)), btn("💵 Payments", action.WithID(action.ChildPayments, child.ID))),
		row(btn("⬅️ Children", action.New(action.ChildList)), btn("🏠 Menu", action.New(action.Home))),
	)
	return Reply{Text: text, Keyboard: kb}, nil
}

func (h *Handler) childAttendance(ctx context.Context, c *call, id int64) (Reply, error) {
	report, err := h.svc.ChildAttendance(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	loc := h.svc.Location()

	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s, last 30 days\nSessions: %d\nPresent: %d\nAttendance: %.0f%%",
		report.Child.FullName, report.Stats.Total, report.Stats.Present, report.Stats.Rate())
	if len(report.Recent) > 0 {
		b.WriteString("\n\nRecent:")
	}
	for _, r := range report.Recent {
		mark := "✅"
		if r.Status == models.AttendanceAbsent {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n%s %s %s, %s", mark, r.StartTime.In(loc).Format("02.01 15:04"), r.SessionType.Title(), r.GroupName)
	}
	return Reply{Text: b.String(), Keyboard: childBackRows(report.Child.ID)}, nil
}

func (h *Handler) childPayments(ctx context.Context, c *call, id int64) (Reply, error) {
	report, err := h.svc.ChildPayments(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	loc := h.svc.Location()

	var b strings.Builder
	fmt.Fprintf(&b, "💵 Payments of %s\nTotal paid: %s", report.Child.FullName, models.FormatMoney(report.Totals.Total()))
	if len(report.Payments) == 0 {
		b.WriteString("\n\nNo payments yet.")
	}
	for _, p := range report.Payments {
		fmt.Fprintf(&b, "\n%s %s for %s (%s)", p.PaymentDate.In(loc).Format("02.01.2006"),
			models.FormatMoney(p.Amount), models.MonthLabel(p.MonthYear), p.TrainerName)
	}
	return Reply{Text: b.String(), Keyboard: childBackRows(report.Child.ID)}, nil
}

func childBackRows(childID int64) [][]Button {
	return [][]Button{row(btn("⬅️ Back", action.WithID(action.ChildView, childID)), btn("🏠 Menu", action.New(action.Home)))}
}

// ---- create ----

func (h *Handler) beginChildCreate(ctx context.Context, c *call) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	parents, err := h.svc.ListParents(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(parents) == 0 {
		return Reply{}, models.ErrNoParents
	}
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{})
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return Reply{}, models.ErrNoGroupsToPick
	}
	c.session.Begin(stepChildName)
	return prompt("🧒 New child\nEnter the child's full name:"), nil
}

func (h *Handler) childName(ctx context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	parents, err := h.svc.ListParents(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(parents) == 0 {
		return Reply{}, models.ErrNoParents
	}
	c.session.Set(keyName, name)
	c.session.Advance(stepChildParent)
	return prompt("Choose the parent:", parentRows(parents)...), nil
}

func (h *Handler) childParent(ctx context.Context, c *call) (Reply, error) {
	parentID, err := c.picked(action.ParentPick)
	if err != nil {
		return Reply{}, err
	}
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{})
	if err != nil {
		return Reply{}, err
	}
	if len(groups) == 0 {
		return Reply{}, models.ErrNoGroupsToPick
	}
	c.session.SetInt64(keyParent, parentID)
	c.session.Advance(stepChildGroup)
	return prompt("Choose the group:", groupRows(groups)...), nil
}

func (h *Handler) childGroup(ctx context.Context, c *call) (Reply, error) {
	groupID, err := c.picked(action.GroupPick)
	if err != nil {
		return Reply{}, err
	}
	parentID, err := c.scratchID(keyParent)
	if err != nil || parentID == nil {
		return Reply{}, fmt.Errorf("child create without parent: %w", err)
	}
	child, err := h.svc.CreateChild(ctx, c.actor, c.session.Get(keyName), *parentID, groupID)
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Child added.", h.childView, child.ID)
}

// ---- edit ----

const onlyParent = "parent"

func (h *Handler) beginChildEdit(ctx context.Context, c *call, id int64) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	child, err := h.svc.GetChild(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepChildEditName)
	c.session.SetInt64(keyID, child.ID)
	return prompt(fmt.Sprintf("✏️ Editing %s\nSend a new name, or press Keep.", child.FullName),
		keepRow(),
		row(btn("👪 Parent only", action.New(action.ChildEditParent)), btn("👥 Group only", action.New(action.ChildEditGroup)))), nil
}

func (h *Handler) childEditName(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.pressed(action.ChildEditParent):
		c.session.Set(keyOnly, onlyParent)
	case c.pressed(action.ChildEditGroup):
		return h.askChildGroup(ctx, c)
	case c.kept():
	default:
		name, err := c.text()
		if err != nil {
			return Reply{}, err
		}
		c.session.Set(keyName, name)
	}
	return h.askChildParent(ctx, c)
}

func (h *Handler) askChildParent(ctx context.Context, c *call) (Reply, error) {
	parents, err := h.svc.ListParents(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	rows := parentRows(parents)
	if c.session.Get(keyOnly) != onlyParent {
		rows = append(rows, keepRow(btn("👥 Group only", action.New(action.ChildEditGroup))))
	} else {
		rows = append(rows, keepRow())
	}
	c.session.Advance(stepChildEditParent)
	return prompt("Choose the parent, or press Keep.", rows...), nil
}

func (h *Handler) askChildGroup(ctx context.Context, c *call) (Reply, error) {
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{})
	if err != nil {
		return Reply{}, err
	}
	c.session.Advance(stepChildEditGroup)
	return prompt("Choose the group, or press Keep.", append(groupRows(groups), keepRow())...), nil
}

func (h *Handler) childEditParent(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.pressed(action.ChildEditGroup):
		return h.askChildGroup(ctx, c)
	case c.kept():
	default:
		parentID, err := c.picked(action.ParentPick)
		if err != nil {
			return Reply{}, err
		}
		c.session.SetInt64(keyParent, parentID)
	}
	if c.session.Get(keyOnly) == onlyParent {
		return h.commitChildEdit(ctx, c)
	}
	return h.askChildGroup(ctx, c)
}

func (h *Handler) childEditGroup(ctx context.Context, c *call) (Reply, error) {
	if !c.kept() {
		groupID, err := c.picked(action.GroupPick)
		if err != nil {
			return Reply{}, err
		}
		c.session.SetInt64(keyGroup, groupID)
	}
	return h.commitChildEdit(ctx, c)
}

func (h *Handler) commitChildEdit(ctx context.Context, c *call) (Reply, error) {
	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("child edit without id: %w", err)
	}
	patch := models.ChildPatch{FullName: c.scratchText(keyName)}
	if patch.ParentID, err = c.scratchID(keyParent); err != nil {
		return Reply{}, err
	}
	if patch.GroupID, err = c.scratchID(keyGroup); err != nil {
		return Reply{}, err
	}

	if patch.Empty() {
		c.session.Clear()
		return h.withNote(ctx, c, "Nothing changed.", h.childView, *id)
	}
	if err := h.svc.UpdateChild(ctx, c.actor, *id, patch); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Child updated.", h.childView, *id)
}

// ---- parent self-service ----

func (h *Handler) beginChildRename(ctx context.Context, c *call, id int64) (Reply, error) {
	child, err := h.svc.GetChild(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	if err := h.svc.Gate().RequireChild(c.actor, auth.ManageOwnChildren, child); err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepChildRename)
	c.session.SetInt64(keyID, child.ID)
	return prompt(fmt.Sprintf("✏️ Send the new name for %s:", child.FullName)), nil
}

func (h *Handler) childRename(ctx context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("child rename without id: %w", err)
	}
	if err := h.svc.UpdateChild(ctx, c.actor, *id, models.ChildPatch{FullName: &name}); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Name updated.", h.childView, *id)
}

func (h *Handler) beginChildRequest(_ context.Context, c *call) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.RequestChild); err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepChildRequest)
	return prompt("➕ Send the full name of the child to add. The head trainer will add them to a group."), nil
}

func (h *Handler) childRequest(ctx context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	if err := h.svc.RequestChild(ctx, c.actor, name); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.home(ctx, c, "✅ Request sent to the head trainer.")
}
