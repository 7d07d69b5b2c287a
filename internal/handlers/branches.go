package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/models"
)

func (h *Handler) branchList(ctx context.Context, c *call) (Reply, error) {
	branches, err := h.svc.ListBranches(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏢 Branches (%d)", len(branches))
	if len(branches) == 0 {
		b.WriteString("\n\nNo branches yet.")
	}
	var kb [][]Button
	for _, br := range branches {
		kb = append(kb, row(btn(br.Name, action.WithID(action.BranchView, br.ID))))
	}
	if h.svc.Gate().Can(c.actor, auth.ManageAcademy) {
		kb = append(kb, row(btn("➕ Add branch", action.New(action.BranchAdd))))
	}
	kb = append(kb, homeRow()...)
	return Reply{Text: b.String(), Keyboard: kb}, nil
}

func (h *Handler) branchView(ctx context.Context, c *call, id int64) (Reply, error) {
	branch, err := h.svc.GetBranch(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	trainers, err := h.svc.ListTrainers(ctx, c.actor, &branch.ID)
	if err != nil {
		return Reply{}, err
	}
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{BranchID: &branch.ID})
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏢 %s\nAddress: %s\nTrainers: %d\nGroups: %d", branch.Name, branch.AddressOrDash(), len(trainers), len(groups))
	for _, g := range groups {
		fmt.Fprintf(&b, "\n- %s (%s, %d children)", g.Name, g.TrainerName, g.Children)
	}
	return Reply{Text: b.String(), Keyboard: h.entityRows(c, action.BranchEdit, action.BranchDelete, branch.ID,
		btn("⬅️ Branches", action.New(action.BranchList)))}, nil
}

// entityRows returns the edit and delete buttons the actor may use, then a back row
func (h *Handler) entityRows(c *call, edit, del action.Kind, id int64, back Button) [][]Button {
	gate := h.svc.Gate()
	var actions []Button
	if gate.Can(c.actor, auth.ManageAcademy) {
		actions = append(actions, btn("✏️ Edit", action.WithID(edit, id)))
	}
	if gate.Can(c.actor, auth.DeleteEntities) {
		actions = append(actions, btn("🗑 Delete", action.WithID(del, id)))
	}
	var kb [][]Button
	if len(actions) > 0 {
		kb = append(kb, actions)
	}
	return append(kb, row(back, btn("🏠 Menu", action.New(action.Home))))
}

func branchRows(branches []*models.Branch) [][]Button {
	var kb [][]Button
	for _, br := range branches {
		kb = append(kb, row(btn(br.Name, action.WithID(action.BranchPick, br.ID))))
	}
	return kb
}

// ---- create ----

func (h *Handler) beginBranchCreate(_ context.Context, c *call) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepBranchName)
	return prompt("🏢 New branch\nEnter the branch name:"), nil
}

func (h *Handler) branchName(_ context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	c.session.Set(keyName, name)
	c.session.Advance(stepBranchAddress)
	return prompt("Enter the address, or press Skip.", skipRow()), nil
}

func (h *Handler) branchAddress(ctx context.Context, c *call) (Reply, error) {
	var address *string
	if !c.pressed(action.Skip) {
		if c.req.Action != nil {
			return Reply{}, errUnexpected
		}
		address = conversation.OptionalText(c.req.Text)
	}

	branch, err := h.svc.CreateBranch(ctx, c.actor, c.session.Get(keyName), address)
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return Reply{
		Text: fmt.Sprintf("✅ Branch %s created.", branch.Name),
		Keyboard: [][]Button{
			row(btn("🏢 Open", action.WithID(action.BranchView, branch.ID)), btn("🏠 Menu", action.New(action.Home))),
		},
	}, nil
}

// ---- edit ----

func (h *Handler) beginBranchEdit(ctx context.Context, c *call, id int64) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	branch, err := h.svc.GetBranch(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepBranchEditName)
	c.session.SetInt64(keyID, branch.ID)
	return prompt(fmt.Sprintf("✏️ Editing %s\nSend a new name, or press Keep.", branch.Name),
		keepRow(btn("📍 Address only", action.New(action.BranchEditAddress)))), nil
}

func (h *Handler) branchEditName(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.kept(), c.pressed(action.BranchEditAddress):
	default:
		name, err := c.text()
		if err != nil {
			return Reply{}, err
		}
		c.session.Set(keyName, name)
	}

	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("branch edit without id: %w", err)
	}
	branch, err := h.svc.GetBranch(ctx, c.actor, *id)
	if err != nil {
		return Reply{}, err
	}
	c.session.Advance(stepBranchEditAddress)
	return prompt(fmt.Sprintf("Current address: %s\nSend a new address, press Keep, or send - to clear it.", branch.AddressOrDash()),
		keepRow()), nil
}

func (h *Handler) branchEditAddress(ctx context.Context, c *call) (Reply, error) {
	var patch models.BranchPatch
	patch.Name = c.scratchText(keyName)

	// "-" clears the address here instead of keeping it
	switch {
	case c.req.Action == nil && strings.TrimSpace(c.req.Text) == "-":
		patch.ClearAddress = true
	case c.kept():
	default:
		address, err := c.text()
		if err != nil {
			return Reply{}, err
		}
		patch.Address = &address
	}

	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("branch edit without id: %w", err)
	}
	if patch.Empty() {
		c.session.Clear()
		return h.withNote(ctx, c, "Nothing changed.", h.branchView, *id)
	}
	if err := h.svc.UpdateBranch(ctx, c.actor, *id, patch); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Branch updated.", h.branchView, *id)
}

// withNote renders an entity view with a line on top
func (h *Handler) withNote(ctx context.Context, c *call, note string,
	view func(context.Context, *call, int64) (Reply, error), id int64,
) (Reply, error) {
	reply, err := view(ctx, c, id)
	if err != nil {
		return Reply{}, err
	}
	reply.Text = note + "\n\n" + reply.Text
	return reply, nil
}
