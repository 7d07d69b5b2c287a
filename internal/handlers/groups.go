package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

func groupLabel(g *models.GroupView) string {
	return fmt.Sprintf("%s (%s)", g.Name, g.BranchName)
}

func groupRows(groups []*models.GroupView) [][]Button {
	var kb [][]Button
	for _, g := range groups {
		kb = append(kb, row(btn(groupLabel(g), action.WithID(action.GroupPick, g.ID))))
	}
	return kb
}

func trainerRows(trainers []*models.TrainerView) [][]Button {
	var kb [][]Button
	for _, t := range trainers {
		kb = append(kb, row(btn(t.FullName, action.WithID(action.TrainerPick, t.ID))))
	}
	return kb
}

func (h *Handler) groupList(ctx context.Context, c *call) (Reply, error) {
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{})
	if err != nil {
		return Reply{}, err
	}
	return h.renderGroups(c, fmt.Sprintf("👥 Groups (%d)", len(groups)), groups), nil
}

func (h *Handler) myGroups(ctx context.Context, c *call) (Reply, error) {
	groups, err := h.svc.TrainerGroups(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	return h.renderGroups(c, fmt.Sprintf("👥 My groups (%d)", len(groups)), groups), nil
}

func (h *Handler) renderGroups(c *call, title string, groups []*models.GroupView) Reply {
	var b strings.Builder
	b.WriteString(title)
	if len(groups) == 0 {
		b.WriteString("\n\nNo groups yet.")
	}
	var kb [][]Button
	for _, g := range groups {
		fmt.Fprintf(&b, "\n- %s: %s, %d children", groupLabel(g), g.TrainerName, g.Children)
		kb = append(kb, row(btn(groupLabel(g), action.WithID(action.GroupView, g.ID))))
	}
	if h.svc.Gate().Can(c.actor, auth.ManageAcademy) {
		kb = append(kb, row(btn("➕ Add group", action.New(action.GroupAdd))))
	}
	kb = append(kb, homeRow()...)
	return Reply{Text: b.String(), Keyboard: kb}
}

func (h *Handler) groupView(ctx context.Context, c *call, id int64) (Reply, error) {
	group, err := h.svc.GetGroup(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	children, err := h.svc.ListChildren(ctx, c.actor, models.ChildFilter{GroupID: &group.ID})
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 %s\nBranch: %s\nTrainer: %s\nChildren: %d", group.Name, group.BranchName, group.TrainerName, group.Children)
	for _, ch := range children {
		fmt.Fprintf(&b, "\n- %s", ch.FullName)
	}
	return Reply{Text: b.String(), Keyboard: h.entityRows(c, action.GroupEdit, action.GroupDelete, group.ID,
		btn("⬅️ Groups", action.New(action.GroupList)))}, nil
}

// ---- create ----

func (h *Handler) beginGroupCreate(ctx context.Context, c *call) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	branches, err := h.svc.ListBranches(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(branches) == 0 {
		return Reply{}, models.ErrNoBranches
	}
	c.session.Begin(stepGroupName)
	return prompt("👥 New group\nEnter the group name:"), nil
}

func (h *Handler) groupName(ctx context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	branches, err := h.svc.ListBranches(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	if len(branches) == 0 {
		return Reply{}, models.ErrNoBranches
	}
	c.session.Set(keyName, name)
	c.session.Advance(stepGroupBranch)
	return prompt("Choose the branch:", branchRows(branches)...), nil
}

func (h *Handler) groupBranch(ctx context.Context, c *call) (Reply, error) {
	branchID, err := c.picked(action.BranchPick)
	if err != nil {
		return Reply{}, err
	}
	branch, err := h.svc.GetBranch(ctx, c.actor, branchID)
	if err != nil {
		return Reply{}, err
	}
	trainers, err := h.svc.ListTrainers(ctx, c.actor, &branch.ID)
	if err != nil {
		return Reply{}, err
	}
	if len(trainers) == 0 {
		return Reply{}, models.ErrNoTrainers
	}
	c.session.SetInt64(keyBranch, branch.ID)
	c.session.Advance(stepGroupTrainer)
	return prompt(fmt.Sprintf("Choose the trainer from %s:", branch.Name), trainerRows(trainers)...), nil
}

func (h *Handler) groupTrainer(ctx context.Context, c *call) (Reply, error) {
	trainerID, err := c.picked(action.TrainerPick)
	if err != nil {
		return Reply{}, err
	}
	branchID, err := c.scratchID(keyBranch)
	if err != nil || branchID == nil {
		return Reply{}, fmt.Errorf("group create without branch: %w", err)
	}
	group, err := h.svc.CreateGroup(ctx, c.actor, c.session.Get(keyName), *branchID, trainerID)
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Group created.", h.groupView, group.ID)
}

// ---- edit ----

func (h *Handler) beginGroupEdit(ctx context.Context, c *call, id int64) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	group, err := h.svc.GetGroup(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepGroupEditName)
	c.session.SetInt64(keyID, group.ID)
	return prompt(fmt.Sprintf("✏️ Editing %s\nSend a new name, or press Keep.", group.Name),
		keepRow(btn("👤 Trainer only", action.New(action.GroupEditTrainer)))), nil
}

func (h *Handler) groupEditName(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.kept(), c.pressed(action.GroupEditTrainer):
	default:
		name, err := c.text()
		if err != nil {
			return Reply{}, err
		}
		c.session.Set(keyName, name)
	}

	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("group edit without id: %w", err)
	}
	group, err := h.svc.GetGroup(ctx, c.actor, *id)
	if err != nil {
		return Reply{}, err
	}
	trainers, err := h.svc.ListTrainers(ctx, c.actor, &group.BranchID)
	if err != nil {
		return Reply{}, err
	}
	c.session.Advance(stepGroupEditTrainer)
	return prompt(fmt.Sprintf("Current trainer: %s\nChoose a trainer from %s, or press Keep.", group.TrainerName, group.BranchName),
		append(trainerRows(trainers), keepRow())...), nil
}

func (h *Handler) groupEditTrainer(ctx context.Context, c *call) (Reply, error) {
	var patch models.GroupPatch
	patch.Name = c.scratchText(keyName)
	if !c.kept() {
		trainerID, err := c.picked(action.TrainerPick)
		if err != nil {
			return Reply{}, err
		}
		patch.TrainerID = &trainerID
	}

	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("group edit without id: %w", err)
	}
	if patch.Empty() {
		c.session.Clear()
		return h.withNote(ctx, c, "Nothing changed.", h.groupView, *id)
	}
	if err := h.svc.UpdateGroup(ctx, c.actor, *id, patch); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Group updated.", h.groupView, *id)
}
