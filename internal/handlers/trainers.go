package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

func (h *Handler) trainerList(ctx context.Context, c *call) (Reply, error) {
	trainers, err := h.svc.ListTrainers(ctx, c.actor, nil)
	if err != nil {
		return Reply{}, err
	}

	text := fmt.Sprintf("👤 Trainers (%d)", len(trainers))
	if len(trainers) == 0 {
		text += "\n\nNo trainers yet."
	}
	var kb [][]Button
	for _, t := range trainers {
		label := fmt.Sprintf("%s (%s)", t.FullName, t.BranchName)
		kb = append(kb, row(btn(label, action.WithID(action.TrainerView, t.ID))))
	}
	if h.svc.Gate().Can(c.actor, auth.ManageAcademy) {
		kb = append(kb, row(btn("➕ Add trainer", action.New(action.TrainerAdd))))
	}
	kb = append(kb, homeRow()...)
	return Reply{Text: text, Keyboard: kb}, nil
}

func (h *Handler) trainerView(ctx context.Context, c *call, id int64) (Reply, error) {
	trainer, err := h.svc.GetTrainer(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	groups, err := h.svc.ListGroups(ctx, c.actor, models.GroupFilter{TrainerID: &trainer.ID})
	if err != nil {
		return Reply{}, err
	}

	account := "not registered yet"
	if trainer.IsLinked() {
		account = "registered"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\nBranch: %s\nAccount: %s\nGroups: %d", trainer.FullName, trainer.BranchName, account, len(groups))
	for _, g := range groups {
		fmt.Fprintf(&b, "\n- %s (%d children)", g.Name, g.Children)
	}
	return Reply{Text: b.String(), Keyboard: h.entityRows(c, action.TrainerEdit, action.TrainerDelete, trainer.ID,
		btn("⬅️ Trainers", action.New(action.TrainerList)))}, nil
}

// ---- create ----

func (h *Handler) beginTrainerCreate(ctx context.Context, c *call) (Reply, error) {
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
	c.session.Begin(stepTrainerName)
	return prompt("👤 New trainer\nEnter the trainer's full name. They register with exactly this name."), nil
}

func (h *Handler) trainerName(ctx context.Context, c *call) (Reply, error) {
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
	c.session.Set(keyName, strings.Join(strings.Fields(name), " "))
	c.session.Advance(stepTrainerBranch)
	return prompt("Choose the branch:", branchRows(branches)...), nil
}

func (h *Handler) trainerBranch(ctx context.Context, c *call) (Reply, error) {
	branchID, err := c.picked(action.BranchPick)
	if err != nil {
		return Reply{}, err
	}
	trainer, err := h.svc.CreateTrainer(ctx, c.actor, c.session.Get(keyName), branchID)
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Trainer added. They can now /register as a trainer.", h.trainerView, trainer.ID)
}

// ---- edit ----

func (h *Handler) beginTrainerEdit(ctx context.Context, c *call, id int64) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ManageAcademy); err != nil {
		return Reply{}, err
	}
	trainer, err := h.svc.GetTrainer(ctx, c.actor, id)
	if err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepTrainerEditName)
	c.session.SetInt64(keyID, trainer.ID)
	return prompt(fmt.Sprintf("✏️ Editing %s\nSend a new name, or press Keep.", trainer.FullName),
		keepRow(btn("🏢 Branch only", action.New(action.TrainerEditBranch)))), nil
}

func (h *Handler) trainerEditName(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.kept(), c.pressed(action.TrainerEditBranch):
	default:
		name, err := c.text()
		if err != nil {
			return Reply{}, err
		}
		c.session.Set(keyName, strings.Join(strings.Fields(name), " "))
	}
	branches, err := h.svc.ListBranches(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	c.session.Advance(stepTrainerEditBranch)
	return prompt("Choose the new branch, or press Keep.", append(branchRows(branches), keepRow())...), nil
}

func (h *Handler) trainerEditBranch(ctx context.Context, c *call) (Reply, error) {
	var patch models.TrainerPatch
	patch.FullName = c.scratchText(keyName)
	if !c.kept() {
		branchID, err := c.picked(action.BranchPick)
		if err != nil {
			return Reply{}, err
		}
		patch.BranchID = &branchID
	}

	id, err := c.scratchID(keyID)
	if err != nil || id == nil {
		return Reply{}, fmt.Errorf("trainer edit without id: %w", err)
	}
	if patch.Empty() {
		c.session.Clear()
		return h.withNote(ctx, c, "Nothing changed.", h.trainerView, *id)
	}
	if err := h.svc.UpdateTrainer(ctx, c.actor, *id, patch); err != nil {
		return Reply{}, err
	}
	c.session.Clear()
	return h.withNote(ctx, c, "✅ Trainer updated.", h.trainerView, *id)
}
