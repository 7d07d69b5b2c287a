package service

import (
	"context"
	"fmt"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

// ---- Branches ----

func (s *Service) CreateBranch(ctx context.Context, actor *auth.Actor, name string, address *string) (*models.Branch, error) {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return nil, err
	}
	branch, err := s.Branches.Create(ctx, &models.Branch{Name: name, Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}
	s.audit(ctx, actor, "branch.create", branch.Name)
	return branch, nil
}

func (s *Service) GetBranch(ctx context.Context, actor *auth.Actor, id int64) (*models.Branch, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Branches.GetByID(ctx, id)
}

func (s *Service) ListBranches(ctx context.Context, actor *auth.Actor) ([]*models.Branch, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Branches.List(ctx)
}

func (s *Service) UpdateBranch(ctx context.Context, actor *auth.Actor, id int64, patch models.BranchPatch) error {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return err
	}
	if err := s.Branches.Update(ctx, id, patch); err != nil {
		return err
	}
	s.audit(ctx, actor, "branch.update", fmt.Sprintf("branch %d", id))
	return nil
}

// ---- Trainers ----

func (s *Service) CreateTrainer(ctx context.Context, actor *auth.Actor, fullName string, branchID int64) (*models.Trainer, error) {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return nil, err
	}
	trainer, err := s.Trainers.Create(ctx, &models.Trainer{FullName: fullName, BranchID: branchID})
	if err != nil {
		return nil, fmt.Errorf("failed to create trainer: %w", err)
	}
	s.audit(ctx, actor, "trainer.create", trainer.FullName)
	return trainer, nil
}

func (s *Service) GetTrainer(ctx context.Context, actor *auth.Actor, id int64) (*models.TrainerView, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Trainers.GetByID(ctx, id)
}

// ListTrainers lists all trainers, or those of one branch
func (s *Service) ListTrainers(ctx context.Context, actor *auth.Actor, branchID *int64) ([]*models.TrainerView, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Trainers.List(ctx, branchID)
}

func (s *Service) UpdateTrainer(ctx context.Context, actor *auth.Actor, id int64, patch models.TrainerPatch) error {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return err
	}
	if err := s.Trainers.Update(ctx, id, patch); err != nil {
		return err
	}
	s.audit(ctx, actor, "trainer.update", fmt.Sprintf("trainer %d", id))
	return nil
}

// ---- Groups ----

// CreateGroup adds a group. The trainer must work in the group's branch.
func (s *Service) CreateGroup(ctx context.Context, actor *auth.Actor, name string, branchID, trainerID int64) (*models.Group, error) {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return nil, err
	}
	group, err := s.Groups.Create(ctx, &models.Group{Name: name, BranchID: branchID, TrainerID: trainerID})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	s.audit(ctx, actor, "group.create", group.Name)
	return group, nil
}

func (s *Service) GetGroup(ctx context.Context, actor *auth.Actor, id int64) (*models.GroupView, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Groups.GetByID(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context, actor *auth.Actor, filter models.GroupFilter) ([]*models.GroupView, error) {
	if err := s.gate.Require(actor, auth.ViewAcademy); err != nil {
		return nil, err
	}
	return s.Groups.List(ctx, filter)
}

func (s *Service) UpdateGroup(ctx context.Context, actor *auth.Actor, id int64, patch models.GroupPatch) error {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return err
	}
	if err := s.Groups.Update(ctx, id, patch); err != nil {
		return err
	}
	s.audit(ctx, actor, "group.update", fmt.Sprintf("group %d", id))
	return nil
}

// ---- Children ----

// ListParents returns the registered parents a child can be linked to
func (s *Service) ListParents(ctx context.Context, actor *auth.Actor) ([]*models.User, error) {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return nil, err
	}
	return s.Users.ListByRole(ctx, models.RoleParent)
}

// CreateChild adds a child for a registered parent
func (s *Service) CreateChild(ctx context.Context, actor *auth.Actor, fullName string, parentID, groupID int64) (*models.Child, error) {
	if err := s.gate.Require(actor, auth.ManageAcademy); err != nil {
		return nil, err
	}
	if err := s.checkParent(ctx, parentID); err != nil {
		return nil, err
	}
	child, err := s.Children.Create(ctx, &models.Child{FullName: fullName, ParentID: parentID, GroupID: groupID})
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	s.audit(ctx, actor, "child.create", child.FullName)
	return child, nil
}

func (s *Service) checkParent(ctx context.Context, userID int64) error {
	parent, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if parent.Role != models.RoleParent {
		return fmt.Errorf("user %d: %w", userID, models.Invalid("Choose a registered parent."))
	}
	return nil
}

// GetChild returns a child the actor may see: any child for the head
// trainer, their own for a parent, one of their groups' for a trainer.
func (s *Service) GetChild(ctx context.Context, actor *auth.Actor, id int64) (*models.ChildView, error) {
	child, err := s.Children.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireChildView(actor, child); err != nil {
		return nil, err
	}
	return child, nil
}

func (s *Service) requireChildView(actor *auth.Actor, child *models.ChildView) error {
	if s.gate.Can(actor, auth.ViewRoster) {
		return nil
	}
	if actor.Role() == models.RoleParent {
		return s.gate.RequireChild(actor, auth.ManageOwnChildren, child)
	}
	return s.gate.RequireChild(actor, auth.ViewAcademy, child)
}

// ListChildren lists the children within the actor's reach
func (s *Service) ListChildren(ctx context.Context, actor *auth.Actor, filter models.ChildFilter) ([]*models.ChildView, error) {
	switch {
	case s.gate.Can(actor, auth.ViewRoster):
	case actor.Role() == models.RoleParent && s.gate.Can(actor, auth.ManageOwnChildren):
		filter.ParentID = &actor.User.ID
	case s.gate.Can(actor, auth.ViewAcademy):
		trainer, err := trainerOf(actor)
		if err != nil {
			return nil, err
		}
		filter.TrainerID = &trainer.ID
	default:
		return nil, s.gate.Require(actor, auth.ViewRoster)
	}
	return s.Children.List(ctx, filter)
}

// UpdateChild applies a patch. The head trainer may change any field of any
// child; a parent may only rename their own child.
func (s *Service) UpdateChild(ctx context.Context, actor *auth.Actor, id int64, patch models.ChildPatch) error {
	child, err := s.Children.GetByID(ctx, id)
	if err != nil {
		return err
	}

	selfService := !s.gate.Can(actor, auth.ManageAcademy)
	if selfService {
		if err := s.gate.RequireChild(actor, auth.ManageOwnChildren, child); err != nil {
			return err
		}
		if patch.ParentID != nil || patch.GroupID != nil {
			return fmt.Errorf("parents may only rename: %w", models.ErrForbidden)
		}
	}
	if patch.ParentID != nil {
		if err := s.checkParent(ctx, *patch.ParentID); err != nil {
			return err
		}
	}

	if err := s.Children.Update(ctx, id, patch); err != nil {
		return err
	}
	s.audit(ctx, actor, "child.update", fmt.Sprintf("child %d", id))

	if selfService && patch.FullName != nil && *patch.FullName != child.FullName {
		s.notifier.ChildChanged(ctx, actor.User,
			fmt.Sprintf("renamed child %s to %s (group %s)", child.FullName, *patch.FullName, child.GroupName))
	}
	return nil
}

// ---- Deletes ----

// DeletePreview returns the display name of the entity and what a delete
// would cascade to. The same checks as Delete apply.
func (s *Service) DeletePreview(ctx context.Context, actor *auth.Actor, kind models.EntityKind, id int64) (string, models.DeleteImpact, error) {
	name, err := s.authorizeDelete(ctx, actor, kind, id)
	if err != nil {
		return "", models.DeleteImpact{}, err
	}
	impact, err := s.Stats.DeleteImpact(ctx, kind, id)
	if err != nil {
		return "", models.DeleteImpact{}, err
	}
	return name, impact, nil
}

// Delete removes the entity and everything that depends on it. The actor's
// rights are checked again here, whatever the menu showed.
func (s *Service) Delete(ctx context.Context, actor *auth.Actor, kind models.EntityKind, id int64) (string, error) {
	name, err := s.authorizeDelete(ctx, actor, kind, id)
	if err != nil {
		return "", err
	}

	switch kind {
	case models.KindBranch:
		err = s.Branches.Delete(ctx, id)
	case models.KindTrainer:
		err = s.Trainers.Delete(ctx, id)
	case models.KindGroup:
		err = s.Groups.Delete(ctx, id)
	case models.KindChild:
		err = s.Children.Delete(ctx, id)
	}
	if err != nil {
		return "", err
	}

	s.audit(ctx, actor, string(kind)+".delete", name)
	if kind == models.KindChild && !s.gate.Can(actor, auth.DeleteEntities) {
		s.notifier.ChildChanged(ctx, actor.User, "deleted child "+name)
	}
	return name, nil
}

func (s *Service) authorizeDelete(ctx context.Context, actor *auth.Actor, kind models.EntityKind, id int64) (string, error) {
	switch kind {
	case models.KindBranch:
		if err := s.gate.Require(actor, auth.DeleteEntities); err != nil {
			return "", err
		}
		b, err := s.Branches.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return b.Name, nil
	case models.KindTrainer:
		if err := s.gate.Require(actor, auth.DeleteEntities); err != nil {
			return "", err
		}
		t, err := s.Trainers.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return t.FullName, nil
	case models.KindGroup:
		if err := s.gate.Require(actor, auth.DeleteEntities); err != nil {
			return "", err
		}
		g, err := s.Groups.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return g.Name, nil
	case models.KindChild:
		child, err := s.Children.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if !s.gate.Can(actor, auth.DeleteEntities) {
			if err := s.gate.RequireChild(actor, auth.ManageOwnChildren, child); err != nil {
				return "", err
			}
		}
		return child.FullName, nil
	}
	return "", fmt.Errorf("unknown entity kind %q: %w", kind, models.ErrValidation)
}
