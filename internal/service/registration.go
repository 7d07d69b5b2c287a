package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

// Profile is what Telegram tells us about the person behind an update
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// Registration is the data collected by the registration dialog
type Registration struct {
	Profile
	Role     models.Role
	FullName string
	Phone    *string
}

// IsAdmin reports whether the Telegram id may bootstrap a head trainer account
func (s *Service) IsAdmin(telegramID int64) bool {
	return s.adminIDs[telegramID]
}

// ResolveActor loads the registered user and linked trainer profile. An
// unregistered id yields models.ErrNotFound.
func (s *Service) ResolveActor(ctx context.Context, telegramID int64) (*auth.Actor, error) {
	user, err := s.Users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	actor := &auth.Actor{User: user}
	if user.Role == models.RoleTrainer || user.Role == models.RoleHeadTrainer {
		trainer, err := s.Trainers.GetByUserID(ctx, user.ID)
		switch {
		case err == nil:
			actor.Trainer = trainer
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("failed to load trainer profile: %w", err)
		}
	}
	return actor, nil
}

// EnsureHeadTrainer returns the actor for an allow-listed Telegram id,
// creating the head trainer account on first contact.
func (s *Service) EnsureHeadTrainer(ctx context.Context, p Profile) (*auth.Actor, error) {
	if !s.IsAdmin(p.TelegramID) {
		return nil, fmt.Errorf("telegram id %d is not an admin: %w", p.TelegramID, models.ErrForbidden)
	}

	actor, err := s.ResolveActor(ctx, p.TelegramID)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	user, err := s.Users.Create(ctx, &models.User{
		TelegramID: p.TelegramID,
		Username:   strings.TrimSpace(p.Username),
		FirstName:  strings.TrimSpace(p.FirstName),
		LastName:   strings.TrimSpace(p.LastName),
		Role:       models.RoleHeadTrainer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create head trainer: %w", err)
	}

	actor = &auth.Actor{User: user}
	s.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"telegram_id": p.TelegramID,
	}).Info("Bootstrapped head trainer")
	s.audit(ctx, actor, "user.bootstrap", user.DisplayName())
	return actor, nil
}

// Register commits the registration dialog. A trainer must match a trainer
// profile created by a head trainer, by exact full name, that no account
// has claimed yet; otherwise nothing is stored.
func (s *Service) Register(ctx context.Context, r Registration) (*auth.Actor, error) {
	if !r.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", r.Role, models.ErrValidation)
	}
	if r.Role == models.RoleHeadTrainer && !s.IsAdmin(r.TelegramID) {
		return nil, fmt.Errorf("head trainer registration: %w", models.ErrForbidden)
	}

	if _, err := s.Users.GetByTelegramID(ctx, r.TelegramID); err == nil {
		return nil, models.ErrAlreadyRegistered
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	fullName := strings.Join(strings.Fields(r.FullName), " ")
	if fullName == "" {
		return nil, models.Invalid("The name cannot be empty.")
	}

	var trainer *models.Trainer
	if r.Role == models.RoleTrainer {
		t, err := s.Trainers.FindUnlinkedByName(ctx, fullName)
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrTrainerNotListed
		}
		if err != nil {
			return nil, err
		}
		trainer = t
	}

	first, last := models.SplitFullName(fullName)
	user, err := s.Users.Create(ctx, &models.User{
		TelegramID: r.TelegramID,
		Username:   strings.TrimSpace(r.Username),
		FirstName:  first,
		LastName:   last,
		Phone:      r.Phone,
		Role:       r.Role,
	})
	if errors.Is(err, models.ErrConflict) {
		return nil, models.ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	actor := &auth.Actor{User: user}
	if trainer != nil {
		if err := s.Trainers.LinkUser(ctx, trainer.ID, user.ID); err != nil {
			if delErr := s.Users.Delete(ctx, user.ID); delErr != nil {
				s.logger.WithError(delErr).Error("Failed to remove user after trainer link failure")
			}
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.ErrTrainerNotListed
			}
			return nil, fmt.Errorf("failed to link trainer profile: %w", err)
		}
		trainer.UserID = &user.ID
		actor.Trainer = trainer
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")
	s.audit(ctx, actor, "user.register", string(user.Role)+" "+user.FullName())
	return actor, nil
}
