package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
)

// TrainerGroups returns the groups of the actor's trainer profile
func (s *Service) TrainerGroups(ctx context.Context, actor *auth.Actor) ([]*models.GroupView, error) {
	if err := s.gate.Require(actor, auth.RunSessions); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}
	return s.Groups.List(ctx, models.GroupFilter{TrainerID: &trainer.ID})
}

// PrepareSession checks that the actor can start a session right now and
// returns the groups to choose from.
func (s *Service) PrepareSession(ctx context.Context, actor *auth.Actor) ([]*models.GroupView, error) {
	groups, err := s.TrainerGroups(ctx, actor)
	if err != nil {
		return nil, err
	}
	if _, err := s.ActiveSession(ctx, actor); err == nil {
		return nil, models.ErrSessionActive
	} else if !errors.Is(err, models.ErrNoActiveSession) {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, models.ErrNoGroups
	}
	return groups, nil
}

// StartSession opens a training or game for one of the trainer's groups.
// A trainer runs at most one session at a time.
func (s *Service) StartSession(ctx context.Context, actor *auth.Actor, typ models.SessionType, groupID int64, loc *models.Location) (*models.SessionView, error) {
	if err := s.gate.Require(actor, auth.RunSessions); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown session type %q: %w", typ, models.ErrValidation)
	}
	group, err := s.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireGroup(actor, auth.RunSessions, &group.Group); err != nil {
		return nil, err
	}

	session := &models.Session{
		Type:      typ,
		TrainerID: trainer.ID,
		GroupID:   group.ID,
		StartTime: s.now(),
	}
	if loc != nil {
		session.Latitude = &loc.Latitude
		session.Longitude = &loc.Longitude
	}
	if _, err := s.Sessions.Create(ctx, session); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrSessionActive
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	view, err := s.Sessions.GetByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"session_id": view.ID,
		"trainer_id": trainer.ID,
		"group_id":   group.ID,
	}).Info("Session started")
	s.audit(ctx, actor, "session.start", fmt.Sprintf("%s %s", view.Type, view.GroupName))
	s.notifier.SessionStarted(ctx, view)
	return view, nil
}

// ActiveSession returns the actor's started session or models.ErrNoActiveSession
func (s *Service) ActiveSession(ctx context.Context, actor *auth.Actor) (*models.SessionView, error) {
	if err := s.gate.Require(actor, auth.RunSessions); err != nil {
		return nil, err
	}
	trainer, err := trainerOf(actor)
	if err != nil {
		return nil, err
	}
	session, err := s.Sessions.GetActiveByTrainer(ctx, trainer.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoActiveSession
	}
	return session, err
}

// EndSession completes the actor's active session
func (s *Service) EndSession(ctx context.Context, actor *auth.Actor) (*models.SessionView, error) {
	active, err := s.ActiveSession(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.Sessions.Complete(ctx, active.ID, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNoActiveSession
		}
		return nil, err
	}

	view, err := s.Sessions.GetByID(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("session_id", view.ID).Info("Session ended")
	s.audit(ctx, actor, "session.end", fmt.Sprintf("%s %s", view.Type, view.GroupName))
	s.notifier.SessionEnded(ctx, view)
	return view, nil
}

// RollCall returns the active session with every child of its group and
// the mark each has so far.
func (s *Service) RollCall(ctx context.Context, actor *auth.Actor) (*models.SessionView, []*models.RollCallEntry, error) {
	session, err := s.ActiveSession(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.Attendance.RollCall(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, entries, nil
}

// MarkAttendance records or overwrites a child's mark for a started session
// of the actor. The child must belong to the session's group.
func (s *Service) MarkAttendance(ctx context.Context, actor *auth.Actor, sessionID, childID int64, status models.AttendanceStatus) error {
	if err := s.gate.Require(actor, auth.RunSessions); err != nil {
		return err
	}
	session, err := s.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.gate.RequireTrainer(actor, auth.RunSessions, session.TrainerID); err != nil {
		return err
	}
	if !session.IsActive() {
		return models.ErrNoActiveSession
	}

	child, err := s.Children.GetByID(ctx, childID)
	if err != nil {
		return err
	}
	if child.GroupID != session.GroupID {
		return fmt.Errorf("child %d not in group %d: %w", childID, session.GroupID,
			models.Invalid("This child is not in the session's group."))
	}

	if err := s.Attendance.Mark(ctx, session.ID, child.ID, status, s.now()); err != nil {
		return err
	}
	s.notifier.AttendanceMarked(ctx, session, child.ID, status)
	return nil
}
