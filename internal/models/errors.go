package models

import "errors"

// Sentinel errors shared by the store, the service and the handlers.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidReference = errors.New("invalid reference")
	ErrPrecondition     = errors.New("precondition failed")
)

// PreconditionError carries the reason shown to the user when an operation
// cannot run in the current state. It matches ErrPrecondition.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// InputError is a validation failure whose Hint can be shown to the user as
// is. It matches ErrValidation.
type InputError struct {
	Hint string
}

func (e *InputError) Error() string { return e.Hint }

func (e *InputError) Is(target error) bool { return target == ErrValidation }

// Invalid returns an InputError with the given hint
func Invalid(hint string) error {
	return &InputError{Hint: hint}
}

var (
	ErrSessionActive     = &PreconditionError{"You already have an active session. Finish it first."}
	ErrNoActiveSession   = &PreconditionError{"You have no active session."}
	ErrNoTrainerProfile  = &PreconditionError{"No trainer profile is linked to your account."}
	ErrNoGroups          = &PreconditionError{"You have no groups assigned. Contact the head trainer."}
	ErrNoPendingCash     = &PreconditionError{"There is no money waiting to be handed in."}
	ErrNoBranches        = &PreconditionError{"Create a branch first."}
	ErrNoTrainers        = &PreconditionError{"This branch has no trainers. Add a trainer first."}
	ErrNoParents         = &PreconditionError{"No registered parents yet. Ask the parent to /register first."}
	ErrNoGroupsToPick    = &PreconditionError{"Create a group first."}
	ErrNoChildren        = &PreconditionError{"There are no children in your groups yet."}
	ErrAlreadyRegistered = &PreconditionError{"You are already registered."}
	ErrTrainerNotListed  = &PreconditionError{"No trainer with exactly this name is waiting for registration. " +
		"Ask the head trainer to add you and check the spelling."}
)
