// Package auth decides what an actor may do. The policy lives in one table
// and every privileged service operation asks the Gate before touching data.
package auth

import (
	"fmt"

	"github.com/Kerhoff/academybot/internal/metrics"
	"github.com/Kerhoff/academybot/internal/models"
)

// Capability is a permission granted to roles
type Capability int

const (
	ManageAcademy Capability = iota + 1
	DeleteEntities
	ViewRoster
	ViewAcademy
	RunSessions
	RecordPayments
	CollectCash
	ViewFinance
	ManageOwnChildren
	RequestChild
)

var capabilityNames = map[Capability]string{
	ManageAcademy:     "manage_academy",
	DeleteEntities:    "delete_entities",
	ViewRoster:        "view_roster",
	ViewAcademy:       "view_academy",
	RunSessions:       "run_sessions",
	RecordPayments:    "record_payments",
	CollectCash:       "collect_cash",
	ViewFinance:       "view_finance",
	ManageOwnChildren: "manage_own_children",
	RequestChild:      "request_child",
}

func (c Capability) String() string {
	if n, ok := capabilityNames[c]; ok {
		return n
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

var policy = map[models.Role]map[Capability]bool{
	models.RoleHeadTrainer: {
		ManageAcademy: true, DeleteEntities: true, ViewRoster: true, ViewAcademy: true,
		RunSessions: true, RecordPayments: true, CollectCash: true, ViewFinance: true,
		ManageOwnChildren: true, RequestChild: true,
	},
	models.RoleTrainer: {RunSessions: true, RecordPayments: true, ViewAcademy: true},
	models.RoleParent:  {ManageOwnChildren: true, RequestChild: true},
	models.RoleCashier: {CollectCash: true, ViewFinance: true},
}

// Actor is the registered user behind an update, with the trainer profile
// linked to the account if there is one.
type Actor struct {
	User    *models.User
	Trainer *models.Trainer
}

// Role returns the actor's role or "" for an unknown actor
func (a *Actor) Role() models.Role {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.Role
}

// IsHead reports whether the actor is an active head trainer
func (a *Actor) IsHead() bool {
	return a.active() && a.User.Role == models.RoleHeadTrainer
}

// TrainerID returns the linked trainer profile id
func (a *Actor) TrainerID() (int64, bool) {
	if a == nil || a.Trainer == nil {
		return 0, false
	}
	return a.Trainer.ID, true
}

// UserID returns the actor's user id, or nil for an unknown actor
func (a *Actor) UserID() *int64 {
	if a == nil || a.User == nil {
		return nil
	}
	id := a.User.ID
	return &id
}

func (a *Actor) active() bool {
	return a != nil && a.User != nil && a.User.IsActive
}

// Gate applies the role policy
type Gate struct{}

// NewGate creates the authorization gate
func NewGate() *Gate {
	return &Gate{}
}

// Can reports whether the actor holds the capability
func (g *Gate) Can(actor *Actor, c Capability) bool {
	if !actor.active() {
		return false
	}
	return policy[actor.User.Role][c]
}

// Require returns models.ErrForbidden unless the actor holds the capability
func (g *Gate) Require(actor *Actor, c Capability) error {
	if g.Can(actor, c) {
		return nil
	}
	return deny(actor, c)
}

// RequireChild checks the capability and that the child is within the
// actor's reach: a parent's own child or a child in a trainer's group.
func (g *Gate) RequireChild(actor *Actor, c Capability, child *models.ChildView) error {
	if err := g.Require(actor, c); err != nil {
		return err
	}
	if actor.IsHead() {
		return nil
	}
	switch actor.User.Role {
	case models.RoleParent:
		if child.ParentID == actor.User.ID {
			return nil
		}
	case models.RoleTrainer:
		if id, ok := actor.TrainerID(); ok && child.TrainerID == id {
			return nil
		}
	}
	return deny(actor, c)
}

// RequireGroup checks the capability and that a trainer owns the group
func (g *Gate) RequireGroup(actor *Actor, c Capability, group *models.Group) error {
	return g.RequireTrainer(actor, c, group.TrainerID)
}

// RequireTrainer checks the capability and that a trainer acts on their own
// records. Head trainers act on anyone's.
func (g *Gate) RequireTrainer(actor *Actor, c Capability, trainerID int64) error {
	if err := g.Require(actor, c); err != nil {
		return err
	}
	if actor.IsHead() {
		return nil
	}
	if id, ok := actor.TrainerID(); ok && id == trainerID {
		return nil
	}
	return deny(actor, c)
}

func deny(actor *Actor, c Capability) error {
	metrics.Denials.WithLabelValues(c.String()).Inc()
	return fmt.Errorf("%s may not %s: %w", actor.Role(), c, models.ErrForbidden)
}
