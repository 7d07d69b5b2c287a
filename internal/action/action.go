// Package action encodes button presses into callback tokens and back.
//
// A token is "name", "name:id", "name:id:id", "name:value" or
// "name:id:value". Names are looked up exactly in a closed table, so two
// kinds never shadow each other even when one name is a prefix of another.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxLen is Telegram's limit for callback data
const MaxLen = 64

// Arity describes the arguments a kind carries
type Arity int

const (
	ArityNone    Arity = iota
	ArityID            // one id
	ArityIDs           // two ids
	ArityValue         // one free value
	ArityIDValue       // an id followed by a value
)

func (a Arity) args() int {
	switch a {
	case ArityID, ArityValue:
		return 1
	case ArityIDs, ArityIDValue:
		return 2
	}
	return 0
}

// Kind identifies what a button does
type Kind int

const (
	Unknown Kind = iota

	Back
	Home
	Skip
	Keep

	RegisterRole

	BranchList
	BranchView
	BranchAdd
	BranchEdit
	BranchEditAddress
	BranchDelete
	BranchPick

	TrainerList
	TrainerView
	TrainerAdd
	TrainerEdit
	TrainerEditBranch
	TrainerDelete
	TrainerPick

	GroupList
	GroupView
	GroupAdd
	GroupEdit
	GroupEditTrainer
	GroupDelete
	GroupPick

	ChildList
	ChildView
	ChildAdd
	ChildEdit
	ChildEditParent
	ChildEditGroup
	ChildRename
	ChildDelete
	ChildPick
	ChildAttendance
	ChildPayments
	ChildRequest
	ParentPick
	MyChildren

	ConfirmDelete

	SessionStart
	SessionType
	SessionEnd
	RollCall
	MarkPresent
	MarkAbsent
	MyGroups
	MyStats

	PaymentAdd
	PaymentAmount
	PaymentCustom
	PaymentMonth
	PaymentConfirm
	MyCash
	HandIn

	PendingCash
	AcceptCash
	AcceptCashConfirm
	Finance

	Reports
	ReportBranches
	ReportTrainers
	DailyReport
)

type spec struct {
	name  string
	arity Arity
}

var specs = map[Kind]spec{
	Back: {"back", ArityNone},
	Home: {"home", ArityNone},
	Skip: {"skip", ArityNone},
	Keep: {"keep", ArityNone},

	RegisterRole: {"reg.role", ArityValue},

	BranchList:        {"branches", ArityNone},
	BranchView:        {"branch.view", ArityID},
	BranchAdd:         {"branch.add", ArityNone},
	BranchEdit:        {"branch.edit", ArityID},
	BranchEditAddress: {"branch.edit_address", ArityNone},
	BranchDelete:      {"branch.delete", ArityID},
	BranchPick:        {"branch.pick", ArityID},

	TrainerList:       {"trainers", ArityNone},
	TrainerView:       {"trainer.view", ArityID},
	TrainerAdd:        {"trainer.add", ArityNone},
	TrainerEdit:       {"trainer.edit", ArityID},
	TrainerEditBranch: {"trainer.edit_branch", ArityNone},
	TrainerDelete:     {"trainer.delete", ArityID},
	TrainerPick:       {"trainer.pick", ArityID},

	GroupList:        {"groups", ArityNone},
	GroupView:        {"group.view", ArityID},
	GroupAdd:         {"group.add", ArityNone},
	GroupEdit:        {"group.edit", ArityID},
	GroupEditTrainer: {"group.edit_trainer", ArityNone},
	GroupDelete:      {"group.delete", ArityID},
	GroupPick:        {"group.pick", ArityID},

	ChildList:       {"children", ArityNone},
	ChildView:       {"child.view", ArityID},
	ChildAdd:        {"child.add", ArityNone},
	ChildEdit:       {"child.edit", ArityID},
	ChildEditParent: {"child.edit_parent", ArityNone},
	ChildEditGroup:  {"child.edit_group", ArityNone},
	ChildRename:     {"child.rename", ArityID},
	ChildDelete:     {"child.delete", ArityID},
	ChildPick:       {"child.pick", ArityID},
	ChildAttendance: {"child.attendance", ArityID},
	ChildPayments:   {"child.payments", ArityID},
	ChildRequest:    {"child.request", ArityNone},
	ParentPick:      {"parent.pick", ArityID},
	MyChildren:      {"my.children", ArityNone},

	ConfirmDelete: {"delete.ok", ArityIDValue},

	SessionStart: {"session.start", ArityNone},
	SessionType:  {"session.type", ArityValue},
	SessionEnd:   {"session.end", ArityNone},
	RollCall:     {"rollcall", ArityNone},
	MarkPresent:  {"mark.present", ArityIDs},
	MarkAbsent:   {"mark.absent", ArityIDs},
	MyGroups:     {"my.groups", ArityNone},
	MyStats:      {"my.stats", ArityNone},

	PaymentAdd:     {"payment.add", ArityNone},
	PaymentAmount:  {"payment.amount", ArityValue},
	PaymentCustom:  {"payment.custom", ArityNone},
	PaymentMonth:   {"payment.month", ArityValue},
	PaymentConfirm: {"payment.confirm", ArityNone},
	MyCash:         {"cash", ArityNone},
	HandIn:         {"cash.hand_in", ArityNone},

	PendingCash:       {"cash.pending", ArityNone},
	AcceptCash:        {"cash.accept", ArityID},
	AcceptCashConfirm: {"cash.accept_ok", ArityID},
	Finance:           {"finance", ArityNone},

	Reports:        {"reports", ArityNone},
	ReportBranches: {"report.branches", ArityValue},
	ReportTrainers: {"report.trainers", ArityValue},
	DailyReport:    {"report.daily", ArityNone},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(specs))
	for k, s := range specs {
		m[s.name] = k
	}
	return m
}()

// String returns the token name of the kind
func (k Kind) String() string {
	if s, ok := specs[k]; ok {
		return s.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Arity returns the arguments the kind carries
func (k Kind) Arity() Arity {
	return specs[k].arity
}

var (
	ErrUnknown = errors.New("unknown action")
	ErrArity   = errors.New("wrong number of action arguments")
	ErrID      = errors.New("malformed action id")
)

// Action is a decoded button press. Only the fields of the kind's arity are set.
type Action struct {
	Kind  Kind
	ID    int64
	SubID int64
	Value string
}

// New returns an action without arguments
func New(k Kind) Action { return Action{Kind: k} }

// WithID returns an action carrying one id
func WithID(k Kind, id int64) Action { return Action{Kind: k, ID: id} }

// WithIDs returns an action carrying two ids
func WithIDs(k Kind, id, subID int64) Action { return Action{Kind: k, ID: id, SubID: subID} }

// WithValue returns an action carrying a value
func WithValue(k Kind, v string) Action { return Action{Kind: k, Value: v} }

// WithIDValue returns an action carrying an id and a value
func WithIDValue(k Kind, id int64, v string) Action { return Action{Kind: k, ID: id, Value: v} }

// Encode renders the action as callback data
func Encode(a Action) string {
	s, ok := specs[a.Kind]
	if !ok {
		return ""
	}
	id := strconv.FormatInt(a.ID, 10)
	switch s.arity {
	case ArityID:
		return s.name + ":" + id
	case ArityIDs:
		return s.name + ":" + id + ":" + strconv.FormatInt(a.SubID, 10)
	case ArityValue:
		return s.name + ":" + a.Value
	case ArityIDValue:
		return s.name + ":" + id + ":" + a.Value
	}
	return s.name
}

// Decode parses callback data produced by Encode
func Decode(data string) (Action, error) {
	name, rest, hasArgs := strings.Cut(data, ":")
	kind, ok := byName[name]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	arity := specs[kind].arity
	var args []string
	if hasArgs {
		n := arity.args()
		if n == 0 {
			return Action{}, fmt.Errorf("%w: %s takes none", ErrArity, name)
		}
		args = strings.SplitN(rest, ":", n)
	}
	if len(args) != arity.args() {
		return Action{}, fmt.Errorf("%w: %s wants %d, got %d", ErrArity, name, arity.args(), len(args))
	}

	a := Action{Kind: kind}
	var err error
	switch arity {
	case ArityID:
		a.ID, err = parseID(args[0])
	case ArityIDs:
		if a.ID, err = parseID(args[0]); err == nil {
			a.SubID, err = parseID(args[1])
		}
	case ArityValue:
		a.Value = args[0]
	case ArityIDValue:
		a.ID, err = parseID(args[0])
		a.Value = args[1]
	}
	if err != nil {
		return Action{}, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrID, s)
	}
	return id, nil
}
