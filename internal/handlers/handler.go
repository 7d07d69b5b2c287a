// Package handlers turns chat input into replies. It knows nothing about
// Telegram: the router converts updates into a Request and renders the
// Reply it gets back.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/metrics"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/service"
)

// Request is one inbound message, button press or shared location
type Request struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string

	// Command is set for "/name args" messages, without the slash.
	Command string
	Args    []string
	Text    string
	// Action is set for button presses.
	Action   *action.Action
	Location *models.Location
}

// Button is an inline keyboard button
type Button struct {
	Label  string
	Action action.Action
}

// Reply is what the user sees in response
type Reply struct {
	Text     string
	Keyboard [][]Button
	// Edit replaces the message the pressed button belongs to.
	Edit bool
	// RequestLocation asks the client to offer a "share location" button.
	RequestLocation bool
}

type stepFunc func(ctx context.Context, c *call) (Reply, error)

// call is the state of one request while it is being handled
type call struct {
	req     Request
	actor   *auth.Actor
	session *conversation.Session
}

// input returns the pressed button, if any
func (c *call) input() (action.Action, bool) {
	if c.req.Action == nil {
		return action.Action{}, false
	}
	return *c.req.Action, true
}

// pressed reports whether the request is a press of a button of kind k
func (c *call) pressed(k action.Kind) bool {
	a, ok := c.input()
	return ok && a.Kind == k
}

func (c *call) profile() service.Profile {
	return service.Profile{
		TelegramID: c.req.UserID,
		Username:   c.req.Username,
		FirstName:  c.req.FirstName,
		LastName:   c.req.LastName,
	}
}

// errUnexpected marks input a step does not accept. The step stays as it is.
var errUnexpected = errors.New("unexpected input")

// Handler runs commands, buttons and multi-step dialogs
type Handler struct {
	svc    *service.Service
	store  conversation.Store
	logger *logrus.Logger
	steps  map[conversation.Step]stepFunc
	locks  *chatLocks
}

// New creates a handler keeping dialog state in store
func New(svc *service.Service, store conversation.Store, logger *logrus.Logger) *Handler {
	h := &Handler{svc: svc, store: store, logger: logger, locks: newChatLocks()}
	h.steps = h.stepTable()
	return h
}

// commands maps slash commands onto the button they stand for
var commands = map[string]action.Kind{
	"menu":     action.Home,
	"branches": action.BranchList,
	"trainers": action.TrainerList,
	"groups":   action.GroupList,
	"children": action.ChildList,
	"kids":     action.MyChildren,
	"session":  action.SessionStart,
	"end":      action.SessionEnd,
	"rollcall": action.RollCall,
	"pay":      action.PaymentAdd,
	"cash":     action.MyCash,
	"pending":  action.PendingCash,
	"finance":  action.Finance,
	"reports":  action.Reports,
	"daily":    action.DailyReport,
	"stats":    action.MyStats,
}

// Handle processes one request to completion. Requests of the same user in
// the same chat run one at a time; others run concurrently.
func (h *Handler) Handle(ctx context.Context, req Request) Reply {
	unlock := h.locks.lock(req.UserID, req.ChatID)
	defer unlock()

	session, err := h.store.Load(ctx, req.UserID, req.ChatID)
	if err != nil {
		return h.failed(req, fmt.Errorf("failed to load conversation: %w", err))
	}
	c := &call{req: req, session: session}

	c.actor, err = h.resolve(ctx, c)
	if err != nil {
		return h.failed(req, err)
	}

	reply, err := h.dispatch(ctx, c)
	if err != nil {
		return h.fail(ctx, c, err)
	}
	if err := h.persist(ctx, c.session); err != nil {
		return h.failed(req, err)
	}
	reply.Edit = req.Action != nil && !reply.RequestLocation
	return reply
}

// resolve returns the registered actor, bootstrapping allow-listed head
// trainers. Unregistered users get a nil actor.
func (h *Handler) resolve(ctx context.Context, c *call) (*auth.Actor, error) {
	actor, err := h.svc.ResolveActor(ctx, c.req.UserID)
	if err == nil {
		return actor, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if h.svc.IsAdmin(c.req.UserID) {
		return h.svc.EnsureHeadTrainer(ctx, c.profile())
	}
	return nil, nil
}

func (h *Handler) dispatch(ctx context.Context, c *call) (Reply, error) {
	switch c.req.Command {
	case "cancel":
		c.session.Clear()
		return h.home(ctx, c, "Cancelled.")
	case "start":
		c.session.Clear()
		if c.actor == nil {
			return h.beginRegistration(ctx, c)
		}
		return h.home(ctx, c, "")
	case "help":
		return Reply{Text: helpText(c.actor), Keyboard: homeRow()}, nil
	case "register":
		if c.actor != nil {
			return Reply{}, models.ErrAlreadyRegistered
		}
		return h.beginRegistration(ctx, c)
	case "":
	default:
		kind, ok := commands[c.req.Command]
		if !ok {
			return Reply{Text: "❓ Unknown command. Use /help to see available commands."}, nil
		}
		if c.actor == nil {
			return notRegistered(), nil
		}
		c.session.Clear()
		return h.onAction(ctx, c, action.New(kind))
	}

	if a, ok := c.input(); ok {
		switch a.Kind {
		case action.Back, action.Home:
			c.session.Clear()
			return h.home(ctx, c, "")
		}
		if isInput(a.Kind) {
			return h.step(ctx, c)
		}
		if c.actor == nil {
			return notRegistered(), nil
		}
		// a menu button abandons whatever dialog was running
		c.session.Clear()
		return h.onAction(ctx, c, a)
	}

	if !c.session.Idle() {
		return h.step(ctx, c)
	}
	if c.actor == nil {
		return notRegistered(), nil
	}
	return h.home(ctx, c, "Choose an action:")
}

// step feeds the request to the running dialog
func (h *Handler) step(ctx context.Context, c *call) (Reply, error) {
	fn, ok := h.steps[c.session.Step]
	if !ok {
		c.session.Clear()
		return h.home(ctx, c, "This button has expired.")
	}
	if c.actor == nil && !isRegistrationStep(c.session.Step) {
		c.session.Clear()
		return notRegistered(), nil
	}
	return fn(ctx, c)
}

// isInput reports whether the kind answers a dialog step rather than opening a view
func isInput(k action.Kind) bool {
	switch k {
	case action.Skip, action.Keep, action.RegisterRole,
		action.BranchPick, action.BranchEditAddress,
		action.TrainerPick, action.TrainerEditBranch,
		action.GroupPick, action.GroupEditTrainer,
		action.ChildPick, action.ParentPick, action.ChildEditParent, action.ChildEditGroup,
		action.SessionType,
		action.PaymentAmount, action.PaymentCustom, action.PaymentMonth, action.PaymentConfirm:
		return true
	}
	return false
}

// onAction opens the view or starts the dialog behind a button
func (h *Handler) onAction(ctx context.Context, c *call, a action.Action) (Reply, error) {
	switch a.Kind {
	case action.Unknown, action.Back, action.Home:
		c.session.Clear()
		return h.home(ctx, c, "")

	case action.Skip, action.Keep, action.RegisterRole,
		action.BranchPick, action.BranchEditAddress,
		action.TrainerPick, action.TrainerEditBranch,
		action.GroupPick, action.GroupEditTrainer,
		action.ChildPick, action.ParentPick, action.ChildEditParent, action.ChildEditGroup,
		action.SessionType,
		action.PaymentAmount, action.PaymentCustom, action.PaymentMonth, action.PaymentConfirm:
		return h.step(ctx, c)

	case action.BranchList:
		return h.branchList(ctx, c)
	case action.BranchView:
		return h.branchView(ctx, c, a.ID)
	case action.BranchAdd:
		return h.beginBranchCreate(ctx, c)
	case action.BranchEdit:
		return h.beginBranchEdit(ctx, c, a.ID)
	case action.BranchDelete:
		return h.deletePreview(ctx, c, models.KindBranch, a.ID)

	case action.TrainerList:
		return h.trainerList(ctx, c)
	case action.TrainerView:
		return h.trainerView(ctx, c, a.ID)
	case action.TrainerAdd:
		return h.beginTrainerCreate(ctx, c)
	case action.TrainerEdit:
		return h.beginTrainerEdit(ctx, c, a.ID)
	case action.TrainerDelete:
		return h.deletePreview(ctx, c, models.KindTrainer, a.ID)

	case action.GroupList:
		return h.groupList(ctx, c)
	case action.GroupView:
		return h.groupView(ctx, c, a.ID)
	case action.GroupAdd:
		return h.beginGroupCreate(ctx, c)
	case action.GroupEdit:
		return h.beginGroupEdit(ctx, c, a.ID)
	case action.GroupDelete:
		return h.deletePreview(ctx, c, models.KindGroup, a.ID)

	case action.ChildList, action.MyChildren:
		return h.childList(ctx, c)
	case action.ChildView:
		return h.childView(ctx, c, a.ID)
	case action.ChildAdd:
		return h.beginChildCreate(ctx, c)
	case action.ChildEdit:
		return h.beginChildEdit(ctx, c, a.ID)
	case action.ChildRename:
		return h.beginChildRename(ctx, c, a.ID)
	case action.ChildDelete:
		return h.deletePreview(ctx, c, models.KindChild, a.ID)
	case action.ChildAttendance:
		return h.childAttendance(ctx, c, a.ID)
	case action.ChildPayments:
		return h.childPayments(ctx, c, a.ID)
	case action.ChildRequest:
		return h.beginChildRequest(ctx, c)

	case action.ConfirmDelete:
		return h.confirmDelete(ctx, c, models.EntityKind(a.Value), a.ID)

	case action.SessionStart:
		return h.beginSession(ctx, c)
	case action.SessionEnd:
		return h.endSession(ctx, c)
	case action.RollCall:
		return h.rollCall(ctx, c)
	case action.MarkPresent:
		return h.mark(ctx, c, a.ID, a.SubID, models.AttendancePresent)
	case action.MarkAbsent:
		return h.mark(ctx, c, a.ID, a.SubID, models.AttendanceAbsent)
	case action.MyGroups:
		return h.myGroups(ctx, c)
	case action.MyStats:
		return h.myStats(ctx, c)

	case action.PaymentAdd:
		return h.beginPayment(ctx, c)
	case action.MyCash:
		return h.myCash(ctx, c)
	case action.HandIn:
		return h.handIn(ctx, c)
	case action.PendingCash:
		return h.pendingCash(ctx, c)
	case action.AcceptCash:
		return h.acceptCashPrompt(ctx, c, a.ID)
	case action.AcceptCashConfirm:
		return h.acceptCash(ctx, c, a.ID)
	case action.Finance:
		return h.finance(ctx, c)

	case action.Reports:
		return h.reports(ctx, c)
	case action.ReportBranches:
		return h.rollup(ctx, c, service.Period(a.Value), models.RollupByBranch)
	case action.ReportTrainers:
		return h.rollup(ctx, c, service.Period(a.Value), models.RollupByTrainer)
	case action.DailyReport:
		return h.dailyReport(ctx, c)
	}
	return Reply{}, fmt.Errorf("unhandled action %s", a.Kind)
}

// persist saves the dialog, or drops it when no dialog is running
func (h *Handler) persist(ctx context.Context, s *conversation.Session) error {
	if s.Idle() {
		if err := h.store.Clear(ctx, s.UserID, s.ChatID); err != nil {
			return fmt.Errorf("failed to clear conversation: %w", err)
		}
		return nil
	}
	if err := h.store.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// fail turns a handler error into what the user sees. Validation errors keep
// the dialog where it is, not-found and precondition errors end it, and a
// denial or an internal error leaves the stored state untouched.
func (h *Handler) fail(ctx context.Context, c *call, err error) Reply {
	var pre *models.PreconditionError
	switch {
	case errors.Is(err, errUnexpected):
		return Reply{Text: "Please use the buttons above, or /cancel to stop.", Keyboard: cancelRow()}
	case errors.Is(err, models.ErrValidation):
		h.logger.WithFields(logrus.Fields{
			"chat_id": c.req.ChatID,
			"step":    c.session.Step,
			"error":   err,
		}).Debug("Input rejected")
		if perr := h.persist(ctx, c.session); perr != nil {
			return h.failed(c.req, perr)
		}
		return Reply{Text: "⚠️ " + hint(err) + "\nPlease try again, or /cancel to stop.", Keyboard: cancelRow()}
	case errors.Is(err, models.ErrForbidden):
		h.logger.WithFields(logrus.Fields{
			"chat_id": c.req.ChatID,
			"user_id": c.req.UserID,
			"error":   err,
		}).Warn("Action denied")
		return Reply{Text: "⛔ Not allowed.", Keyboard: homeRow()}
	case errors.As(err, &pre):
		return h.abort(ctx, c, pre.Reason)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrInvalidReference):
		return h.abort(ctx, c, "Not found.")
	case errors.Is(err, models.ErrConflict):
		return h.abort(ctx, c, "This already exists.")
	}
	return h.failed(c.req, err)
}

// abort ends the dialog and shows text with the home menu
func (h *Handler) abort(ctx context.Context, c *call, text string) Reply {
	c.session.Clear()
	if err := h.persist(ctx, c.session); err != nil {
		return h.failed(c.req, err)
	}
	reply, err := h.home(ctx, c, text)
	if err != nil {
		return Reply{Text: text, Keyboard: homeRow()}
	}
	return reply
}

func (h *Handler) failed(req Request, err error) Reply {
	metrics.HandlerErrors.Inc()
	h.logger.WithFields(logrus.Fields{
		"chat_id": req.ChatID,
		"user_id": req.UserID,
		"command": req.Command,
		"error":   err,
	}).Error("Handler failed")
	return Reply{Text: "❌ Something went wrong. Please try again later."}
}

// hint extracts the user-facing part of a validation error
// hint is the part of a validation error meant for the user. Anything else
// in the chain stays in the logs.
func hint(err error) string {
	var input *models.InputError
	if errors.As(err, &input) && input.Hint != "" {
		return input.Hint
	}
	return "Invalid input."
}

func notRegistered() Reply {
	return Reply{Text: "👋 You are not registered yet. Send /register to sign up."}
}
