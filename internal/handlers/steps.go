package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/service"
)

const (
	stepRegRole  conversation.Step = "reg.role"
	stepRegName  conversation.Step = "reg.name"
	stepRegPhone conversation.Step = "reg.phone"

	stepBranchName        conversation.Step = "branch.name"
	stepBranchAddress     conversation.Step = "branch.address"
	stepBranchEditName    conversation.Step = "branch.edit.name"
	stepBranchEditAddress conversation.Step = "branch.edit.address"

	stepTrainerName       conversation.Step = "trainer.name"
	stepTrainerBranch     conversation.Step = "trainer.branch"
	stepTrainerEditName   conversation.Step = "trainer.edit.name"
	stepTrainerEditBranch conversation.Step = "trainer.edit.branch"

	stepGroupName        conversation.Step = "group.name"
	stepGroupBranch      conversation.Step = "group.branch"
	stepGroupTrainer     conversation.Step = "group.trainer"
	stepGroupEditName    conversation.Step = "group.edit.name"
	stepGroupEditTrainer conversation.Step = "group.edit.trainer"

	stepChildName       conversation.Step = "child.name"
	stepChildParent     conversation.Step = "child.parent"
	stepChildGroup      conversation.Step = "child.group"
	stepChildEditName   conversation.Step = "child.edit.name"
	stepChildEditParent conversation.Step = "child.edit.parent"
	stepChildEditGroup  conversation.Step = "child.edit.group"
	stepChildRename     conversation.Step = "child.rename"
	stepChildRequest    conversation.Step = "child.request"

	stepSessionType     conversation.Step = "session.type"
	stepSessionLocation conversation.Step = "session.location"
	stepSessionGroup    conversation.Step = "session.group"

	stepPaymentChild   conversation.Step = "payment.child"
	stepPaymentAmount  conversation.Step = "payment.amount"
	stepPaymentMonth   conversation.Step = "payment.month"
	stepPaymentConfirm conversation.Step = "payment.confirm"
)

// scratch keys
const (
	keyID     = "id"
	keyName   = "name"
	keyRole   = "role"
	keyBranch = "branch"
	keyParent = "parent"
	keyGroup  = "group"
	keyOnly   = "only"
	keyType   = "type"
	keyLat    = "lat"
	keyLon    = "lon"
	keyChild  = "child"
	keyAmount = "amount"
	keyMonth  = "month"
)

func (h *Handler) stepTable() map[conversation.Step]stepFunc {
	return map[conversation.Step]stepFunc{
		stepRegRole:  h.regRole,
		stepRegName:  h.regName,
		stepRegPhone: h.regPhone,

		stepBranchName:        h.branchName,
		stepBranchAddress:     h.branchAddress,
		stepBranchEditName:    h.branchEditName,
		stepBranchEditAddress: h.branchEditAddress,

		stepTrainerName:       h.trainerName,
		stepTrainerBranch:     h.trainerBranch,
		stepTrainerEditName:   h.trainerEditName,
		stepTrainerEditBranch: h.trainerEditBranch,

		stepGroupName:        h.groupName,
		stepGroupBranch:      h.groupBranch,
		stepGroupTrainer:     h.groupTrainer,
		stepGroupEditName:    h.groupEditName,
		stepGroupEditTrainer: h.groupEditTrainer,

		stepChildName:       h.childName,
		stepChildParent:     h.childParent,
		stepChildGroup:      h.childGroup,
		stepChildEditName:   h.childEditName,
		stepChildEditParent: h.childEditParent,
		stepChildEditGroup:  h.childEditGroup,
		stepChildRename:     h.childRename,
		stepChildRequest:    h.childRequest,

		stepSessionType:     h.sessionType,
		stepSessionLocation: h.sessionLocation,
		stepSessionGroup:    h.sessionGroup,

		stepPaymentChild:   h.paymentChild,
		stepPaymentAmount:  h.paymentAmount,
		stepPaymentMonth:   h.paymentMonth,
		stepPaymentConfirm: h.paymentConfirm,
	}
}

func isRegistrationStep(s conversation.Step) bool {
	return strings.HasPrefix(string(s), "reg.")
}

// text returns the typed text of a step answer; a button press is unexpected
func (c *call) text() (string, error) {
	if c.req.Action != nil || c.req.Location != nil {
		return "", errUnexpected
	}
	return conversation.RequiredText(c.req.Text)
}

// picked returns the id of a pressed button of kind k
func (c *call) picked(k action.Kind) (int64, error) {
	a, ok := c.input()
	if !ok || a.Kind != k {
		return 0, errUnexpected
	}
	return a.ID, nil
}

// kept reports whether the user chose to keep the current value, by button
// or by typing what conversation.IsSkip accepts.
func (c *call) kept() bool {
	if c.pressed(action.Keep) || c.pressed(action.Skip) {
		return true
	}
	return c.req.Action == nil && conversation.IsSkip(c.req.Text)
}

// scratchID reads an id collected earlier in the dialog
func (c *call) scratchID(key string) (*int64, error) {
	if !c.session.Has(key) {
		return nil, nil
	}
	id, ok := c.session.Int64(key)
	if !ok {
		return nil, fmt.Errorf("corrupt %s in conversation scratch", key)
	}
	return &id, nil
}

func (c *call) scratchText(key string) *string {
	if !c.session.Has(key) {
		return nil
	}
	v := c.session.Get(key)
	return &v
}

func prompt(text string, rows ...[]Button) Reply {
	kb := append([][]Button{}, rows...)
	kb = append(kb, cancelRow()...)
	return Reply{Text: text, Keyboard: kb}
}

func keepRow(extra ...Button) []Button {
	return append(row(btn("↩️ Keep", action.New(action.Keep))), extra...)
}

func skipRow() []Button {
	return row(btn("⏭ Skip", action.New(action.Skip)))
}

// ---- Registration ----

var registrationRoles = []models.Role{models.RoleTrainer, models.RoleParent, models.RoleCashier}

func (h *Handler) beginRegistration(_ context.Context, c *call) (Reply, error) {
	c.session.Begin(stepRegRole)
	var rows [][]Button
	for _, role := range registrationRoles {
		rows = append(rows, row(btn(role.Title(), action.WithValue(action.RegisterRole, string(role)))))
	}
	return prompt("👋 Welcome to the academy bot!\nWho are you?", rows...), nil
}

func (h *Handler) regRole(_ context.Context, c *call) (Reply, error) {
	a, ok := c.input()
	if !ok || a.Kind != action.RegisterRole {
		return Reply{}, errUnexpected
	}
	role := models.Role(a.Value)
	if !role.Valid() || role == models.RoleHeadTrainer {
		return Reply{}, models.Invalid("Choose one of the offered roles.")
	}
	c.session.Set(keyRole, string(role))
	c.session.Advance(stepRegName)

	text := "Enter your full name:"
	if role == models.RoleTrainer {
		text = "Enter your full name exactly as the head trainer added you:"
	}
	return prompt(text), nil
}

func (h *Handler) regName(_ context.Context, c *call) (Reply, error) {
	name, err := c.text()
	if err != nil {
		return Reply{}, err
	}
	c.session.Set(keyName, name)
	c.session.Advance(stepRegPhone)
	return prompt("Send your phone number, or press Skip.", skipRow()), nil
}

func (h *Handler) regPhone(ctx context.Context, c *call) (Reply, error) {
	var phone *string
	if !c.pressed(action.Skip) {
		if c.req.Action != nil {
			return Reply{}, errUnexpected
		}
		phone = conversation.OptionalText(c.req.Text)
	}

	actor, err := h.svc.Register(ctx, service.Registration{
		Profile:  c.profile(),
		Role:     models.Role(c.session.Get(keyRole)),
		FullName: c.session.Get(keyName),
		Phone:    phone,
	})
	if err != nil {
		return Reply{}, err
	}
	c.actor = actor
	c.session.Clear()
	return h.home(ctx, c, fmt.Sprintf("✅ Registered as %s.", strings.ToLower(actor.Role().Title())))
}
