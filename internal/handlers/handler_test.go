package handlers_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/handlers"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/notify"
	"github.com/Kerhoff/academybot/internal/repository/sqlstore"
	"github.com/Kerhoff/academybot/internal/service"
	"github.com/Kerhoff/academybot/internal/testutil"
)

const (
	adminID   int64 = 10
	trainerID int64 = 20
	parentID  int64 = 30
	newcomer  int64 = 40
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	h      *handlers.Handler
	svc    *service.Service
	store  *conversation.MemoryStore
	sender *testutil.Sender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLite(t)
	logger := testutil.Logger()
	loc := time.FixedZone("UZT", 5*60*60)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, loc)
	sender := &testutil.Sender{}

	dispatcher := notify.NewDispatcher(sender, sqlstore.NewDirectory(db), logger, loc)
	svc := service.New(db, logger, sqlstore.New(db), auth.NewGate(), dispatcher, service.Options{
		Location: loc,
		AdminIDs: map[int64]bool{adminID: true},
		Now:      func() time.Time { return now },
	})
	store := conversation.NewMemoryStore()
	return &fixture{
		t:      t,
		ctx:    context.Background(),
		h:      handlers.New(svc, store, logger),
		svc:    svc,
		store:  store,
		sender: sender,
	}
}

// academy seeds a branch, a registered trainer with one group and a parent
// with one child, returning the ids the tests press buttons with.
func (f *fixture) academy() (branchID, groupID, childID int64) {
	f.t.Helper()
	head, err := f.svc.EnsureHeadTrainer(f.ctx, service.Profile{TelegramID: adminID, FirstName: "Head"})
	f.must(err)
	branch, err := f.svc.CreateBranch(f.ctx, head, "North", nil)
	f.must(err)
	_, err = f.svc.CreateTrainer(f.ctx, head, "Alex Stone", branch.ID)
	f.must(err)
	trainer, err := f.svc.Register(f.ctx, service.Registration{
		Profile: service.Profile{TelegramID: trainerID}, Role: models.RoleTrainer, FullName: "Alex Stone",
	})
	f.must(err)
	parent, err := f.svc.Register(f.ctx, service.Registration{
		Profile: service.Profile{TelegramID: parentID}, Role: models.RoleParent, FullName: "Pat Doe",
	})
	f.must(err)
	group, err := f.svc.CreateGroup(f.ctx, head, "U10", branch.ID, trainer.Trainer.ID)
	f.must(err)
	child, err := f.svc.CreateChild(f.ctx, head, "Kim", parent.User.ID, group.ID)
	f.must(err)
	return branch.ID, group.ID, child.ID
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("setup: %v", err)
	}
}

func (f *fixture) command(user int64, name string) handlers.Reply {
	return f.h.Handle(f.ctx, handlers.Request{UserID: user, ChatID: user, Command: name})
}

func (f *fixture) text(user int64, text string) handlers.Reply {
	return f.h.Handle(f.ctx, handlers.Request{UserID: user, ChatID: user, Text: text})
}

func (f *fixture) press(user int64, a action.Action) handlers.Reply {
	return f.h.Handle(f.ctx, handlers.Request{UserID: user, ChatID: user, Action: &a})
}

func (f *fixture) step(user int64) conversation.Step {
	f.t.Helper()
	s, err := f.store.Load(f.ctx, user, user)
	f.must(err)
	return s.Step
}

func expectText(t *testing.T, reply handlers.Reply, want string) {
	t.Helper()
	if !strings.Contains(reply.Text, want) {
		t.Fatalf("reply %q does not contain %q", reply.Text, want)
	}
}

// findButton returns the action behind the first button whose label contains label
func findButton(t *testing.T, reply handlers.Reply, label string) action.Action {
	t.Helper()
	for _, r := range reply.Keyboard {
		for _, b := range r {
			if strings.Contains(b.Label, label) {
				return b.Action
			}
		}
	}
	t.Fatalf("no %q button in %+v", label, reply.Keyboard)
	return action.Action{}
}

func TestRegistrationDialog(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		fullName string
		want     string
	}{
		{name: "parent", role: models.RoleParent, fullName: "Pat Doe", want: "✅ Registered as parent."},
		{name: "cashier", role: models.RoleCashier, fullName: "Cas Hier", want: "✅ Registered as cashier."},
		{name: "unlisted trainer", role: models.RoleTrainer, fullName: "Nobody", want: models.ErrTrainerNotListed.Reason},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			expectText(t, f.command(newcomer, "start"), "Who are you?")
			expectText(t, f.press(newcomer, action.WithValue(action.RegisterRole, string(tt.role))), "full name")
			expectText(t, f.text(newcomer, tt.fullName), "phone")
			reply := f.press(newcomer, action.New(action.Skip))
			expectText(t, reply, tt.want)

			if step := f.step(newcomer); step != "" {
				t.Fatalf("dialog still at %q", step)
			}
		})
	}
}

func TestUnregisteredUser(t *testing.T) {
	f := newFixture(t)

	expectText(t, f.command(newcomer, "branches"), "/register")
	expectText(t, f.text(newcomer, "hello"), "/register")
	expectText(t, f.command(newcomer, "nope"), "Unknown command")
}

func TestAdminBootstrap(t *testing.T) {
	f := newFixture(t)

	reply := f.command(adminID, "start")
	expectText(t, reply, "Head trainer")
	findButton(t, reply, "Branches")
	findButton(t, reply, "Finance")

	expectText(t, f.command(adminID, "register"), models.ErrAlreadyRegistered.Reason)
}

func TestCreateBranchDialog(t *testing.T) {
	f := newFixture(t)

	expectText(t, f.command(adminID, "branches"), "No branches yet.")
	reply := f.press(adminID, action.New(action.BranchAdd))
	expectText(t, reply, "Enter the branch name")
	if !reply.Edit {
		t.Error("button reply should edit the message in place")
	}

	// an empty name re-prompts and keeps the dialog
	expectText(t, f.text(adminID, "   "), "⚠️")
	if step := f.step(adminID); step != "branch.name" {
		t.Fatalf("step = %q, want branch.name", step)
	}

	expectText(t, f.text(adminID, "North"), "address")
	expectText(t, f.text(adminID, "skip"), "✅ Branch North created.")
	if step := f.step(adminID); step != "" {
		t.Fatalf("dialog still at %q", step)
	}
	expectText(t, f.command(adminID, "branches"), "Branches (1)")
}

func TestCancelDialog(t *testing.T) {
	f := newFixture(t)

	f.command(adminID, "start")
	f.press(adminID, action.New(action.BranchAdd))
	expectText(t, f.command(adminID, "cancel"), "Cancelled.")
	if step := f.step(adminID); step != "" {
		t.Fatalf("dialog still at %q", step)
	}

	// plain text after cancel shows the menu instead of creating anything
	expectText(t, f.text(adminID, "North"), "Main menu")
	expectText(t, f.command(adminID, "branches"), "No branches yet.")
}

func TestUnexpectedInputKeepsStep(t *testing.T) {
	f := newFixture(t)
	f.academy()

	f.press(adminID, action.New(action.ChildAdd))
	expectText(t, f.text(adminID, "Lee"), "parent")
	// the parent step only takes a button
	expectText(t, f.text(adminID, "Pat"), "Please use the buttons")
	if step := f.step(adminID); step != "child.parent" {
		t.Fatalf("step = %q, want child.parent", step)
	}
}

func TestForbidden(t *testing.T) {
	f := newFixture(t)
	branchID, _, _ := f.academy()

	tests := []struct {
		name string
		user int64
		a    action.Action
	}{
		{name: "parent adds branch", user: parentID, a: action.New(action.BranchAdd)},
		{name: "trainer deletes branch", user: trainerID, a: action.WithID(action.BranchDelete, branchID)},
		{name: "parent opens finance", user: parentID, a: action.New(action.Finance)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectText(t, f.press(tt.user, tt.a), "⛔ Not allowed.")
			if step := f.step(tt.user); step != "" {
				t.Fatalf("dialog started at %q", step)
			}
		})
	}
}

func TestStartSessionSingleGroup(t *testing.T) {
	f := newFixture(t)
	f.academy()

	reply := f.command(trainerID, "start")
	findButton(t, reply, "Start session")

	expectText(t, f.press(trainerID, action.New(action.SessionStart)), "What are you starting?")
	reply = f.press(trainerID, action.WithValue(action.SessionType, string(models.SessionTraining)))
	if !reply.RequestLocation {
		t.Fatal("location step should request the location")
	}
	if reply.Edit {
		t.Error("a location request cannot edit an inline message")
	}

	reply = f.h.Handle(f.ctx, handlers.Request{
		UserID: trainerID, ChatID: trainerID,
		Location: &models.Location{Latitude: 41.3, Longitude: 69.2},
	})
	expectText(t, reply, "Training started")
	expectText(t, reply, "U10 (North)")

	if len(f.sender.To(parentID)) == 0 {
		t.Error("parent was not notified")
	}

	expectText(t, f.command(trainerID, "session"), models.ErrSessionActive.Reason)

	reply = f.command(trainerID, "rollcall")
	expectText(t, reply, "Present 0, marked 0 of 1")
	reply = f.press(trainerID, findButton(t, reply, "Kim"))
	expectText(t, reply, "Present 1, marked 1 of 1")

	expectText(t, f.command(trainerID, "end"), "Training finished")
}

func TestPaymentDialog(t *testing.T) {
	f := newFixture(t)
	f.academy()

	reply := f.command(trainerID, "pay")
	reply = f.press(trainerID, findButton(t, reply, "Kim"))
	expectText(t, reply, "Amount for Kim")

	// a bad typed amount re-prompts
	expectText(t, f.text(trainerID, "lots"), "⚠️")
	if step := f.step(trainerID); step != "payment.amount" {
		t.Fatalf("step = %q, want payment.amount", step)
	}

	expectText(t, f.text(trainerID, "150000"), "Which month")
	expectText(t, f.press(trainerID, action.WithValue(action.PaymentMonth, "2025-03")), "Please confirm")
	expectText(t, f.press(trainerID, action.New(action.PaymentConfirm)), "✅ Payment recorded")

	expectText(t, f.command(trainerID, "cash"), "(1 payments)")
	expectText(t, f.command(adminID, "pending"), "Alex Stone")
}

func TestDeleteConfirmation(t *testing.T) {
	f := newFixture(t)
	branchID, _, _ := f.academy()

	reply := f.press(adminID, action.WithID(action.BranchDelete, branchID))
	for _, want := range []string{"Delete branch North?", "1 trainer", "1 group", "1 child", "cannot be undone"} {
		expectText(t, reply, want)
	}

	reply = f.press(adminID, findButton(t, reply, "Yes, delete"))
	expectText(t, reply, "North deleted.")
	expectText(t, f.command(adminID, "branches"), "No branches yet.")

	// the stale confirmation button now points at nothing
	expectText(t, f.press(adminID, action.WithIDValue(action.ConfirmDelete, branchID, string(models.KindBranch))), "Not found.")
}

func TestChildEditShortcuts(t *testing.T) {
	f := newFixture(t)
	branchID, groupID, childID := f.academy()

	head, err := f.svc.ResolveActor(f.ctx, adminID)
	f.must(err)
	trainer, err := f.svc.ListTrainers(f.ctx, head, &branchID)
	f.must(err)
	other, err := f.svc.CreateGroup(f.ctx, head, "U12", branchID, trainer[0].ID)
	f.must(err)

	t.Run("group only", func(t *testing.T) {
		f.press(adminID, action.WithID(action.ChildEdit, childID))
		expectText(t, f.press(adminID, action.New(action.ChildEditGroup)), "Choose the group")
		reply := f.press(adminID, action.WithID(action.GroupPick, other.ID))
		expectText(t, reply, "✅ Child updated.")
		expectText(t, reply, "Group: U12")
	})

	t.Run("keep everything", func(t *testing.T) {
		f.press(adminID, action.WithID(action.ChildEdit, childID))
		f.press(adminID, action.New(action.Keep))
		f.press(adminID, action.New(action.Keep))
		expectText(t, f.press(adminID, action.New(action.Keep)), "Nothing changed.")
	})

	t.Run("rename then move back", func(t *testing.T) {
		f.press(adminID, action.WithID(action.ChildEdit, childID))
		expectText(t, f.text(adminID, "Kim Lee"), "Choose the parent")
		expectText(t, f.press(adminID, action.New(action.ChildEditGroup)), "Choose the group")
		reply := f.press(adminID, action.WithID(action.GroupPick, groupID))
		expectText(t, reply, "Kim Lee")
		expectText(t, reply, "Group: U10")
	})
}

func TestParentRename(t *testing.T) {
	f := newFixture(t)
	_, _, childID := f.academy()

	reply := f.command(parentID, "kids")
	expectText(t, reply, "My children (1)")
	reply = f.press(parentID, findButton(t, reply, "Kim"))
	f.press(parentID, findButton(t, reply, "Rename"))
	expectText(t, f.text(parentID, "Kimberly"), "✅ Name updated.")

	// trainers see the child but cannot rename it
	expectText(t, f.press(trainerID, action.WithID(action.ChildRename, childID)), "⛔ Not allowed.")
}

func TestMenuButtonAbandonsDialog(t *testing.T) {
	f := newFixture(t)
	f.academy()

	f.press(adminID, action.New(action.BranchAdd))
	expectText(t, f.press(adminID, action.New(action.GroupList)), "Groups")
	if step := f.step(adminID); step != "" {
		t.Fatalf("dialog still at %q", step)
	}
}

// slowStore widens the gap between loading and saving a dialog
type slowStore struct {
	*conversation.MemoryStore
	delay time.Duration
}

func (s *slowStore) Load(ctx context.Context, userID, chatID int64) (*conversation.Session, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.Load(ctx, userID, chatID)
}

func TestConcurrentInputFromOneChat(t *testing.T) {
	f := newFixture(t)
	f.h = handlers.New(f.svc, &slowStore{MemoryStore: f.store, delay: 50 * time.Millisecond}, testutil.Logger())

	f.press(adminID, action.New(action.BranchAdd))

	// whichever text arrives first becomes the name, the other the address
	var wg sync.WaitGroup
	for _, text := range []string{"North", "Main street 1"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.h.Handle(f.ctx, handlers.Request{UserID: adminID, ChatID: adminID, Text: text})
		}()
	}
	wg.Wait()

	if step := f.step(adminID); step != "" {
		t.Fatalf("dialog still at %q", step)
	}
	expectText(t, f.command(adminID, "branches"), "Branches (1)")
}

func TestConcurrentUsersDoNotWait(t *testing.T) {
	f := newFixture(t)
	f.academy()
	const delay = 100 * time.Millisecond
	f.h = handlers.New(f.svc, &slowStore{MemoryStore: f.store, delay: delay}, testutil.Logger())

	users := []int64{adminID, trainerID, parentID}
	start := time.Now()
	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.command(user, "menu")
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed >= time.Duration(len(users))*delay {
		t.Fatalf("%d users took %s, want them handled in parallel", len(users), elapsed)
	}
}

func TestRejectedEditKeepsDialog(t *testing.T) {
	f := newFixture(t)
	_, groupID, _ := f.academy()

	head, err := f.svc.ResolveActor(f.ctx, adminID)
	f.must(err)
	south, err := f.svc.CreateBranch(f.ctx, head, "South", nil)
	f.must(err)
	outsider, err := f.svc.CreateTrainer(f.ctx, head, "Sam Far", south.ID)
	f.must(err)

	f.press(adminID, action.WithID(action.GroupEdit, groupID))
	expectText(t, f.text(adminID, "U11"), "Choose a trainer")

	reply := f.press(adminID, action.WithID(action.TrainerPick, outsider.ID))
	expectText(t, reply, "⚠️ This trainer works in another branch.")
	if step := f.step(adminID); step != "group.edit.trainer" {
		t.Fatalf("step = %q, want group.edit.trainer", step)
	}
	s, err := f.store.Load(f.ctx, adminID, adminID)
	f.must(err)
	if got := s.Get("name"); got != "U11" {
		t.Fatalf("collected name = %q, want U11", got)
	}

	// the typed name survives the rejected pick
	reply = f.press(adminID, action.New(action.Keep))
	expectText(t, reply, "✅ Group updated.")
	expectText(t, reply, "U11")
	if step := f.step(adminID); step != "" {
		t.Fatalf("dialog still at %q", step)
	}
}

func TestValidationReplies(t *testing.T) {
	tests := []struct {
		name  string
		user  int64
		start func(f *fixture) handlers.Reply
		input string
		want  string
	}{
		{
			name:  "empty branch name",
			user:  adminID,
			start: func(f *fixture) handlers.Reply { return f.press(adminID, action.New(action.BranchAdd)) },
			input: "   ",
			want:  "The answer cannot be empty.",
		},
		{
			name:  "amount not a number",
			user:  trainerID,
			start: func(f *fixture) handlers.Reply { return f.press(trainerID, findButton(f.t, f.command(trainerID, "pay"), "Kim")) },
			input: "lots",
			want:  "The amount must be a number, for example 150000.",
		},
		{
			name:  "amount not positive",
			user:  trainerID,
			start: func(f *fixture) handlers.Reply { return f.press(trainerID, findButton(f.t, f.command(trainerID, "pay"), "Kim")) },
			input: "-5",
			want:  "The amount must be greater than zero.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.academy()
			tt.start(f)
			before := f.step(tt.user)

			reply := f.text(tt.user, tt.input)
			expectText(t, reply, "⚠️ "+tt.want+"\n")
			if strings.Contains(reply.Text, strconv.Quote(tt.input)) || strings.Contains(reply.Text, models.ErrValidation.Error()) {
				t.Fatalf("reply %q leaks internal detail", reply.Text)
			}
			if step := f.step(tt.user); step != before {
				t.Fatalf("step = %q, want %q", step, before)
			}
		})
	}
}

func TestTypedSkipKeepsValue(t *testing.T) {
	tests := []struct {
		name     string
		nameIn   string
		address  string
		wantAddr string
	}{
		{name: "dash keeps name, new address", nameIn: "-", address: "Main street 1", wantAddr: "Address: Main street 1"},
		{name: "skip keeps name, dash clears address", nameIn: "skip", address: "-", wantAddr: "Address: -"},
		{name: "dash keeps name, skip keeps address", nameIn: "-", address: "Skip", wantAddr: "Address: Old road"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.academy()
			head, err := f.svc.ResolveActor(f.ctx, adminID)
			f.must(err)
			old := "Old road"
			branch, err := f.svc.CreateBranch(f.ctx, head, "South", &old)
			f.must(err)

			f.press(adminID, action.WithID(action.BranchEdit, branch.ID))
			expectText(t, f.text(adminID, tt.nameIn), "Current address")
			reply := f.text(adminID, tt.address)
			expectText(t, reply, "🏢 South\n")
			expectText(t, reply, tt.wantAddr)
		})
	}
}
