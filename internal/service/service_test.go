package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/notify"
	"github.com/Kerhoff/academybot/internal/repository/sqlstore"
	"github.com/Kerhoff/academybot/internal/service"
	"github.com/Kerhoff/academybot/internal/testutil"
)

var tashkent = time.FixedZone("UZT", 5*60*60)

const (
	headChat    int64 = 1
	trainerChat int64 = 2
	parentChat  int64 = 3
	otherChat   int64 = 4
	cashierChat int64 = 5
)

type env struct {
	t        *testing.T
	ctx      context.Context
	svc      *service.Service
	notifier *notify.Dispatcher
	sender   *testutil.Sender
	now      time.Time

	head    *auth.Actor
	trainer *auth.Actor
	parent  *auth.Actor
	branch  *models.Branch
	group   *models.Group
	child   *models.Child
}

// newEnv builds an academy with one branch, one registered trainer owning
// group U10, and one parent whose child Kim is in that group.
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewSQLite(t)
	sender := &testutil.Sender{}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, tashkent)
	logger := testutil.Logger()

	dispatcher := notify.NewDispatcher(sender, sqlstore.NewDirectory(db), logger, tashkent)
	svc := service.New(db, logger, sqlstore.New(db), auth.NewGate(), dispatcher, service.Options{
		Location: tashkent,
		AdminIDs: map[int64]bool{headChat: true},
		Now:      func() time.Time { return now },
	})
	e := &env{t: t, ctx: context.Background(), svc: svc, notifier: dispatcher, sender: sender, now: now}

	var err error
	e.head, err = svc.EnsureHeadTrainer(e.ctx, service.Profile{TelegramID: headChat, FirstName: "Head"})
	e.must(err)
	e.branch, err = svc.CreateBranch(e.ctx, e.head, "North", nil)
	e.must(err)
	_, err = svc.CreateTrainer(e.ctx, e.head, "Alex Stone", e.branch.ID)
	e.must(err)
	e.trainer, err = svc.Register(e.ctx, service.Registration{
		Profile:  service.Profile{TelegramID: trainerChat},
		Role:     models.RoleTrainer,
		FullName: "  Alex   Stone ",
	})
	e.must(err)
	e.parent, err = svc.Register(e.ctx, service.Registration{
		Profile:  service.Profile{TelegramID: parentChat},
		Role:     models.RoleParent,
		FullName: "Pat Doe",
	})
	e.must(err)
	e.group, err = svc.CreateGroup(e.ctx, e.head, "U10", e.branch.ID, e.trainer.Trainer.ID)
	e.must(err)
	e.child, err = svc.CreateChild(e.ctx, e.head, "Kim", e.parent.User.ID, e.group.ID)
	e.must(err)
	return e
}

func (e *env) must(err error) {
	e.t.Helper()
	if err != nil {
		e.t.Fatalf("setup: %v", err)
	}
}

func (e *env) register(telegramID int64, role models.Role, name string) *auth.Actor {
	e.t.Helper()
	actor, err := e.svc.Register(e.ctx, service.Registration{
		Profile: service.Profile{TelegramID: telegramID}, Role: role, FullName: name,
	})
	e.must(err)
	return actor
}

func TestRegistration(t *testing.T) {
	e := newEnv(t)

	if e.trainer.Trainer == nil || e.trainer.Trainer.FullName != "Alex Stone" {
		t.Fatalf("trainer profile = %+v, want Alex Stone linked", e.trainer.Trainer)
	}
	resolved, err := e.svc.ResolveActor(e.ctx, trainerChat)
	if err != nil {
		t.Fatalf("ResolveActor: %v", err)
	}
	if resolved.Trainer == nil || resolved.Trainer.ID != e.trainer.Trainer.ID {
		t.Fatalf("resolved trainer = %+v", resolved.Trainer)
	}

	tests := []struct {
		name string
		reg  service.Registration
		want error
	}{
		{
			name: "trainer not listed",
			reg:  service.Registration{Profile: service.Profile{TelegramID: 50}, Role: models.RoleTrainer, FullName: "Nobody"},
			want: models.ErrTrainerNotListed,
		},
		{
			name: "trainer profile already claimed",
			reg:  service.Registration{Profile: service.Profile{TelegramID: 51}, Role: models.RoleTrainer, FullName: "Alex Stone"},
			want: models.ErrTrainerNotListed,
		},
		{
			name: "head trainer without allow-list",
			reg:  service.Registration{Profile: service.Profile{TelegramID: 52}, Role: models.RoleHeadTrainer, FullName: "Boss"},
			want: models.ErrForbidden,
		},
		{
			name: "already registered",
			reg:  service.Registration{Profile: service.Profile{TelegramID: parentChat}, Role: models.RoleParent, FullName: "Pat Doe"},
			want: models.ErrPrecondition,
		},
		{
			name: "unknown role",
			reg:  service.Registration{Profile: service.Profile{TelegramID: 53}, Role: "coach", FullName: "X"},
			want: models.ErrValidation,
		},
		{
			name: "blank name",
			reg:  service.Registration{Profile: service.Profile{TelegramID: 54}, Role: models.RoleParent, FullName: "   "},
			want: models.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(e.ctx, tt.reg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
			if tt.reg.TelegramID != parentChat {
				if _, err := e.svc.ResolveActor(e.ctx, tt.reg.TelegramID); !errors.Is(err, models.ErrNotFound) {
					t.Errorf("user was stored after a rejected registration: %v", err)
				}
			}
		})
	}
}

func TestEnsureHeadTrainerIsIdempotent(t *testing.T) {
	e := newEnv(t)

	again, err := e.svc.EnsureHeadTrainer(e.ctx, service.Profile{TelegramID: headChat})
	if err != nil {
		t.Fatalf("EnsureHeadTrainer: %v", err)
	}
	if again.User.ID != e.head.User.ID {
		t.Errorf("second bootstrap created user %d, want %d", again.User.ID, e.head.User.ID)
	}
	if _, err := e.svc.EnsureHeadTrainer(e.ctx, service.Profile{TelegramID: 99}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("non-admin bootstrap error = %v, want ErrForbidden", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx

	groups, err := e.svc.PrepareSession(ctx, e.trainer)
	if err != nil || len(groups) != 1 {
		t.Fatalf("PrepareSession() = %v, %v", groups, err)
	}

	session, err := e.svc.StartSession(ctx, e.trainer, models.SessionTraining, e.group.ID,
		&models.Location{Latitude: 41.3, Longitude: 69.2})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !e.sender.Contains(parentChat, "Kim: Training started") {
		t.Errorf("parent messages = %q", e.sender.To(parentChat))
	}
	if !e.sender.Contains(headChat, "Group: U10 (North)") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}

	if _, err := e.svc.StartSession(ctx, e.trainer, models.SessionGame, e.group.ID, nil); !errors.Is(err, models.ErrSessionActive) {
		t.Errorf("second StartSession error = %v, want ErrSessionActive", err)
	}
	if _, err := e.svc.PrepareSession(ctx, e.trainer); !errors.Is(err, models.ErrPrecondition) {
		t.Errorf("PrepareSession with active session error = %v, want precondition", err)
	}

	if err := e.svc.MarkAttendance(ctx, e.trainer, session.ID, e.child.ID, models.AttendancePresent); err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if !e.sender.Contains(parentChat, "Kim was marked present") {
		t.Errorf("parent messages = %q", e.sender.To(parentChat))
	}

	other := e.register(otherChat, models.RoleParent, "Lee Roe")
	g2, err := e.svc.CreateGroup(ctx, e.head, "U12", e.branch.ID, e.trainer.Trainer.ID)
	e.must(err)
	stranger, err := e.svc.CreateChild(ctx, e.head, "Sam", other.User.ID, g2.ID)
	e.must(err)
	if err := e.svc.MarkAttendance(ctx, e.trainer, session.ID, stranger.ID, models.AttendancePresent); !errors.Is(err, models.ErrValidation) {
		t.Errorf("marking a child of another group error = %v, want ErrValidation", err)
	}
	if err := e.svc.MarkAttendance(ctx, e.parent, session.ID, e.child.ID, models.AttendanceAbsent); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("parent marking error = %v, want ErrForbidden", err)
	}

	_, entries, err := e.svc.RollCall(ctx, e.trainer)
	if err != nil {
		t.Fatalf("RollCall: %v", err)
	}
	if len(entries) != 1 || entries[0].Status == nil || *entries[0].Status != string(models.AttendancePresent) {
		t.Errorf("roll call = %+v", entries)
	}

	ended, err := e.svc.EndSession(ctx, e.trainer)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if ended.IsActive() {
		t.Error("session still active after EndSession")
	}
	if _, err := e.svc.EndSession(ctx, e.trainer); !errors.Is(err, models.ErrNoActiveSession) {
		t.Errorf("second EndSession error = %v, want ErrNoActiveSession", err)
	}
	if err := e.svc.MarkAttendance(ctx, e.trainer, session.ID, e.child.ID, models.AttendanceAbsent); !errors.Is(err, models.ErrNoActiveSession) {
		t.Errorf("marking a completed session error = %v, want ErrNoActiveSession", err)
	}

	stats, err := e.svc.ChildAttendance(ctx, e.parent, e.child.ID)
	if err != nil {
		t.Fatalf("ChildAttendance: %v", err)
	}
	if stats.Stats.Total != 1 || stats.Stats.Present != 1 || len(stats.Recent) != 1 {
		t.Errorf("child attendance = %+v", stats)
	}
}

func TestStartSessionWithoutGroups(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.CreateTrainer(e.ctx, e.head, "Bo Lane", e.branch.ID)
	e.must(err)
	bo := e.register(10, models.RoleTrainer, "Bo Lane")

	if _, err := e.svc.PrepareSession(e.ctx, bo); !errors.Is(err, models.ErrNoGroups) {
		t.Errorf("PrepareSession error = %v, want ErrNoGroups", err)
	}
	if _, err := e.svc.StartSession(e.ctx, bo, models.SessionTraining, e.group.ID, nil); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("starting another trainer's group error = %v, want ErrForbidden", err)
	}
}

func TestCashFlow(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx

	if _, err := e.svc.RecordPayment(ctx, e.trainer, e.child.ID, decimal.NewFromInt(150000), "2025-03"); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if !e.sender.Contains(parentChat, "Amount: 150 000") || !e.sender.Contains(parentChat, "March 2025") {
		t.Errorf("parent messages = %q", e.sender.To(parentChat))
	}
	if !e.sender.Contains(headChat, "New payment") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}

	if _, err := e.svc.RecordPayment(ctx, e.trainer, e.child.ID, decimal.NewFromInt(-5), "2025-03"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("negative amount error = %v, want ErrValidation", err)
	}
	if _, err := e.svc.RecordPayment(ctx, e.parent, e.child.ID, decimal.NewFromInt(5), "2025-03"); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("parent payment error = %v, want ErrForbidden", err)
	}

	payments, total, err := e.svc.MyCash(ctx, e.trainer)
	if err != nil || len(payments) != 1 || !total.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("MyCash() = %d payments, %s, %v", len(payments), total, err)
	}

	cashier := e.register(cashierChat, models.RoleCashier, "Cash Desk")
	pending, err := e.svc.PendingCash(ctx, cashier)
	if err != nil || len(pending) != 1 {
		t.Fatalf("PendingCash() = %+v, %v", pending, err)
	}
	name, n, total, err := e.svc.AcceptCash(ctx, cashier, pending[0].TrainerID)
	if err != nil {
		t.Fatalf("AcceptCash: %v", err)
	}
	if name != "Alex Stone" || n != 1 || !total.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("AcceptCash() = %s, %d, %s", name, n, total)
	}
	if !e.sender.Contains(headChat, "Accepted by: Cash Desk") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}

	if _, _, err := e.svc.HandInCash(ctx, e.trainer); !errors.Is(err, models.ErrNoPendingCash) {
		t.Errorf("HandInCash with nothing held error = %v, want ErrNoPendingCash", err)
	}
	if _, _, _, err := e.svc.AcceptCash(ctx, e.trainer, e.trainer.Trainer.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("trainer accepting cash error = %v, want ErrForbidden", err)
	}

	totals, err := e.svc.FinanceTotals(ctx, cashier)
	if err != nil {
		t.Fatalf("FinanceTotals: %v", err)
	}
	if !totals.WithTrainer.IsZero() || !totals.InCashbox.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("totals = %+v", totals)
	}

	history, err := e.svc.ChildPayments(ctx, e.parent, e.child.ID)
	if err != nil {
		t.Fatalf("ChildPayments: %v", err)
	}
	if len(history.Payments) != 1 || history.Payments[0].Status != models.PaymentInCashbox {
		t.Errorf("payment history = %+v", history.Payments)
	}
}

func TestChildPolicy(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx
	other := e.register(otherChat, models.RoleParent, "Lee Roe")
	name := func(s string) *string { return &s }

	tests := []struct {
		name  string
		actor *auth.Actor
		patch models.ChildPatch
		want  error
	}{
		{"head changes group", e.head, models.ChildPatch{GroupID: &e.group.ID}, nil},
		{"parent renames own child", e.parent, models.ChildPatch{FullName: name("Kimberly")}, nil},
		{"parent moves own child", e.parent, models.ChildPatch{GroupID: &e.group.ID}, models.ErrForbidden},
		{"other parent renames", other, models.ChildPatch{FullName: name("Mine")}, models.ErrForbidden},
		{"trainer renames", e.trainer, models.ChildPatch{FullName: name("Kimmy")}, models.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.svc.UpdateChild(ctx, tt.actor, e.child.ID, tt.patch)
			if tt.want == nil && err != nil {
				t.Fatalf("UpdateChild: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("UpdateChild() error = %v, want %v", err, tt.want)
			}
		})
	}
	if !e.sender.Contains(headChat, "renamed child Kim to Kimberly") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}

	if _, err := e.svc.GetChild(ctx, e.trainer, e.child.ID); err != nil {
		t.Errorf("trainer viewing own group's child: %v", err)
	}
	if _, err := e.svc.GetChild(ctx, other, e.child.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("other parent viewing child error = %v, want ErrForbidden", err)
	}

	mine, err := e.svc.ListChildren(ctx, other, models.ChildFilter{})
	if err != nil || len(mine) != 0 {
		t.Errorf("other parent's children = %v, %v", mine, err)
	}

	if _, err := e.svc.Delete(ctx, other, models.KindChild, e.child.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("other parent delete error = %v, want ErrForbidden", err)
	}
	if _, err := e.svc.Delete(ctx, e.trainer, models.KindChild, e.child.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("trainer delete error = %v, want ErrForbidden", err)
	}
	deleted, err := e.svc.Delete(ctx, e.parent, models.KindChild, e.child.ID)
	if err != nil || deleted != "Kimberly" {
		t.Fatalf("Delete() = %q, %v", deleted, err)
	}
	if !e.sender.Contains(headChat, "deleted child Kimberly") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}
}

func TestDeletePreviewAndCascade(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx

	_, err := e.svc.StartSession(ctx, e.trainer, models.SessionTraining, e.group.ID, nil)
	e.must(err)
	_, err = e.svc.RecordPayment(ctx, e.trainer, e.child.ID, decimal.NewFromInt(100000), "2025-03")
	e.must(err)

	name, impact, err := e.svc.DeletePreview(ctx, e.head, models.KindBranch, e.branch.ID)
	if err != nil {
		t.Fatalf("DeletePreview: %v", err)
	}
	want := models.DeleteImpact{Trainers: 1, Groups: 1, Children: 1, Sessions: 1, Payments: 1}
	if name != "North" || impact != want {
		t.Errorf("DeletePreview() = %q, %+v, want North, %+v", name, impact, want)
	}

	if _, _, err := e.svc.DeletePreview(ctx, e.trainer, models.KindBranch, e.branch.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("trainer preview error = %v, want ErrForbidden", err)
	}
	if _, err := e.svc.Delete(ctx, e.head, "court", 1); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown kind error = %v, want ErrValidation", err)
	}

	if _, err := e.svc.Delete(ctx, e.head, models.KindBranch, e.branch.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.svc.GetChild(ctx, e.head, e.child.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("child after branch delete error = %v, want ErrNotFound", err)
	}
	// the trainer's account survives, only the profile is gone
	actor, err := e.svc.ResolveActor(ctx, trainerChat)
	if err != nil || actor.Trainer != nil {
		t.Errorf("trainer actor after delete = %+v, %v", actor, err)
	}
}

func TestReports(t *testing.T) {
	e := newEnv(t)
	ctx := e.ctx

	session, err := e.svc.StartSession(ctx, e.trainer, models.SessionGame, e.group.ID, nil)
	e.must(err)
	e.must(e.svc.MarkAttendance(ctx, e.trainer, session.ID, e.child.ID, models.AttendancePresent))
	_, err = e.svc.RecordPayment(ctx, e.trainer, e.child.ID, decimal.NewFromInt(200000), "2025-03")
	e.must(err)

	stats, err := e.svc.TrainerStats(ctx, e.trainer)
	if err != nil {
		t.Fatalf("TrainerStats: %v", err)
	}
	if stats.Games != 1 || stats.Groups != 1 || stats.Children != 1 || !stats.Money.WithTrainer.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("trainer stats = %+v", stats)
	}

	rows, err := e.svc.Rollup(ctx, e.head, service.PeriodWeek, models.RollupByTrainer)
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Alex Stone" || rows[0].Games != 1 {
		t.Errorf("rollup = %+v", rows)
	}
	if _, err := e.svc.Rollup(ctx, e.head, "year", models.RollupByBranch); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown period error = %v, want ErrValidation", err)
	}
	if _, err := e.svc.Rollup(ctx, e.trainer, service.PeriodDay, models.RollupByBranch); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("trainer rollup error = %v, want ErrForbidden", err)
	}

	report, err := e.svc.DailyReport(ctx, e.head, e.now)
	if err != nil {
		t.Fatalf("DailyReport: %v", err)
	}
	if len(report.Sessions) != 1 || report.Games != 1 || len(report.Branches) != 1 || len(report.Unclosed) != 1 {
		t.Fatalf("report = %+v", report)
	}

	text := service.FormatDailyReport(report, tashkent)
	for _, want := range []string{"10.03.2025", "North", "Attendance: 1/1 (100%)", "Received: 200 000", "Not closed", "Alex Stone, U10"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text lacks %q:\n%s", want, text)
		}
	}

	e.sender.Reset()
	reporter := service.NewReporter(e.svc, e.notifier, 21, 0)
	if got := reporter.Spec(); got != "0 0 21 * * *" {
		t.Errorf("Spec() = %q", got)
	}
	res := reporter.RunOnce(ctx, e.now)
	if res.Sent != 1 || !e.sender.Contains(headChat, "Daily report for 10.03.2025") {
		t.Errorf("RunOnce() = %+v, messages %q", res, e.sender.Messages())
	}
}

func TestRequestChild(t *testing.T) {
	e := newEnv(t)

	if err := e.svc.RequestChild(e.ctx, e.parent, "Ann"); err != nil {
		t.Fatalf("RequestChild: %v", err)
	}
	if !e.sender.Contains(headChat, "Child: Ann") {
		t.Errorf("head messages = %q", e.sender.To(headChat))
	}
	if err := e.svc.RequestChild(e.ctx, e.trainer, "Ann"); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("trainer request error = %v, want ErrForbidden", err)
	}
}

func TestFormatDailyReportEmpty(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, tashkent)
	got := service.FormatDailyReport(&models.DailyReport{Day: day}, tashkent)
	want := "📊 Daily report for 10.03.2025\n\nNo sessions today."
	if got != want {
		t.Errorf("FormatDailyReport() = %q, want %q", got, want)
	}
}

func TestPeriodWindow(t *testing.T) {
	// Wednesday
	at := time.Date(2025, 3, 12, 15, 30, 0, 0, tashkent)

	tests := []struct {
		period   service.Period
		from, to time.Time
	}{
		{service.PeriodDay, time.Date(2025, 3, 12, 0, 0, 0, 0, tashkent), time.Date(2025, 3, 13, 0, 0, 0, 0, tashkent)},
		{service.PeriodWeek, time.Date(2025, 3, 10, 0, 0, 0, 0, tashkent), time.Date(2025, 3, 17, 0, 0, 0, 0, tashkent)},
		{service.PeriodMonth, time.Date(2025, 3, 1, 0, 0, 0, 0, tashkent), time.Date(2025, 4, 1, 0, 0, 0, 0, tashkent)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to := tt.period.Window(at)
			if !from.Equal(tt.from) || !to.Equal(tt.to) {
				t.Errorf("Window() = [%v, %v), want [%v, %v)", from, to, tt.from, tt.to)
			}
		})
	}
}
