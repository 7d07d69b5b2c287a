package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/testutil"
)

type fakeSender struct {
	mu      sync.Mutex
	failFor map[int64]bool
	sent    map[int64][]string
}

func newFakeSender(failFor ...int64) *fakeSender {
	s := &fakeSender{failFor: map[int64]bool{}, sent: map[int64][]string{}}
	for _, id := range failFor {
		s.failFor[id] = true
	}
	return s
}

func (s *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

type fakeDirectory struct {
	heads   []int64
	parents map[int64][]models.ParentContact
	err     error
}

func (d *fakeDirectory) HeadTrainerChatIDs(context.Context) ([]int64, error) {
	return d.heads, d.err
}

func (d *fakeDirectory) GroupParents(_ context.Context, groupID int64) ([]models.ParentContact, error) {
	return d.parents[groupID], d.err
}

func (d *fakeDirectory) ChildParent(_ context.Context, childID int64) (models.ParentContact, error) {
	if d.err != nil {
		return models.ParentContact{}, d.err
	}
	for _, contacts := range d.parents {
		for _, c := range contacts {
			if c.ChildID == childID {
				return c, nil
			}
		}
	}
	return models.ParentContact{}, models.ErrNotFound
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		heads: []int64{100, 101},
		parents: map[int64][]models.ParentContact{
			7: {
				{ChildID: 1, ChildName: "Kim", ChatID: 200},
				{ChildID: 2, ChildName: "Sam", ChatID: 201},
			},
		},
	}
}

func session() *models.SessionView {
	return &models.SessionView{
		Session: models.Session{
			ID: 1, Type: models.SessionTraining, TrainerID: 3, GroupID: 7,
			StartTime: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
		},
		GroupName: "U10", BranchName: "North", TrainerName: "Alex",
	}
}

func TestSessionStartedReachesParentsAndHeads(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, newDirectory(), testutil.Logger(), time.UTC)

	res := d.SessionStarted(context.Background(), session())
	if res.Sent != 4 || res.Failed != 0 {
		t.Fatalf("Result = %+v, want 4 sent", res)
	}
	if got := sender.sent[201][0]; !strings.HasPrefix(got, "Sam: Training started") {
		t.Errorf("parent text = %q", got)
	}
	if got := sender.sent[100][0]; !strings.Contains(got, "Group: U10 (North)") {
		t.Errorf("head text = %q", got)
	}
}

func TestOneFailingRecipientDoesNotStopOthers(t *testing.T) {
	sender := newFakeSender(200, 100)
	d := NewDispatcher(sender, newDirectory(), testutil.Logger(), time.UTC)

	res := d.SessionEnded(context.Background(), session())
	if res.Sent != 2 || res.Failed != 2 {
		t.Fatalf("Result = %+v, want 2 sent and 2 failed", res)
	}
	if len(sender.sent[201]) != 1 || len(sender.sent[101]) != 1 {
		t.Errorf("remaining recipients missed: %v", sender.sent)
	}
}

func TestAttendanceGoesToOneParent(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, newDirectory(), testutil.Logger(), time.UTC)

	res := d.AttendanceMarked(context.Background(), session(), 2, models.AttendanceAbsent)
	if res.Sent != 1 {
		t.Fatalf("Result = %+v", res)
	}
	if got := sender.sent[201][0]; !strings.Contains(got, "Sam was marked absent") {
		t.Errorf("text = %q", got)
	}
	if len(sender.sent[100]) != 0 {
		t.Error("head trainer got an attendance notice")
	}
}

func TestPaymentReceived(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, newDirectory(), testutil.Logger(), time.UTC)

	p := &models.PaymentView{
		Payment:   models.Payment{ChildID: 1, TrainerID: 3, Amount: decimal.NewFromInt(150000), MonthYear: "2025-01"},
		ChildName: "Kim", TrainerName: "Alex",
	}
	res := d.PaymentReceived(context.Background(), p)
	if res.Sent != 3 {
		t.Fatalf("Result = %+v, want parent and two heads", res)
	}
	if got := sender.sent[200][0]; !strings.Contains(got, "150 000") || !strings.Contains(got, "January 2025") {
		t.Errorf("parent text = %q", got)
	}
}

func TestHeadOnlyEvents(t *testing.T) {
	parent := &models.User{FirstName: "Pat", Username: "pat"}
	tests := []struct {
		name string
		send func(d *Dispatcher) Result
		want string
	}{
		{"cash", func(d *Dispatcher) Result {
			return d.CashHandedIn(context.Background(), "Alex", "Cash", 2, decimal.NewFromInt(250000))
		}, "Total: 250 000"},
		{"child changed", func(d *Dispatcher) Result {
			return d.ChildChanged(context.Background(), parent, "deleted child Sam")
		}, "Parent Pat (@pat) deleted child Sam"},
		{"child requested", func(d *Dispatcher) Result {
			return d.ChildRequested(context.Background(), parent, "Lee")
		}, "Child: Lee"},
		{"daily report", func(d *Dispatcher) Result {
			return d.DailyReport(context.Background(), "No sessions today")
		}, "No sessions today"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeSender()
			res := tt.send(NewDispatcher(sender, newDirectory(), testutil.Logger(), time.UTC))
			if res.Sent != 2 {
				t.Fatalf("Result = %+v, want 2 heads", res)
			}
			if got := sender.sent[101][0]; !strings.Contains(got, tt.want) {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			if len(sender.sent[200]) != 0 {
				t.Error("parent got a head trainer notice")
			}
		})
	}
}

func TestDirectoryFailureSendsNothing(t *testing.T) {
	dir := newDirectory()
	dir.err = errors.New("db down")
	sender := newFakeSender()
	d := NewDispatcher(sender, dir, testutil.Logger(), time.UTC)

	res := d.SessionStarted(context.Background(), session())
	if res != (Result{}) {
		t.Errorf("Result = %+v, want nothing", res)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Minute, "45m"},
		{90 * time.Minute, "1h 30m"},
		{2 * time.Hour, "2h 0m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
