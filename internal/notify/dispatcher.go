// Package notify fans event messages out to parents and head trainers.
//
// Delivery is best effort. The state change behind an event is committed
// before the dispatcher is called; a recipient that cannot be reached is
// logged and counted, and the others still get their message.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/metrics"
	"github.com/Kerhoff/academybot/internal/models"
)

// Sender delivers a plain text message to a chat
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Directory resolves who should hear about an event
type Directory interface {
	HeadTrainerChatIDs(ctx context.Context) ([]int64, error)
	GroupParents(ctx context.Context, groupID int64) ([]models.ParentContact, error)
	ChildParent(ctx context.Context, childID int64) (models.ParentContact, error)
}

// Event names a kind of notification
type Event string

const (
	EventSessionStarted   Event = "session_started"
	EventSessionEnded     Event = "session_ended"
	EventAttendanceMarked Event = "attendance_marked"
	EventPaymentReceived  Event = "payment_received"
	EventCashHandedIn     Event = "cash_handed_in"
	EventChildChanged     Event = "child_changed"
	EventChildRequested   Event = "child_requested"
	EventDailyReport      Event = "daily_report"
)

// Result counts deliveries of one event
type Result struct {
	Sent   int
	Failed int
}

type message struct {
	chatID int64
	text   string
}

// Dispatcher sends event messages through a Sender
type Dispatcher struct {
	sender Sender
	dir    Directory
	logger *logrus.Logger
	loc    *time.Location
}

// NewDispatcher creates a dispatcher. Times in messages are shown in loc.
func NewDispatcher(sender Sender, dir Directory, logger *logrus.Logger, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{sender: sender, dir: dir, logger: logger, loc: loc}
}

// SessionStarted tells the group's parents and the head trainers that a session began
func (d *Dispatcher) SessionStarted(ctx context.Context, s *models.SessionView) Result {
	at := s.StartTime.In(d.loc).Format("15:04")
	parentText := fmt.Sprintf("%s started\nGroup: %s\nTrainer: %s\nTime: %s",
		s.Type.Title(), s.GroupName, s.TrainerName, at)
	headText := fmt.Sprintf("🏁 %s started\nTrainer: %s\nGroup: %s (%s)\nTime: %s",
		s.Type.Title(), s.TrainerName, s.GroupName, s.BranchName, at)
	if s.Latitude != nil && s.Longitude != nil {
		headText += fmt.Sprintf("\nLocation: %.5f, %.5f", *s.Latitude, *s.Longitude)
	}
	return d.sessionEvent(ctx, EventSessionStarted, s.GroupID, parentText, headText)
}

// SessionEnded tells the group's parents and the head trainers that a session is over
func (d *Dispatcher) SessionEnded(ctx context.Context, s *models.SessionView) Result {
	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	duration := end.Sub(s.StartTime).Round(time.Minute)
	parentText := fmt.Sprintf("%s finished\nGroup: %s\nTrainer: %s",
		s.Type.Title(), s.GroupName, s.TrainerName)
	headText := fmt.Sprintf("✅ %s finished\nTrainer: %s\nGroup: %s (%s)\nDuration: %s",
		s.Type.Title(), s.TrainerName, s.GroupName, s.BranchName, formatDuration(duration))
	return d.sessionEvent(ctx, EventSessionEnded, s.GroupID, parentText, headText)
}

func (d *Dispatcher) sessionEvent(ctx context.Context, event Event, groupID int64, parentText, headText string) Result {
	var msgs []message
	parents, err := d.dir.GroupParents(ctx, groupID)
	if err != nil {
		d.lookupFailed(event, err)
		parents = nil
	}
	for _, p := range parents {
		msgs = append(msgs, message{p.ChatID, p.ChildName + ": " + parentText})
	}
	msgs = append(msgs, d.heads(ctx, event, headText)...)
	return d.deliver(ctx, event, msgs)
}

// AttendanceMarked tells a parent how their child was marked
func (d *Dispatcher) AttendanceMarked(ctx context.Context, s *models.SessionView, childID int64, status models.AttendanceStatus) Result {
	parent, err := d.dir.ChildParent(ctx, childID)
	if err != nil {
		d.lookupFailed(EventAttendanceMarked, err)
		return Result{}
	}
	mark := "present ✅"
	if status == models.AttendanceAbsent {
		mark = "absent ❌"
	}
	text := fmt.Sprintf("%s was marked %s\n%s, %s\nGroup: %s",
		parent.ChildName, mark, s.Type.Title(), s.StartTime.In(d.loc).Format("02.01.2006 15:04"), s.GroupName)
	return d.deliver(ctx, EventAttendanceMarked, []message{{parent.ChatID, text}})
}

// PaymentReceived confirms a payment to the parent and reports it to head trainers
func (d *Dispatcher) PaymentReceived(ctx context.Context, p *models.PaymentView) Result {
	amount := models.FormatMoney(p.Amount)
	period := models.MonthLabel(p.MonthYear)

	var msgs []message
	parent, err := d.dir.ChildParent(ctx, p.ChildID)
	if err != nil {
		d.lookupFailed(EventPaymentReceived, err)
	} else {
		msgs = append(msgs, message{parent.ChatID, fmt.Sprintf(
			"💵 Payment received\nChild: %s\nAmount: %s\nPeriod: %s\nReceived by: %s",
			p.ChildName, amount, period, p.TrainerName)})
	}
	msgs = append(msgs, d.heads(ctx, EventPaymentReceived, fmt.Sprintf(
		"💵 New payment\nTrainer: %s\nChild: %s\nAmount: %s\nPeriod: %s",
		p.TrainerName, p.ChildName, amount, period))...)
	return d.deliver(ctx, EventPaymentReceived, msgs)
}

// CashHandedIn reports money moved to the cashbox
func (d *Dispatcher) CashHandedIn(ctx context.Context, trainerName, acceptedBy string, payments int, total decimal.Decimal) Result {
	text := fmt.Sprintf("🏦 Cash handed in\nTrainer: %s\nPayments: %d\nTotal: %s\nAccepted by: %s",
		trainerName, payments, models.FormatMoney(total), acceptedBy)
	return d.deliver(ctx, EventCashHandedIn, d.heads(ctx, EventCashHandedIn, text))
}

// ChildChanged reports a parent's self-service change to head trainers
func (d *Dispatcher) ChildChanged(ctx context.Context, parent *models.User, change string) Result {
	text := fmt.Sprintf("✏️ Parent %s %s", parent.DisplayName(), change)
	return d.deliver(ctx, EventChildChanged, d.heads(ctx, EventChildChanged, text))
}

// ChildRequested relays a parent's request to add a child
func (d *Dispatcher) ChildRequested(ctx context.Context, parent *models.User, childName string) Result {
	phone := "-"
	if parent.Phone != nil && *parent.Phone != "" {
		phone = *parent.Phone
	}
	text := fmt.Sprintf("🙋 Request to add a child\nChild: %s\nParent: %s\nPhone: %s\n"+
		"Add the child from the Children menu.", childName, parent.DisplayName(), phone)
	return d.deliver(ctx, EventChildRequested, d.heads(ctx, EventChildRequested, text))
}

// DailyReport sends the daily digest to head trainers
func (d *Dispatcher) DailyReport(ctx context.Context, text string) Result {
	return d.deliver(ctx, EventDailyReport, d.heads(ctx, EventDailyReport, text))
}

func (d *Dispatcher) heads(ctx context.Context, event Event, text string) []message {
	ids, err := d.dir.HeadTrainerChatIDs(ctx)
	if err != nil {
		d.lookupFailed(event, err)
		return nil
	}
	msgs := make([]message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, message{id, text})
	}
	return msgs
}

func (d *Dispatcher) deliver(ctx context.Context, event Event, msgs []message) Result {
	var res Result
	for _, m := range msgs {
		if err := d.sender.Send(ctx, m.chatID, m.text); err != nil {
			res.Failed++
			metrics.Notifications.WithLabelValues(string(event), "failed").Inc()
			d.logger.WithFields(logrus.Fields{
				"event":   event,
				"chat_id": m.chatID,
				"error":   err,
			}).Warn("Failed to deliver notification")
			continue
		}
		res.Sent++
		metrics.Notifications.WithLabelValues(string(event), "sent").Inc()
	}
	if len(msgs) > 0 {
		d.logger.WithFields(logrus.Fields{
			"event":  event,
			"sent":   res.Sent,
			"failed": res.Failed,
		}).Debug("Notification dispatched")
	}
	return res
}

func (d *Dispatcher) lookupFailed(event Event, err error) {
	metrics.Notifications.WithLabelValues(string(event), "lookup_failed").Inc()
	d.logger.WithFields(logrus.Fields{
		"event": event,
		"error": err,
	}).Error("Failed to resolve notification recipients")
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	parts = append(parts, fmt.Sprintf("%dm", m))
	return strings.Join(parts, " ")
}
