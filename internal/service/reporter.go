package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/metrics"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/notify"
)

// BuildDailyReport collects the figures of the calendar day containing day,
// in the academy's timezone.
func (s *Service) BuildDailyReport(ctx context.Context, day time.Time) (*models.DailyReport, error) {
	from := startOfDay(day.In(s.loc))
	to := from.AddDate(0, 0, 1)

	sessions, err := s.Sessions.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	branches, err := s.Stats.BranchDaily(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to compute branch stats: %w", err)
	}
	unclosed, err := s.Sessions.ListStartedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclosed sessions: %w", err)
	}

	report := &models.DailyReport{Day: from}
	for _, session := range sessions {
		report.Sessions = append(report.Sessions, *session)
		if session.Type == models.SessionGame {
			report.Games++
		} else {
			report.Trainings++
		}
	}
	for _, b := range branches {
		if b.Sessions > 0 {
			report.Branches = append(report.Branches, *b)
		}
	}
	for _, session := range unclosed {
		report.Unclosed = append(report.Unclosed, *session)
	}
	return report, nil
}

// FormatDailyReport renders the digest as a plain text message
func FormatDailyReport(r *models.DailyReport, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily report for %s\n\n", r.Day.Format("02.01.2006"))

	if len(r.Sessions) == 0 {
		b.WriteString("No sessions today.")
		return b.String()
	}

	fmt.Fprintf(&b, "Sessions: %d (trainings: %d, games: %d)\n", len(r.Sessions), r.Trainings, r.Games)

	for _, br := range r.Branches {
		fmt.Fprintf(&b, "\n🏢 %s\n", br.BranchName)
		fmt.Fprintf(&b, "Sessions: %d\n", br.Sessions)
		rate := models.AttendanceStats{Total: br.Marked, Present: br.Present}.Rate()
		fmt.Fprintf(&b, "Attendance: %d/%d (%.0f%%)\n", br.Present, br.Marked, rate)
		fmt.Fprintf(&b, "Received: %s\n", models.FormatMoney(br.Received))
		fmt.Fprintf(&b, "Handed in: %s\n", models.FormatMoney(br.HandedIn))
	}

	if len(r.Unclosed) > 0 {
		b.WriteString("\n⚠️ Not closed:\n")
		for _, s := range r.Unclosed {
			fmt.Fprintf(&b, "- %s, %s (%s), started %s\n",
				s.TrainerName, s.GroupName, s.BranchName, s.StartTime.In(loc).Format("15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Reporter sends the daily digest to head trainers at a fixed local time
type Reporter struct {
	svc      *Service
	notifier *notify.Dispatcher
	cron     *cron.Cron
	hour     int
	minute   int
	logger   *logrus.Logger
}

// NewReporter creates a reporter firing every day at hour:minute in the
// service's timezone.
func NewReporter(svc *Service, notifier *notify.Dispatcher, hour, minute int) *Reporter {
	return &Reporter{
		svc:      svc,
		notifier: notifier,
		cron:     cron.NewWithLocation(svc.loc),
		hour:     hour,
		minute:   minute,
		logger:   svc.logger,
	}
}

// Spec returns the cron expression of the daily run
func (r *Reporter) Spec() string {
	return fmt.Sprintf("0 %d %d * * *", r.minute, r.hour)
}

// Start schedules the daily run. It returns immediately.
func (r *Reporter) Start() error {
	if err := r.cron.AddFunc(r.Spec(), func() {
		r.RunOnce(context.Background(), r.svc.Now())
	}); err != nil {
		return fmt.Errorf("failed to schedule daily report: %w", err)
	}
	r.cron.Start()
	r.logger.WithField("spec", r.Spec()).Info("Daily reporter started")
	return nil
}

// Stop halts the schedule
func (r *Reporter) Stop() {
	r.cron.Stop()
	r.logger.Info("Daily reporter stopped")
}

// RunOnce builds and sends the report for day. Failures are logged; the
// schedule keeps running either way.
func (r *Reporter) RunOnce(ctx context.Context, day time.Time) notify.Result {
	report, err := r.svc.BuildDailyReport(ctx, day)
	if err != nil {
		metrics.ReporterRuns.WithLabelValues("error").Inc()
		r.logger.WithError(err).Error("Failed to build daily report")
		return notify.Result{}
	}

	res := r.notifier.DailyReport(ctx, FormatDailyReport(report, r.svc.loc))
	result := "ok"
	if res.Failed > 0 {
		result = "partial"
	}
	metrics.ReporterRuns.WithLabelValues(result).Inc()
	r.logger.WithFields(logrus.Fields{
		"day":    report.Day.Format("2006-01-02"),
		"sent":   res.Sent,
		"failed": res.Failed,
	}).Info("Daily report sent")
	return res
}
