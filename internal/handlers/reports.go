package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/models"
	"github.com/Kerhoff/academybot/internal/service"
)

var periods = []service.Period{service.PeriodDay, service.PeriodWeek, service.PeriodMonth}

func (h *Handler) reports(_ context.Context, c *call) (Reply, error) {
	if err := h.svc.Gate().Require(c.actor, auth.ViewFinance); err != nil {
		return Reply{}, err
	}
	var byBranch, byTrainer []Button
	for _, p := range periods {
		byBranch = append(byBranch, btn("🏢 "+p.Title(), action.WithValue(action.ReportBranches, string(p))))
		byTrainer = append(byTrainer, btn("👤 "+p.Title(), action.WithValue(action.ReportTrainers, string(p))))
	}
	return Reply{
		Text: "📊 Reports\nBy branch or by trainer:",
		Keyboard: [][]Button{
			byBranch,
			byTrainer,
			row(btn("🗓 Daily report", action.New(action.DailyReport)), btn("🏠 Menu", action.New(action.Home))),
		},
	}, nil
}

func (h *Handler) rollup(ctx context.Context, c *call, period service.Period, by models.RollupBy) (Reply, error) {
	rows, err := h.svc.Rollup(ctx, c.actor, period, by)
	if err != nil {
		return Reply{}, err
	}

	title := "branch"
	if by == models.RollupByTrainer {
		title = "trainer"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s by %s", period.Title(), title)
	if len(rows) == 0 {
		b.WriteString("\n\nNothing to show.")
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "\n\n%s\nSessions: %d (trainings %d, games %d)\nCollected: %s",
			r.Name, r.Sessions, r.Trainings, r.Games, models.FormatMoney(r.Collected))
	}
	return Reply{Text: b.String(), Keyboard: [][]Button{
		row(btn("⬅️ Reports", action.New(action.Reports)), btn("🏠 Menu", action.New(action.Home))),
	}}, nil
}

func (h *Handler) dailyReport(ctx context.Context, c *call) (Reply, error) {
	report, err := h.svc.DailyReport(ctx, c.actor, h.svc.Now())
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:     service.FormatDailyReport(report, h.svc.Location()),
		Keyboard: [][]Button{row(btn("⬅️ Reports", action.New(action.Reports)), btn("🏠 Menu", action.New(action.Home)))},
	}, nil
}
