package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/models"
)

func (h *Handler) beginSession(ctx context.Context, c *call) (Reply, error) {
	if _, err := h.svc.PrepareSession(ctx, c.actor); err != nil {
		return Reply{}, err
	}
	c.session.Begin(stepSessionType)
	return prompt("▶️ What are you starting?", row(
		btn("🏃 Training", action.WithValue(action.SessionType, string(models.SessionTraining))),
		btn("⚽ Game", action.WithValue(action.SessionType, string(models.SessionGame))),
	)), nil
}

func (h *Handler) sessionType(_ context.Context, c *call) (Reply, error) {
	a, ok := c.input()
	if !ok || a.Kind != action.SessionType {
		return Reply{}, errUnexpected
	}
	typ := models.SessionType(a.Value)
	if !typ.Valid() {
		return Reply{}, models.Invalid("Choose training or game.")
	}
	c.session.Set(keyType, string(typ))
	c.session.Advance(stepSessionLocation)

	reply := prompt("📍 Share your location, or press Skip.", skipRow())
	reply.RequestLocation = true
	return reply, nil
}

func (h *Handler) sessionLocation(ctx context.Context, c *call) (Reply, error) {
	switch {
	case c.req.Location != nil:
		c.session.Set(keyLat, strconv.FormatFloat(c.req.Location.Latitude, 'f', -1, 64))
		c.session.Set(keyLon, strconv.FormatFloat(c.req.Location.Longitude, 'f', -1, 64))
	case c.pressed(action.Skip), c.req.Action == nil && strings.EqualFold(strings.TrimSpace(c.req.Text), "skip"):
	default:
		return Reply{}, models.Invalid("Share the location or press Skip.")
	}

	groups, err := h.svc.TrainerGroups(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	switch len(groups) {
	case 0:
		return Reply{}, models.ErrNoGroups
	case 1:
		return h.startSession(ctx, c, groups[0].ID)
	}
	c.session.Advance(stepSessionGroup)
	return prompt("Choose the group:", groupRows(groups)...), nil
}

func (h *Handler) sessionGroup(ctx context.Context, c *call) (Reply, error) {
	groupID, err := c.picked(action.GroupPick)
	if err != nil {
		return Reply{}, err
	}
	return h.startSession(ctx, c, groupID)
}

func (h *Handler) startSession(ctx context.Context, c *call, groupID int64) (Reply, error) {
	var loc *models.Location
	if c.session.Has(keyLat) && c.session.Has(keyLon) {
		lat, err1 := strconv.ParseFloat(c.session.Get(keyLat), 64)
		lon, err2 := strconv.ParseFloat(c.session.Get(keyLon), 64)
		if err := errors.Join(err1, err2); err != nil {
			return Reply{}, fmt.Errorf("corrupt location in conversation scratch: %w", err)
		}
		loc = &models.Location{Latitude: lat, Longitude: lon}
	}

	session, err := h.svc.StartSession(ctx, c.actor, models.SessionType(c.session.Get(keyType)), groupID, loc)
	if err != nil {
		return Reply{}, err
	}
	c.session.Clear()

	text := fmt.Sprintf("▶️ %s started\nGroup: %s (%s)\nTime: %s\nParents have been notified.",
		session.Type.Title(), session.GroupName, session.BranchName,
		session.StartTime.In(h.svc.Location()).Format("15:04"))
	return Reply{Text: text, Keyboard: [][]Button{
		row(btn("📋 Roll call", action.New(action.RollCall)), btn("🏁 End session", action.New(action.SessionEnd))),
	}}, nil
}

func (h *Handler) endSession(ctx context.Context, c *call) (Reply, error) {
	session, err := h.svc.EndSession(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	duration := "-"
	if session.EndTime != nil {
		duration = session.EndTime.Sub(session.StartTime).Round(time.Minute).String()
	}
	return h.home(ctx, c, fmt.Sprintf("🏁 %s finished\nGroup: %s\nDuration: %s",
		session.Type.Title(), session.GroupName, duration))
}

// rollCall renders one row per child with present and absent buttons
func (h *Handler) rollCall(ctx context.Context, c *call) (Reply, error) {
	session, entries, err := h.svc.RollCall(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	present, marked := 0, 0
	for _, e := range entries {
		if e.Status == nil {
			continue
		}
		marked++
		if *e.Status == string(models.AttendancePresent) {
			present++
		}
	}
	fmt.Fprintf(&b, "📋 Roll call: %s (%s)\nPresent %d, marked %d of %d", session.GroupName, session.Type.Title(),
		present, marked, len(entries))
	if len(entries) == 0 {
		b.WriteString("\n\nThe group has no children yet.")
	}

	var kb [][]Button
	for _, e := range entries {
		mark := "▫️"
		if e.Status != nil {
			mark = "✅"
			if *e.Status == string(models.AttendanceAbsent) {
				mark = "❌"
			}
		}
		kb = append(kb, row(
			btn(mark+" "+e.FullName, action.WithIDs(action.MarkPresent, session.ID, e.ChildID)),
			btn("❌", action.WithIDs(action.MarkAbsent, session.ID, e.ChildID)),
		))
	}
	kb = append(kb, row(btn("🏁 End session", action.New(action.SessionEnd)), btn("🏠 Menu", action.New(action.Home))))
	return Reply{Text: b.String(), Keyboard: kb}, nil
}

func (h *Handler) mark(ctx context.Context, c *call, sessionID, childID int64, status models.AttendanceStatus) (Reply, error) {
	if err := h.svc.MarkAttendance(ctx, c.actor, sessionID, childID, status); err != nil {
		return Reply{}, err
	}
	return h.rollCall(ctx, c)
}

func (h *Handler) myStats(ctx context.Context, c *call) (Reply, error) {
	stats, err := h.svc.TrainerStats(ctx, c.actor)
	if err != nil {
		return Reply{}, err
	}
	text := fmt.Sprintf("📈 %s, %s\nSessions: %d (trainings %d, games %d)\nGroups: %d\nChildren: %d\n"+
		"Cash on hand: %s\nHanded in: %s",
		c.actor.Trainer.FullName, h.svc.Now().Format("January 2006"),
		stats.Sessions, stats.Trainings, stats.Games, stats.Groups, stats.Children,
		models.FormatMoney(stats.Money.WithTrainer), models.FormatMoney(stats.Money.InCashbox))
	return Reply{Text: text, Keyboard: homeRow()}, nil
}
