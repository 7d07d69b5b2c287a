package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/models"
)

// deletePreview asks for confirmation, listing everything the delete takes with it
func (h *Handler) deletePreview(ctx context.Context, c *call, kind models.EntityKind, id int64) (Reply, error) {
	name, impact, err := h.svc.DeletePreview(ctx, c.actor, kind, id)
	if err != nil {
		return Reply{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗑 Delete %s %s?", kind, name)
	if impact.None() {
		b.WriteString("\nNothing else depends on it.")
	} else {
		b.WriteString("\nThis also deletes:")
		for _, line := range impactLines(impact) {
			b.WriteString("\n- " + line)
		}
	}
	b.WriteString("\n\nThis cannot be undone.")

	return Reply{
		Text: b.String(),
		Keyboard: [][]Button{row(
			btn("✅ Yes, delete", action.WithIDValue(action.ConfirmDelete, id, string(kind))),
			btn("✖️ Cancel", action.New(action.Back)),
		)},
	}, nil
}

func impactLines(d models.DeleteImpact) []string {
	counts := []struct {
		n          int
		one, other string
	}{
		{d.Trainers, "trainer", "trainers"},
		{d.Groups, "group", "groups"},
		{d.Children, "child", "children"},
		{d.Sessions, "session", "sessions"},
		{d.Attendance, "attendance mark", "attendance marks"},
		{d.Payments, "payment", "payments"},
	}
	var lines []string
	for _, c := range counts {
		switch {
		case c.n == 1:
			lines = append(lines, "1 "+c.one)
		case c.n > 1:
			lines = append(lines, fmt.Sprintf("%d %s", c.n, c.other))
		}
	}
	return lines
}

func (h *Handler) confirmDelete(ctx context.Context, c *call, kind models.EntityKind, id int64) (Reply, error) {
	name, err := h.svc.Delete(ctx, c.actor, kind, id)
	if err != nil {
		return Reply{}, err
	}
	h.logger.WithField("user_id", c.req.UserID).Infof("Deleted %s %d", kind, id)
	return h.home(ctx, c, fmt.Sprintf("🗑 %s deleted.", name))
}
