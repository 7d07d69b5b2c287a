package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/conversation"
)

// Conversations persists dialog state so it survives restarts
type Conversations struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewConversations creates a SQL backed conversation store
func NewConversations(db *sqlx.DB) *Conversations {
	return &Conversations{db: db, now: time.Now}
}

type conversationRow struct {
	Step      string    `db:"step"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (c *Conversations) Load(ctx context.Context, userID, chatID int64) (*conversation.Session, error) {
	var row conversationRow
	query := c.db.Rebind(`SELECT step, data, updated_at FROM conversations WHERE user_id = ? AND chat_id = ?`)
	err := c.db.GetContext(ctx, &row, query, userID, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.New(userID, chatID), nil
	}
	if err != nil {
		return nil, classify(err, "load conversation")
	}

	session := conversation.New(userID, chatID)
	session.Step = conversation.Step(row.Step)
	session.UpdatedAt = row.UpdatedAt
	if err := json.Unmarshal([]byte(row.Data), &session.Data); err != nil {
		return nil, fmt.Errorf("failed to decode conversation data: %w", err)
	}
	if session.Data == nil {
		session.Data = map[string]string{}
	}
	return session, nil
}

func (c *Conversations) Save(ctx context.Context, session *conversation.Session) error {
	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("failed to encode conversation data: %w", err)
	}
	session.UpdatedAt = dbTime(c.now())

	query := c.db.Rebind(`
		INSERT INTO conversations (user_id, chat_id, step, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, chat_id)
		DO UPDATE SET step = excluded.step, data = excluded.data, updated_at = excluded.updated_at`)
	if _, err := c.db.ExecContext(ctx, query,
		session.UserID, session.ChatID, string(session.Step), string(data), session.UpdatedAt); err != nil {
		return classify(err, "save conversation")
	}
	return nil
}

func (c *Conversations) Clear(ctx context.Context, userID, chatID int64) error {
	query := c.db.Rebind(`DELETE FROM conversations WHERE user_id = ? AND chat_id = ?`)
	if _, err := c.db.ExecContext(ctx, query, userID, chatID); err != nil {
		return classify(err, "clear conversation")
	}
	return nil
}
