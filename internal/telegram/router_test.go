package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/handlers"
)

func privateMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42, UserName: "pat", FirstName: "Pat", LastName: "Doe"},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      text,
	}
}

func command(text string, length int) *tgbotapi.Message {
	m := privateMessage(text)
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	return m
}

func TestMessageRequest(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		req, ok := messageRequest(privateMessage("Kim"))
		if !ok {
			t.Fatal("private message ignored")
		}
		if req.UserID != 42 || req.ChatID != 42 || req.Text != "Kim" || req.Command != "" {
			t.Fatalf("request = %+v", req)
		}
		if req.Username != "pat" || req.FirstName != "Pat" || req.LastName != "Doe" {
			t.Fatalf("profile = %+v", req)
		}
	})

	t.Run("command with args", func(t *testing.T) {
		req, _ := messageRequest(command("/Pay now please", 4))
		if req.Command != "pay" {
			t.Fatalf("command = %q, want pay", req.Command)
		}
		if len(req.Args) != 2 || req.Args[0] != "now" || req.Text != "" {
			t.Fatalf("args = %q text = %q", req.Args, req.Text)
		}
	})

	t.Run("location", func(t *testing.T) {
		m := privateMessage("")
		m.Location = &tgbotapi.Location{Latitude: 41.3, Longitude: 69.2}
		req, _ := messageRequest(m)
		if req.Location == nil || req.Location.Latitude != 41.3 || req.Location.Longitude != 69.2 {
			t.Fatalf("location = %+v", req.Location)
		}
	})

	t.Run("group chat ignored", func(t *testing.T) {
		m := privateMessage("hi")
		m.Chat.Type = "group"
		if _, ok := messageRequest(m); ok {
			t.Fatal("group message accepted")
		}
	})

	t.Run("no sender ignored", func(t *testing.T) {
		m := privateMessage("hi")
		m.From = nil
		if _, ok := messageRequest(m); ok {
			t.Fatal("message without sender accepted")
		}
	})
}

func TestCallbackRequest(t *testing.T) {
	query := func(data string) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: 42},
			Message: privateMessage("menu"),
			Data:    data,
		}
	}

	t.Run("decodes action", func(t *testing.T) {
		want := action.WithIDs(action.MarkPresent, 3, 9)
		req, messageID, err := callbackRequest(query(action.Encode(want)))
		if err != nil {
			t.Fatalf("callbackRequest: %v", err)
		}
		if messageID != 7 || req.ChatID != 42 || req.Action == nil || *req.Action != want {
			t.Fatalf("request = %+v, message %d", req, messageID)
		}
	})

	t.Run("stale data becomes unknown", func(t *testing.T) {
		req, _, err := callbackRequest(query("todo_done:5"))
		if !errors.Is(err, action.ErrUnknown) {
			t.Fatalf("err = %v, want ErrUnknown", err)
		}
		if req.Action == nil || req.Action.Kind != action.Unknown {
			t.Fatalf("action = %+v, want Unknown", req.Action)
		}
	})

	t.Run("inline message without chat", func(t *testing.T) {
		q := query("home")
		q.Message = nil
		if _, messageID, _ := callbackRequest(q); messageID != 0 {
			t.Fatalf("message id = %d, want 0", messageID)
		}
	})
}

func TestInlineKeyboard(t *testing.T) {
	if inlineKeyboard(nil) != nil {
		t.Fatal("empty keyboard should be nil")
	}

	kb := inlineKeyboard([][]handlers.Button{
		{{Label: "Open", Action: action.WithID(action.BranchView, 5)}, {Label: "Menu", Action: action.New(action.Home)}},
		{{Label: "Broken", Action: action.Action{Kind: action.Kind(-1)}}},
	})
	if kb == nil || len(kb.InlineKeyboard) != 1 {
		t.Fatalf("keyboard = %+v, want one row", kb)
	}
	row := kb.InlineKeyboard[0]
	if len(row) != 2 || row[0].Text != "Open" || row[0].CallbackData == nil {
		t.Fatalf("row = %+v", row)
	}
	if got, want := *row[0].CallbackData, action.Encode(action.WithID(action.BranchView, 5)); got != want {
		t.Fatalf("callback data = %q, want %q", got, want)
	}
}

func TestLocationKeyboard(t *testing.T) {
	kb := locationKeyboard()
	if len(kb.Keyboard) != 2 || !kb.Keyboard[0][0].RequestLocation {
		t.Fatalf("keyboard = %+v, want a location button first", kb.Keyboard)
	}
	if !kb.OneTimeKeyboard || !kb.ResizeKeyboard {
		t.Fatal("keyboard should be one-time and resized")
	}
}
