package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/action"
	"github.com/Kerhoff/academybot/internal/handlers"
	"github.com/Kerhoff/academybot/internal/metrics"
	"github.com/Kerhoff/academybot/internal/models"
)

// Router converts updates into handler requests and renders the replies
type Router struct {
	api     *tgbotapi.BotAPI
	handler *handlers.Handler
	logger  *logrus.Logger

	// chats currently showing the share-location reply keyboard
	replyKeyboards sync.Map
}

// NewRouter creates a new message router
func NewRouter(api *tgbotapi.BotAPI, handler *handlers.Handler, logger *logrus.Logger) *Router {
	return &Router{
		api:     api,
		handler: handler,
		logger:  logger,
	}
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(ctx context.Context, message *tgbotapi.Message) {
	req, ok := messageRequest(message)
	if !ok {
		return
	}
	kind := "message"
	switch {
	case req.Command != "":
		kind = "command"
	case req.Location != nil:
		kind = "location"
	}
	metrics.Updates.WithLabelValues(kind).Inc()

	log := r.logger.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"chat_id":    req.ChatID,
		"user_id":    req.UserID,
		"username":   req.Username,
		"message_id": message.MessageID,
		"kind":       kind,
	})
	if req.Command != "" {
		log = log.WithField("command", req.Command)
	}
	log.Info("Received message")

	reply := r.handler.Handle(ctx, req)
	r.render(req.ChatID, 0, reply, log)
}

// HandleCallbackQuery handles callback queries from inline keyboards
func (r *Router) HandleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	req, messageID, err := callbackRequest(query)
	if messageID == 0 {
		r.answer(query.ID, "")
		return
	}
	metrics.Updates.WithLabelValues("callback").Inc()

	log := r.logger.WithFields(logrus.Fields{
		"request_id":  uuid.NewString(),
		"callback_id": query.ID,
		"chat_id":     req.ChatID,
		"user_id":     req.UserID,
		"data":        query.Data,
	})
	log.Info("Received callback query")

	// Answer the callback query to remove loading state
	if err != nil {
		log.WithError(err).Warn("Undecodable callback data")
		r.answer(query.ID, "This button has expired.")
	} else {
		r.answer(query.ID, "")
	}

	reply := r.handler.Handle(ctx, req)
	r.render(req.ChatID, messageID, reply, log)
}

func (r *Router) answer(callbackID, text string) {
	if _, err := r.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		r.logger.WithError(err).Debug("Failed to answer callback query")
	}
}

// render shows the reply, editing messageID in place when the reply asks for it
func (r *Router) render(chatID int64, messageID int, reply handlers.Reply, log *logrus.Entry) {
	if reply.Text == "" {
		return
	}

	if reply.RequestLocation {
		msg := tgbotapi.NewMessage(chatID, reply.Text)
		msg.ReplyMarkup = locationKeyboard()
		r.send(msg, log)
		r.replyKeyboards.Store(chatID, struct{}{})
		return
	}
	if _, open := r.replyKeyboards.LoadAndDelete(chatID); open {
		r.closeReplyKeyboard(chatID, log)
	}

	markup := inlineKeyboard(reply.Keyboard)
	if reply.Edit && messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, reply.Text)
		if markup != nil {
			edit.ReplyMarkup = markup
		}
		_, err := r.api.Send(edit)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return
		}
		log.WithError(err).Debug("Edit failed, sending a new message")
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	r.send(msg, log)
}

// closeReplyKeyboard removes the share-location keyboard. Telegram only
// removes it together with a message, so a placeholder is sent and deleted.
func (r *Router) closeReplyKeyboard(chatID int64, log *logrus.Entry) {
	msg := tgbotapi.NewMessage(chatID, "⌨️")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	sent, err := r.api.Send(msg)
	if err != nil {
		log.WithError(err).Warn("Failed to remove reply keyboard")
		return
	}
	if _, err := r.api.Request(tgbotapi.NewDeleteMessage(chatID, sent.MessageID)); err != nil {
		log.WithError(err).Debug("Failed to delete keyboard placeholder")
	}
}

func (r *Router) send(msg tgbotapi.MessageConfig, log *logrus.Entry) {
	if _, err := r.api.Send(msg); err != nil {
		log.WithError(err).Error("Failed to send reply")
	}
}

// messageRequest converts a private chat message. Other chats are ignored.
func messageRequest(m *tgbotapi.Message) (handlers.Request, bool) {
	if m == nil || m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return handlers.Request{}, false
	}
	req := handlers.Request{
		UserID:    m.From.ID,
		ChatID:    m.Chat.ID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
		Text:      m.Text,
	}
	if m.IsCommand() {
		req.Command = strings.ToLower(m.Command())
		req.Args = strings.Fields(m.CommandArguments())
		req.Text = ""
	}
	if m.Location != nil {
		req.Location = &models.Location{Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
	}
	return req, true
}

// callbackRequest converts a button press. Data that no longer decodes is
// passed on as an unknown action, which takes the user home. A zero message
// id means the press cannot be answered with a chat message.
func callbackRequest(q *tgbotapi.CallbackQuery) (handlers.Request, int, error) {
	if q == nil || q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return handlers.Request{}, 0, nil
	}
	a, err := action.Decode(q.Data)
	if err != nil {
		a = action.New(action.Unknown)
	}
	req := handlers.Request{
		UserID:    q.From.ID,
		ChatID:    q.Message.Chat.ID,
		Username:  q.From.UserName,
		FirstName: q.From.FirstName,
		LastName:  q.From.LastName,
		Action:    &a,
	}
	return req, q.Message.MessageID, err
}

// inlineKeyboard renders buttons as callback buttons; nil when there are none
func inlineKeyboard(rows [][]handlers.Button) *tgbotapi.InlineKeyboardMarkup {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			data := action.Encode(b.Action)
			if data == "" || len(data) > action.MaxLen {
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, data))
		}
		if len(buttons) > 0 {
			kb = append(kb, buttons)
		}
	}
	if len(kb) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kb...)
	return &markup
}

// locationKeyboard offers the share-location button plus typed fallbacks
func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation("📍 Share location")),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("skip"), tgbotapi.NewKeyboardButton("/cancel")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
