package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/academybot/internal/handlers"
)

// Bot wraps the Telegram bot API
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *logrus.Logger
	router *Router
	queue  *chatQueue
}

// NewBot creates a new Telegram bot instance. Updates are ignored until a
// handler is attached with Route.
func NewBot(token string, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:    api,
		logger: logger,
		queue:  newChatQueue(),
	}, nil
}

// Route sends every update to h
func (b *Bot) Route(h *handlers.Handler) {
	b.router = NewRouter(b.api, h, b.logger)
}

// menuCommands are shown in the client's command menu
var menuCommands = []tgbotapi.BotCommand{
	{Command: "menu", Description: "Main menu"},
	{Command: "register", Description: "Sign up"},
	{Command: "session", Description: "Start a training or game"},
	{Command: "rollcall", Description: "Mark attendance"},
	{Command: "end", Description: "Finish the session"},
	{Command: "pay", Description: "Record a payment"},
	{Command: "kids", Description: "My children"},
	{Command: "cancel", Description: "Stop the current dialog"},
	{Command: "help", Description: "Help"},
}

// Start starts the bot with long polling
func (b *Bot) Start(ctx context.Context) error {
	if b.router == nil {
		return fmt.Errorf("no handler attached")
	}

	// Delete webhook if exists and use polling
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(menuCommands...)); err != nil {
		b.logger.WithError(err).Warn("Failed to set bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started with long polling")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping bot...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			b.queue.push(chatOf(update), func() { b.handleUpdate(ctx, update) })
		}
	}
}

// handleUpdate processes incoming updates
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in update handler: %v", r)
		}
	}()

	if update.Message != nil {
		b.router.HandleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.router.HandleCallbackQuery(ctx, update.CallbackQuery)
	}
}

// Send delivers a plain text message. It satisfies notify.Sender.
func (b *Bot) Send(_ context.Context, chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
