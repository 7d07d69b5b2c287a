package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kerhoff/academybot/internal/api"
	"github.com/Kerhoff/academybot/internal/auth"
	"github.com/Kerhoff/academybot/internal/config"
	"github.com/Kerhoff/academybot/internal/conversation"
	"github.com/Kerhoff/academybot/internal/handlers"
	"github.com/Kerhoff/academybot/internal/notify"
	"github.com/Kerhoff/academybot/internal/repository/sqlstore"
	"github.com/Kerhoff/academybot/internal/service"
	"github.com/Kerhoff/academybot/internal/telegram"
	"github.com/Kerhoff/academybot/migrations"
	"github.com/Kerhoff/academybot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.WithField("timezone", cfg.Location.String()).Info("Starting academy bot...")

	// Database
	db, err := config.NewDatabase(cfg.DBDriver, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(migrations.FS); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	repos := sqlstore.New(db.DB)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Notifications go out through the bot
	dispatcher := notify.NewDispatcher(bot, sqlstore.NewDirectory(db.DB), l, cfg.Location)

	// Service layer
	svc := service.New(db.DB, l, repos, auth.NewGate(), dispatcher, service.Options{
		Location: cfg.Location,
		AdminIDs: cfg.AdminIDs,
	})

	var store conversation.Store = sqlstore.NewConversations(db.DB)
	if cfg.ConversationStore == "memory" {
		store = conversation.NewMemoryStore()
	}
	l.WithField("store", cfg.ConversationStore).Info("Conversation store ready")

	bot.Route(handlers.New(svc, store, l))

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Daily report
	reporter := service.NewReporter(svc, dispatcher, cfg.ReportHour, cfg.ReportMinute)
	if err := reporter.Start(); err != nil {
		l.Fatalf("Failed to schedule daily report: %v", err)
	}

	// HTTP ops server
	apiServer := api.NewServer(svc, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			l.Errorf("Bot error: %v", err)
			stop()
		}
	}()

	l.Info("Academy bot started successfully")

	<-ctx.Done()
	l.Info("Received shutdown signal...")

	reporter.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	l.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}

	l.Info("Academy bot stopped")
}
