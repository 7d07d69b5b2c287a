package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	DBDriver          string
	LogLevel          string
	LogFormat         string
	Port              string
	AdminIDs          map[int64]bool
	Location          *time.Location
	ReportHour        int
	ReportMinute      int
	ConversationStore string
}

// Load loads configuration from the environment. A .env file in the working
// directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:          getEnvOrDefault("DB_DRIVER", DriverPostgres),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
		Port:              getEnvOrDefault("PORT", "8080"),
		ConversationStore: getEnvOrDefault("CONVERSATION_STORE", "sql"),
	}

	// Required environment variables
	if cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN"); cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}

	if cfg.ConversationStore != "sql" && cfg.ConversationStore != "memory" {
		return nil, fmt.Errorf("CONVERSATION_STORE must be sql or memory, got %q", cfg.ConversationStore)
	}

	var err error
	if cfg.AdminIDs, err = ParseAdminIDs(os.Getenv("ADMIN_IDS")); err != nil {
		return nil, err
	}

	tz := getEnvOrDefault("TIMEZONE", "Asia/Tashkent")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	if cfg.ReportHour, cfg.ReportMinute, err = ParseClock(getEnvOrDefault("DAILY_REPORT_AT", "21:00")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of Telegram user ids
func ParseAdminIDs(raw string) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids[id] = true
	}
	return ids, nil
}

// ParseClock parses "HH:MM" into hour and minute
func ParseClock(raw string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid DAILY_REPORT_AT %q, expected HH:MM", raw)
	}
	return t.Hour(), t.Minute(), nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
