package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database holds database connection and configuration
type Database struct {
	*sqlx.DB
	driver string
	logger *logrus.Logger
}

// NewDatabase opens a connection pool for the given driver and checks it
func NewDatabase(driver, databaseURL string, logger *logrus.Logger) (*Database, error) {
	if driver == DriverSQLite {
		databaseURL = sqliteDSN(databaseURL)
	}
	db, err := sqlx.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		// SQLite serialises writers; a single connection also keeps
		// in-memory databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithField("driver", driver).Info("Database connection established successfully")

	return &Database{
		DB:     db,
		driver: driver,
		logger: logger,
	}, nil
}

// sqliteDSN turns on foreign keys for every connection the pool opens,
// unless the DSN already sets them.
func sqliteDSN(dsn string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		query = dsn[i+1:]
	}
	for _, param := range strings.Split(query, "&") {
		name, _, _ := strings.Cut(param, "=")
		if name == "_foreign_keys" || name == "_fk" {
			return dsn
		}
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// Driver returns the name of the sql driver in use
func (d *Database) Driver() string {
	return d.driver
}

// Migrate applies the embedded migrations for the database's driver. The
// migrations FS must contain one directory per driver name.
func (d *Database) Migrate(migrations fs.FS) error {
	source, err := iofs.New(migrations, d.driver)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	var driver database.Driver
	switch d.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(d.DB.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(d.DB.DB, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", d.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
