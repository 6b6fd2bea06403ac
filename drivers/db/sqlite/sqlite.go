// Package sqlite opens SQLite databases for use with the sqlstore driver.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// ErrEmptyDSN is returned by Open when no data source name is configured.
var ErrEmptyDSN = errors.New("sqlite: empty DSN")

// Config holds connection pool settings. Zero values fall back to defaults.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
	// ForeignKeys turns on PRAGMA foreign_keys for every connection.
	ForeignKeys bool
}

// DefaultConfig returns a Config for dsn with the default pool settings.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		PingTimeout:     defaultPingTimeout,
		ForeignKeys:     true,
	}
}

func (c *Config) validate() error {
	if c.DSN == "" {
		return ErrEmptyDSN
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = defaultMaxIdleConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	return nil
}

// dsn appends the driver options implied by cfg.
func (c Config) dsn() string {
	if !c.ForeignKeys {
		return c.DSN
	}
	if strings.Contains(c.DSN, "?") {
		return c.DSN + "&_foreign_keys=on"
	}
	return c.DSN + "?_foreign_keys=on"
}

// Open connects to the database described by cfg and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}
