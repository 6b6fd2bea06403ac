// Package postgres opens PostgreSQL databases for use with the sqlstore
// driver, through pgx's database/sql adapter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	"github.com/jmoiron/sqlx"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = time.Hour
	defaultPingTimeout     = 5 * time.Second
)

// ErrEmptyDSN is returned by Open when no connection string is configured.
var ErrEmptyDSN = errors.New("postgres: empty DSN")

// Config holds connection pool settings. Zero values fall back to defaults.
type Config struct {
	// DSN is a libpq keyword/value string or a postgres:// URL.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultConfig returns a Config for dsn with the default pool settings.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		PingTimeout:     defaultPingTimeout,
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

// Open connects to the database described by cfg and verifies it with a ping.
// The returned handle rebinds "?" placeholders to "$n".
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return db, nil
}
