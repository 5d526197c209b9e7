package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kkkkikiki/codecast/internal/config"
)

// DB holds database connections
type DB struct {
	Postgres *sqlx.DB
}

// NewDB creates new database connections using config
func NewDB(ctx context.Context, cfg *config.Config) (*DB, error) {
	// Connect to PostgreSQL
	postgres, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	postgres.SetMaxOpenConns(cfg.Database.MaxConns)
	postgres.SetMaxIdleConns(cfg.Database.MinConns)
	postgres.SetConnMaxLifetime(time.Hour)

	// Test PostgreSQL connection
	if err := postgres.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")

	return &DB{
		Postgres: postgres,
	}, nil
}

// schema is applied on startup. All statements are idempotent so repeated
// boots are safe.
const schema = `
CREATE TABLE IF NOT EXISTS seen_codes (
	game          TEXT        NOT NULL,
	code          TEXT        NOT NULL,
	rewards       TEXT        NOT NULL DEFAULT '',
	status        TEXT        NOT NULL DEFAULT 'active',
	discovered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (game, code)
);

CREATE TABLE IF NOT EXISTS code_channels (
	game       TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	PRIMARY KEY (game, channel_id)
);
`

// EnsureSchema creates the tables the service needs if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Postgres.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Close closes all database connections
func (db *DB) Close() error {
	if err := db.Postgres.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}

	return nil
}
