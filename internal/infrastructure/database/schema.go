package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// booksSchema is idempotent; it runs on every start when DB_AUTO_MIGRATE is on.
var booksSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS books (
		id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title          TEXT NOT NULL,
		author         TEXT NOT NULL,
		description    TEXT NOT NULL,
		image_url      TEXT NOT NULL,
		owner_id       TEXT NOT NULL,
		ratings        JSONB NOT NULL DEFAULT '[]'::jsonb,
		average_rating NUMERIC(2,1) NOT NULL DEFAULT 0,
		version        INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_top_rated ON books (average_rating DESC, created_at ASC, id ASC)`,
	`CREATE INDEX IF NOT EXISTS idx_books_created_at ON books (created_at ASC, id ASC)`,
}

// EnsureSchema creates the books table and its indexes when missing.
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	for _, stmt := range booksSchema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	log.Info().Msg("[DATABASE] Schema is up to date")
	return nil
}
