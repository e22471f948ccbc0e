package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureMessagingSchema creates the outbox and inbox tables both services
// share. Statements are idempotent; services run this at boot instead of
// carrying a migration tool.
func EnsureMessagingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outbox (
			id          BIGSERIAL PRIMARY KEY,
			event_type  TEXT        NOT NULL,
			payload     JSONB       NOT NULL,
			published_at TIMESTAMPTZ,
			retry_count INT         NOT NULL DEFAULT 0,
			dlq_at      TIMESTAMPTZ,
			last_error  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx
			ON outbox (id) WHERE published_at IS NULL AND dlq_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS processed_inbox (
			event_key TEXT PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
