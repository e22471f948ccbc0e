package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	storage "order-pipeline/internal/infrastructure/postgres"
)

// EnsureSchema creates the processor tables idempotently at boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processing_states (
			order_id      TEXT PRIMARY KEY,
			status        TEXT   NOT NULL,
			version       BIGINT NOT NULL,
			attempt_count INT    NOT NULL DEFAULT 0,
			last_error    TEXT
		)
	`); err != nil {
		return err
	}
	return storage.EnsureMessagingSchema(ctx, pool)
}
