package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	storage "order-pipeline/internal/infrastructure/postgres"
)

// EnsureSchema creates the order service tables idempotently at boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			order_id     TEXT PRIMARY KEY,
			customer_id  TEXT             NOT NULL,
			items        JSONB            NOT NULL,
			total_amount DOUBLE PRECISION NOT NULL,
			status       TEXT             NOT NULL,
			fail_reason  TEXT,
			version      BIGINT           NOT NULL DEFAULT 0
		)
	`); err != nil {
		return err
	}
	return storage.EnsureMessagingSchema(ctx, pool)
}
