package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"order-pipeline/internal/outbox"
)

// OutboxStore is the pump-side view of the outbox table. Rows are written
// only through TxOutbox inside a unit of work.
type OutboxStore struct {
	pool *pgxpool.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// ClaimPending reads up to limit unpublished, non-dead rows in insertion
// order. SKIP LOCKED keeps concurrent pumps from reading the same batch;
// the claim tx commits before any network I/O (duplicates that slip
// through are absorbed by the consumer-side inbox).
func (s *OutboxStore) ClaimPending(ctx context.Context, limit int) ([]outbox.Row, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, retry_count
		FROM outbox
		WHERE published_at IS NULL
		  AND dlq_at IS NULL
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batch []outbox.Row
	for rows.Next() {
		var r outbox.Row
		if err := rows.Scan(&r.ID, &r.EventType, &r.Payload, &r.RetryCount); err != nil {
			return nil, err
		}
		batch = append(batch, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkPublished stamps published_at; the row is immutable afterwards.
func (s *OutboxStore) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET published_at = NOW(),
		    last_error = NULL
		WHERE id = $1
	`, id)
	return err
}

// MarkFailed increments retry_count after a failed publish attempt.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error = $2
		WHERE id = $1
	`, id, lastErr)
	return err
}

// RecordError stores the latest publish error without incrementing
// retry_count. Used when the DLQ publish itself failed: the row stays
// claimable and retry_count stays within the bound.
func (s *OutboxStore) RecordError(ctx context.Context, id int64, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET last_error = $2
		WHERE id = $1
	`, id, lastErr)
	return err
}

// MarkDead flags the row as DLQ-routed; the pump will never pick it again.
func (s *OutboxStore) MarkDead(ctx context.Context, id int64, lastErr string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    dlq_at = NOW(),
		    last_error = $2
		WHERE id = $1
	`, id, lastErr)
	return err
}

// TxOutbox appends events inside the enclosing unit-of-work transaction,
// which is what makes local state and outgoing events atomic.
type TxOutbox struct {
	tx pgx.Tx
}

func NewTxOutbox(tx pgx.Tx) *TxOutbox { return &TxOutbox{tx: tx} }

func (w *TxOutbox) Put(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = w.tx.Exec(ctx, `
		INSERT INTO outbox (event_type, payload, retry_count)
		VALUES ($1, $2, 0)
	`, eventType, body)
	return err
}
