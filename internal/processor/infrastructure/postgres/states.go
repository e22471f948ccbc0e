package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"order-pipeline/internal/processor/domain"
)

const selectStateSQL = `
SELECT order_id, status, version, attempt_count, last_error
FROM processing_states
WHERE order_id = $1
FOR UPDATE
`

const upsertStateSQL = `
INSERT INTO processing_states (order_id, status, version, attempt_count, last_error)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (order_id) DO UPDATE
SET status        = EXCLUDED.status,
    version       = EXCLUDED.version,
    attempt_count = EXCLUDED.attempt_count,
    last_error    = EXCLUDED.last_error
`

// txStates is the state repository bound to a unit-of-work tx. Get locks
// the row so concurrent deliveries for the same order serialize.
type txStates struct {
	tx pgx.Tx
}

func (r *txStates) Get(ctx context.Context, orderID string) (*domain.ProcessingState, error) {
	var (
		s         domain.ProcessingState
		status    string
		lastError *string
	)
	err := r.tx.QueryRow(ctx, selectStateSQL, orderID).
		Scan(&s.OrderID, &status, &s.Version, &s.AttemptCount, &lastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	s.Status = domain.ProcessingStatus(status)
	if lastError != nil {
		s.LastError = *lastError
	}
	return &s, nil
}

func (r *txStates) Upsert(ctx context.Context, s *domain.ProcessingState) error {
	var lastError *string
	if s.LastError != "" {
		lastError = &s.LastError
	}

	_, err := r.tx.Exec(ctx, upsertStateSQL,
		s.OrderID, string(s.Status), s.Version, s.AttemptCount, lastError,
	)
	return err
}
