package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEventKey reports a concurrent insert of the same inbox key.
// The loser re-checks the inbox and no-ops.
var ErrDuplicateEventKey = errors.New("duplicate event key")

// TxInbox is the idempotency fence: presence of a key means the enclosing
// use case already committed the event's effects.
type TxInbox struct {
	tx pgx.Tx
}

func NewTxInbox(tx pgx.Tx) *TxInbox { return &TxInbox{tx: tx} }

func (i *TxInbox) Exists(ctx context.Context, eventKey string) (bool, error) {
	var found bool
	err := i.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_inbox WHERE event_key = $1)
	`, eventKey).Scan(&found)
	return found, err
}

func (i *TxInbox) Add(ctx context.Context, eventKey string) error {
	_, err := i.tx.Exec(ctx, `
		INSERT INTO processed_inbox (event_key) VALUES ($1)
	`, eventKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEventKey
		}
		return err
	}
	return nil
}
