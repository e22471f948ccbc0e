// Package postgres persists processing states and binds them, the outbox
// and the inbox to one transaction per unit of work.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	storage "order-pipeline/internal/infrastructure/postgres"
	"order-pipeline/internal/processor/application"
)

type UnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(tx application.Tx) error) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		// Safety: in case fn panics, rollback to avoid a leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&uowTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type uowTx struct {
	tx pgx.Tx
}

func (t *uowTx) States() application.StateRepository { return &txStates{tx: t.tx} }
func (t *uowTx) Outbox() application.OutboxWriter    { return storage.NewTxOutbox(t.tx) }
func (t *uowTx) Inbox() application.InboxStore       { return storage.NewTxInbox(t.tx) }
