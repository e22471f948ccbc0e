package application

import (
	"context"
	"errors"

	"order-pipeline/internal/contracts/event"
	storage "order-pipeline/internal/infrastructure/postgres"
	"order-pipeline/internal/order/domain"
)

type ApplyProcessedCommand struct {
	OrderID    string
	Status     string
	FailReason string
	Version    int64
}

// ApplyProcessed folds a consumed order.processed event into the order.
// The inbox key makes replays no-ops; the version gate absorbs stale
// deliveries; an unknown order_id is tolerated (the key is still
// recorded so the orphan is never reprocessed).
func (s *Service) ApplyProcessed(ctx context.Context, cmd ApplyProcessedCommand) error {
	key := event.Key(event.OrderProcessed, cmd.OrderID, cmd.Version)

	err := s.uow.WithTx(ctx, func(tx Tx) error {
		seen, err := tx.Inbox().Exists(ctx, key)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		order, err := tx.Orders().Get(ctx, cmd.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Orphan event; record the key and move on.
				return tx.Inbox().Add(ctx, key)
			}
			return err
		}

		if order.Apply(cmd.Status, cmd.FailReason, cmd.Version) {
			if err := tx.Orders().Upsert(ctx, order); err != nil {
				return err
			}
		}
		return tx.Inbox().Add(ctx, key)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEventKey) {
			// A concurrent consumer committed the same key first; its
			// effects are durable, so this delivery is done.
			s.lg.Info().Str("event_key", key).Msg("duplicate delivery ignored")
			return nil
		}
		return err
	}
	return nil
}
