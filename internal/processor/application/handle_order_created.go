package application

import (
	"context"
	"errors"

	"order-pipeline/internal/contracts/event"
	storage "order-pipeline/internal/infrastructure/postgres"
	"order-pipeline/internal/metrics"
	"order-pipeline/internal/processor/domain"
)

type HandleOrderCreatedCommand struct {
	OrderID    string
	CustomerID string
	Items      []event.Item
	Amount     float64
	Version    int64
}

// HandleOrderCreated processes one order.created event: evaluate the
// policy, advance the processing state and enqueue order.processed, all in
// one unit of work keyed by the event's inbox key. Replays and stale
// versions commit the key without emitting a second event.
func (s *Service) HandleOrderCreated(ctx context.Context, cmd HandleOrderCreatedCommand) error {
	key := event.Key(event.OrderCreated, cmd.OrderID, cmd.Version)

	var applied bool
	err := s.uow.WithTx(ctx, func(tx Tx) error {
		seen, err := tx.Inbox().Exists(ctx, key)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		state, err := tx.States().Get(ctx, cmd.OrderID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			state = domain.NewProcessingState(cmd.OrderID)
		}

		outcome := s.policy.Evaluate(cmd.OrderID, skusOf(cmd.Items))
		if state.Apply(outcome, cmd.Version) {
			if err := tx.States().Upsert(ctx, state); err != nil {
				return err
			}

			var failReason *string
			if !outcome.Success {
				failReason = &outcome.Reason
			}
			status := event.StatusSuccess
			if !outcome.Success {
				status = event.StatusFailed
			}
			if err := tx.Outbox().Put(ctx, event.OrderProcessed, event.OrderProcessedPayload{
				OrderID:    cmd.OrderID,
				Status:     status,
				FailReason: failReason,
				Version:    cmd.Version + 1,
			}); err != nil {
				return err
			}
			applied = true
		}
		return tx.Inbox().Add(ctx, key)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEventKey) {
			s.lg.Info().Str("event_key", key).Msg("duplicate delivery ignored")
			return nil
		}
		return err
	}

	if applied {
		metrics.RecordOrderProcessed()
		s.lg.Info().Str("order_id", cmd.OrderID).Int64("version", cmd.Version).Msg("order processed")
	}
	return nil
}

func skusOf(items []event.Item) []string {
	skus := make([]string, 0, len(items))
	for _, it := range items {
		skus = append(skus, it.SKU)
	}
	return skus
}
