package application

import (
	"context"
	"errors"

	"order-pipeline/internal/contracts/event"
	"order-pipeline/internal/metrics"
	"order-pipeline/internal/order/domain"
)

type CreateOrderCommand struct {
	OrderID    string
	CustomerID string
	Items      []domain.Item
}

// CreateOrder persists a new order and enqueues order.created in one
// unit of work. Repeating the same order_id is not an error: the stored
// order is returned and no second event is written. created reports
// whether this call created the order.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (order *domain.Order, created bool, err error) {
	candidate, err := domain.New(cmd.OrderID, cmd.CustomerID, cmd.Items)
	if err != nil {
		return nil, false, err
	}

	err = s.uow.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.Orders().Get(ctx, cmd.OrderID)
		if err == nil {
			order = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if err := tx.Orders().Upsert(ctx, candidate); err != nil {
			return err
		}
		if err := tx.Outbox().Put(ctx, event.OrderCreated, event.OrderCreatedPayload{
			OrderID:    candidate.OrderID,
			CustomerID: candidate.CustomerID,
			Items:      toWireItems(candidate.Items),
			Amount:     candidate.TotalAmount,
			Version:    candidate.Version,
		}); err != nil {
			return err
		}

		order = candidate
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.RecordOrderCreated()
		s.lg.Info().Str("order_id", order.OrderID).Msg("order created")
	}
	return order, created, nil
}

func toWireItems(items []domain.Item) []event.Item {
	out := make([]event.Item, 0, len(items))
	for _, it := range items {
		out = append(out, event.Item{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price})
	}
	return out
}
