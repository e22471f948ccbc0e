// Package rabbitmq binds the order.created queue to the processor use
// case.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"order-pipeline/internal/contracts/event"
	mq "order-pipeline/internal/infrastructure/rabbitmq"
	"order-pipeline/internal/processor/application"
)

const handleTimeout = 10 * time.Second

type orderCreatedHandler interface {
	HandleOrderCreated(ctx context.Context, cmd application.HandleOrderCreatedCommand) error
}

// NewOrderCreatedHandler decodes order.created envelopes and hands them to
// the processor. Undecodable or malformed payloads are poison: they go to
// the DLQ instead of blocking the queue.
func NewOrderCreatedHandler(svc orderCreatedHandler, lg zerolog.Logger) mq.HandlerFunc {
	log := lg.With().Str("component", "order_created_handler").Logger()

	return func(ctx context.Context, body []byte) error {
		var p event.OrderCreatedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("%w: decode order.created: %v", mq.ErrBadMessage, err)
		}
		if p.OrderID == "" {
			return fmt.Errorf("%w: missing order_id", mq.ErrBadMessage)
		}
		if len(p.Items) == 0 {
			return fmt.Errorf("%w: empty items", mq.ErrBadMessage)
		}
		if p.Version < 0 {
			return fmt.Errorf("%w: negative version", mq.ErrBadMessage)
		}

		ctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()

		if err := svc.HandleOrderCreated(ctx, application.HandleOrderCreatedCommand{
			OrderID:    p.OrderID,
			CustomerID: p.CustomerID,
			Items:      p.Items,
			Amount:     p.Amount,
			Version:    p.Version,
		}); err != nil {
			return err
		}

		log.Debug().Str("order_id", p.OrderID).Int64("version", p.Version).Msg("order.created handled")
		return nil
	}
}
