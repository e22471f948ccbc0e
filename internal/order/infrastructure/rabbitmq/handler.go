// Package rabbitmq binds the order.processed queue to the apply-processed
// use case.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"order-pipeline/internal/contracts/event"
	mq "order-pipeline/internal/infrastructure/rabbitmq"
	"order-pipeline/internal/order/application"
)

const handleTimeout = 10 * time.Second

type processedApplier interface {
	ApplyProcessed(ctx context.Context, cmd application.ApplyProcessedCommand) error
}

// NewOrderProcessedHandler decodes order.processed envelopes and applies
// them. Undecodable or malformed payloads are poison: they go to the DLQ
// instead of blocking the queue.
func NewOrderProcessedHandler(svc processedApplier, lg zerolog.Logger) mq.HandlerFunc {
	log := lg.With().Str("component", "order_processed_handler").Logger()

	return func(ctx context.Context, body []byte) error {
		var p event.OrderProcessedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("%w: decode order.processed: %v", mq.ErrBadMessage, err)
		}
		if p.OrderID == "" {
			return fmt.Errorf("%w: missing order_id", mq.ErrBadMessage)
		}
		if p.Status != event.StatusSuccess && p.Status != event.StatusFailed {
			return fmt.Errorf("%w: unknown status %q", mq.ErrBadMessage, p.Status)
		}
		if p.Version < 0 {
			return fmt.Errorf("%w: negative version", mq.ErrBadMessage)
		}

		var reason string
		if p.FailReason != nil {
			reason = *p.FailReason
		}

		ctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()

		if err := svc.ApplyProcessed(ctx, application.ApplyProcessedCommand{
			OrderID:    p.OrderID,
			Status:     p.Status,
			FailReason: reason,
			Version:    p.Version,
		}); err != nil {
			return err
		}

		log.Debug().Str("order_id", p.OrderID).Int64("version", p.Version).Msg("order.processed applied")
		return nil
	}
}
