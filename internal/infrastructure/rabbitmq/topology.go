package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange carries the order conversation; DLXExchange receives
	// messages that exhausted retries or were rejected as poison.
	Exchange    = "orders.events"
	DLXExchange = "orders.events.dlx"
)

// QueueName returns the durable queue bound to a routing key.
func QueueName(routingKey string) string { return routingKey + ".q" }

// DLQName returns the dead letter queue for a routing key.
func DLQName(routingKey string) string { return routingKey + ".dlq" }

// DeclareTopology declares the exchanges, work queues and DLQs for the
// given routing keys. All declarations are idempotent, so both the
// publisher and the consumer call this on connect.
func DeclareTopology(ch *amqp.Channel, routingKeys ...string) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare (%s): %w", Exchange, err)
	}
	if err := ch.ExchangeDeclare(DLXExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("dlx exchange declare (%s): %w", DLXExchange, err)
	}

	for _, rk := range routingKeys {
		q := QueueName(rk)
		dlq := DLQName(rk)

		args := amqp.Table{
			"x-dead-letter-exchange":    DLXExchange,
			"x-dead-letter-routing-key": dlq,
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return fmt.Errorf("queue declare (%s): %w", q, err)
		}
		if err := ch.QueueBind(q, rk, Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind (%s): %w", q, err)
		}

		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("dlq declare (%s): %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, dlq, DLXExchange, false, nil); err != nil {
			return fmt.Errorf("dlq bind (%s): %w", dlq, err)
		}
	}
	return nil
}
