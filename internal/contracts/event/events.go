// Package event defines the wire contracts exchanged between the order
// and processor services. Payloads are JSON UTF-8 published on the
// orders.events topic exchange.
package event

import "fmt"

// Routing keys. The routing key doubles as the outbox event_type.
const (
	OrderCreated   = "order.created"
	OrderProcessed = "order.processed"
)

// Processing outcomes carried on order.processed.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Item struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderCreatedPayload flows Order -> Processor.
type OrderCreatedPayload struct {
	OrderID    string  `json:"order_id"`
	CustomerID string  `json:"customer_id"`
	Items      []Item  `json:"items"`
	Amount     float64 `json:"amount"`
	Version    int64   `json:"version"`
}

// OrderProcessedPayload flows Processor -> Order.
type OrderProcessedPayload struct {
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"`
	FailReason *string `json:"fail_reason"`
	Version    int64   `json:"version"`
}

// Key builds the inbox deduplication key for an event. Presence of the
// key in processed_inbox means the event's effects are durable.
func Key(eventType, orderID string, version int64) string {
	return fmt.Sprintf("%s:%s:%d", eventType, orderID, version)
}
