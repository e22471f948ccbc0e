package domain

import (
	"errors"
	"fmt"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusDone    OrderStatus = "done"
	StatusFailed  OrderStatus = "failed"
)

var (
	ErrValidation = errors.New("invalid order")
	ErrNotFound   = errors.New("order not found")
)

type Item struct {
	SKU      string
	Quantity int
	Price    float64
}

func (i Item) Total() float64 { return float64(i.Quantity) * i.Price }

// Order is the aggregate owned by the order service. version starts at 0
// and increases strictly on every applied order.processed event; the
// version gate in Apply is what makes out-of-order and duplicated
// deliveries converge.
type Order struct {
	OrderID     string
	CustomerID  string
	Items       []Item
	TotalAmount float64
	Status      OrderStatus
	FailReason  string
	Version     int64
}

func New(orderID, customerID string, items []Item) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrValidation)
	}
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	var total float64
	for _, it := range items {
		if it.SKU == "" {
			return nil, fmt.Errorf("%w: item sku is required", ErrValidation)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item quantity must be >= 1", ErrValidation)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("%w: item price must be >= 0", ErrValidation)
		}
		total += it.Total()
	}

	return &Order{
		OrderID:     orderID,
		CustomerID:  customerID,
		Items:       items,
		TotalAmount: total,
		Status:      StatusPending,
		Version:     0,
	}, nil
}

// Apply folds an order.processed outcome into the order. The version gate
// rejects anything not strictly newer than the current version, so the
// highest-versioned event wins regardless of delivery order. Returns
// false when the event was stale and nothing changed.
func (o *Order) Apply(status string, failReason string, version int64) bool {
	if version <= o.Version {
		return false
	}

	switch status {
	case "success":
		o.Status = StatusDone
		o.FailReason = ""
	case "failed":
		o.Status = StatusFailed
		if failReason == "" {
			failReason = "unknown"
		}
		o.FailReason = failReason
	default:
		return false
	}

	o.Version = version
	return true
}
