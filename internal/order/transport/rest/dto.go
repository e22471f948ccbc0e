package rest

import "order-pipeline/internal/order/domain"

type createOrderRequest struct {
	OrderID    string        `json:"order_id" validate:"required"`
	CustomerID string        `json:"customer_id" validate:"required"`
	Items      []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type itemRequest struct {
	SKU      string  `json:"sku" validate:"required"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Price    float64 `json:"price" validate:"gte=0"`
}

type orderResponse struct {
	OrderID     string         `json:"order_id"`
	CustomerID  string         `json:"customer_id"`
	Items       []itemResponse `json:"items"`
	TotalAmount float64        `json:"total_amount"`
	Status      string         `json:"status"`
	FailReason  string         `json:"fail_reason,omitempty"`
	Version     int64          `json:"version"`
}

type itemResponse struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price})
	}
	return orderResponse{
		OrderID:     o.OrderID,
		CustomerID:  o.CustomerID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		FailReason:  o.FailReason,
		Version:     o.Version,
	}
}

func (r createOrderRequest) domainItems() []domain.Item {
	items := make([]domain.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.Item{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price})
	}
	return items
}
