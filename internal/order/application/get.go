package application

import (
	"context"

	"order-pipeline/internal/order/domain"
)

// GetOrder returns the stored order or domain.ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.reader.GetByID(ctx, orderID)
}
