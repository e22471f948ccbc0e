// Package application holds the processor use case: consume order.created,
// decide an outcome and emit order.processed through the outbox.
package application

import (
	"github.com/rs/zerolog"

	"order-pipeline/internal/processor/domain"
)

type Service struct {
	uow    UnitOfWork
	policy domain.Policy
	lg     zerolog.Logger
}

func NewService(uow UnitOfWork, policy domain.Policy, lg zerolog.Logger) *Service {
	return &Service{
		uow:    uow,
		policy: policy,
		lg:     lg.With().Str("component", "processor_service").Logger(),
	}
}
