// Package application holds the order service use cases. They depend on
// the UnitOfWork abstraction only; transport and persistence plug in at
// wiring time.
package application

import "github.com/rs/zerolog"

type Service struct {
	uow    UnitOfWork
	reader OrderReader
	lg     zerolog.Logger
}

func NewService(uow UnitOfWork, reader OrderReader, lg zerolog.Logger) *Service {
	return &Service{
		uow:    uow,
		reader: reader,
		lg:     lg.With().Str("component", "order_service").Logger(),
	}
}
