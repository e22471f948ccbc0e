package application

import (
	"context"

	"order-pipeline/internal/processor/domain"
)

// StateRepository is the processing-state store bound to a transaction.
// Get returns domain.ErrNotFound when no state exists for the order.
type StateRepository interface {
	Get(ctx context.Context, orderID string) (*domain.ProcessingState, error)
	Upsert(ctx context.Context, s *domain.ProcessingState) error
}

// OutboxWriter appends an event that becomes publisher-visible iff the
// enclosing unit of work commits.
type OutboxWriter interface {
	Put(ctx context.Context, eventType string, payload any) error
}

// InboxStore records event keys whose effects have been committed.
// Add surfaces a concurrent insert as postgres.ErrDuplicateEventKey.
type InboxStore interface {
	Exists(ctx context.Context, eventKey string) (bool, error)
	Add(ctx context.Context, eventKey string) error
}

// Tx groups the collaborators bound to one database transaction.
type Tx interface {
	States() StateRepository
	Outbox() OutboxWriter
	Inbox() InboxStore
}

// UnitOfWork runs fn inside a transaction: commit on nil, rollback on
// error or panic.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
