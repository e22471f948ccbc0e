package application

import (
	"context"

	"order-pipeline/internal/order/domain"
)

// OrderRepository is the aggregate store bound to a transaction.
// Get returns domain.ErrNotFound when the order does not exist.
type OrderRepository interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Upsert(ctx context.Context, o *domain.Order) error
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
	Orders() OrderRepository
	Outbox() OutboxWriter
	Inbox() InboxStore
}

// UnitOfWork runs fn inside a transaction: commit on nil, rollback on
// error or panic. This is the only atomicity primitive the use cases
// rely on.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// OrderReader serves the HTTP read path outside a unit of work.
type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
}
