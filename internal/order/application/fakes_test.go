package application

import (
	"context"

	storage "order-pipeline/internal/infrastructure/postgres"
	"order-pipeline/internal/order/domain"
)

type putEvent struct {
	eventType string
	payload   any
}

// fakeState is an in-memory stand-in for the order database. WithTx
// stages changes and merges them only when fn succeeds, mirroring
// commit/rollback.
type fakeState struct {
	orders map[string]*domain.Order
	inbox  map[string]bool
	outbox []putEvent

	// dupOnAdd simulates losing the inbox-key race to a concurrent
	// consumer: the next Add fails with ErrDuplicateEventKey.
	dupOnAdd bool
}

func newFakeState() *fakeState {
	return &fakeState{
		orders: map[string]*domain.Order{},
		inbox:  map[string]bool{},
	}
}

type fakeUoW struct {
	state *fakeState
}

func (u *fakeUoW) WithTx(_ context.Context, fn func(tx Tx) error) error {
	stage := &fakeState{
		orders:   map[string]*domain.Order{},
		inbox:    map[string]bool{},
		outbox:   append([]putEvent(nil), u.state.outbox...),
		dupOnAdd: u.state.dupOnAdd,
	}
	for k, v := range u.state.orders {
		cp := *v
		stage.orders[k] = &cp
	}
	for k := range u.state.inbox {
		stage.inbox[k] = true
	}

	if err := fn(&fakeTx{state: stage}); err != nil {
		return err
	}

	u.state.orders = stage.orders
	u.state.inbox = stage.inbox
	u.state.outbox = stage.outbox
	u.state.dupOnAdd = stage.dupOnAdd
	return nil
}

type fakeTx struct {
	state *fakeState
}

func (t *fakeTx) Orders() OrderRepository { return &fakeOrders{state: t.state} }
func (t *fakeTx) Outbox() OutboxWriter    { return &fakeOutbox{state: t.state} }
func (t *fakeTx) Inbox() InboxStore       { return &fakeInbox{state: t.state} }

type fakeOrders struct {
	state *fakeState
}

func (r *fakeOrders) Get(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := r.state.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrders) Upsert(_ context.Context, o *domain.Order) error {
	cp := *o
	r.state.orders[o.OrderID] = &cp
	return nil
}

type fakeOutbox struct {
	state *fakeState
}

func (w *fakeOutbox) Put(_ context.Context, eventType string, payload any) error {
	w.state.outbox = append(w.state.outbox, putEvent{eventType: eventType, payload: payload})
	return nil
}

type fakeInbox struct {
	state *fakeState
}

func (i *fakeInbox) Exists(_ context.Context, key string) (bool, error) {
	return i.state.inbox[key], nil
}

func (i *fakeInbox) Add(_ context.Context, key string) error {
	if i.state.dupOnAdd || i.state.inbox[key] {
		return storage.ErrDuplicateEventKey
	}
	i.state.inbox[key] = true
	return nil
}

type fakeReader struct {
	state *fakeState
}

func (r *fakeReader) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	o, ok := r.state.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}
