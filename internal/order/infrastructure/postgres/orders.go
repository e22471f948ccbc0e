package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"order-pipeline/internal/order/domain"
)

const selectOrderSQL = `
SELECT order_id, customer_id, items, total_amount, status, fail_reason, version
FROM orders
WHERE order_id = $1
`

const upsertOrderSQL = `
INSERT INTO orders (order_id, customer_id, items, total_amount, status, fail_reason, version)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (order_id) DO UPDATE
SET status      = EXCLUDED.status,
    fail_reason = EXCLUDED.fail_reason,
    version     = EXCLUDED.version
`

// txOrders is the aggregate repository bound to a unit-of-work tx.
// Get locks the row so concurrent apply-processed UoWs serialize.
type txOrders struct {
	tx pgx.Tx
}

func (r *txOrders) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return scanOrder(r.tx.QueryRow(ctx, selectOrderSQL+"FOR UPDATE", orderID))
}

func (r *txOrders) Upsert(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(wireItems(o.Items))
	if err != nil {
		return err
	}

	var failReason *string
	if o.FailReason != "" {
		failReason = &o.FailReason
	}

	_, err = r.tx.Exec(ctx, upsertOrderSQL,
		o.OrderID, o.CustomerID, items, o.TotalAmount, string(o.Status), failReason, o.Version,
	)
	return err
}

// Reader serves the HTTP read path from the pool, outside any UoW.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

func (r *Reader) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, selectOrderSQL, orderID))
}

type itemRow struct {
	SKU      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func wireItems(items []domain.Item) []itemRow {
	out := make([]itemRow, 0, len(items))
	for _, it := range items {
		out = append(out, itemRow{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price})
	}
	return out
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o          domain.Order
		status     string
		itemsJSON  []byte
		failReason *string
	)
	err := row.Scan(&o.OrderID, &o.CustomerID, &itemsJSON, &o.TotalAmount, &status, &failReason, &o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var rows []itemRow
	if err := json.Unmarshal(itemsJSON, &rows); err != nil {
		return nil, err
	}
	for _, it := range rows {
		o.Items = append(o.Items, domain.Item{SKU: it.SKU, Quantity: it.Quantity, Price: it.Price})
	}

	o.Status = domain.OrderStatus(status)
	if failReason != nil {
		o.FailReason = *failReason
	}
	return &o, nil
}
