package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/txn"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, items, price, receipt_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	orderColumns = `id, customer_id, items, price, receipt_id, status, created_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct{}

// NewOrderRepository returns an OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, tx txn.Tx, o *order.Order) error {
	q, err := conn(tx, true)
	if err != nil {
		return err
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = q.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, itemsJSON, o.Price, o.ReceiptID, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, tx txn.Tx, id string) (*order.Order, error) {
	q, err := conn(tx, false)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, tx txn.Tx) ([]order.Order, error) {
	return r.list(ctx, tx, listOrdersSQL)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, tx txn.Tx, customerID string) ([]order.Order, error) {
	return r.list(ctx, tx, listOrdersByCustomerSQL, customerID)
}

func (r *OrderRepository) list(ctx context.Context, tx txn.Tx, query string, args ...any) ([]order.Order, error) {
	q, err := conn(tx, false)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx txn.Tx, id string, from, to order.Status) error {
	q, err := conn(tx, true)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return errors.Wrapf(err, "update order %q", id)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx, getOrderStatusSQL, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &order.NotFoundError{ID: id}
	}
	if err != nil {
		return errors.Wrapf(err, "get order %q status", id)
	}
	return &order.TransitionError{OrderID: id, From: order.Status(current), To: to}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		price     decimal.Decimal
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &itemsJSON, &price, &o.ReceiptID, &status, &createdAt); err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrap(err, "unmarshal order items")
	}
	o.Price = price
	o.Status = order.Status(status)
	o.CreatedAt = createdAt.UTC()
	return o, nil
}
