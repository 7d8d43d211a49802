package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/txn"
)

const (
	listCartItemsSQL = `SELECT recipe, quantity FROM cart_items WHERE customer_id = $1 ORDER BY recipe`

	getCartQuantitySQL = `SELECT quantity FROM cart_items WHERE customer_id = $1 AND recipe = $2`

	upsertCartItemSQL = `INSERT INTO cart_items (customer_id, recipe, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, recipe) DO UPDATE SET quantity = EXCLUDED.quantity`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE customer_id = $1 AND recipe = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE customer_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct{}

// NewCartRepository returns a CartRepository.
func NewCartRepository() *CartRepository {
	return &CartRepository{}
}

func (r *CartRepository) Items(ctx context.Context, tx txn.Tx, customerID string) ([]cart.Item, error) {
	q, err := conn(tx, false)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, listCartItemsSQL, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list cart of %q", customerID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			item   cart.Item
			recipe string
		)
		err := row.Scan(&recipe, &item.Quantity)
		item.Recipe = catalog.Recipe(recipe)
		return item, err
	})
}

func (r *CartRepository) Quantity(ctx context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) (int, error) {
	q, err := conn(tx, false)
	if err != nil {
		return 0, err
	}
	var qty int
	err = q.QueryRow(ctx, getCartQuantitySQL, customerID, string(recipe)).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "get quantity of %s", recipe)
	}
	return qty, nil
}

func (r *CartRepository) Set(ctx context.Context, tx txn.Tx, customerID string, item cart.Item) error {
	return r.exec(ctx, tx, upsertCartItemSQL, customerID, string(item.Recipe), item.Quantity)
}

func (r *CartRepository) Remove(ctx context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) error {
	return r.exec(ctx, tx, deleteCartItemSQL, customerID, string(recipe))
}

func (r *CartRepository) Clear(ctx context.Context, tx txn.Tx, customerID string) error {
	return r.exec(ctx, tx, clearCartSQL, customerID)
}

func (r *CartRepository) exec(ctx context.Context, tx txn.Tx, query string, args ...any) error {
	q, err := conn(tx, true)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return errors.Wrap(err, "update cart")
	}
	return nil
}
