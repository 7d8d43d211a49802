package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/txn"
)

// ErrNotInProgress is returned by MarkReady for orders that are not baking.
var ErrNotInProgress = errors.New("order is not in progress")

// Finder answers order queries and records kitchen completion.
type Finder struct {
	tm      txn.Manager
	orders  Repository
	kitchen *Kitchen
}

// NewFinder creates a Finder.
func NewFinder(tm txn.Manager, orders Repository, kitchen *Kitchen) *Finder {
	return &Finder{tm: tm, orders: orders, kitchen: kitchen}
}

// List returns every order, oldest first.
func (f *Finder) List(ctx context.Context) ([]Order, error) {
	var out []Order
	err := f.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		out, err = f.orders.List(ctx, tx)
		return err
	})
	return out, err
}

// ListByCustomer returns the orders paid by a customer, oldest first.
func (f *Finder) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	var out []Order
	err := f.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		out, err = f.orders.ListByCustomer(ctx, tx, customerID)
		return err
	})
	return out, err
}

// Retrieve returns the order with the given id, or *NotFoundError.
func (f *Finder) Retrieve(ctx context.Context, id string) (*Order, error) {
	var o *Order
	err := f.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		o, err = f.orders.Get(ctx, tx, id)
		return err
	})
	return o, err
}

// Status returns the current kitchen status of an order.
func (f *Finder) Status(ctx context.Context, id string) (Status, error) {
	o, err := f.Retrieve(ctx, id)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

// MarkReady records that the kitchen finished baking an order.
func (f *Finder) MarkReady(ctx context.Context, id string) (*Order, error) {
	var o *Order
	err := f.tm.InTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		o, err = f.orders.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.Status != StatusInProgress {
			return errors.Wrapf(ErrNotInProgress, "order %s is %s", o.ID, o.Status)
		}
		return f.kitchen.AdvanceToReady(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order ready", zap.String("order_id", o.ID))
	return o, nil
}
