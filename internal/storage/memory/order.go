package memory

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/txn"
)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(_ context.Context, tx txn.Tx, o *order.Order) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.customers[o.CustomerID]; !ok {
		return errors.Errorf("order %s references unknown customer %s", o.ID, o.CustomerID)
	}
	stored := cloneOrder(*o)
	r.s.orders[o.ID] = stored
	r.s.orderIDs = append(r.s.orderIDs, o.ID)
	id := o.ID
	t.record(func() {
		delete(r.s.orders, id)
		for i, oid := range r.s.orderIDs {
			if oid == id {
				r.s.orderIDs = append(r.s.orderIDs[:i:i], r.s.orderIDs[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *OrderRepository) Get(_ context.Context, tx txn.Tx, id string) (*order.Order, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, &order.NotFoundError{ID: id}
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *OrderRepository) List(_ context.Context, tx txn.Tx) ([]order.Order, error) {
	return r.list(tx, func(order.Order) bool { return true })
}

func (r *OrderRepository) ListByCustomer(_ context.Context, tx txn.Tx, customerID string) ([]order.Order, error) {
	return r.list(tx, func(o order.Order) bool { return o.CustomerID == customerID })
}

func (r *OrderRepository) list(tx txn.Tx, keep func(order.Order) bool) ([]order.Order, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]order.Order, 0, len(r.s.orderIDs))
	for _, id := range r.s.orderIDs {
		if o := r.s.orders[id]; keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, tx txn.Tx, id string, from, to order.Status) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return &order.NotFoundError{ID: id}
	}
	if o.Status != from {
		return &order.TransitionError{OrderID: id, From: o.Status, To: to}
	}
	o.Status = to
	r.s.orders[id] = o
	t.record(func() {
		prev := r.s.orders[id]
		prev.Status = from
		r.s.orders[id] = prev
	})
	return nil
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]cart.Item(nil), o.Items...)
	return o
}
