package memory

import (
	"context"
	"sort"

	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/txn"
)

// CustomerRepository implements customer.Repository.
type CustomerRepository struct {
	s *Store
}

func (r *CustomerRepository) Create(_ context.Context, tx txn.Tx, c *customer.Customer) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.customers {
		if existing.Name == c.Name {
			return &customer.AlreadyExistsError{Name: c.Name}
		}
	}
	r.s.customers[c.ID] = *c
	id := c.ID
	t.record(func() { delete(r.s.customers, id) })
	return nil
}

func (r *CustomerRepository) Get(_ context.Context, tx txn.Tx, id string) (*customer.Customer, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.customers[id]
	if !ok {
		return nil, &customer.NotFoundError{ID: id}
	}
	return &c, nil
}

func (r *CustomerRepository) Lock(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error) {
	t, err := asTx(tx, true)
	if err != nil {
		return nil, err
	}
	if err := t.lockRow(ctx, "customer:"+id); err != nil {
		return nil, err
	}
	return r.Get(ctx, tx, id)
}

func (r *CustomerRepository) FindByName(_ context.Context, tx txn.Tx, name string) (*customer.Customer, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.customers {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, &customer.NotFoundError{Name: name}
}

func (r *CustomerRepository) List(_ context.Context, tx txn.Tx) ([]customer.Customer, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]customer.Customer, 0, len(r.s.customers))
	for _, c := range r.s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the customer and cascades to its cart and orders.
func (r *CustomerRepository) Delete(_ context.Context, tx txn.Tx, id string) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.customers[id]
	if !ok {
		return &customer.NotFoundError{ID: id}
	}
	lines := r.s.carts[id]
	prevIDs := r.s.orderIDs
	removed := make(map[string]order.Order)
	kept := make([]string, 0, len(prevIDs))
	for _, oid := range prevIDs {
		if o := r.s.orders[oid]; o.CustomerID == id {
			removed[oid] = o
			delete(r.s.orders, oid)
			continue
		}
		kept = append(kept, oid)
	}
	delete(r.s.customers, id)
	delete(r.s.carts, id)
	r.s.orderIDs = kept

	t.record(func() {
		r.s.customers[id] = c
		if lines != nil {
			r.s.carts[id] = lines
		}
		for oid, o := range removed {
			r.s.orders[oid] = o
		}
		r.s.orderIDs = prevIDs
	})
	return nil
}

func cartLines(s *Store, customerID string) map[catalog.Recipe]int {
	lines, ok := s.carts[customerID]
	if !ok {
		lines = make(map[catalog.Recipe]int)
		s.carts[customerID] = lines
	}
	return lines
}
