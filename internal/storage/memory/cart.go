package memory

import (
	"context"
	"sort"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/txn"
)

// CartRepository implements cart.Repository.
type CartRepository struct {
	s *Store
}

func (r *CartRepository) Items(_ context.Context, tx txn.Tx, customerID string) ([]cart.Item, error) {
	if _, err := asTx(tx, false); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lines := r.s.carts[customerID]
	out := make([]cart.Item, 0, len(lines))
	for recipe, qty := range lines {
		out = append(out, cart.Item{Recipe: recipe, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Recipe < out[j].Recipe })
	return out, nil
}

func (r *CartRepository) Quantity(_ context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) (int, error) {
	if _, err := asTx(tx, false); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.carts[customerID][recipe], nil
}

func (r *CartRepository) Set(_ context.Context, tx txn.Tx, customerID string, item cart.Item) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lines := cartLines(r.s, customerID)
	prev, had := lines[item.Recipe]
	lines[item.Recipe] = item.Quantity
	t.record(func() {
		if had {
			cartLines(r.s, customerID)[item.Recipe] = prev
			return
		}
		delete(r.s.carts[customerID], item.Recipe)
	})
	return nil
}

func (r *CartRepository) Remove(_ context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, had := r.s.carts[customerID][recipe]
	if !had {
		return nil
	}
	delete(r.s.carts[customerID], recipe)
	t.record(func() { cartLines(r.s, customerID)[recipe] = prev })
	return nil
}

func (r *CartRepository) Clear(_ context.Context, tx txn.Tx, customerID string) error {
	t, err := asTx(tx, true)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, had := r.s.carts[customerID]
	if !had {
		return nil
	}
	delete(r.s.carts, customerID)
	t.record(func() { r.s.carts[customerID] = prev })
	return nil
}
