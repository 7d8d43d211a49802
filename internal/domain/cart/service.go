package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/txn"
)

// Customers is the part of the customer directory the cart needs.
type Customers interface {
	Get(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error)
	Lock(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error)
}

// Service applies cart updates for customers.
type Service struct {
	tm        txn.Manager
	customers Customers
	items     Repository
	pricing   Pricing
}

// NewService creates a cart Service.
func NewService(tm txn.Manager, customers Customers, items Repository, pricing Pricing) *Service {
	return &Service{
		tm:        tm,
		customers: customers,
		items:     items,
		pricing:   pricing,
	}
}

// ApplyDelta adds delta cookies of recipe to the customer's cart. A negative
// delta removes cookies; reaching zero drops the line. The resulting line is
// returned. Deltas and quantities are bounded by MaxQuantity.
func (s *Service) ApplyDelta(ctx context.Context, customerID string, recipe catalog.Recipe, delta int) (Item, error) {
	if delta > MaxQuantity || delta < -MaxQuantity {
		return Item{}, &QuantityRangeError{Recipe: recipe, Delta: delta}
	}
	if _, err := s.pricing.UnitPrice(recipe); err != nil {
		return Item{}, err
	}

	var result Item
	err := s.tm.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		c, err := s.customers.Lock(ctx, tx, customerID)
		if err != nil {
			return err
		}

		existing, err := s.items.Quantity(ctx, tx, customerID, recipe)
		if err != nil {
			return errors.Wrap(err, "get quantity")
		}

		// int64 keeps the sum exact where int is 32 bits wide.
		sum := int64(existing) + int64(delta)
		if sum > MaxQuantity {
			return &QuantityRangeError{Recipe: recipe, Delta: delta, Existing: existing}
		}
		next := int(sum)
		switch {
		case next < 0:
			return &NegativeQuantityError{
				CustomerName: c.Name,
				Recipe:       recipe,
				Quantity:     next,
			}
		case next == 0:
			if err := s.items.Remove(ctx, tx, customerID, recipe); err != nil {
				return errors.Wrap(err, "remove item")
			}
		default:
			if err := s.items.Set(ctx, tx, customerID, Item{Recipe: recipe, Quantity: next}); err != nil {
				return errors.Wrap(err, "set item")
			}
		}

		result = Item{Recipe: recipe, Quantity: next}
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	zctx.From(ctx).Info("Cart updated",
		zap.String("customer_id", customerID),
		zap.Stringer("recipe", recipe),
		zap.Int("delta", delta),
		zap.Int("quantity", result.Quantity),
	)
	return result, nil
}

// Contents returns a snapshot of the customer's cart.
func (s *Service) Contents(ctx context.Context, customerID string) ([]Item, error) {
	var items []Item
	err := s.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if _, err := s.customers.Get(ctx, tx, customerID); err != nil {
			return err
		}
		var err error
		items, err = s.items.Items(ctx, tx, customerID)
		return err
	})
	return items, err
}

// Price returns what the customer would pay for the current cart.
func (s *Service) Price(ctx context.Context, customerID string) (decimal.Decimal, error) {
	items, err := s.Contents(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceOf(items, s.pricing)
}
