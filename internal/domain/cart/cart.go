// Package cart manages each customer's pending cookie selection.
package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/txn"
)

// Item is a single cart line. Stored quantities are always positive.
type Item struct {
	Recipe   catalog.Recipe `json:"recipe"`
	Quantity int            `json:"quantity"`
}

// NegativeQuantityError is returned when a delta would leave a recipe with
// fewer than zero cookies. The cart is left unchanged.
type NegativeQuantityError struct {
	CustomerName string
	Recipe       catalog.Recipe
	Quantity     int
}

func (e *NegativeQuantityError) Error() string {
	return fmt.Sprintf("cart of %s would hold %d %s cookies", e.CustomerName, e.Quantity, e.Recipe)
}

// MaxQuantity is the largest quantity a cart line, and a single delta, may
// carry. It matches the INTEGER quantity column.
const MaxQuantity = math.MaxInt32

// QuantityRangeError is returned when a delta, or the quantity it would
// produce, is larger than MaxQuantity. The cart is left unchanged.
type QuantityRangeError struct {
	Recipe   catalog.Recipe
	Delta    int
	Existing int
}

func (e *QuantityRangeError) Error() string {
	if e.Existing == 0 {
		return fmt.Sprintf("changing %s by %d cookies exceeds the limit of %d", e.Recipe, e.Delta, MaxQuantity)
	}
	return fmt.Sprintf("adding %d %s cookies to %d exceeds the limit of %d",
		e.Delta, e.Recipe, e.Existing, MaxQuantity)
}

// Repository persists cart lines keyed by customer and recipe.
type Repository interface {
	// Items returns the cart lines of a customer in recipe order.
	Items(ctx context.Context, tx txn.Tx, customerID string) ([]Item, error)
	// Quantity returns the stored quantity for a recipe, 0 when absent.
	Quantity(ctx context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) (int, error)
	// Set stores the line, replacing any previous quantity.
	Set(ctx context.Context, tx txn.Tx, customerID string, item Item) error
	// Remove deletes the line for a recipe.
	Remove(ctx context.Context, tx txn.Tx, customerID string, recipe catalog.Recipe) error
	// Clear deletes every line of the customer's cart.
	Clear(ctx context.Context, tx txn.Tx, customerID string) error
}

// Pricing resolves unit prices. *catalog.Catalog implements it.
type Pricing interface {
	UnitPrice(recipe catalog.Recipe) (decimal.Decimal, error)
}

// PriceOf sums quantity times unit price over items.
func PriceOf(items []Item, pricing Pricing) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		unit, err := pricing.UnitPrice(item.Recipe)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "price %s", item.Recipe)
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total, nil
}
