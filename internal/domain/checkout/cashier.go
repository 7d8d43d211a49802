package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/domain/payment"
	"github.com/xenking/cookie-factory/internal/txn"
)

// Cashier charges a customer and records the resulting order.
type Cashier struct {
	gateway payment.Gateway
	orders  order.Repository
}

// NewCashier creates a Cashier.
func NewCashier(gateway payment.Gateway, orders order.Repository) *Cashier {
	return &Cashier{gateway: gateway, orders: orders}
}

// Pay charges price to the customer and stores a VALIDATED order for items.
// It must run inside the caller's write transaction.
//
// The returned receipt is non-empty whenever the bank accepted the charge,
// even if storing the order then failed.
func (c *Cashier) Pay(
	ctx context.Context,
	tx txn.Tx,
	cust *customer.Customer,
	items []cart.Item,
	price decimal.Decimal,
) (o *order.Order, receiptID string, err error) {
	if err := txn.RequireWrite(tx); err != nil {
		return nil, "", err
	}

	receiptID, ok, err := c.gateway.Charge(ctx, cust, price)
	if err != nil {
		return nil, "", errors.Wrap(err, "charge")
	}
	if !ok {
		return nil, "", &payment.Error{CustomerName: cust.Name, Amount: price}
	}

	o, err = order.New(cust.ID, items, price, receiptID)
	if err != nil {
		return nil, receiptID, errors.Wrap(err, "build order")
	}
	if err := c.orders.Create(ctx, tx, o); err != nil {
		return nil, receiptID, errors.Wrap(err, "create order")
	}
	return o, receiptID, nil
}
