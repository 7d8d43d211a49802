// Package payment defines the outbound payment gateway port.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/customer"
)

// Gateway charges customers. A declined charge is reported as ok == false
// with a nil error; err is reserved for transport and protocol failures.
type Gateway interface {
	Charge(ctx context.Context, c *customer.Customer, amount decimal.Decimal) (receiptID string, ok bool, err error)
}

// Error is returned when the bank declines a charge.
type Error struct {
	CustomerName string
	Amount       decimal.Decimal
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment of %s declined for %s", e.Amount.StringFixed(2), e.CustomerName)
}
