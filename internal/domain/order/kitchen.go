package order

import (
	"context"

	"github.com/xenking/cookie-factory/internal/txn"
)

// Kitchen drives orders through VALIDATED, IN_PROGRESS and READY. Every
// transition runs inside the caller's transaction.
type Kitchen struct {
	orders Repository
}

// NewKitchen creates a Kitchen backed by orders.
func NewKitchen(orders Repository) *Kitchen {
	return &Kitchen{orders: orders}
}

// AdvanceToInProgress starts baking a freshly validated order.
func (k *Kitchen) AdvanceToInProgress(ctx context.Context, tx txn.Tx, o *Order) error {
	return k.advance(ctx, tx, o, StatusValidated, StatusInProgress)
}

// AdvanceToReady marks a baking order as ready for pickup.
func (k *Kitchen) AdvanceToReady(ctx context.Context, tx txn.Tx, o *Order) error {
	return k.advance(ctx, tx, o, StatusInProgress, StatusReady)
}

func (k *Kitchen) advance(ctx context.Context, tx txn.Tx, o *Order, from, to Status) error {
	if err := txn.RequireWrite(tx); err != nil {
		return err
	}
	if o.Status != from {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	if err := k.orders.UpdateStatus(ctx, tx, o.ID, from, to); err != nil {
		return err
	}
	o.Status = to
	return nil
}
