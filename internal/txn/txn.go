// Package txn defines the unit-of-work handle that multi-step business
// operations thread through their inner steps.
//
// Inner steps never open a transaction of their own: they receive a Tx from
// the caller and fail fast with ErrNoTransaction when none is active.
package txn

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrNoTransaction is returned by steps that must run inside a
	// transaction opened by their caller. It signals a programming error.
	ErrNoTransaction = errors.New("operation requires an active transaction")
	// ErrReadOnly is returned when a write is attempted through a read-only
	// transaction.
	ErrReadOnly = errors.New("write attempted in read-only transaction")
)

// Tx is an open unit of work. Implementations must be safe to call on a nil
// receiver.
type Tx interface {
	// Active reports whether the transaction is still open.
	Active() bool
	// ReadOnly reports whether the transaction rejects writes.
	ReadOnly() bool
}

// Func is the body of a transaction.
type Func func(ctx context.Context, tx Tx) error

// Manager opens transactions. The transaction is committed when fn returns
// nil and rolled back otherwise.
type Manager interface {
	InTx(ctx context.Context, fn Func) error
	InReadTx(ctx context.Context, fn Func) error
}

// Require returns ErrNoTransaction unless tx is open.
func Require(tx Tx) error {
	if tx == nil || !tx.Active() {
		return ErrNoTransaction
	}
	return nil
}

// RequireWrite is like Require but also rejects read-only transactions.
func RequireWrite(tx Tx) error {
	if err := Require(tx); err != nil {
		return err
	}
	if tx.ReadOnly() {
		return ErrReadOnly
	}
	return nil
}
