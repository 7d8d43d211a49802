// Package memory implements the cookie factory stores in process memory.
//
// Writes go straight to the shared maps and are recorded in the
// transaction's undo log, which is replayed on rollback. Customer row locks
// serialize writers per customer; readers do not take locks.
package memory

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/txn"
)

// Store holds all state. It implements txn.Manager.
type Store struct {
	mu        sync.Mutex
	customers map[string]customer.Customer
	carts     map[string]map[catalog.Recipe]int
	orders    map[string]order.Order
	orderIDs  []string
	rowLocks  map[string]chan struct{}
}

var _ txn.Manager = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		customers: make(map[string]customer.Customer),
		carts:     make(map[string]map[catalog.Recipe]int),
		orders:    make(map[string]order.Order),
		rowLocks:  make(map[string]chan struct{}),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Customers returns the customer repository.
func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s: s} }

// Carts returns the cart repository.
func (s *Store) Carts() *CartRepository { return &CartRepository{s: s} }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Tx is a memory transaction.
type Tx struct {
	store    *Store
	readOnly bool
	done     bool
	undo     []func()
	held     []chan struct{}
}

var _ txn.Tx = (*Tx)(nil)

func (t *Tx) Active() bool   { return t != nil && !t.done }
func (t *Tx) ReadOnly() bool { return t != nil && t.readOnly }

// InTx runs fn in a write transaction.
func (s *Store) InTx(ctx context.Context, fn txn.Func) error {
	return s.run(ctx, false, fn)
}

// InReadTx runs fn in a read-only transaction. Reads are not isolated: they
// take no row locks and can observe writes of in-flight transactions that
// may still roll back.
func (s *Store) InReadTx(ctx context.Context, fn txn.Func) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn txn.Func) (err error) {
	tx := &Tx{store: s, readOnly: readOnly}
	defer func() {
		if r := recover(); r != nil {
			tx.finish(false)
			panic(r)
		}
		tx.finish(err == nil)
	}()
	return fn(ctx, tx)
}

func (t *Tx) finish(commit bool) {
	if !commit {
		t.store.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.store.mu.Unlock()
	}
	t.undo = nil
	t.done = true
	for _, l := range t.held {
		<-l
	}
	t.held = nil
}

// lockRow blocks until the row lock for key is held by t or ctx is done.
// Locks already held by t are not taken twice.
func (t *Tx) lockRow(ctx context.Context, key string) error {
	t.store.mu.Lock()
	l, ok := t.store.rowLocks[key]
	if !ok {
		l = make(chan struct{}, 1)
		t.store.rowLocks[key] = l
	}
	t.store.mu.Unlock()

	for _, h := range t.held {
		if h == l {
			return nil
		}
	}
	select {
	case l <- struct{}{}:
		t.held = append(t.held, l)
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "lock %s", key)
	}
}

// record appends an undo step. Callers hold s.mu.
func (t *Tx) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func asTx(tx txn.Tx, write bool) (*Tx, error) {
	var err error
	if write {
		err = txn.RequireWrite(tx)
	} else {
		err = txn.Require(tx)
	}
	if err != nil {
		return nil, err
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errors.Errorf("memory: foreign transaction %T", tx)
	}
	return t, nil
}

// Compile-time interface checks.
var (
	_ customer.Repository = (*CustomerRepository)(nil)
	_ cart.Repository     = (*CartRepository)(nil)
	_ order.Repository    = (*OrderRepository)(nil)
)
