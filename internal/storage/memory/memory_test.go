package memory

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/txn"
)

var errBoom = errors.New("boom")

func seedCustomer(t *testing.T, s *Store, id, name string) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx txn.Tx) error {
		return s.Customers().Create(ctx, tx, &customer.Customer{ID: id, Name: name, CreditCard: "1234896983"})
	})
	require.NoError(t, err)
}

func cartOf(t *testing.T, s *Store, customerID string) []cart.Item {
	t.Helper()
	var items []cart.Item
	err := s.InReadTx(context.Background(), func(ctx context.Context, tx txn.Tx) (err error) {
		items, err = s.Carts().Items(ctx, tx, customerID)
		return err
	})
	require.NoError(t, err)
	return items
}

func TestRollback_RestoresCart(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		return s.Carts().Set(ctx, tx, "c1", cart.Item{Recipe: catalog.Chocolalala, Quantity: 2})
	}))

	err := s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		carts := s.Carts()
		if err := carts.Set(ctx, tx, "c1", cart.Item{Recipe: catalog.Chocolalala, Quantity: 7}); err != nil {
			return err
		}
		if err := carts.Set(ctx, tx, "c1", cart.Item{Recipe: catalog.SooChocolate, Quantity: 1}); err != nil {
			return err
		}
		if err := carts.Clear(ctx, tx, "c1"); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 2}}, cartOf(t, s, "c1"))
}

func TestReadTx_SeesInFlightWrites(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	ctx := context.Background()

	var during []cart.Item
	err := s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if err := s.Carts().Set(ctx, tx, "c1", cart.Item{Recipe: catalog.Chocolalala, Quantity: 3}); err != nil {
			return err
		}
		during = cartOf(t, s, "c1")
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 3}}, during)
	assert.Empty(t, cartOf(t, s, "c1"))
}

func TestRollback_RestoresOrders(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	ctx := context.Background()

	o, err := order.New("c1", []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 1}}, decimal.RequireFromString("1.30"), "R1")
	require.NoError(t, err)

	err = s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if err := s.Orders().Create(ctx, tx, o); err != nil {
			return err
		}
		if err := s.Orders().UpdateStatus(ctx, tx, o.ID, order.StatusValidated, order.StatusInProgress); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	err = s.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		_, err := s.Orders().Get(ctx, tx, o.ID)
		return err
	})
	var nfErr *order.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestOrder_UnknownCustomer(t *testing.T) {
	s := New()
	o, err := order.New("ghost", []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 1}}, decimal.RequireFromString("1.30"), "R1")
	require.NoError(t, err)

	err = s.InTx(context.Background(), func(ctx context.Context, tx txn.Tx) error {
		return s.Orders().Create(ctx, tx, o)
	})
	require.Error(t, err)
}

func TestTx_ContractChecks(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	ctx := context.Background()

	err := s.Carts().Set(ctx, nil, "c1", cart.Item{Recipe: catalog.Chocolalala, Quantity: 1})
	require.ErrorIs(t, err, txn.ErrNoTransaction)

	var leaked txn.Tx
	require.NoError(t, s.InTx(ctx, func(_ context.Context, tx txn.Tx) error {
		leaked = tx
		return nil
	}))
	assert.False(t, leaked.Active())
	_, err = s.Customers().Lock(ctx, leaked, "c1")
	require.ErrorIs(t, err, txn.ErrNoTransaction)

	err = s.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		return s.Carts().Clear(ctx, tx, "c1")
	})
	require.ErrorIs(t, err, txn.ErrReadOnly)
}

func TestLock_SerializesPerCustomer(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	seedCustomer(t, s, "c2", "kate")
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
			if _, err := s.Customers().Lock(ctx, tx, "c1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	// Another customer is not blocked.
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		_, err := s.Customers().Lock(ctx, tx, "c2")
		return err
	}))

	// The same customer waits until the context gives up.
	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.InTx(timeoutCtx, func(ctx context.Context, tx txn.Tx) error {
		_, err := s.Customers().Lock(ctx, tx, "c1")
		return err
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if _, err := s.Customers().Lock(ctx, tx, "c1"); err != nil {
			return err
		}
		_, err := s.Customers().Lock(ctx, tx, "c1")
		return err
	}))
}

func TestCustomerDelete_Cascades(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")
	seedCustomer(t, s, "c2", "kate")
	ctx := context.Background()

	o1, err := order.New("c1", []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 1}}, decimal.RequireFromString("1.30"), "R1")
	require.NoError(t, err)
	o2, err := order.New("c2", []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 1}}, decimal.RequireFromString("1.30"), "R2")
	require.NoError(t, err)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if err := s.Carts().Set(ctx, tx, "c1", cart.Item{Recipe: catalog.SooChocolate, Quantity: 3}); err != nil {
			return err
		}
		if err := s.Orders().Create(ctx, tx, o1); err != nil {
			return err
		}
		return s.Orders().Create(ctx, tx, o2)
	}))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		return s.Customers().Delete(ctx, tx, "c1")
	}))

	var orders []order.Order
	require.NoError(t, s.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		orders, err = s.Orders().List(ctx, tx)
		return err
	}))
	require.Len(t, orders, 1)
	assert.Equal(t, o2.ID, orders[0].ID)
	assert.Empty(t, cartOf(t, s, "c1"))
}

func TestCustomerCreate_DuplicateName(t *testing.T) {
	s := New()
	seedCustomer(t, s, "c1", "john")

	err := s.InTx(context.Background(), func(ctx context.Context, tx txn.Tx) error {
		return s.Customers().Create(ctx, tx, &customer.Customer{ID: "c2", Name: "john"})
	})

	var aeErr *customer.AlreadyExistsError
	require.ErrorAs(t, err, &aeErr)
}
