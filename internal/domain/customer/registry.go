package customer

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/txn"
)

var creditCardPattern = regexp.MustCompile(`^\d{10}$`)

// Registry registers and looks up customers.
type Registry struct {
	tm    txn.Manager
	repo  Repository
	newID func() string
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(tm txn.Manager, repo Repository) *Registry {
	return &Registry{
		tm:    tm,
		repo:  repo,
		newID: func() string { return uuid.New().String() },
	}
}

// Register creates a customer with a unique name and a 10-digit credit card.
func (r *Registry) Register(ctx context.Context, name, creditCard string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if !creditCardPattern.MatchString(creditCard) {
		return nil, ErrInvalidCreditCard
	}

	c := &Customer{
		ID:         r.newID(),
		Name:       name,
		CreditCard: creditCard,
	}
	err := r.tm.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		_, err := r.repo.FindByName(ctx, tx, name)
		if err == nil {
			return &AlreadyExistsError{Name: name}
		}
		var nfErr *NotFoundError
		if !errors.As(err, &nfErr) {
			return errors.Wrap(err, "find by name")
		}
		return r.repo.Create(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Customer registered",
		zap.String("customer_id", c.ID),
		zap.String("name", c.Name),
	)
	return c, nil
}

// FindByName returns the customer registered under name.
func (r *Registry) FindByName(ctx context.Context, name string) (*Customer, error) {
	var c *Customer
	err := r.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		c, err = r.repo.FindByName(ctx, tx, name)
		return err
	})
	return c, err
}

// Retrieve returns the customer with the given id, or *NotFoundError.
func (r *Registry) Retrieve(ctx context.Context, id string) (*Customer, error) {
	var c *Customer
	err := r.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		c, err = r.repo.Get(ctx, tx, id)
		return err
	})
	return c, err
}

// List returns every registered customer.
func (r *Registry) List(ctx context.Context) ([]Customer, error) {
	var out []Customer
	err := r.tm.InReadTx(ctx, func(ctx context.Context, tx txn.Tx) (err error) {
		out, err = r.repo.List(ctx, tx)
		return err
	})
	return out, err
}

// Delete removes a customer. Its cart and orders go with it.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.tm.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		if _, err := r.repo.Lock(ctx, tx, id); err != nil {
			return err
		}
		return r.repo.Delete(ctx, tx, id)
	})
}
