package customer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/cookie-factory/internal/txn"
)

var (
	// ErrInvalidName is returned when registering a customer with a blank name.
	ErrInvalidName = errors.New("customer name must not be blank")
	// ErrInvalidCreditCard is returned when the credit card is not exactly 10 digits.
	ErrInvalidCreditCard = errors.New("credit card must be exactly 10 digits")
)

// Customer owns a cart and pays for orders with its credit card.
type Customer struct {
	ID         string
	Name       string
	CreditCard string
}

// NotFoundError indicates a customer lookup by id or name found nothing.
type NotFoundError struct {
	ID   string
	Name string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" && e.Name != "" {
		return fmt.Sprintf("customer named %q not found", e.Name)
	}
	return fmt.Sprintf("customer %s not found", e.ID)
}

// AlreadyExistsError indicates a registration with a name already taken.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("customer %q already exists", e.Name)
}

// Repository persists customers. Every method runs inside the given
// transaction.
type Repository interface {
	// Create stores a new customer, returning *AlreadyExistsError when the
	// name is taken.
	Create(ctx context.Context, tx txn.Tx, c *Customer) error
	// Get returns the customer with the given id or *NotFoundError.
	Get(ctx context.Context, tx txn.Tx, id string) (*Customer, error)
	// Lock is like Get but also holds the customer's row lock until tx ends.
	Lock(ctx context.Context, tx txn.Tx, id string) (*Customer, error)
	// FindByName returns the customer with the given name or *NotFoundError.
	FindByName(ctx context.Context, tx txn.Tx, name string) (*Customer, error)
	// List returns all customers ordered by name.
	List(ctx context.Context, tx txn.Tx) ([]Customer, error)
	// Delete removes the customer together with its cart and orders.
	Delete(ctx context.Context, tx txn.Tx, id string) error
}
