package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/txn"
)

// Status is the kitchen progress of an order.
type Status string

// Order statuses, in the only order they may be reached.
const (
	StatusValidated  Status = "VALIDATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
)

func (s Status) String() string { return string(s) }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusValidated, StatusInProgress, StatusReady:
		return true
	}
	return false
}

// Sentinel errors for order construction.
var (
	ErrEmptyItems      = errors.New("order requires at least one item")
	ErrInvalidQuantity = errors.New("order item quantity must be greater than 0")
	ErrInvalidPrice    = errors.New("order price must be positive")
	ErrMissingReceipt  = errors.New("order requires a payment receipt")
	ErrMissingCustomer = errors.New("order requires a customer")
)

// Order is a paid cart snapshot. Everything except Status is fixed once
// created.
type Order struct {
	ID         string
	CustomerID string
	Items      []cart.Item
	Price      decimal.Decimal
	ReceiptID  string
	Status     Status
	CreatedAt  time.Time
}

// New builds a VALIDATED order from a frozen copy of items.
func New(customerID string, items []cart.Item, price decimal.Decimal, receiptID string) (*Order, error) {
	if customerID == "" {
		return nil, ErrMissingCustomer
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "recipe %s", item.Recipe)
		}
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if strings.TrimSpace(receiptID) == "" {
		return nil, ErrMissingReceipt
	}

	frozen := make([]cart.Item, len(items))
	copy(frozen, items)
	return &Order{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Items:      frozen,
		Price:      price,
		ReceiptID:  receiptID,
		Status:     StatusValidated,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// NotFoundError indicates no order exists with the given id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.ID)
}

// TransitionError is returned when the kitchen is asked to move an order
// from a status it is not in.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// Repository persists orders. Orders are never deleted on their own; they go
// away with their customer.
type Repository interface {
	Create(ctx context.Context, tx txn.Tx, o *Order) error
	Get(ctx context.Context, tx txn.Tx, id string) (*Order, error)
	List(ctx context.Context, tx txn.Tx) ([]Order, error)
	ListByCustomer(ctx context.Context, tx txn.Tx, customerID string) ([]Order, error)
	// UpdateStatus moves the order to status `to` only if it is currently in
	// `from`, returning *TransitionError otherwise.
	UpdateStatus(ctx context.Context, tx txn.Tx, id string, from, to Status) error
}
