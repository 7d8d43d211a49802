package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/txn"
)

const (
	createCustomerSQL = `INSERT INTO customers (id, name, credit_card) VALUES ($1, $2, $3)`

	getCustomerSQL = `SELECT id, name, credit_card FROM customers WHERE id = $1`

	lockCustomerSQL = `SELECT id, name, credit_card FROM customers WHERE id = $1 FOR UPDATE`

	findCustomerByNameSQL = `SELECT id, name, credit_card FROM customers WHERE name = $1`

	listCustomersSQL = `SELECT id, name, credit_card FROM customers ORDER BY name`

	deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct{}

// NewCustomerRepository returns a CustomerRepository.
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{}
}

func (r *CustomerRepository) Create(ctx context.Context, tx txn.Tx, c *customer.Customer) error {
	q, err := conn(tx, true)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, createCustomerSQL, c.ID, c.Name, c.CreditCard); err != nil {
		if isUniqueViolation(err) {
			return &customer.AlreadyExistsError{Name: c.Name}
		}
		return errors.Wrapf(err, "create customer %q", c.Name)
	}
	return nil
}

func (r *CustomerRepository) Get(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error) {
	return r.one(ctx, tx, false, getCustomerSQL, id, &customer.NotFoundError{ID: id})
}

// Lock selects the customer row FOR UPDATE.
func (r *CustomerRepository) Lock(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error) {
	return r.one(ctx, tx, true, lockCustomerSQL, id, &customer.NotFoundError{ID: id})
}

func (r *CustomerRepository) FindByName(ctx context.Context, tx txn.Tx, name string) (*customer.Customer, error) {
	return r.one(ctx, tx, false, findCustomerByNameSQL, name, &customer.NotFoundError{Name: name})
}

func (r *CustomerRepository) one(
	ctx context.Context,
	tx txn.Tx,
	write bool,
	query, arg string,
	notFound *customer.NotFoundError,
) (*customer.Customer, error) {
	q, err := conn(tx, write)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", arg)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, errors.Wrapf(err, "get customer %q", arg)
	}
	return &c, nil
}

func (r *CustomerRepository) List(ctx context.Context, tx txn.Tx) ([]customer.Customer, error) {
	q, err := conn(tx, false)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list customers")
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// Delete removes the customer. Cart lines and orders cascade.
func (r *CustomerRepository) Delete(ctx context.Context, tx txn.Tx, id string) error {
	q, err := conn(tx, true)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, deleteCustomerSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete customer %q", id)
	}
	if tag.RowsAffected() == 0 {
		return &customer.NotFoundError{ID: id}
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.CreditCard)
	return c, err
}
