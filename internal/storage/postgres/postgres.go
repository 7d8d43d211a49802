// Package postgres implements the cookie factory stores on PostgreSQL.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/cookie-factory/db"
	"github.com/xenking/cookie-factory/internal/txn"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// Manager opens pgx transactions. It implements txn.Manager.
type Manager struct {
	pool *pgxpool.Pool
}

var _ txn.Manager = (*Manager)(nil)

// NewManager returns a Manager over pool.
func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool}
}

// InTx runs fn in a read-write transaction.
func (m *Manager) InTx(ctx context.Context, fn txn.Func) error {
	return m.run(ctx, pgx.TxOptions{}, fn)
}

// InReadTx runs fn in a read-only transaction.
func (m *Manager) InReadTx(ctx context.Context, fn txn.Func) error {
	return m.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (m *Manager) run(ctx context.Context, opts pgx.TxOptions, fn txn.Func) error {
	ptx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	tx := &Tx{tx: ptx, readOnly: opts.AccessMode == pgx.ReadOnly}
	committed := false
	defer func() {
		tx.done = true
		if !committed {
			// Rollback on an already closed tx is a no-op.
			_ = ptx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ptx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	return nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx       pgx.Tx
	readOnly bool
	done     bool
}

var _ txn.Tx = (*Tx)(nil)

func (t *Tx) Active() bool   { return t != nil && !t.done }
func (t *Tx) ReadOnly() bool { return t != nil && t.readOnly }

func conn(tx txn.Tx, write bool) (pgx.Tx, error) {
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
		return nil, errors.Errorf("postgres: foreign transaction %T", tx)
	}
	return t.tx, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
