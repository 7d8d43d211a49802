package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/storage/memory"
	"github.com/xenking/cookie-factory/internal/storage/postgres"
	"github.com/xenking/cookie-factory/internal/txn"
)

// store is the persistence selected by Config.Storage.
type store struct {
	tm        txn.Manager
	customers customer.Repository
	carts     cart.Repository
	orders    order.Repository
	ping      func(ctx context.Context) error
	close     func()
}

func openStore(ctx context.Context, cfg *Config) (*store, error) {
	lg := zctx.From(ctx)
	switch cfg.Storage {
	case StorageMemory:
		lg.Warn("Using in-memory storage, state is lost on restart")
		s := memory.New()
		return &store{
			tm:        s,
			customers: s.Customers(),
			carts:     s.Carts(),
			orders:    s.Orders(),
			ping:      s.Ping,
			close:     func() {},
		}, nil
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		lg.Info("Connected to PostgreSQL", zap.Int32("max_conns", pool.Config().MaxConns))
		return &store{
			tm:        postgres.NewManager(pool),
			customers: postgres.NewCustomerRepository(),
			carts:     postgres.NewCartRepository(),
			orders:    postgres.NewOrderRepository(),
			ping:      pool.Ping,
			close:     pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage %q", cfg.Storage)
	}
}
