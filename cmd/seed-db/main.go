package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/storage/postgres"
)

type customerJSON struct {
	Name       string                 `json:"name"`
	CreditCard string                 `json:"creditCard"`
	Cart       map[catalog.Recipe]int `json:"cart"`
}

func main() {
	var (
		databaseURL   string
		customersFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, customersFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, customersFile string) error {
	slog.Info("reading customers file", slog.String("path", customersFile))

	data, err := os.ReadFile(customersFile)
	if err != nil {
		return errors.Wrap(err, "read customers file")
	}
	var customers []customerJSON
	if err := json.Unmarshal(data, &customers); err != nil {
		return errors.Wrap(err, "parse customers JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var (
		tm       = postgres.NewManager(pool)
		repo     = postgres.NewCustomerRepository()
		registry = customer.NewRegistry(tm, repo)
		carts    = cart.NewService(tm, repo, postgres.NewCartRepository(), catalog.Default())
	)
	for _, c := range customers {
		if err := seedCustomer(ctx, registry, carts, c); err != nil {
			return errors.Wrapf(err, "seed customer %s", c.Name)
		}
	}
	return nil
}

// seedCustomer registers c and fills its cart. Customers that already exist
// are left untouched so the seed can be re-run.
func seedCustomer(ctx context.Context, registry *customer.Registry, carts *cart.Service, c customerJSON) error {
	registered, err := registry.Register(ctx, c.Name, c.CreditCard)
	var exists *customer.AlreadyExistsError
	if errors.As(err, &exists) {
		slog.Info("customer already exists, skipping", slog.String("name", c.Name))
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("registered customer", slog.String("id", registered.ID), slog.String("name", registered.Name))

	recipes := make([]catalog.Recipe, 0, len(c.Cart))
	for r := range c.Cart {
		recipes = append(recipes, r)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i] < recipes[j] })

	for _, r := range recipes {
		item, err := carts.ApplyDelta(ctx, registered.ID, r, c.Cart[r])
		if err != nil {
			return errors.Wrapf(err, "add %s to cart", r)
		}
		slog.Info("added to cart",
			slog.String("customer", registered.Name),
			slog.String("recipe", string(item.Recipe)),
			slog.Int("quantity", item.Quantity),
		)
	}
	return nil
}
