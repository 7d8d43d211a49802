// Package handler exposes the cookie factory over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
)

// Customers registers and looks up customers.
type Customers interface {
	Register(ctx context.Context, name, creditCard string) (*customer.Customer, error)
	Retrieve(ctx context.Context, id string) (*customer.Customer, error)
	List(ctx context.Context) ([]customer.Customer, error)
	Delete(ctx context.Context, id string) error
}

// Carts edits customer carts.
type Carts interface {
	ApplyDelta(ctx context.Context, customerID string, recipe catalog.Recipe, delta int) (cart.Item, error)
	Contents(ctx context.Context, customerID string) ([]cart.Item, error)
	Price(ctx context.Context, customerID string) (decimal.Decimal, error)
}

// Checkout turns carts into orders.
type Checkout interface {
	Checkout(ctx context.Context, customerID string) (*order.Order, error)
}

// Orders answers order queries.
type Orders interface {
	List(ctx context.Context) ([]order.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error)
	Retrieve(ctx context.Context, id string) (*order.Order, error)
	Status(ctx context.Context, id string) (order.Status, error)
	MarkReady(ctx context.Context, id string) (*order.Order, error)
}

// Catalog lists recipes.
type Catalog interface {
	List() []catalog.Cookie
	Explore(pattern string) ([]catalog.Cookie, error)
}

// Idempotency deduplicates checkout retries. See idempotency.RedisStore.
type Idempotency interface {
	Reserve(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// Deps holds the services the handler delegates to. Idempotency is optional.
type Deps struct {
	Customers   Customers
	Carts       Carts
	Checkout    Checkout
	Orders      Orders
	Catalog     Catalog
	Idempotency Idempotency
}

// Handler serves the /api routes.
type Handler struct {
	customers Customers
	carts     Carts
	checkout  Checkout
	orders    Orders
	catalog   Catalog
	idem      Idempotency
}

// NewHandler constructs a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		customers: deps.Customers,
		carts:     deps.Carts,
		checkout:  deps.Checkout,
		orders:    deps.Orders,
		catalog:   deps.Catalog,
		idem:      deps.Idempotency,
	}
}

// Routes returns the API router, to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route_not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/recipes", h.listRecipes)

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.registerCustomer)
		r.Get("/", h.listCustomers)
		r.Route("/{customerId}", func(r chi.Router) {
			r.Get("/", h.getCustomer)
			r.Delete("/", h.deleteCustomer)
			r.Get("/orders", h.listCustomerOrders)
			r.Route("/cart", func(r chi.Router) {
				r.Post("/", h.updateCart)
				r.Get("/", h.getCart)
				r.Get("/price", h.getCartPrice)
				r.Post("/validate", h.validateCart)
			})
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{orderId}", h.getOrder)
		r.Get("/{orderId}/status", h.getOrderStatus)
		r.Post("/{orderId}/ready", h.markOrderReady)
	})
	return r
}
