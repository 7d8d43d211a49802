package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/checkout"
	"github.com/xenking/cookie-factory/internal/idempotency"
)

// IdempotencyKeyHeader carries the client's retry key for cart validation.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var (
		recipe      string
		quantity    int
		hasRecipe   bool
		hasQuantity bool
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "recipe":
			v, err := d.Str()
			recipe, hasRecipe = v, true
			return err
		case "quantity":
			v, err := d.Int()
			quantity, hasQuantity = v, true
			return err
		default:
			return d.Skip()
		}
	})
	if err == nil && (!hasRecipe || !hasQuantity) {
		err = errors.New("recipe and quantity are required")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	item, err := h.carts.ApplyDelta(r.Context(), chi.URLParam(r, "customerId"), catalog.Recipe(recipe), quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeItem(&e, item)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Contents(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeItems(&e, items)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getCartPrice(w http.ResponseWriter, r *http.Request) {
	price, err := h.carts.Price(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("price", func(e *jx.Encoder) { e.RawStr(price.StringFixed(2)) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) validateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "customerId")

	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" || h.idem == nil {
		o, err := h.checkout.Checkout(ctx, customerID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeOrder(w, http.StatusCreated, o)
		return
	}

	key = customerID + ":" + key
	existing, err := h.idem.Reserve(ctx, key)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		writeError(w, http.StatusConflict, "checkout_in_progress", err.Error())
		return
	case err != nil:
		writeDomainError(w, r, errors.Wrap(err, "reserve idempotency key"))
		return
	case existing != "":
		o, err := h.orders.Retrieve(ctx, existing)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeOrder(w, http.StatusOK, o)
		return
	}

	lg := zctx.From(ctx).With(zap.String("idempotency_key", key))
	o, err := h.checkout.Checkout(ctx, customerID)
	if err != nil {
		// An unrecorded charge keeps the key so a retry cannot charge again.
		var ucErr *checkout.UnrecordedChargeError
		if !errors.As(err, &ucErr) {
			if relErr := h.idem.Release(ctx, key); relErr != nil {
				lg.Warn("Release idempotency key", zap.Error(relErr))
			}
		}
		writeDomainError(w, r, err)
		return
	}
	h.completeKey(context.WithoutCancel(ctx), lg, key, o.ID)
	writeOrder(w, http.StatusCreated, o)
}

// completeKey records orderID for key, retrying once. If that fails too the
// key is released rather than left pending for its whole lifetime; the
// cleared cart keeps a retry from charging again.
func (h *Handler) completeKey(ctx context.Context, lg *zap.Logger, key, orderID string) {
	var err error
	for range 2 {
		if err = h.idem.Complete(ctx, key, orderID); err == nil {
			return
		}
	}
	lg.Error("Complete idempotency key", zap.Error(err), zap.String("order_id", orderID))
	if err := h.idem.Release(ctx, key); err != nil {
		lg.Error("Release idempotency key", zap.Error(err), zap.String("order_id", orderID))
	}
}

func encodeItem(e *jx.Encoder, item cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("recipe", func(e *jx.Encoder) { e.Str(item.Recipe.String()) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
	})
}

func encodeItems(e *jx.Encoder, items []cart.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, item := range items {
			encodeItem(e, item)
		}
	})
}
