package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/cookie-factory/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrders(w, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Retrieve(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	status, err := h.orders.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(id) })
		e.Field("status", func(e *jx.Encoder) { e.Str(status.String()) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) markOrderReady(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.MarkReady(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrder(w, http.StatusOK, o)
}

func writeOrder(w http.ResponseWriter, status int, o *order.Order) {
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, status, e.Bytes())
}

func writeOrders(w http.ResponseWriter, list []order.Order) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range list {
			encodeOrder(e, &list[i])
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, o.Items) })
		e.Field("price", func(e *jx.Encoder) { e.RawStr(o.Price.StringFixed(2)) })
		e.Field("receiptId", func(e *jx.Encoder) { e.Str(o.ReceiptID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339Nano)) })
	})
}
