package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/cookie-factory/internal/domain/customer"
)

func (h *Handler) registerCustomer(w http.ResponseWriter, r *http.Request) {
	var name, creditCard string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			v, err := d.Str()
			name = v
			return err
		case "creditCard":
			v, err := d.Str()
			creditCard = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	c, err := h.customers.Register(r.Context(), name, creditCard)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCustomer(&e, c)
	writeJSON(w, http.StatusCreated, e.Bytes())
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.customers.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range list {
			encodeCustomer(e, &list[i])
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.customers.Retrieve(r.Context(), chi.URLParam(r, "customerId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCustomer(&e, c)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.customers.Delete(r.Context(), chi.URLParam(r, "customerId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "customerId")
	if _, err := h.customers.Retrieve(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	list, err := h.orders.ListByCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOrders(w, list)
}

// encodeCustomer never writes the full credit card number.
func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("creditCard", func(e *jx.Encoder) { e.Str(maskCard(c.CreditCard)) })
	})
}

func maskCard(card string) string {
	if len(card) <= 4 {
		return card
	}
	masked := make([]byte, len(card))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(card)-4:], card[len(card)-4:])
	return string(masked)
}
