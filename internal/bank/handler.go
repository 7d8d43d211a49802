package bank

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRequestSize = 16 << 10

// Handler exposes a Ledger over HTTP.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a Handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Routes returns the bank's router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", h.health)
	r.Post("/cctransactions", h.pay)
	r.Get("/cctransactions", h.list)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var (
		card   string
		amount decimal.Decimal
	)
	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "creditCard":
			v, err := d.Str()
			card = v
			return err
		case "amount":
			n, err := d.Num()
			if err != nil {
				return err
			}
			amount, err = decimal.NewFromString(n.String())
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		http.Error(w, "malformed transaction: "+err.Error(), http.StatusBadRequest)
		return
	}

	tr, err := h.ledger.Pay(card, amount)
	if errors.Is(err, ErrRejected) {
		zctx.From(r.Context()).Info("Transaction rejected", zap.Error(err))
		http.Error(w, "business error: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	zctx.From(r.Context()).Info("Transaction accepted",
		zap.String("receipt_id", tr.ReceiptID),
		zap.String("amount", tr.Amount.String()),
	)
	var e jx.Encoder
	encodeTransaction(&e, tr)
	writeJSON(w, http.StatusCreated, e.Bytes())
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, tr := range h.ledger.Transactions() {
			encodeTransaction(e, tr)
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeTransaction(e *jx.Encoder, tr Transaction) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("payReceiptId", func(e *jx.Encoder) { e.Str(tr.ReceiptID) })
		e.Field("amount", func(e *jx.Encoder) { e.RawStr(tr.Amount.String()) })
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
