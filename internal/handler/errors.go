package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/bankclient"
	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/checkout"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/domain/payment"
)

const maxBodySize = 1 << 20

// apiError is the category a domain error maps to.
type apiError struct {
	status int
	code   string
}

// classify maps domain errors to HTTP statuses and stable error codes.
func classify(err error) apiError {
	var (
		custNF     *customer.NotFoundError
		custExists *customer.AlreadyExistsError
		orderNF    *order.NotFoundError
		negative   *cart.NegativeQuantityError
		outOfRange *cart.QuantityRangeError
		unknown    *catalog.UnknownRecipeError
		empty      *checkout.EmptyCartError
		declined   *payment.Error
		unrecorded *checkout.UnrecordedChargeError
		bankStatus *bankclient.StatusError
	)
	// Order matters: an unrecorded charge wraps its cause.
	switch {
	case errors.As(err, &unrecorded):
		return apiError{http.StatusInternalServerError, "charge_not_recorded"}
	case errors.As(err, &custNF), errors.As(err, &orderNF):
		return apiError{http.StatusNotFound, "not_found"}
	case errors.As(err, &empty):
		return apiError{http.StatusForbidden, "empty_cart"}
	case errors.As(err, &negative):
		return apiError{http.StatusUnprocessableEntity, "negative_quantity"}
	case errors.As(err, &unknown):
		return apiError{http.StatusBadRequest, "unknown_recipe"}
	case errors.As(err, &outOfRange),
		errors.Is(err, customer.ErrInvalidName), errors.Is(err, customer.ErrInvalidCreditCard):
		return apiError{http.StatusBadRequest, "invalid_input"}
	case errors.As(err, &custExists):
		return apiError{http.StatusConflict, "customer_exists"}
	case errors.Is(err, order.ErrNotInProgress):
		return apiError{http.StatusConflict, "order_not_in_progress"}
	case errors.As(err, &declined):
		return apiError{http.StatusPaymentRequired, "payment_declined"}
	case errors.As(err, &bankStatus), errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusBadGateway, "payment_gateway_failure"}
	default:
		return apiError{http.StatusInternalServerError, "internal"}
	}
}

// writeDomainError writes the error envelope for err. Internal details of
// 5xx errors are logged, not returned.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	msg := err.Error()
	if ae.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("code", ae.code),
			zap.Error(err),
		)
		msg = http.StatusText(ae.status)
	}
	writeError(w, ae.status, ae.code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("error", func(e *jx.Encoder) { e.Str(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decodeBody reads a JSON object from the request body, calling f for each
// field.
func decodeBody(r *http.Request, f func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := jx.DecodeBytes(body).Obj(f); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}
