// Package checkout turns a customer's cart into a paid order.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/domain/payment"
	"github.com/xenking/cookie-factory/internal/txn"
)

const instrumentationName = "github.com/xenking/cookie-factory/internal/domain/checkout"

// EmptyCartError is returned when checking out a cart with no items. No
// charge is attempted.
type EmptyCartError struct {
	CustomerName string
}

func (e *EmptyCartError) Error() string {
	return fmt.Sprintf("cart of %s is empty", e.CustomerName)
}

// UnrecordedChargeError is returned when the bank accepted a charge but the
// order could not be committed. The money has moved and the receipt must be
// reconciled by hand.
type UnrecordedChargeError struct {
	CustomerName string
	Amount       decimal.Decimal
	ReceiptID    string
	Err          error
}

func (e *UnrecordedChargeError) Error() string {
	return fmt.Sprintf("charge %s of %s for %s not recorded: %v",
		e.ReceiptID, e.Amount.StringFixed(2), e.CustomerName, e.Err)
}

func (e *UnrecordedChargeError) Unwrap() error { return e.Err }

// Customers locks the paying customer for the duration of a checkout.
type Customers interface {
	Lock(ctx context.Context, tx txn.Tx, id string) (*customer.Customer, error)
}

// Options configures telemetry for Service. Zero values fall back to the
// global otel providers.
type Options struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.MeterProvider == nil {
		o.MeterProvider = otel.GetMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
}

// Service runs the checkout workflow.
type Service struct {
	tm        txn.Manager
	customers Customers
	carts     cart.Repository
	pricing   cart.Pricing
	cashier   *Cashier
	kitchen   *order.Kitchen

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	tm txn.Manager,
	customers Customers,
	carts cart.Repository,
	pricing cart.Pricing,
	cashier *Cashier,
	kitchen *order.Kitchen,
	opts Options,
) (*Service, error) {
	opts.setDefaults()

	outcomes, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter("checkout.outcomes",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcome counter")
	}

	return &Service{
		tm:        tm,
		customers: customers,
		carts:     carts,
		pricing:   pricing,
		cashier:   cashier,
		kitchen:   kitchen,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
		outcomes:  outcomes,
	}, nil
}

// Checkout validates the customer's cart into a paid order and hands it to
// the kitchen. On success the cart is empty and the order is IN_PROGRESS. On
// any failure the cart is left as it was.
func (s *Service) Checkout(ctx context.Context, customerID string) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer func() {
		s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeOf(rerr))))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var (
		cust      *customer.Customer
		price     decimal.Decimal
		receiptID string
		placed    *order.Order
	)
	err := s.tm.InTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		var err error
		cust, err = s.customers.Lock(ctx, tx, customerID)
		if err != nil {
			return err
		}

		items, err := s.carts.Items(ctx, tx, customerID)
		if err != nil {
			return errors.Wrap(err, "read cart")
		}
		if len(items) == 0 {
			return &EmptyCartError{CustomerName: cust.Name}
		}

		price, err = cart.PriceOf(items, s.pricing)
		if err != nil {
			return err
		}

		placed, receiptID, err = s.cashier.Pay(ctx, tx, cust, items, price)
		if err != nil {
			return err
		}
		if err := s.carts.Clear(ctx, tx, customerID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		if err := s.kitchen.AdvanceToInProgress(ctx, tx, placed); err != nil {
			return errors.Wrap(err, "start order")
		}
		return nil
	})

	lg := zctx.From(ctx).With(zap.String("customer_id", customerID))
	if err != nil {
		if receiptID == "" {
			return nil, err
		}
		unrecorded := &UnrecordedChargeError{
			CustomerName: cust.Name,
			Amount:       price,
			ReceiptID:    receiptID,
			Err:          err,
		}
		lg.Error("Charge accepted but order not recorded",
			zap.String("receipt_id", receiptID),
			zap.String("amount", price.String()),
			zap.Error(err),
		)
		return nil, unrecorded
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	lg.Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("receipt_id", placed.ReceiptID),
		zap.String("price", placed.Price.String()),
	)
	return placed, nil
}

func outcomeOf(err error) string {
	var (
		emptyErr    *EmptyCartError
		declinedErr *payment.Error
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &emptyErr):
		return "empty_cart"
	case errors.As(err, &declinedErr):
		return "declined"
	default:
		return "failed"
	}
}
