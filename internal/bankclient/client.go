// Package bankclient charges customers through the bank's HTTP API.
package bankclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/payment"
)

const (
	// DefaultTimeout bounds a single charge.
	DefaultTimeout = 5 * time.Second

	transactionsPath = "/cctransactions"
	maxBodySize      = 64 << 10
)

// StatusError is returned for bank responses that are neither an
// acceptance nor a business rejection.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bank responded with status %d", e.Code)
	}
	return fmt.Sprintf("bank responded with status %d: %s", e.Code, e.Body)
}

// Config configures a Client.
type Config struct {
	URL       string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client implements payment.Gateway.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// New creates a bank Client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("bank url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{Transport: cfg.Transport},
	}, nil
}

// Charge asks the bank to move amount from the customer's credit card.
func (c *Client) Charge(ctx context.Context, cust *customer.Customer, amount decimal.Decimal) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	lg := zctx.From(ctx).With(
		zap.String("customer", cust.Name),
		zap.String("amount", amount.String()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transactionsPath,
		bytes.NewReader(encodeCharge(cust.CreditCard, amount)))
	if err != nil {
		return "", false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, errors.Wrap(err, "call bank")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", false, errors.Wrap(err, "read bank response")
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		if len(bytes.TrimSpace(body)) == 0 {
			lg.Warn("Bank accepted charge without a body")
			return "", false, nil
		}
		receipt, err := decodeReceipt(body)
		if err != nil {
			return "", false, errors.Wrap(err, "decode bank response")
		}
		if strings.TrimSpace(receipt) == "" {
			lg.Warn("Bank accepted charge without a receipt")
			return "", false, nil
		}
		return receipt, true, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		lg.Warn("Unexpected bank success status", zap.Int("status", resp.StatusCode))
		return "", false, nil
	case resp.StatusCode == http.StatusBadRequest:
		lg.Warn("Bank rejected charge", zap.ByteString("reason", body))
		return "", false, nil
	default:
		return "", false, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
}

func encodeCharge(creditCard string, amount decimal.Decimal) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("creditCard")
	e.Str(creditCard)
	e.FieldStart("amount")
	e.RawStr(amount.String())
	e.ObjEnd()
	return e.Bytes()
}

func decodeReceipt(body []byte) (string, error) {
	var receipt string
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != "payReceiptId" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		receipt = v
		return err
	})
	return receipt, err
}
