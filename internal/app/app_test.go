package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/cookie-factory/internal/bank"
)

// --- Helpers ---

type stack struct {
	api  *httptest.Server
	bank *httptest.Server
}

func newStack(t *testing.T, cfg Config) *stack {
	t.Helper()
	bankSrv := httptest.NewServer(bank.NewHandler(bank.NewLedger(bank.DefaultMagicKey)).Routes())
	t.Cleanup(bankSrv.Close)

	cfg.Storage = StorageMemory
	cfg.Bank = BankConfig{URL: bankSrv.URL, Timeout: 2 * time.Second}
	cfg.CORS.Origins = []string{"*"}

	ctx := zctx.Base(t.Context(), zaptest.NewLogger(t))
	svc, err := build(ctx, &cfg, tracenoop.NewTracerProvider(), noop.NewMeterProvider())
	require.NoError(t, err)
	t.Cleanup(svc.close)
	svc.health.SetReady(true)

	apiSrv := httptest.NewServer(svc.handler)
	t.Cleanup(apiSrv.Close)
	return &stack{api: apiSrv, bank: bankSrv}
}

func (s *stack) do(t *testing.T, method, url, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func str(t *testing.T, body, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		v, err := d.Str()
		out = v
		return err
	}))
	return out
}

func raw(t *testing.T, body, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		if key != name {
			return d.Skip()
		}
		v, err := d.Raw()
		out = v.String()
		return err
	}))
	return out
}

func arrayLen(t *testing.T, body string) int {
	t.Helper()
	n := 0
	require.NoError(t, jx.DecodeStr(body).Arr(func(d *jx.Decoder) error {
		n++
		return d.Skip()
	}))
	return n
}

// --- Tests ---

func TestStack_CheckoutThroughBank(t *testing.T) {
	s := newStack(t, Config{})
	api := s.api.URL + "/api"

	resp, body := s.do(t, http.MethodPost, api+"/customers", `{"name":"John","creditCard":"1234896983"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := str(t, body, "id")
	cartURL := api + "/customers/" + id + "/cart"

	resp, body = s.do(t, http.MethodPost, cartURL, `{"recipe":"CHOCOLALALA","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	resp, body = s.do(t, http.MethodPost, cartURL, `{"recipe":"DARK_TEMPTATION","quantity":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	_, body = s.do(t, http.MethodGet, cartURL+"/price", "")
	assert.Equal(t, "8.30", raw(t, body, "price"))

	resp, body = s.do(t, http.MethodPost, cartURL+"/validate", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	orderID := str(t, body, "id")
	assert.Equal(t, "IN_PROGRESS", str(t, body, "status"))
	assert.True(t, strings.HasPrefix(str(t, body, "receiptId"), "RECEIPT:"))

	_, body = s.do(t, http.MethodGet, cartURL, "")
	assert.Equal(t, 0, arrayLen(t, body), "cart is cleared")

	_, body = s.do(t, http.MethodGet, s.bank.URL+"/cctransactions", "")
	assert.Equal(t, 1, arrayLen(t, body), "bank charged once")

	resp, body = s.do(t, http.MethodPost, api+"/orders/"+orderID+"/ready", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	_, body = s.do(t, http.MethodGet, api+"/orders/"+orderID+"/status", "")
	assert.Equal(t, "READY", str(t, body, "status"))
}

func TestStack_BankRejects(t *testing.T) {
	s := newStack(t, Config{})
	api := s.api.URL + "/api"

	_, body := s.do(t, http.MethodPost, api+"/customers", `{"name":"Jane","creditCard":"1111111111"}`)
	cartURL := api + "/customers/" + str(t, body, "id") + "/cart"
	s.do(t, http.MethodPost, cartURL, `{"recipe":"SOO_CHOCOLATE","quantity":1}`)

	resp, body := s.do(t, http.MethodPost, cartURL+"/validate", "")
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "payment_declined", str(t, body, "error"))

	_, body = s.do(t, http.MethodGet, cartURL, "")
	assert.Equal(t, 1, arrayLen(t, body), "cart is kept")
}

func TestStack_HealthEndpoints(t *testing.T) {
	s := newStack(t, Config{})

	resp, body := s.do(t, http.MethodGet, s.api.URL+"/livez", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", str(t, body, "status"))

	resp, _ = s.do(t, http.MethodGet, s.api.URL+"/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStack_Middleware(t *testing.T) {
	s := newStack(t, Config{RateLimit: RateLimitConfig{Max: 3, Window: time.Minute}})

	t.Run("RequestID", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, s.api.URL+"/livez", "", "X-Request-ID", "custom-request-id")
		assert.Equal(t, "custom-request-id", resp.Header.Get("X-Request-ID"))
	})
	t.Run("Preflight", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodOptions, s.api.URL+"/api/recipes", "",
			"Origin", "http://example.com",
			"Access-Control-Request-Method", http.MethodGet,
		)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})
	t.Run("RateLimitSkipsHealthEndpoints", func(t *testing.T) {
		for range 5 {
			resp, _ := s.do(t, http.MethodGet, s.api.URL+"/livez", "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}
	})
	t.Run("UnknownRoute", func(t *testing.T) {
		resp, _ := s.do(t, http.MethodGet, s.api.URL+"/api/nope", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
	t.Run("RateLimit", func(t *testing.T) {
		var last *http.Response
		var body string
		for range 4 {
			last, body = s.do(t, http.MethodGet, s.api.URL+"/api/recipes", "")
		}
		assert.Equal(t, http.StatusTooManyRequests, last.StatusCode)
		assert.Equal(t, "rate_limited", str(t, body, "error"))
	})
}
