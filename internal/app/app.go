package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/cookie-factory/internal/bankclient"
	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/domain/checkout"
	"github.com/xenking/cookie-factory/internal/domain/customer"
	"github.com/xenking/cookie-factory/internal/domain/order"
	"github.com/xenking/cookie-factory/internal/handler"
	"github.com/xenking/cookie-factory/internal/idempotency"
	"github.com/xenking/cookie-factory/pkg/health"
	"github.com/xenking/cookie-factory/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("bank", cfg.Bank.URL),
	)

	svc, err := build(ctx, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Bank.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           svc.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		svc.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// service is the wired application: the root handler with its middleware
// chain and the health probes. Health checks are registered but not started.
type service struct {
	handler http.Handler
	health  *health.Health
	closers []func()
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func build(ctx context.Context, cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (_ *service, rerr error) {
	lg := zctx.From(ctx)
	svc := &service{health: health.New()}
	defer func() {
		if rerr != nil {
			svc.close()
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, st.close)

	// Bank client; outgoing calls are traced like incoming ones.
	bank, err := bankclient.New(bankclient.Config{
		URL:     cfg.Bank.URL,
		Timeout: cfg.Bank.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bank client")
	}

	svc.health.AddReadinessCheck(cfg.Storage, 5*time.Second, st.ping)
	svc.health.AddReadinessCheck("bank", cfg.Bank.Timeout, health.HTTPCheck(nil, cfg.Bank.URL+"/health"))
	svc.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Optional idempotency keys for checkout retries.
	var idem handler.Idempotency
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		svc.closers = append(svc.closers, func() { _ = rdb.Close() })

		keys := idempotency.NewRedisStore(rdb, cfg.Redis.TTL)
		svc.health.AddReadinessCheck("redis", 2*time.Second, keys.Ping)
		idem = keys
		lg.Info("Checkout idempotency enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// Domain services.
	menu := catalog.Default()
	kitchen := order.NewKitchen(st.orders)
	checkoutSvc, err := checkout.NewService(st.tm, st.customers, st.carts, menu,
		checkout.NewCashier(bank, st.orders),
		kitchen,
		checkout.Options{MeterProvider: mp, TracerProvider: tp},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout service")
	}
	h := handler.NewHandler(handler.Deps{
		Customers:   customer.NewRegistry(st.tm, st.customers),
		Carts:       cart.NewService(st.tm, st.customers, st.carts, menu),
		Checkout:    checkoutSvc,
		Orders:      order.NewFinder(st.tm, st.orders, kitchen),
		Catalog:     menu,
		Idempotency: idem,
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", svc.health.LiveEndpoint)
	mux.HandleFunc("/readyz", svc.health.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	svc.handler = httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.IdempotencyKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   isProbe,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("cookie-factory", tp, mp),
		httpmiddleware.LogRequests(),
	)
	return svc, nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
