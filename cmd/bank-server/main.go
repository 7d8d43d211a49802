// Command bank-server runs the mock payment bank the cookie factory charges.
package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cookie-factory/internal/bank"
	"github.com/xenking/cookie-factory/pkg/httpmiddleware"
)

// Config of the bank server, loaded from BANK_ environment variables,
// flags, or bank.yaml.
type Config struct {
	Addr            string        `default:"0.0.0.0:9090" usage:"Bank listen address"`
	MagicKey        string        `default:"896983" usage:"Credit cards containing this key are accepted" flag:"magic-key"`
	ShutdownTimeout time.Duration `default:"5s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BANK",
		Files:     []string{"bank.yaml", "/etc/cookie-factory/bank.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.MagicKey == "" {
		return nil, errors.New("magic key must not be empty")
	}
	return &cfg, nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
			Handler: httpmiddleware.Wrap(bank.NewHandler(bank.NewLedger(cfg.MagicKey)).Routes(),
				httpmiddleware.Recovery(),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.Instrument("cookie-bank", m.TracerProvider(), m.MeterProvider()),
				httpmiddleware.LogRequests(),
			),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			lg.Info("Bank listening", zap.String("addr", cfg.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()

			lg.Info("Shutting down bank", zap.Duration("timeout", cfg.ShutdownTimeout))
			return server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	})
}
