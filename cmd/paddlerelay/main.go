// Command paddlerelay serves the Paddle webhook ingestion endpoint and the
// account query API.
//
// Configuration comes from the environment (and an optional .env file); see
// pkg/config for the variables. Prometheus metrics are exposed on a separate
// admin listener so the public router only answers its own routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	zerologadapter "github.com/mihaimyh/paddlerelay/pkg/accounts/logger/zerolog"
	accountmetrics "github.com/mihaimyh/paddlerelay/pkg/accounts/metrics/prometheus"
	"github.com/mihaimyh/paddlerelay/pkg/api"
	"github.com/mihaimyh/paddlerelay/pkg/billing"
	billingmetrics "github.com/mihaimyh/paddlerelay/pkg/billing/metrics/prometheus"
	"github.com/mihaimyh/paddlerelay/pkg/billing/paddle"
	"github.com/mihaimyh/paddlerelay/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	zlog := newLogger(cfg.LogLevel)
	logger := zerologadapter.NewLogger(zlog)
	logger.Info("paddlerelay starting",
		accounts.F("port", cfg.Port),
		accounts.F("paddle_base_url", cfg.PaddleBaseURL()),
		accounts.F("store_backend", cfg.Store.Backend),
		accounts.F("webhook_signature_check", cfg.WebhookSecret != ""),
		accounts.F("api_auth", cfg.APIToken != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	accountMetrics := accountmetrics.NewMetrics(reg, cfg.MetricsNamespace)
	billingMetrics := billingmetrics.NewMetrics(reg, cfg.MetricsNamespace)

	storage, closeStorage, err := openStorage(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Store.Backend, err)
	}
	defer closeStorage()

	if cfg.Store.BreakerEnabled {
		storage = accounts.NewCircuitBreakerStorage(storage, accounts.CircuitBreakerConfig{
			Metrics: accountMetrics,
			Logger:  logger,
		})
	}

	manager, err := accounts.NewManager(storage, accounts.Config{
		CacheTTL: cfg.CacheTTL,
		Metrics:  accountMetrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating account manager: %w", err)
	}

	provider, err := paddle.NewProviderWithSettings(billing.Config{
		Accounts:      manager,
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       billingMetrics,
		Logger:        logger,
	}, paddle.Settings{
		APIToken: cfg.PaddleAPIToken,
		BaseURL:  cfg.PaddleBaseURL(),
	})
	if err != nil {
		return fmt.Errorf("creating paddle provider: %w", err)
	}

	handler, err := api.NewHandler(api.Config{
		Accounts: manager,
		Provider: provider,
		APIToken: cfg.APIToken,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating api handler: %w", err)
	}

	servers := []*http.Server{newServer(cfg.Addr(), handler.Router())}
	if addr := cfg.MetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, newServer(addr, mux))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("HTTP server listening", accounts.F("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", accounts.F("addr", srv.Addr), accounts.ErrField(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "paddlerelay").Logger()
}
