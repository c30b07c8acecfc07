package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gastos/internal/aggregate"
	"gastos/internal/amqp"
	"gastos/internal/auth"
	"gastos/internal/cache"
	"gastos/internal/cli"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/realtime"
	"gastos/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg, log.ComponentApp)

	ctx := context.Background()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open expense store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	insightStore, closeInsightStore := cli.NewInsightStore(ctx, cfg, caches, logger)
	advisor, err := cli.NewAdvisor(ctx, cfg, insightStore, logger)
	if err != nil {
		logger.Error("Failed to initialize insights", "error", err)
		os.Exit(1)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		logger.Error("Failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(cfg.CORSAllowedOrigins, logger.WithComponent(log.ComponentRealtime).Logger)

	// Keys carry the store revision, so entries never go stale; the TTL
	// only bounds how long unused ones occupy a slot.
	dashboards := cache.NewLRUCache[aggregate.Dashboard](cfg.DashboardCacheSize, 30*time.Minute)
	caches.Register(dashboards)

	opts := []services.Option{
		services.WithNotifier(hub),
		services.WithDashboardCache(dashboards),
		services.WithLogger(logger.WithComponent(log.ComponentExpense)),
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events will not be published", "error", err)
		} else {
			logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts = append(opts, services.WithPublisher(client))
		}
	}

	svc := services.NewExpenseService(store, cli.NewAggregator(cfg), advisor, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Service:            svc,
		Verifier:           verifier,
		Hub:                hub,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          ratelimit.DefaultConfig(),
	})
	caches.StartCleanup(5 * time.Minute)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close service", "error", err)
		}
		if err := closeInsightStore(); err != nil {
			logger.Error("Failed to close insight cache", "error", err)
		}
	})

	go func() {
		logger.Info("Starting gastos server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"insights", svc.InsightsEnabled(),
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
