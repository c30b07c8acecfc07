package main

import (
	"context"
	"os"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cli"
	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg, log.ComponentWorker)

	logger.Info("Starting gastos-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("The memory backend is private to each process; the worker will not see the server's expenses")
	}
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR is not set; warmed insights stay inside the worker process")
	}

	ctx := context.Background()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open expense store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	insightStore, closeInsightStore := cli.NewInsightStore(ctx, cfg, nil, logger)
	advisor, err := cli.NewAdvisor(ctx, cfg, insightStore, logger)
	if err != nil {
		logger.Error("Failed to initialize insights", "error", err)
		os.Exit(1)
	}

	svc := services.NewExpenseService(store, cli.NewAggregator(cfg), advisor,
		services.WithLogger(logger.WithComponent(log.ComponentExpense)))

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	w := worker.NewInsightWorker(svc, 30*time.Second, logger.Logger)

	runCtx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)
	runErr := w.Run(runCtx, client)
	if runErr != nil {
		logger.Error("Message consumption failed", "error", runErr)
	} else {
		<-done
	}

	if err := client.Close(); err != nil {
		logger.Error("Failed to close AMQP client", "error", err)
	}
	if err := svc.Close(); err != nil {
		logger.Error("Failed to close service", "error", err)
	}
	if err := closeInsightStore(); err != nil {
		logger.Error("Failed to close insight cache", "error", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
