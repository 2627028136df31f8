package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"hostelattendance/internal/app"
	"hostelattendance/internal/audit"
	"hostelattendance/internal/config"
	"hostelattendance/internal/logging"
)

// Worker consumes attendance notices and appends them to the audit trail.
func main() {
	cfg, err := config.LoadWithFile()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == app.BackendMemory {
		logger.Fatal("worker needs a shared queue; QUEUE_BACKEND=memory is consumed inside the api process")
	}

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer func() { _ = backends.Close() }()

	logger.Info("worker started, waiting for messages", zap.String("queue", app.QueueKey))
	if err := audit.NewConsumer(backends.Queue, backends.Audit, logger).Run(ctx); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
	logger.Info("worker exited")
}
