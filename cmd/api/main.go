package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"hostelattendance/internal/app"
	"hostelattendance/internal/attendance"
	"hostelattendance/internal/audit"
	"hostelattendance/internal/auth"
	"hostelattendance/internal/config"
	"hostelattendance/internal/handler"
	"hostelattendance/internal/identity"
	"hostelattendance/internal/logging"
)

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

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backends.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	people := identity.NewService(backends.People, cfg.BcryptCost)
	svc := attendance.NewService(backends.Ledger, people,
		attendance.WithLocation(loc),
		attendance.WithMetrics(attendance.NewMetrics(reg)),
		attendance.WithNotifier(audit.NewPublisher(backends.Queue, logger)),
		attendance.WithLogger(logger),
	)

	// A process-local queue has no external worker; drain it here.
	var wg sync.WaitGroup
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if backends.LocalQueue {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := audit.NewConsumer(backends.Queue, backends.Audit, logger).Run(consumerCtx); err != nil {
				logger.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	r := handler.New(handler.Config{
		People:       people,
		Attendance:   svc,
		Audit:        backends.Audit,
		Issuer:       auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL),
		Logger:       logger,
		Gatherer:     reg,
		Health:       backends.Health(),
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitMin: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	stopConsumer()
	wg.Wait()

	logger.Info("server exited")
	return nil
}
