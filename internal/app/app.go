// Package app opens the storage and queue backends named in the config.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hostelattendance/internal/attendance"
	"hostelattendance/internal/audit"
	"hostelattendance/internal/config"
	"hostelattendance/internal/identity"
	"hostelattendance/internal/queue"
	"hostelattendance/internal/store"
)

// Backend names accepted in STORE_BACKEND and QUEUE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// QueueKey is the Redis list attendance notices travel on.
const QueueKey = "attendance:events"

// Backends bundles the opened stores.
type Backends struct {
	People identity.Store
	Ledger attendance.Ledger
	Audit  audit.Store
	Queue  queue.Queue

	// LocalQueue is set when the queue lives in this process and therefore
	// needs an in-process consumer.
	LocalQueue bool

	DB    *store.DB
	Redis *store.Redis
}

// Open connects the stores selected by cfg. With the postgres backend the
// schema is migrated first.
func Open(ctx context.Context, cfg config.App, logger *zap.Logger) (*Backends, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	b := &Backends{}
	switch cfg.StoreBackend {
	case BackendPostgres:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx, db.Client); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.DB = db
		b.People = identity.NewRepository(db.Client)
		b.Ledger = attendance.NewRepository(db.Client, loc)
		b.Audit = audit.NewRepository(db.Client)
	case BackendMemory:
		people := identity.NewMemoryStore()
		b.People = people
		b.Ledger = attendance.NewMemoryLedger(people)
		b.Audit = audit.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	switch cfg.QueueBackend {
	case BackendRedis:
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.Queue = queue.NewRedisQueue(b.Redis.Client, QueueKey, logger)
	case BackendMemory:
		b.Queue = queue.NewInMemory(1024)
		b.LocalQueue = true
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
	logger.Info("backends opened",
		zap.String("store", cfg.StoreBackend),
		zap.String("queue", cfg.QueueBackend))
	return b, nil
}

// Health returns one check per networked backend.
func (b *Backends) Health() map[string]func(context.Context) bool {
	checks := map[string]func(context.Context) bool{}
	if b.DB != nil {
		checks["db"] = b.DB.Healthy
	}
	if b.Redis != nil {
		checks["redis"] = b.Redis.Healthy
	}
	return checks
}

// Close releases every connection.
func (b *Backends) Close() error {
	var firstErr error
	if err := b.Redis.Close(); err != nil {
		firstErr = err
	}
	if err := b.DB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ShutdownTimeout bounds graceful shutdown of servers and consumers.
const ShutdownTimeout = 10 * time.Second
