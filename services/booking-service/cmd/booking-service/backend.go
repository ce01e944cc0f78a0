package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/bookwell/libs/config"
	"github.com/md-rashed-zaman/bookwell/libs/db"
	"github.com/md-rashed-zaman/bookwell/libs/runtime"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/fixtures"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/storage/embedded"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/migrations"
)

// bookingStore is everything the service needs from its storage backend.
type bookingStore interface {
	engine.Store
	admin.Store
	customers.Store
	outbox.Writer
	outbox.Drainer
	consumer.PlanLimitsWriter
	fixtures.Seeder
}

type backend struct {
	store bookingStore
	inbox inbox.Recorder
	ready runtime.ReadyCheck
	close func()
}

// openBackend selects the store from STORE_DRIVER: postgres (default) or sqlite.
func openBackend(ctx context.Context, logger *slog.Logger) (*backend, error) {
	switch driver := strings.ToLower(config.String("STORE_DRIVER", "postgres")); driver {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		maxConns, err := config.Int("DB_MAX_CONNS", 10)
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
		if err != nil {
			return nil, fmt.Errorf("db connection: %w", err)
		}
		if config.Bool("MIGRATE_ON_START", true) {
			if err := migrations.Apply(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
		}
		return &backend{
			store: storage.New(pool),
			inbox: inbox.NewRepository(pool),
			ready: runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
			close: pool.Close,
		}, nil

	case "sqlite":
		path := config.String("SQLITE_PATH", "bookwell.db")
		store, err := embedded.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		logger.Info("embedded store opened", "path", path)
		return &backend{
			store: store,
			inbox: store,
			ready: runtime.ReadyCheck{Name: "db", Check: store.Ping},
			close: func() { _ = store.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres or sqlite)", driver)
	}
}
