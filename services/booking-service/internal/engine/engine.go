// Package engine composes schedule resolution, resource matching, slot generation, conflict
// detection, quota and lifecycle rules into the read path (availability) and the write path
// (commit and transition).
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/resources"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/schedule"
)

const tracerName = "booking-engine"

type Config struct {
	Granularity   time.Duration
	MaxRangeDays  int
	NotifyTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Granularity <= 0 {
		c.Granularity = availability.DefaultGranularity
	}
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = 62
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 5 * time.Second
	}
	return c
}

type Engine struct {
	store     Store
	schedules *schedule.Resolver
	matcher   *resources.Matcher
	customers CustomerDirectory
	notifier  Notifier
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time

	inflight sync.WaitGroup
}

func New(store Store, customers CustomerDirectory, notifier Notifier, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		schedules: schedule.NewResolver(store),
		matcher:   resources.NewMatcher(store),
		customers: customers,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Wait blocks until dispatched notifications have returned.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error) {
	if tenantID == "" {
		return nil, model.Validationf("tenant_id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return e.store.ListBookings(ctx, tenantID, limit)
}

func (e *Engine) GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	if tenantID == "" || bookingID == "" {
		return model.Booking{}, model.Validationf("tenant_id and booking_id are required")
	}
	return e.store.GetBooking(ctx, tenantID, bookingID)
}

// tenantContext loads the settings snapshot and location for one computation.
func (e *Engine) tenantContext(ctx context.Context, tenantID string) (model.Tenant, *time.Location, error) {
	tenant, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return model.Tenant{}, nil, err
	}
	loc, err := tenant.Settings.Location()
	if err != nil {
		return model.Tenant{}, nil, err
	}
	return tenant, loc, nil
}

// loadTargets checks that branch, service and (optional) employee belong to the tenant.
func (e *Engine) loadTargets(ctx context.Context, tenantID, branchID, serviceID, employeeID string) (model.Service, error) {
	if _, err := e.store.GetBranch(ctx, tenantID, branchID); err != nil {
		return model.Service{}, err
	}
	svc, err := e.store.GetServiceWithVariations(ctx, tenantID, serviceID)
	if err != nil {
		return model.Service{}, err
	}
	if employeeID != "" {
		if _, err := e.store.GetEmployee(ctx, tenantID, employeeID); err != nil {
			return model.Service{}, err
		}
	}
	return svc, nil
}

func (e *Engine) dispatch(ctx context.Context, event string, fn func(context.Context) error) {
	if e.notifier == nil {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.NotifyTimeout)
		defer cancel()
		if err := fn(nctx); err != nil {
			e.logger.Error("notification failed", "event", event, "err", err)
		}
	}()
}
