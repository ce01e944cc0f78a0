package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	otelx "github.com/md-rashed-zaman/bookwell/libs/otel"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/pricing"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// CommitRequest carries StartTime for HOURLY tenants and CheckOutDate for DAILY ones.
type CommitRequest struct {
	TenantID       string
	BranchID       string
	ServiceID      string
	EmployeeID     string
	Date           string
	StartTime      string
	CheckOutDate   string
	Customer       model.CustomerIdentity
	Notes          string
	OptionIDs      []string
	IdempotencyKey string
}

type CommitResult struct {
	Booking  model.Booking
	Replayed bool
}

// plan is a validated request, resolved against tenant settings, ready for the atomic unit.
type plan struct {
	tenant    model.Tenant
	loc       *time.Location
	pool      []model.Resource
	candidate model.Booking
	lockDates []string
	from, to  string
}

// Commit validates the request, then checks conflicts and quota and inserts the booking in
// one atomic unit. Exactly one of several concurrent commits for the same resource and
// interval succeeds; the others get model.ErrSlotConflict.
func (e *Engine) Commit(ctx context.Context, req CommitRequest) (res CommitResult, err error) {
	ctx, span := otelx.Start(ctx, tracerName, "engine.Commit", req.TenantID)
	defer func() { otelx.End(span, err) }()

	key := strings.TrimSpace(req.IdempotencyKey)
	fingerprint := ""
	if key != "" {
		fingerprint = requestFingerprint(req)
		replayed, ok, err := e.replay(ctx, req.TenantID, key, fingerprint)
		if err != nil {
			return CommitResult{}, err
		}
		if ok {
			e.logger.Info("booking commit replayed", "tenant_id", req.TenantID, "booking_id", replayed.Booking.ID)
			return replayed, nil
		}
	}

	p, err := e.prepare(ctx, req)
	if err != nil {
		return CommitResult{}, err
	}

	identity := req.Customer.Normalize()
	txDirectory, inTx := e.customers.(TxCustomerDirectory)
	var customer model.Customer
	customerCreated := false
	if !inTx {
		if customer, err = e.customers.Resolve(ctx, req.TenantID, identity); err != nil {
			return CommitResult{}, fmt.Errorf("resolve customer: %w", err)
		}
	}

	now := e.now()
	err = e.store.WithinCommit(ctx, func(tx CommitTx) error {
		if key != "" {
			rec, existed, err := tx.LockIdempotencyKey(ctx, req.TenantID, key, fingerprint)
			if err != nil {
				return fmt.Errorf("lock idempotency key: %w", err)
			}
			if existed && rec.Fingerprint != fingerprint {
				return model.ErrIdempotencyMismatch
			}
			if existed && rec.BookingID != "" {
				b, err := tx.GetBooking(ctx, req.TenantID, rec.BookingID)
				if err != nil {
					return fmt.Errorf("load replayed booking: %w", err)
				}
				res = CommitResult{Booking: b, Replayed: true}
				return nil
			}
		}

		chosen, err := firstFree(ctx, tx, p)
		if err != nil {
			return err
		}

		if err := tx.LockKey(ctx, quota.LockKey(req.TenantID)); err != nil {
			return fmt.Errorf("lock quota: %w", err)
		}
		if inTx {
			c, created, err := txDirectory.ResolveTx(ctx, tx, req.TenantID, identity)
			if err != nil {
				return fmt.Errorf("resolve customer: %w", err)
			}
			customer, customerCreated = c, created
		}
		if err := quota.Check(ctx, tx, req.TenantID, quota.CounterBookingsMonth, now, p.loc); err != nil {
			return err
		}

		b := p.candidate
		b.ID = uuid.NewString()
		b.CustomerID = customer.ID
		b.ResourceID = chosen.Key()
		if chosen.Kind == model.ResourceEmployee {
			b.EmployeeID = chosen.ID
		}
		b.Status = lifecycle.InitialStatus(p.tenant.Settings)
		b.CreatedAt = now.UTC()
		if err := tx.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if key != "" {
			if err := tx.FinalizeIdempotencyKey(ctx, req.TenantID, key, b.ID); err != nil {
				return fmt.Errorf("finalize idempotency key: %w", err)
			}
		}
		res = CommitResult{Booking: b}
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			e.logger.Error("booking commit failed", "tenant_id", req.TenantID, "err", err)
		}
		return CommitResult{}, err
	}
	if res.Replayed {
		e.logger.Info("booking commit replayed", "tenant_id", req.TenantID, "booking_id", res.Booking.ID)
		return res, nil
	}

	b := res.Booking
	if customerCreated {
		e.logger.Info("customer created", "tenant_id", b.TenantID, "customer_id", customer.ID, "phone_ref", model.Redact(customer.Phone))
	}
	e.logger.Info("booking committed",
		"tenant_id", b.TenantID,
		"booking_id", b.ID,
		"resource_id", b.ResourceID,
		"date", b.Date,
		"status", b.Status,
		"customer_ref", model.Redact(customer.Phone),
	)
	e.dispatch(ctx, "booking.committed", func(ctx context.Context) error {
		return e.notifier.BookingCommitted(ctx, b)
	})
	return res, nil
}

// replay answers a retried request from its stored booking before any window check, so a
// retry that arrives after the advance window has closed still gets its booking back.
func (e *Engine) replay(ctx context.Context, tenantID, key, fingerprint string) (CommitResult, bool, error) {
	rec, found, err := e.store.FindIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return CommitResult{}, false, fmt.Errorf("find idempotency key: %w", err)
	}
	if !found || rec.BookingID == "" {
		return CommitResult{}, false, nil
	}
	if rec.Fingerprint != fingerprint {
		return CommitResult{}, false, model.ErrIdempotencyMismatch
	}
	b, err := e.store.GetBooking(ctx, tenantID, rec.BookingID)
	if err != nil {
		return CommitResult{}, false, fmt.Errorf("load replayed booking: %w", err)
	}
	return CommitResult{Booking: b, Replayed: true}, true, nil
}

// prepare runs every check that needs no lock, in the order callers observe failures:
// input, entity lookup, variations, eligibility, window and advance bounds.
func (e *Engine) prepare(ctx context.Context, req CommitRequest) (plan, error) {
	if req.TenantID == "" || req.BranchID == "" || req.ServiceID == "" {
		return plan{}, model.Validationf("tenant_id, branch_id and service_id are required")
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		return plan{}, err
	}
	tenant, loc, err := e.tenantContext(ctx, req.TenantID)
	if err != nil {
		return plan{}, err
	}
	settings := tenant.Settings

	var startMinute int
	if settings.BookingMode == model.ModeDaily {
		if _, err := model.ParseDate(req.CheckOutDate); err != nil {
			return plan{}, err
		}
		if req.CheckOutDate <= req.Date {
			return plan{}, model.Validationf("check-out %s must be after check-in %s", req.CheckOutDate, req.Date)
		}
	} else {
		if startMinute, err = model.ParseClock(req.StartTime); err != nil {
			return plan{}, err
		}
	}

	svc, err := e.loadTargets(ctx, req.TenantID, req.BranchID, req.ServiceID, req.EmployeeID)
	if err != nil {
		return plan{}, err
	}
	quote, err := pricing.Resolve(svc, req.OptionIDs, true)
	if err != nil {
		return plan{}, err
	}
	pool, err := e.matcher.Match(ctx, req.TenantID, req.BranchID, req.ServiceID, req.EmployeeID)
	if err != nil {
		return plan{}, err
	}

	bounds := availability.NewBounds(e.now(), loc, settings.MinAdvanceHours, settings.MaxAdvanceDays)
	p := plan{tenant: tenant, loc: loc, pool: pool}
	c := model.Booking{
		TenantID:  req.TenantID,
		BranchID:  req.BranchID,
		ServiceID: req.ServiceID,
		Mode:      settings.BookingMode,
		Date:      req.Date,
		OptionIDs: quote.OptionIDs,
		Notes:     strings.TrimSpace(req.Notes),
	}

	if settings.BookingMode == model.ModeDaily {
		stay := availability.Stay{CheckIn: req.Date, CheckOut: req.CheckOutDate}
		nights := stay.Nights()
		if len(nights) > e.cfg.MaxRangeDays {
			return plan{}, model.Validationf("stay of %d nights exceeds %d", len(nights), e.cfg.MaxRangeDays)
		}
		if !bounds.CheckInAllowed(req.Date) {
			return plan{}, fmt.Errorf("%w: check-in %s is outside the advance booking window", model.ErrOutOfWindow, req.Date)
		}
		open, err := e.schedules.OpenDates(ctx, req.TenantID, req.BranchID, nights, loc)
		if err != nil {
			return plan{}, err
		}
		for _, n := range nights {
			if !open[n] {
				return plan{}, fmt.Errorf("%w: branch is closed on %s", model.ErrOutOfWindow, n)
			}
		}
		if c.StartAt, err = model.At(req.Date, 0, loc); err != nil {
			return plan{}, err
		}
		if c.EndAt, err = model.At(req.CheckOutDate, 0, loc); err != nil {
			return plan{}, err
		}
		c.StartAt, c.EndAt = c.StartAt.UTC(), c.EndAt.UTC()
		c.CheckOutDate = req.CheckOutDate
		c.EndDate = req.CheckOutDate
		c.TotalNights = len(nights)
		p.lockDates = nights
		p.from, p.to = req.Date, req.CheckOutDate
	} else {
		window, open, err := e.schedules.Resolve(ctx, req.TenantID, req.BranchID, req.Date, loc)
		if err != nil {
			return plan{}, err
		}
		if !open {
			return plan{}, fmt.Errorf("%w: branch is closed on %s", model.ErrOutOfWindow, req.Date)
		}
		start, err := model.At(req.Date, startMinute, loc)
		if err != nil {
			return plan{}, err
		}
		// Early-morning starts belong to the tail of an overnight window.
		if start.Before(window.Open) && window.Overnight(loc) {
			if start, err = model.At(req.Date, startMinute+24*60, loc); err != nil {
				return plan{}, err
			}
		}
		duration := time.Duration(quote.DurationMinutes) * time.Minute
		if !availability.FitsWindow(window, start, duration, 0) {
			return plan{}, fmt.Errorf("%w: %s for %d minutes is outside business hours", model.ErrOutOfWindow, req.StartTime, quote.DurationMinutes)
		}
		if !bounds.StartAllowed(req.Date, start) {
			return plan{}, fmt.Errorf("%w: %s %s is outside the advance booking window", model.ErrOutOfWindow, req.Date, req.StartTime)
		}
		end := start.Add(duration)
		c.StartAt, c.EndAt = start.UTC(), end.UTC()
		c.StartTime = start.In(loc).Format(model.ClockLayout)
		c.EndTime = end.In(loc).Format(model.ClockLayout)
		touched := model.DatesTouched(start, end, loc)
		c.EndDate = touched[len(touched)-1]
		p.lockDates = model.DatesTouched(start, end.Add(settings.Buffer()), loc)
		p.from = model.AddDays(p.lockDates[0], -1)
		p.to = p.lockDates[len(p.lockDates)-1]
	}

	c.TotalPrice = pricing.Total(quote, c.TotalNights)
	c.DepositAmount = decimal.Zero
	if settings.RequireDeposit {
		c.DepositAmount = pricing.Deposit(c.TotalPrice, settings.DepositPercentage)
	}
	p.candidate = c
	return p, nil
}

// firstFree walks the pool in ascending order, locking each resource's dates in ascending
// order, and returns the first resource with no conflicting active booking.
func firstFree(ctx context.Context, tx CommitTx, p plan) (model.Resource, error) {
	buffer := p.tenant.Settings.Buffer()
	for _, r := range p.pool {
		for _, d := range p.lockDates {
			if err := tx.LockKey(ctx, ResourceLockKey(p.tenant.ID, r.Key(), d)); err != nil {
				return model.Resource{}, fmt.Errorf("lock resource: %w", err)
			}
		}
		existing, err := tx.ListActiveBookingsForResource(ctx, p.tenant.ID, r.Key(), p.from, p.to)
		if err != nil {
			return model.Resource{}, fmt.Errorf("list bookings for %s: %w", r.Key(), err)
		}
		candidate := p.candidate
		candidate.ResourceID = r.Key()
		candidate.Status = model.StatusPending
		free := true
		for _, b := range existing {
			if availability.Conflicting(candidate, b, buffer) {
				free = false
				break
			}
		}
		if free {
			return r, nil
		}
	}
	return model.Resource{}, fmt.Errorf("%w: no resource is free for %s", model.ErrSlotConflict, p.candidate.Date)
}

func requestFingerprint(req CommitRequest) string {
	c := req.Customer.Normalize()
	return model.Fingerprint(
		req.TenantID, req.BranchID, req.ServiceID, req.EmployeeID,
		req.Date, req.StartTime, req.CheckOutDate,
		c.CustomerID, c.Name, c.Phone, c.Email,
		strings.Join(req.OptionIDs, ","),
		strings.TrimSpace(req.Notes),
	)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		model.ErrValidation, model.ErrNotEligible, model.ErrOutOfWindow, model.ErrSlotConflict,
		model.ErrQuotaExceeded, model.ErrNotFound, model.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
