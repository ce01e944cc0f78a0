package engine

import (
	"context"
	"fmt"
	"time"

	otelx "github.com/md-rashed-zaman/bookwell/libs/otel"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/pricing"
)

// AvailabilityQuery selects one date (HOURLY) or an inclusive date range (DAILY).
// For DAILY, From defaults to Date and To defaults to From.
type AvailabilityQuery struct {
	TenantID   string
	BranchID   string
	ServiceID  string
	EmployeeID string
	Date       string
	From       string
	To         string
	OptionIDs  []string
}

type SlotView struct {
	Time      string
	Start     time.Time
	Available bool
}

type DateView struct {
	Date      string
	Available bool
}

type Availability struct {
	Mode            model.BookingMode
	Date            string
	DurationMinutes int
	Slots           []SlotView
	Dates           []DateView
}

// ListAvailability is the read path. It takes no locks and may be stale by commit time.
func (e *Engine) ListAvailability(ctx context.Context, q AvailabilityQuery) (out Availability, err error) {
	ctx, span := otelx.Start(ctx, tracerName, "engine.ListAvailability", q.TenantID)
	defer func() { otelx.End(span, err) }()

	if q.TenantID == "" || q.BranchID == "" || q.ServiceID == "" {
		return Availability{}, model.Validationf("tenant_id, branch_id and service_id are required")
	}
	tenant, loc, err := e.tenantContext(ctx, q.TenantID)
	if err != nil {
		return Availability{}, err
	}
	svc, err := e.loadTargets(ctx, q.TenantID, q.BranchID, q.ServiceID, q.EmployeeID)
	if err != nil {
		return Availability{}, err
	}
	quote, err := pricing.Resolve(svc, q.OptionIDs, false)
	if err != nil {
		return Availability{}, err
	}
	pool, err := e.matcher.Match(ctx, q.TenantID, q.BranchID, q.ServiceID, q.EmployeeID)
	if err != nil {
		return Availability{}, err
	}
	settings := tenant.Settings
	bounds := availability.NewBounds(e.now(), loc, settings.MinAdvanceHours, settings.MaxAdvanceDays)

	if settings.BookingMode == model.ModeDaily {
		return e.listNights(ctx, q, loc, bounds, pool, quote)
	}
	return e.listSlots(ctx, q, settings, loc, bounds, pool, quote)
}

func (e *Engine) listSlots(ctx context.Context, q AvailabilityQuery, settings model.TenantSettings, loc *time.Location, bounds availability.Bounds, pool []model.Resource, quote pricing.Quote) (Availability, error) {
	out := Availability{Mode: model.ModeHourly, Date: q.Date, DurationMinutes: quote.DurationMinutes, Slots: []SlotView{}}
	if _, err := model.ParseDate(q.Date); err != nil {
		return Availability{}, err
	}
	window, open, err := e.schedules.Resolve(ctx, q.TenantID, q.BranchID, q.Date, loc)
	if err != nil {
		return Availability{}, err
	}
	if !open {
		return out, nil
	}
	duration := time.Duration(quote.DurationMinutes) * time.Minute
	starts := availability.CandidateStarts(window, duration, e.cfg.Granularity, bounds)
	if len(starts) == 0 {
		return out, nil
	}

	// Neighbouring dates cover overnight windows and buffers spilling over midnight.
	last := model.LocalDate(window.Close, loc)
	busy, err := e.busyBookings(ctx, q.TenantID, pool, model.AddDays(q.Date, -1), model.AddDays(last, 1))
	if err != nil {
		return Availability{}, err
	}
	slots := availability.AnnotateSlots(starts, duration, settings.Buffer(), availability.BusyIntervals(busy), pool)
	for _, s := range slots {
		out.Slots = append(out.Slots, SlotView{
			Time:      s.Start.In(loc).Format(model.ClockLayout),
			Start:     s.Start.UTC(),
			Available: s.Available,
		})
	}
	return out, nil
}

func (e *Engine) listNights(ctx context.Context, q AvailabilityQuery, loc *time.Location, bounds availability.Bounds, pool []model.Resource, quote pricing.Quote) (Availability, error) {
	from, to := q.From, q.To
	if from == "" {
		from = q.Date
	}
	if to == "" {
		to = from
	}
	dates, err := model.DateRange(from, to)
	if err != nil {
		return Availability{}, err
	}
	if len(dates) > e.cfg.MaxRangeDays {
		return Availability{}, model.Validationf("range covers %d days, max is %d", len(dates), e.cfg.MaxRangeDays)
	}
	open, err := e.schedules.OpenDates(ctx, q.TenantID, q.BranchID, dates, loc)
	if err != nil {
		return Availability{}, err
	}
	busy, err := e.busyBookings(ctx, q.TenantID, pool, from, to)
	if err != nil {
		return Availability{}, err
	}
	flags := availability.AnnotateNights(dates, open, bounds, availability.BusyStays(busy), pool)
	out := Availability{Mode: model.ModeDaily, Date: from, DurationMinutes: quote.DurationMinutes, Dates: make([]DateView, 0, len(flags))}
	for _, f := range flags {
		out.Dates = append(out.Dates, DateView{Date: f.Date, Available: f.Available})
	}
	return out, nil
}

func (e *Engine) busyBookings(ctx context.Context, tenantID string, pool []model.Resource, from, to string) ([]model.Booking, error) {
	var all []model.Booking
	for _, r := range pool {
		bookings, err := e.store.ListActiveBookingsForResource(ctx, tenantID, r.Key(), from, to)
		if err != nil {
			return nil, fmt.Errorf("list bookings for %s: %w", r.Key(), err)
		}
		all = append(all, bookings...)
	}
	return all, nil
}
