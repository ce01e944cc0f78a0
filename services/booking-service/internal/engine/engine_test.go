package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/storage/embedded"
)

// Monday 2025-06-02 08:00 UTC. Bookings in the tests fall on the following week.
var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu        sync.Mutex
	committed []model.Booking
	changed   []model.Status
}

func (r *recordingNotifier) BookingCommitted(_ context.Context, b model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, b)
	return nil
}

func (r *recordingNotifier) BookingStatusChanged(_ context.Context, b model.Booking, from model.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, from, b.Status)
	return nil
}

type fixture struct {
	store    *embedded.Store
	eng      *engine.Engine
	notifier *recordingNotifier
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hourly() model.TenantSettings {
	return model.TenantSettings{Timezone: "UTC", BookingMode: model.ModeHourly}
}

func daily() model.TenantSettings {
	return model.TenantSettings{Timezone: "UTC", BookingMode: model.ModeDaily}
}

// newFixture seeds tenant t1 with branch b1 open 09:00-18:00 every day, service s1
// (30 minutes, 40.00) served by employee e1, and unlimited plan limits.
func newFixture(t *testing.T, settings model.TenantSettings) *fixture {
	t.Helper()
	ctx := context.Background()
	store, err := embedded.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(store.UpsertTenant(ctx, model.Tenant{ID: "t1", Settings: settings}))
	must(store.UpsertBranch(ctx, model.Branch{ID: "b1", TenantID: "t1", Name: "Main", IsMain: true}))
	for wd := 0; wd < 7; wd++ {
		must(store.SetSchedule(ctx, model.Schedule{BranchID: "b1", Weekday: wd, StartMinute: 9 * 60, EndMinute: 18 * 60, IsActive: true}))
	}
	must(store.UpsertService(ctx, model.Service{ID: "s1", TenantID: "t1", Name: "Cut", Price: decimal.RequireFromString("40"), DurationMinutes: 30}))
	must(store.UpsertEmployee(ctx, model.Employee{ID: "e1", TenantID: "t1", Name: "Ann"}))
	must(store.AssignEmployee(ctx, model.BranchAssignment{BranchID: "b1", EmployeeID: "e1", IsActive: true}))
	must(store.AssignService(ctx, "e1", "s1"))
	must(store.UpsertPlanLimits(ctx, quota.PlanLimits{TenantID: "t1", Tier: "enterprise"}))

	notifier := &recordingNotifier{}
	eng := engine.New(store, customers.NewLocal(store, discard()), notifier, discard(), engine.Config{})
	eng.SetClock(func() time.Time { return testNow })
	return &fixture{store: store, eng: eng, notifier: notifier}
}

func (f *fixture) book(t *testing.T, date, start string) (model.Booking, error) {
	t.Helper()
	res, err := f.eng.Commit(context.Background(), engine.CommitRequest{
		TenantID:  "t1",
		BranchID:  "b1",
		ServiceID: "s1",
		Date:      date,
		StartTime: start,
	})
	return res.Booking, err
}

func (f *fixture) slots(t *testing.T, date string) map[string]bool {
	t.Helper()
	av, err := f.eng.ListAvailability(context.Background(), engine.AvailabilityQuery{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: date,
	})
	if err != nil {
		t.Fatalf("list availability: %v", err)
	}
	out := make(map[string]bool, len(av.Slots))
	for _, s := range av.Slots {
		out[s.Time] = s.Available
	}
	return out
}

func (f *fixture) assertNoOverlaps(t *testing.T, buffer time.Duration) {
	t.Helper()
	all, err := f.store.ListAllActiveBookings(context.Background(), "t1")
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if v := availability.ScanOverlaps(all, buffer); len(v) != 0 {
		t.Fatalf("double booking found: %+v", v)
	}
}

func TestHourly_ExistingBookingBlocksItsSlot(t *testing.T) {
	f := newFixture(t, hourly())
	b, err := f.book(t, "2025-06-09", "10:00")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Status != model.StatusConfirmed || b.ResourceID != "employee:e1" || b.EndTime != "10:30" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if !b.TotalPrice.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("unexpected price %s", b.TotalPrice)
	}

	slots := f.slots(t, "2025-06-09")
	if slots["10:00"] {
		t.Fatalf("10:00 must be unavailable")
	}
	if !slots["09:30"] || !slots["10:30"] {
		t.Fatalf("09:30 and 10:30 must be available: %v", slots)
	}
	if _, ok := slots["17:45"]; ok {
		t.Fatalf("17:45 does not fit before close")
	}

	if _, err := f.book(t, "2025-06-09", "10:15"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "10:30"); err != nil {
		t.Fatalf("back-to-back booking: %v", err)
	}
	f.assertNoOverlaps(t, 0)
}

func TestHourly_BufferSeparatesBookings(t *testing.T) {
	settings := hourly()
	settings.BufferMinutes = 15
	f := newFixture(t, settings)

	if _, err := f.book(t, "2025-06-09", "10:00"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "10:30"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict inside buffer, got %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "09:15"); err != nil {
		t.Fatalf("09:15 ends exactly one buffer before 10:00: %v", err)
	}
	slots := f.slots(t, "2025-06-09")
	if slots["10:30"] || !slots["10:45"] {
		t.Fatalf("unexpected buffered slots: %v", slots)
	}
	f.assertNoOverlaps(t, settings.Buffer())
}

func TestDaily_NightsOverlap(t *testing.T) {
	f := newFixture(t, daily())
	ctx := context.Background()
	commit := func(in, out string) (engine.CommitResult, error) {
		return f.eng.Commit(ctx, engine.CommitRequest{
			TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: in, CheckOutDate: out,
		})
	}

	res, err := commit("2025-06-10", "2025-06-13")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Booking.TotalNights != 3 || !res.Booking.TotalPrice.Equal(decimal.RequireFromString("120")) {
		t.Fatalf("unexpected stay %+v", res.Booking)
	}
	if _, err := commit("2025-06-12", "2025-06-14"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict on the night of the 12th, got %v", err)
	}
	if _, err := commit("2025-06-13", "2025-06-15"); err != nil {
		t.Fatalf("back-to-back stay: %v", err)
	}

	av, err := f.eng.ListAvailability(ctx, engine.AvailabilityQuery{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", From: "2025-06-09", To: "2025-06-16",
	})
	if err != nil {
		t.Fatalf("list availability: %v", err)
	}
	want := map[string]bool{
		"2025-06-09": true, "2025-06-10": false, "2025-06-11": false, "2025-06-12": false,
		"2025-06-13": false, "2025-06-14": false, "2025-06-15": true, "2025-06-16": true,
	}
	if len(av.Dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(av.Dates))
	}
	for _, d := range av.Dates {
		if d.Available != want[d.Date] {
			t.Fatalf("date %s: available=%v want %v", d.Date, d.Available, want[d.Date])
		}
	}
	f.assertNoOverlaps(t, 0)
}

func TestDaily_ClosedNightRejected(t *testing.T) {
	f := newFixture(t, daily())
	if err := f.store.BlockDate(context.Background(), model.BlockedDate{BranchID: "b1", Date: "2025-06-11", Reason: "holiday"}); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err := f.eng.Commit(context.Background(), engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-10", CheckOutDate: "2025-06-12",
	})
	if !errors.Is(err, model.ErrOutOfWindow) {
		t.Fatalf("expected out of window, got %v", err)
	}
}

func TestCommit_RequiredVariationMissing(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	err := f.store.UpsertService(ctx, model.Service{
		ID: "s2", TenantID: "t1", Name: "Colour", Price: decimal.RequireFromString("50"), DurationMinutes: 60,
		Groups: []model.VariationGroup{{
			ID: "g1", Name: "Length", SelectionType: model.SelectionSingle, Required: true,
			Options: []model.VariationOption{
				{ID: "o1", Name: "Short", PricingType: model.PricingRelative},
				{ID: "o2", Name: "Long", PriceModifier: decimal.RequireFromString("20"), PricingType: model.PricingRelative, DurationModifierMinutes: 30, Position: 1},
			},
		}},
	})
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	if err := f.store.AssignService(ctx, "e1", "s2"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err = f.eng.Commit(ctx, engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s2", Date: "2025-06-09", StartTime: "10:00",
		Customer: model.CustomerIdentity{Name: "Ada", Phone: "+15550100"},
	})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	bookings, _ := f.eng.ListBookings(ctx, "t1", 0)
	if len(bookings) != 0 {
		t.Fatalf("no booking may be written")
	}

	res, err := f.eng.Commit(ctx, engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s2", Date: "2025-06-09", StartTime: "10:00",
		OptionIDs: []string{"o2"},
	})
	if err != nil {
		t.Fatalf("commit with selection: %v", err)
	}
	if res.Booking.EndTime != "11:30" || !res.Booking.TotalPrice.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("variation not applied: %+v", res.Booking)
	}
}

func TestCommit_MonthlyQuota(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	if err := f.store.UpsertPlanLimits(ctx, quota.PlanLimits{TenantID: "t1", Tier: "free", MaxBookingsMonth: 30}); err != nil {
		t.Fatalf("limits: %v", err)
	}
	for i := 0; i < 30; i++ {
		date := "2025-06-09"
		if i >= 18 {
			date = "2025-06-10"
		}
		start := model.FormatClock(9*60 + (i%18)*30)
		if _, err := f.book(t, date, start); err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}
	if _, err := f.book(t, "2025-06-11", "09:00"); !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	bookings, err := f.eng.ListBookings(ctx, "t1", 200)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bookings) != 30 {
		t.Fatalf("expected 30 bookings, got %d", len(bookings))
	}

	// cancelled bookings free their quota
	if _, err := f.eng.Transition(ctx, engine.TransitionRequest{TenantID: "t1", BookingID: bookings[0].ID, To: model.StatusCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.book(t, "2025-06-11", "09:00"); err != nil {
		t.Fatalf("booking after cancel: %v", err)
	}
}

func TestClosedAndBlockedDates(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	if err := f.store.BlockDate(ctx, model.BlockedDate{BranchID: "b1", Date: "2025-06-11"}); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := f.store.SetSchedule(ctx, model.Schedule{BranchID: "b1", Weekday: int(time.Sunday), StartMinute: 540, EndMinute: 1080, IsActive: false}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	for _, date := range []string{"2025-06-11", "2025-06-15"} {
		if s := f.slots(t, date); len(s) != 0 {
			t.Fatalf("%s must have no slots, got %v", date, s)
		}
		if _, err := f.book(t, date, "10:00"); !errors.Is(err, model.ErrOutOfWindow) {
			t.Fatalf("%s: expected out of window, got %v", date, err)
		}
	}
	if _, err := f.book(t, "2025-06-09", "17:45"); !errors.Is(err, model.ErrOutOfWindow) {
		t.Fatalf("expected out of window past close, got %v", err)
	}
	if _, err := f.book(t, "2025-06-01", "10:00"); !errors.Is(err, model.ErrOutOfWindow) {
		t.Fatalf("expected out of window in the past, got %v", err)
	}
}

func TestAdvanceBounds(t *testing.T) {
	settings := hourly()
	settings.MinAdvanceHours = 3
	settings.MaxAdvanceDays = 10
	f := newFixture(t, settings)

	today := f.slots(t, "2025-06-02")
	if today["10:45"] || !today["11:00"] {
		t.Fatalf("earliest start is 11:00 today: %v", today)
	}
	if s := f.slots(t, "2025-06-13"); len(s) != 0 {
		t.Fatalf("dates past the horizon must be empty")
	}
	if _, err := f.book(t, "2025-06-13", "10:00"); !errors.Is(err, model.ErrOutOfWindow) {
		t.Fatalf("expected out of window past horizon, got %v", err)
	}
	if _, err := f.book(t, "2025-06-12", "10:00"); err != nil {
		t.Fatalf("last allowed date: %v", err)
	}
}

func TestListAvailability_IsIdempotent(t *testing.T) {
	f := newFixture(t, hourly())
	if _, err := f.book(t, "2025-06-09", "12:00"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	q := engine.AvailabilityQuery{TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09"}
	a, err := f.eng.ListAvailability(context.Background(), q)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	b, err := f.eng.ListAvailability(context.Background(), q)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated reads differ")
	}
}

func TestCommit_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t, hourly())
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.book(t, "2025-06-09", "14:00")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrSlotConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one success, got %d", ok)
	}
	f.assertNoOverlaps(t, 0)
}

func TestCommit_PoolFallsThroughToNextEmployee(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	if err := f.store.UpsertEmployee(ctx, model.Employee{ID: "e2", TenantID: "t1", Name: "Bo"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.store.AssignEmployee(ctx, model.BranchAssignment{BranchID: "b1", EmployeeID: "e2", IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.store.AssignService(ctx, "e2", "s1"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := f.book(t, "2025-06-09", "10:00")
	if err != nil || first.EmployeeID != "e1" {
		t.Fatalf("first booking: %+v %v", first, err)
	}
	second, err := f.book(t, "2025-06-09", "10:00")
	if err != nil || second.EmployeeID != "e2" {
		t.Fatalf("second booking: %+v %v", second, err)
	}
	if !f.slots(t, "2025-06-09")["10:30"] || f.slots(t, "2025-06-09")["10:00"] {
		t.Fatalf("10:00 is full once both employees are booked")
	}
	if _, err := f.book(t, "2025-06-09", "10:00"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = f.eng.Commit(ctx, engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", EmployeeID: "e9", Date: "2025-06-09", StartTime: "11:00",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for unknown employee, got %v", err)
	}
}

func TestCommit_BranchResourceWithoutEmployees(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	if err := f.store.UpsertService(ctx, model.Service{ID: "s3", TenantID: "t1", Name: "Room", Price: decimal.RequireFromString("10"), DurationMinutes: 60}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := f.eng.Commit(ctx, engine.CommitRequest{TenantID: "t1", BranchID: "b1", ServiceID: "s3", Date: "2025-06-09", StartTime: "09:00"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Booking.ResourceID != "branch:b1" || res.Booking.EmployeeID != "" {
		t.Fatalf("expected branch resource, got %+v", res.Booking)
	}
	_, err = f.eng.Commit(ctx, engine.CommitRequest{TenantID: "t1", BranchID: "b1", ServiceID: "s3", EmployeeID: "e1", Date: "2025-06-09", StartTime: "11:00"})
	if !errors.Is(err, model.ErrNotEligible) {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestCommit_IdempotencyKey(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	req := engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09", StartTime: "10:00",
		Customer:       model.CustomerIdentity{Name: "Ada", Phone: "+15550100"},
		IdempotencyKey: "key-1",
	}
	first, err := f.eng.Commit(ctx, req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	again, err := f.eng.Commit(ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Booking.ID != first.Booking.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Booking.ID, again)
	}

	req.StartTime = "11:00"
	_, err = f.eng.Commit(ctx, req)
	if !errors.Is(err, model.ErrIdempotencyMismatch) || !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected idempotency mismatch, got %v", err)
	}
	bookings, _ := f.eng.ListBookings(ctx, "t1", 0)
	if len(bookings) != 1 {
		t.Fatalf("expected one booking, got %d", len(bookings))
	}
}

func TestCommit_ReplayAfterWindowCloses(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	req := engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09", StartTime: "10:00",
		IdempotencyKey: "late-retry",
	}
	first, err := f.eng.Commit(ctx, req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	f.eng.SetClock(func() time.Time { return time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC) })
	again, err := f.eng.Commit(ctx, req)
	if err != nil {
		t.Fatalf("retry after the start time: %v", err)
	}
	if !again.Replayed || again.Booking.ID != first.Booking.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Booking.ID, again)
	}

	req.StartTime = "11:00"
	if _, err := f.eng.Commit(ctx, req); !errors.Is(err, model.ErrIdempotencyMismatch) {
		t.Fatalf("expected idempotency mismatch, got %v", err)
	}
}

func TestCommit_FailedCommitCreatesNoCustomer(t *testing.T) {
	f := newFixture(t, hourly())
	ctx := context.Background()
	if _, err := f.book(t, "2025-06-09", "10:00"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_, err := f.eng.Commit(ctx, engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09", StartTime: "10:00",
		Customer: model.CustomerIdentity{Name: "Bo", Phone: "+15550001"},
	})
	if !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	found := true
	err = f.store.WithinCustomers(ctx, func(tx customers.Tx) error {
		_, ok, err := tx.FindCustomerByPhone(ctx, "t1", "+15550001")
		found = ok
		return err
	})
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if found {
		t.Fatalf("a rejected commit must not leave its customer behind")
	}

	res, err := f.eng.Commit(ctx, engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09", StartTime: "11:00",
		Customer: model.CustomerIdentity{Name: "Bo", Phone: "+15550001"},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Booking.CustomerID == "" {
		t.Fatalf("booking must reference the new customer")
	}
}

// overnight opens b1 from 20:00 until 02:00 the next morning on every weekday.
func overnight(t *testing.T, f *fixture) {
	t.Helper()
	for wd := 0; wd < 7; wd++ {
		s := model.Schedule{BranchID: "b1", Weekday: wd, StartMinute: 20 * 60, EndMinute: 2 * 60, IsActive: true}
		if err := f.store.SetSchedule(context.Background(), s); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
}

func TestHourly_OvernightWindow(t *testing.T) {
	f := newFixture(t, hourly())
	overnight(t, f)

	b, err := f.book(t, "2025-06-09", "01:00")
	if err != nil {
		t.Fatalf("commit after midnight: %v", err)
	}
	if want := time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC); !b.StartAt.Equal(want) || b.Date != "2025-06-09" {
		t.Fatalf("expected start %s on 2025-06-09, got %s on %s", want, b.StartAt, b.Date)
	}
	slots := f.slots(t, "2025-06-09")
	if slots["01:00"] || slots["00:45"] || !slots["00:30"] || !slots["20:00"] {
		t.Fatalf("unexpected overnight slots: %v", slots)
	}
	if _, err := f.book(t, "2025-06-09", "00:45"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict with the 01:00 booking, got %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "00:30"); err != nil {
		t.Fatalf("00:30 ends as the 01:00 booking starts: %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "02:00"); !errors.Is(err, model.ErrOutOfWindow) {
		t.Fatalf("expected out of window at close, got %v", err)
	}
	f.assertNoOverlaps(t, 0)
}

func TestHourly_OvernightBufferCrossesMidnight(t *testing.T) {
	settings := hourly()
	settings.BufferMinutes = 45
	f := newFixture(t, settings)
	overnight(t, f)

	if _, err := f.book(t, "2025-06-09", "23:00"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	slots := f.slots(t, "2025-06-09")
	if slots["00:00"] || !slots["00:15"] {
		t.Fatalf("buffer must carry past midnight: %v", slots)
	}
	if _, err := f.book(t, "2025-06-09", "00:00"); !errors.Is(err, model.ErrSlotConflict) {
		t.Fatalf("expected conflict inside buffer, got %v", err)
	}
	if _, err := f.book(t, "2025-06-09", "00:15"); err != nil {
		t.Fatalf("00:15 starts exactly one buffer after 23:30: %v", err)
	}
	f.assertNoOverlaps(t, settings.Buffer())
}

func TestTransition_DepositLifecycle(t *testing.T) {
	settings := hourly()
	settings.RequireDeposit = true
	settings.DepositPercentage = decimal.RequireFromString("25")
	settings.CancellationHoursLimit = 24
	f := newFixture(t, settings)
	ctx := context.Background()

	b, err := f.book(t, "2025-06-09", "10:00")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Status != model.StatusPending || !b.DepositAmount.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected booking %+v", b)
	}
	if f.slots(t, "2025-06-09")["10:00"] {
		t.Fatalf("pending bookings hold their slot")
	}

	move := func(to model.Status) (model.Booking, error) {
		return f.eng.Transition(ctx, engine.TransitionRequest{TenantID: "t1", BookingID: b.ID, To: to, Reason: "test"})
	}
	if got, err := move(model.StatusConfirmed); err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("confirm: %+v %v", got, err)
	}
	if got, err := move(model.StatusConfirmed); err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("repeat confirm must be a no-op: %v", err)
	}

	f.eng.SetClock(func() time.Time { return time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC) })
	if _, err := move(model.StatusCancelled); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected cancellation window to be closed, got %v", err)
	}
	f.eng.SetClock(func() time.Time { return testNow })
	got, err := move(model.StatusCancelled)
	if err != nil || got.CancelledAt == nil || got.CancelReason != "test" {
		t.Fatalf("cancel: %+v %v", got, err)
	}
	if _, err := move(model.StatusCompleted); !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("terminal states are final, got %v", err)
	}
	if !f.slots(t, "2025-06-09")["10:00"] {
		t.Fatalf("cancelled bookings release their slot")
	}

	f.eng.Wait()
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.committed) != 1 || len(f.notifier.changed) != 4 {
		t.Fatalf("unexpected notifications: committed=%d changed=%v", len(f.notifier.committed), f.notifier.changed)
	}
}

func TestCommit_WritesOutboxEvent(t *testing.T) {
	f := newFixture(t, hourly())
	eng := engine.New(f.store, customers.NewLocal(f.store, discard()), outbox.NewNotifier(f.store), discard(), engine.Config{})
	eng.SetClock(func() time.Time { return testNow })

	res, err := eng.Commit(context.Background(), engine.CommitRequest{
		TenantID: "t1", BranchID: "b1", ServiceID: "s1", Date: "2025-06-09", StartTime: "10:00",
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	eng.Wait()

	var got []outbox.Record
	n, err := f.store.DrainOutbox(context.Background(), 10, func(records []outbox.Record) error {
		got = records
		return nil
	})
	if err != nil || n != 1 {
		t.Fatalf("drain: n=%d err=%v", n, err)
	}
	if got[0].EventType != outbox.EventBookingCommitted || got[0].AggregateID != res.Booking.ID {
		t.Fatalf("unexpected record %+v", got[0])
	}
	if n, _ := f.store.DrainOutbox(context.Background(), 10, func([]outbox.Record) error { return nil }); n != 0 {
		t.Fatalf("published records must not be drained twice")
	}
}
