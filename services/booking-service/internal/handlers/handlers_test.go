package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type fakeEngine struct {
	listAvailability func(engine.AvailabilityQuery) (engine.Availability, error)
	commit           func(engine.CommitRequest) (engine.CommitResult, error)
	transition       func(engine.TransitionRequest) (model.Booking, error)
	listBookings     func(string, int) ([]model.Booking, error)
}

func (f *fakeEngine) ListAvailability(_ context.Context, q engine.AvailabilityQuery) (engine.Availability, error) {
	return f.listAvailability(q)
}

func (f *fakeEngine) Commit(_ context.Context, req engine.CommitRequest) (engine.CommitResult, error) {
	return f.commit(req)
}

func (f *fakeEngine) Transition(_ context.Context, req engine.TransitionRequest) (model.Booking, error) {
	return f.transition(req)
}

func (f *fakeEngine) ListBookings(_ context.Context, tenantID string, limit int) ([]model.Booking, error) {
	return f.listBookings(tenantID, limit)
}

func (f *fakeEngine) GetBooking(_ context.Context, tenantID, bookingID string) (model.Booking, error) {
	return model.Booking{}, model.NotFoundf("booking %s", bookingID)
}

type fakeAdmin struct {
	setMain func(tenantID, branchID string) error
	cleanup func(tenantID, branchID string) (admin.CleanupResult, error)
}

func (f *fakeAdmin) SetMainBranch(_ context.Context, tenantID, branchID string) error {
	return f.setMain(tenantID, branchID)
}

func (f *fakeAdmin) AssignEmployeesToBranch(context.Context, string, string, []string, bool) error {
	return nil
}

func (f *fakeAdmin) AssignServicesToEmployee(context.Context, string, string, []string) error {
	return nil
}

func (f *fakeAdmin) CleanupBranch(_ context.Context, tenantID, branchID string) (admin.CleanupResult, error) {
	return f.cleanup(tenantID, branchID)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(e Engine, a Admin) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, NewBookingHandler(e, discard()), NewAdminHandler(a, discard()), nil)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(httpx.TenantHeader, "t1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAvailability_PassesQueryAndRendersSlots(t *testing.T) {
	var got engine.AvailabilityQuery
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	e := &fakeEngine{listAvailability: func(q engine.AvailabilityQuery) (engine.Availability, error) {
		got = q
		return engine.Availability{
			Mode: model.ModeHourly, Date: q.Date, DurationMinutes: 30,
			Slots: []engine.SlotView{{Time: "09:00", Start: start, Available: true}, {Time: "09:15", Start: start.Add(15 * time.Minute)}},
		}, nil
	}}
	rec := do(t, newMux(e, nil), http.MethodGet, "/api/v1/availability?branch_id=b1&service_id=s1&date=2025-06-10&option_ids=o1,+o2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got.TenantID != "t1" || got.BranchID != "b1" || len(got.OptionIDs) != 2 || got.OptionIDs[1] != "o2" {
		t.Fatalf("unexpected query %+v", got)
	}
	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 2 || !resp.Slots[0].Available || resp.Slots[1].Available || resp.Slots[0].StartAt != "2025-06-10T09:00:00Z" {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}
}

func TestAvailability_ClosedDateRendersEmptyList(t *testing.T) {
	e := &fakeEngine{listAvailability: func(q engine.AvailabilityQuery) (engine.Availability, error) {
		return engine.Availability{Mode: model.ModeHourly, Date: q.Date, DurationMinutes: 30}, nil
	}}
	rec := do(t, newMux(e, nil), http.MethodGet, "/api/v1/availability?branch_id=b1&service_id=s1&date=2025-06-15", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := string(raw["slots"]); got != "[]" {
		t.Fatalf("closed date must render an empty slot list, got %q in %s", got, rec.Body.String())
	}
}

func TestAvailability_ValidatesInput(t *testing.T) {
	e := &fakeEngine{listAvailability: func(engine.AvailabilityQuery) (engine.Availability, error) {
		t.Fatal("engine must not be called")
		return engine.Availability{}, nil
	}}
	rec := do(t, newMux(e, nil), http.MethodGet, "/api/v1/availability?branch_id=b1&service_id=s1&date=10-06-2025", "", nil)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "validation_error" {
		t.Fatalf("expected validation error, got %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?branch_id=b1&service_id=s1", nil)
	rr := httptest.NewRecorder()
	newMux(e, nil).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing tenant header must be rejected, got %d", rr.Code)
	}
}

func TestCreateBooking_MapsErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: taken", model.ErrSlotConflict), http.StatusConflict, "slot_conflict"},
		{fmt.Errorf("%w: limit", model.ErrQuotaExceeded), http.StatusPaymentRequired, "quota_exceeded"},
		{fmt.Errorf("%w: closed", model.ErrOutOfWindow), http.StatusUnprocessableEntity, "out_of_window"},
		{fmt.Errorf("%w: e1", model.ErrNotEligible), http.StatusUnprocessableEntity, "not_eligible"},
		{model.NotFoundf("service s1"), http.StatusNotFound, "not_found"},
		{model.ErrIdempotencyMismatch, http.StatusBadRequest, "idempotency_mismatch"},
		{errors.New("db down"), http.StatusInternalServerError, "internal"},
	}
	body := `{"branch_id":"b1","service_id":"s1","date":"2025-06-10","start_time":"10:00"}`
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			e := &fakeEngine{commit: func(engine.CommitRequest) (engine.CommitResult, error) {
				return engine.CommitResult{}, tc.err
			}}
			rec := do(t, newMux(e, nil), http.MethodPost, "/api/v1/bookings", body, nil)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if got := decodeError(t, rec); got.Code != tc.kind {
				t.Fatalf("kind = %q, want %q", got.Code, tc.kind)
			}
		})
	}
}

func TestCreateBooking_Success(t *testing.T) {
	var got engine.CommitRequest
	e := &fakeEngine{commit: func(req engine.CommitRequest) (engine.CommitResult, error) {
		got = req
		return engine.CommitResult{Booking: model.Booking{
			ID: "bk1", TenantID: req.TenantID, Status: model.StatusConfirmed, Mode: model.ModeHourly,
			Date: req.Date, StartTime: req.StartTime, TotalPrice: decimal.RequireFromString("40"),
		}}, nil
	}}
	body := `{"branch_id":"b1","service_id":"s1","date":"2025-06-10","start_time":"10:00",
		"customer":{"name":"Ann","phone":"+1 555 0100"},"option_ids":["o1"]}`
	rec := do(t, newMux(e, nil), http.MethodPost, "/api/v1/bookings", body, map[string]string{IdempotencyHeader: "k1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got.IdempotencyKey != "k1" || got.Customer.Phone != "+1 555 0100" || len(got.OptionIDs) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
	var item bookingItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.ID != "bk1" || item.TotalPrice != "40.00" || item.Status != "CONFIRMED" {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestCreateBooking_ReplayReturnsOK(t *testing.T) {
	e := &fakeEngine{commit: func(engine.CommitRequest) (engine.CommitResult, error) {
		return engine.CommitResult{Booking: model.Booking{ID: "bk1"}, Replayed: true}, nil
	}}
	body := `{"branch_id":"b1","service_id":"s1","date":"2025-06-10","start_time":"10:00"}`
	rec := do(t, newMux(e, nil), http.MethodPost, "/api/v1/bookings", body, map[string]string{IdempotencyHeader: "k1"})
	if rec.Code != http.StatusOK || rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay, got %d %v", rec.Code, rec.Header())
	}
}

func TestCreateBooking_RejectsBadBodies(t *testing.T) {
	e := &fakeEngine{commit: func(engine.CommitRequest) (engine.CommitResult, error) {
		t.Fatal("engine must not be called")
		return engine.CommitResult{}, nil
	}}
	bodies := []string{
		`not json`,
		`{"service_id":"s1","date":"2025-06-10"}`,
		`{"branch_id":"b1","service_id":"s1","date":"2025-06-10","start_time":"25:00"}`,
		`{"branch_id":"b1","service_id":"s1","date":"2025-06-10","customer":{"email":"nope"}}`,
	}
	for _, body := range bodies {
		rec := do(t, newMux(e, nil), http.MethodPost, "/api/v1/bookings", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestListBookings_ClampsLimit(t *testing.T) {
	var gotLimit int
	e := &fakeEngine{listBookings: func(_ string, limit int) ([]model.Booking, error) {
		gotLimit = limit
		return []model.Booking{{ID: "bk1"}}, nil
	}}
	rec := do(t, newMux(e, nil), http.MethodGet, "/api/v1/bookings?limit=5000", "", nil)
	if rec.Code != http.StatusOK || gotLimit != 50 {
		t.Fatalf("status=%d limit=%d", rec.Code, gotLimit)
	}
	rec = do(t, newMux(e, nil), http.MethodGet, "/api/v1/bookings?id=missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTransition(t *testing.T) {
	e := &fakeEngine{transition: func(req engine.TransitionRequest) (model.Booking, error) {
		if req.To == model.StatusCompleted {
			return model.Booking{}, fmt.Errorf("%w: PENDING -> COMPLETED", model.ErrInvalidTransition)
		}
		return model.Booking{ID: req.BookingID, Status: req.To, CancelReason: req.Reason}, nil
	}}
	mux := newMux(e, nil)

	rec := do(t, mux, http.MethodPost, "/api/v1/bookings/transition", `{"booking_id":"bk1","status":"cancelled","reason":"sick"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodPost, "/api/v1/bookings/transition", `{"booking_id":"bk1","status":"COMPLETED"}`, nil)
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != "invalid_transition" {
		t.Fatalf("expected invalid transition, got %d", rec.Code)
	}
	rec = do(t, mux, http.MethodPost, "/api/v1/bookings/transition", `{"booking_id":"bk1","status":"ARCHIVED"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status must be rejected, got %d", rec.Code)
	}
}

func TestAdmin_MainBranchAndCleanup(t *testing.T) {
	a := &fakeAdmin{
		setMain: func(tenantID, branchID string) error {
			if branchID == "nope" {
				return model.NotFoundf("branch %s", branchID)
			}
			return nil
		},
		cleanup: func(string, string) (admin.CleanupResult, error) {
			return admin.CleanupResult{}, model.Validationf("branch b1 still has 2 active bookings")
		},
	}
	mux := newMux(nil, a)

	if rec := do(t, mux, http.MethodPost, "/api/v1/admin/main-branch", `{"branch_id":"b2"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("set main: %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/v1/admin/main-branch", `{"branch_id":"nope"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/v1/admin/branch-cleanup", `{"branch_id":"b1"}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected refusal, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/v1/admin/branch-employees", `{"branch_id":"b1","employee_ids":[]}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty employee list must be rejected, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/v1/admin/main-branch", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
