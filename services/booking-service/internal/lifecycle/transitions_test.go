package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from  model.Status
		to    model.Status
		valid bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusPending, model.StatusNoShow, false},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusNoShow, true},
		{model.StatusConfirmed, model.StatusPending, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusNoShow, model.StatusConfirmed, false},
	}
	for _, tt := range cases {
		if got := ValidTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	if InitialStatus(model.TenantSettings{}) != model.StatusConfirmed {
		t.Fatal("expected CONFIRMED without deposit")
	}
	if InitialStatus(model.TenantSettings{RequireDeposit: true}) != model.StatusPending {
		t.Fatal("expected PENDING with deposit")
	}
}

func TestApply_CancellationWindow(t *testing.T) {
	start := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	b := model.Booking{ID: "b1", Status: model.StatusConfirmed, StartAt: start}
	settings := model.TenantSettings{CancellationHoursLimit: 24}

	_, _, err := Apply(b, model.StatusCancelled, settings, start.Add(-23*time.Hour), "late")
	if !errors.Is(err, model.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition inside the window, got %v", err)
	}

	got, changed, err := Apply(b, model.StatusCancelled, settings, start.Add(-24*time.Hour), "plans changed")
	if err != nil || !changed {
		t.Fatalf("expected cancellation at the deadline, got %v %v", changed, err)
	}
	if got.CancelledAt == nil || got.CancelReason != "plans changed" {
		t.Fatalf("cancellation fields not set: %+v", got)
	}

	pending := model.Booking{ID: "b2", Status: model.StatusPending, StartAt: start}
	if _, _, err := Apply(pending, model.StatusCancelled, settings, start.Add(-time.Hour), ""); err != nil {
		t.Fatalf("pending bookings cancel freely: %v", err)
	}

	if _, _, err := Apply(b, model.StatusCancelled, model.TenantSettings{}, start.Add(time.Hour), ""); err != nil {
		t.Fatalf("no limit configured: %v", err)
	}
}

func TestApply_SameStatusIsNoop(t *testing.T) {
	b := model.Booking{Status: model.StatusCompleted}
	got, changed, err := Apply(b, model.StatusCompleted, model.TenantSettings{}, time.Now(), "")
	if err != nil || changed || got.Status != model.StatusCompleted {
		t.Fatalf("expected no-op, got %v %v %v", got.Status, changed, err)
	}
}
