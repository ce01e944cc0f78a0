package fixtures

import (
	"context"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/storage/embedded"
)

const doc = `{
  "tenants": [{"id": "t1", "timezone": "UTC", "booking_mode": "HOURLY", "require_deposit": true, "deposit_percentage": "20"}],
  "branches": [{"id": "b1", "tenant_id": "t1", "name": "Main", "is_main": true,
    "hours": [{"weekday": 1, "open": "09:00", "close": "18:00"}, {"weekday": 0, "open": "00:00", "close": "00:00", "closed": true}],
    "blocked_dates": [{"date": "2025-12-25", "reason": "holiday"}]}],
  "services": [{"id": "s1", "tenant_id": "t1", "name": "Cut", "price": "40.00", "duration_minutes": 30,
    "groups": [{"id": "g1", "name": "Length", "selection_type": "single",
      "options": [{"id": "o1", "name": "Short"}, {"id": "o2", "name": "Long", "price_modifier": 10, "duration_modifier_minutes": 15}]}]}],
  "employees": [{"id": "e1", "tenant_id": "t1", "name": "Ann", "branches": ["b1"], "services": ["s1"]}],
  "plan_limits": [{"tenant_id": "t1", "tier": "pro", "max_bookings_month": 5}]
}`

func TestLoad(t *testing.T) {
	s, err := embedded.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Load(ctx, strings.NewReader(doc), s); err != nil {
			t.Fatalf("load #%d: %v", i+1, err)
		}
	}

	tenant, err := s.GetTenant(ctx, "t1")
	if err != nil || !tenant.Settings.RequireDeposit || tenant.Settings.DepositPercentage.String() != "20" {
		t.Fatalf("tenant = %+v, %v", tenant, err)
	}
	sch, ok, err := s.GetSchedule(ctx, "t1", "b1", 1)
	if err != nil || !ok || sch.StartMinute != 540 || sch.EndMinute != 1080 {
		t.Fatalf("schedule = %+v ok=%v err=%v", sch, ok, err)
	}
	if sun, ok, _ := s.GetSchedule(ctx, "t1", "b1", 0); !ok || sun.IsActive {
		t.Fatalf("sunday should be stored inactive, got %+v", sun)
	}
	if blocked, _ := s.IsBlocked(ctx, "t1", "b1", "2025-12-25"); !blocked {
		t.Fatal("expected blocked date")
	}
	svc, err := s.GetServiceWithVariations(ctx, "t1", "s1")
	if err != nil || len(svc.Groups) != 1 || len(svc.Groups[0].Options) != 2 || svc.Groups[0].Options[1].DurationModifierMinutes != 15 {
		t.Fatalf("service = %+v, %v", svc, err)
	}
	ids, err := s.ListEligibleEmployees(ctx, "t1", "b1", "s1")
	if err != nil || len(ids) != 1 {
		t.Fatalf("eligible = %v, %v", ids, err)
	}
}

func TestLoad_RejectsInvalidDocument(t *testing.T) {
	s, err := embedded.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	bad := `{"branches": [{"id": "b1", "tenant_id": "t1", "hours": [{"weekday": 9, "open": "9am", "close": "18:00"}]}]}`
	if err := Load(context.Background(), strings.NewReader(bad), s); err == nil {
		t.Fatal("expected validation error")
	}
}
