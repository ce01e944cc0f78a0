package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 6, 10, h, m, 0, 0, time.UTC) }
	a := Interval{Start: at(10, 0), End: at(10, 30)}
	cases := []struct {
		name   string
		b      Interval
		buffer time.Duration
		want   bool
	}{
		{"identical", a, 0, true},
		{"adjacent after", Interval{at(10, 30), at(11, 0)}, 0, false},
		{"adjacent before", Interval{at(9, 30), at(10, 0)}, 0, false},
		{"adjacent within buffer", Interval{at(10, 30), at(11, 0)}, 10 * time.Minute, true},
		{"gap equal to buffer", Interval{at(10, 40), at(11, 0)}, 10 * time.Minute, false},
		{"partial", Interval{at(10, 15), at(10, 45)}, 0, true},
	}
	for _, tc := range cases {
		if got := Overlaps(a, tc.b, tc.buffer); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestScanOverlaps(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 6, 10, h, 0, 0, 0, time.UTC) }
	hourly := func(id, resource string, start, end int, status model.Status) model.Booking {
		return model.Booking{ID: id, TenantID: "t1", ResourceID: resource, Mode: model.ModeHourly,
			StartAt: at(start), EndAt: at(end), Status: status}
	}
	set := []model.Booking{
		hourly("a", "employee:e1", 9, 10, model.StatusConfirmed),
		hourly("b", "employee:e1", 10, 11, model.StatusPending),
		hourly("c", "employee:e1", 9, 11, model.StatusCancelled),
		hourly("d", "employee:e2", 9, 11, model.StatusConfirmed),
	}
	if v := ScanOverlaps(set, 0); len(v) != 0 {
		t.Fatalf("expected no violations, got %+v", v)
	}
	if v := ScanOverlaps(set, 30*time.Minute); len(v) != 1 || v[0].A.ID != "a" || v[0].B.ID != "b" {
		t.Fatalf("expected a/b violation with buffer, got %+v", v)
	}

	stays := []model.Booking{
		{ID: "s1", TenantID: "t1", ResourceID: "branch:b1", Mode: model.ModeDaily, Date: "2025-06-10", CheckOutDate: "2025-06-13", Status: model.StatusConfirmed},
		{ID: "s2", TenantID: "t1", ResourceID: "branch:b1", Mode: model.ModeDaily, Date: "2025-06-13", CheckOutDate: "2025-06-15", Status: model.StatusConfirmed},
	}
	if v := ScanOverlaps(stays, 0); len(v) != 0 {
		t.Fatalf("back-to-back stays must not violate, got %+v", v)
	}
}

func TestBusyIntervals_SkipsTerminal(t *testing.T) {
	got := BusyIntervals([]model.Booking{
		{ResourceID: "employee:e1", Status: model.StatusCompleted},
		{ResourceID: "employee:e1", Status: model.StatusNoShow},
		{ResourceID: "employee:e1", Status: model.StatusConfirmed},
	})
	if len(got["employee:e1"]) != 1 {
		t.Fatalf("expected 1 busy interval, got %d", len(got["employee:e1"]))
	}
}
