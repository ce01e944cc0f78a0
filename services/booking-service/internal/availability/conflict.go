package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Overlaps is the buffered interval rule: a1 < b2+buffer && b1 < a2+buffer.
func Overlaps(a, b Interval, buffer time.Duration) bool {
	return a.Start.Before(b.End.Add(buffer)) && b.Start.Before(a.End.Add(buffer))
}

func Free(candidate Interval, busy []Interval, buffer time.Duration) bool {
	for _, b := range busy {
		if Overlaps(candidate, b, buffer) {
			return false
		}
	}
	return true
}

// BusyIntervals groups active bookings by resource key.
func BusyIntervals(bookings []model.Booking) map[string][]Interval {
	out := map[string][]Interval{}
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		out[b.ResourceID] = append(out[b.ResourceID], Interval{Start: b.StartAt, End: b.EndAt})
	}
	return out
}

// BusyStays groups active bookings by resource key as night ranges.
func BusyStays(bookings []model.Booking) map[string][]Stay {
	out := map[string][]Stay{}
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		out[b.ResourceID] = append(out[b.ResourceID], StayOf(b))
	}
	return out
}

// Conflicting reports whether two bookings on the same resource clash. Two DAILY stays
// compare nights; anything else compares instants, with buffer only between HOURLY bookings.
func Conflicting(a, b model.Booking, buffer time.Duration) bool {
	if a.ResourceID != b.ResourceID || a.TenantID != b.TenantID {
		return false
	}
	if !a.Status.Active() || !b.Status.Active() {
		return false
	}
	if a.Mode == model.ModeDaily && b.Mode == model.ModeDaily {
		return StaysOverlap(StayOf(a), StayOf(b))
	}
	if a.Mode != model.ModeHourly || b.Mode != model.ModeHourly {
		buffer = 0
	}
	return Overlaps(Interval{Start: a.StartAt, End: a.EndAt}, Interval{Start: b.StartAt, End: b.EndAt}, buffer)
}

type Violation struct {
	A model.Booking
	B model.Booking
}

// ScanOverlaps checks the no-double-booking invariant over a booking set.
func ScanOverlaps(bookings []model.Booking, buffer time.Duration) []Violation {
	byResource := map[string][]model.Booking{}
	for _, b := range bookings {
		if b.Status.Active() {
			k := b.TenantID + "|" + b.ResourceID
			byResource[k] = append(byResource[k], b)
		}
	}
	keys := make([]string, 0, len(byResource))
	for k := range byResource {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Violation
	for _, k := range keys {
		group := byResource[k]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if Conflicting(group[i], group[j], buffer) {
					out = append(out, Violation{A: group[i], B: group[j]})
				}
			}
		}
	}
	return out
}
