package availability

import "github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"

// Stay is a half-open night range [CheckIn, CheckOut).
type Stay struct {
	CheckIn  string
	CheckOut string
}

func StayOf(b model.Booking) Stay {
	out := b.CheckOutDate
	if out == "" {
		out = b.EndDate
	}
	return Stay{CheckIn: b.Date, CheckOut: out}
}

// Nights lists each night date of the stay.
func (s Stay) Nights() []string {
	var out []string
	for d := s.CheckIn; d < s.CheckOut; d = model.AddDays(d, 1) {
		out = append(out, d)
	}
	return out
}

// StaysOverlap compares ISO date strings; a checkout equal to the other check-in is not an overlap.
func StaysOverlap(a, b Stay) bool {
	return a.CheckIn < b.CheckOut && b.CheckIn < a.CheckOut
}

func StayFree(candidate Stay, busy []Stay) bool {
	for _, b := range busy {
		if StaysOverlap(candidate, b) {
			return false
		}
	}
	return true
}

type DateFlag struct {
	Date      string
	Available bool
}

// AnnotateNights flags each date available when the branch is open, the check-in bounds
// allow it and at least one pool resource has that night free.
func AnnotateNights(dates []string, open map[string]bool, b Bounds, busy map[string][]Stay, pool []model.Resource) []DateFlag {
	out := make([]DateFlag, 0, len(dates))
	for _, d := range dates {
		flag := DateFlag{Date: d}
		if open[d] && b.CheckInAllowed(d) {
			night := Stay{CheckIn: d, CheckOut: model.AddDays(d, 1)}
			for _, r := range pool {
				if StayFree(night, busy[r.Key()]) {
					flag.Available = true
					break
				}
			}
		}
		out = append(out, flag)
	}
	return out
}
