package availability

import (
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/schedule"
)

const DefaultGranularity = 15 * time.Minute

type Interval struct {
	Start time.Time
	End   time.Time
}

// Bounds are the advance-booking limits evaluated at one instant.
type Bounds struct {
	Earliest     time.Time
	EarliestDate string
	LatestDate   string // empty: no upper bound
}

// NewBounds applies minAdvanceHours and maxAdvanceDays to now. Non-positive values disable
// that side, but a start in the past is never allowed.
func NewBounds(now time.Time, loc *time.Location, minAdvanceHours, maxAdvanceDays int) Bounds {
	earliest := now
	if minAdvanceHours > 0 {
		earliest = now.Add(time.Duration(minAdvanceHours) * time.Hour)
	}
	b := Bounds{Earliest: earliest, EarliestDate: model.LocalDate(earliest, loc)}
	if maxAdvanceDays > 0 {
		b.LatestDate = model.AddDays(model.LocalDate(now, loc), maxAdvanceDays)
	}
	return b
}

func (b Bounds) DateAllowed(date string) bool {
	if b.LatestDate != "" && date > b.LatestDate {
		return false
	}
	return true
}

// StartAllowed checks one intraday start on date.
func (b Bounds) StartAllowed(date string, start time.Time) bool {
	return b.DateAllowed(date) && !start.Before(b.Earliest)
}

// CheckInAllowed checks a whole-night check-in date.
func (b Bounds) CheckInAllowed(date string) bool {
	return b.DateAllowed(date) && date >= b.EarliestDate
}

// CandidateStarts steps through the window and returns every start where a booking of
// length duration fits before close and the advance bounds allow it.
func CandidateStarts(w schedule.Window, duration, step time.Duration, b Bounds) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !w.Close.After(w.Open) || w.Open.Add(duration).After(w.Close) {
		return nil
	}
	if !b.DateAllowed(w.Date) {
		return nil
	}

	var starts []time.Time
	for t := w.Open; !t.Add(duration).After(w.Close); t = t.Add(step) {
		if t.Before(b.Earliest) {
			continue
		}
		starts = append(starts, t)
	}
	return starts
}

// FitsWindow reports whether [start, start+duration) lies within the window on a step boundary.
func FitsWindow(w schedule.Window, start time.Time, duration, step time.Duration) bool {
	if start.Before(w.Open) || start.Add(duration).After(w.Close) {
		return false
	}
	if step <= 0 {
		return true
	}
	return start.Sub(w.Open)%step == 0
}

type Slot struct {
	Start     time.Time
	Available bool
}

// AnnotateSlots marks each start available when at least one pool resource is free for it.
func AnnotateSlots(starts []time.Time, duration, buffer time.Duration, busy map[string][]Interval, pool []model.Resource) []Slot {
	out := make([]Slot, 0, len(starts))
	for _, s := range starts {
		candidate := Interval{Start: s, End: s.Add(duration)}
		available := false
		for _, r := range pool {
			if Free(candidate, busy[r.Key()], buffer) {
				available = true
				break
			}
		}
		out = append(out, Slot{Start: s, Available: available})
	}
	return out
}
