// Package schedule turns a branch's weekly hours and blocked dates into the open window
// for one calendar date.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Source is the narrow read port the resolver needs.
type Source interface {
	GetSchedule(ctx context.Context, tenantID, branchID string, weekday int) (model.Schedule, bool, error)
	IsBlocked(ctx context.Context, tenantID, branchID, date string) (bool, error)
}

// Window is the open period for one date. Close may fall on the next calendar day.
type Window struct {
	Date  string
	Open  time.Time
	Close time.Time
}

func (w Window) Overnight(loc *time.Location) bool {
	return model.LocalDate(w.Close.Add(-time.Nanosecond), loc) != w.Date
}

type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the window for date, or ok=false when the branch is closed.
func (r *Resolver) Resolve(ctx context.Context, tenantID, branchID, date string, loc *time.Location) (Window, bool, error) {
	weekday, err := model.Weekday(date)
	if err != nil {
		return Window{}, false, err
	}
	sched, found, err := r.src.GetSchedule(ctx, tenantID, branchID, weekday)
	if err != nil {
		return Window{}, false, fmt.Errorf("get schedule: %w", err)
	}
	if !found || !sched.IsActive {
		return Window{}, false, nil
	}
	blocked, err := r.src.IsBlocked(ctx, tenantID, branchID, date)
	if err != nil {
		return Window{}, false, fmt.Errorf("blocked dates: %w", err)
	}
	if blocked {
		return Window{}, false, nil
	}
	return WindowFor(sched, date, loc)
}

// WindowFor applies one schedule row to date. Equal start and end minutes mean closed.
func WindowFor(sched model.Schedule, date string, loc *time.Location) (Window, bool, error) {
	if sched.StartMinute == sched.EndMinute {
		return Window{}, false, nil
	}
	end := sched.EndMinute
	if end < sched.StartMinute {
		end += 24 * 60
	}
	open, err := model.At(date, sched.StartMinute, loc)
	if err != nil {
		return Window{}, false, err
	}
	closeAt, err := model.At(date, end, loc)
	if err != nil {
		return Window{}, false, err
	}
	return Window{Date: date, Open: open, Close: closeAt}, true, nil
}

// OpenDates reports, for each date, whether the branch opens that day.
func (r *Resolver) OpenDates(ctx context.Context, tenantID, branchID string, dates []string, loc *time.Location) (map[string]bool, error) {
	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		_, ok, err := r.Resolve(ctx, tenantID, branchID, d, loc)
		if err != nil {
			return nil, err
		}
		out[d] = ok
	}
	return out, nil
}
