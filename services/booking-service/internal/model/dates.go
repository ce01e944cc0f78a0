package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// ParseDate parses a civil date. The result is midnight UTC and only useful for calendar math.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

// ParseClock returns minutes after midnight for "HH:MM".
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, Validationf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minute int) string {
	minute = ((minute % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// AddDays shifts a valid date string. Callers must have validated date.
func AddDays(date string, n int) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, n).Format(DateLayout)
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to string) (int, error) {
	a, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// DateRange lists every date in [from, to] inclusive.
func DateRange(from, to string) ([]string, error) {
	n, err := DaysBetween(from, to)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, Validationf("range end %s is before start %s", to, from)
	}
	out := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, AddDays(from, i))
	}
	return out, nil
}

func Weekday(date string) (int, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return int(d.Weekday()), nil
}

func LocalDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// At returns the instant minute minutes after local midnight of date. Minutes past
// 1440 land on the following day.
func At(date string, minute int, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minute, 0, 0, loc), nil
}

// DatesTouched lists the local dates that [start, end) covers, ascending.
func DatesTouched(start, end time.Time, loc *time.Location) []string {
	first := LocalDate(start, loc)
	if !end.After(start) {
		return []string{first}
	}
	last := LocalDate(end.Add(-time.Nanosecond), loc)
	out := []string{first}
	for d := first; d < last; {
		d = AddDays(d, 1)
		out = append(out, d)
	}
	return out
}
