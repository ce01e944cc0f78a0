package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BookingMode string

const (
	ModeHourly BookingMode = "HOURLY"
	ModeDaily  BookingMode = "DAILY"
)

func ParseBookingMode(raw string) (BookingMode, error) {
	switch BookingMode(raw) {
	case ModeHourly, ModeDaily:
		return BookingMode(raw), nil
	default:
		return "", Validationf("unknown booking mode %q", raw)
	}
}

// TenantSettings is read once per computation and never mutated by the engine.
type TenantSettings struct {
	Timezone               string
	BookingMode            BookingMode
	BufferMinutes          int
	MaxAdvanceDays         int
	MinAdvanceHours        int
	CancellationHoursLimit int
	RequireDeposit         bool
	DepositPercentage      decimal.Decimal
}

func (s TenantSettings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("tenant timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (s TenantSettings) Buffer() time.Duration {
	if s.BufferMinutes <= 0 {
		return 0
	}
	return time.Duration(s.BufferMinutes) * time.Minute
}

type Tenant struct {
	ID       string
	Settings TenantSettings
}

type Branch struct {
	ID       string
	TenantID string
	Name     string
	IsMain   bool
}

// Schedule is one weekday's opening hours. Weekday follows time.Weekday (0 = Sunday).
// EndMinute < StartMinute means the window closes on the next calendar day.
type Schedule struct {
	BranchID    string
	Weekday     int
	StartMinute int
	EndMinute   int
	IsActive    bool
}

type BlockedDate struct {
	BranchID string
	Date     string
	Reason   string
}

type Employee struct {
	ID       string
	TenantID string
	Name     string
}

// BranchAssignment links an employee to a branch.
type BranchAssignment struct {
	BranchID   string
	EmployeeID string
	IsActive   bool
}
