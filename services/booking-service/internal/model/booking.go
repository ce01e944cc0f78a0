package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// ActiveStatuses are the statuses that hold a resource.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return s, nil
	default:
		return "", Validationf("unknown status %q", raw)
	}
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

type ResourceKind string

const (
	ResourceEmployee ResourceKind = "employee"
	ResourceBranch   ResourceKind = "branch"
)

// Resource is whatever cannot be double-booked: an employee, or the branch itself.
type Resource struct {
	Kind ResourceKind
	ID   string
}

// Key is the value stored in Booking.ResourceID.
func (r Resource) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// Booking is a committed reservation. Date is the local start (check-in) date and EndDate
// the last local date the booking touches; StartAt/EndAt are UTC instants.
type Booking struct {
	ID            string
	TenantID      string
	BranchID      string
	ServiceID     string
	EmployeeID    string
	ResourceID    string
	CustomerID    string
	Mode          BookingMode
	Date          string
	EndDate       string
	StartTime     string
	EndTime       string
	CheckOutDate  string
	StartAt       time.Time
	EndAt         time.Time
	TotalNights   int
	TotalPrice    decimal.Decimal
	DepositAmount decimal.Decimal
	OptionIDs     []string
	Status        Status
	Notes         string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}
