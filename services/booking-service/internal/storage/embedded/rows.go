package embedded

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// Decimals are stored as text so sqlite keeps them exact.

type tenantRow struct {
	ID                     string `gorm:"primaryKey"`
	Timezone               string `gorm:"not null"`
	BookingMode            string `gorm:"not null"`
	BufferMinutes          int
	MaxAdvanceDays         int
	MinAdvanceHours        int
	CancellationHoursLimit int
	RequireDeposit         bool
	DepositPercentage      string `gorm:"type:text"`
}

func (tenantRow) TableName() string { return "tenants" }

type branchRow struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"not null;index"`
	Name     string
	IsMain   bool
}

func (branchRow) TableName() string { return "branches" }

type scheduleRow struct {
	BranchID    string `gorm:"primaryKey"`
	Weekday     int    `gorm:"primaryKey;autoIncrement:false"`
	StartMinute int
	EndMinute   int
	IsActive    bool
}

func (scheduleRow) TableName() string { return "branch_schedules" }

type blockedDateRow struct {
	BranchID string `gorm:"primaryKey"`
	Date     string `gorm:"primaryKey"`
	Reason   string
}

func (blockedDateRow) TableName() string { return "branch_blocked_dates" }

type serviceRow struct {
	ID              string `gorm:"primaryKey"`
	TenantID        string `gorm:"not null;index"`
	Name            string
	Price           string `gorm:"type:text"`
	DurationMinutes int
}

func (serviceRow) TableName() string { return "services" }

type variationGroupRow struct {
	ID            string `gorm:"primaryKey"`
	ServiceID     string `gorm:"not null;index"`
	Name          string
	SelectionType string
	Required      bool
	Position      int
}

func (variationGroupRow) TableName() string { return "variation_groups" }

type variationOptionRow struct {
	ID                      string `gorm:"primaryKey"`
	GroupID                 string `gorm:"not null;index"`
	Name                    string
	PriceModifier           string `gorm:"type:text"`
	PricingType             string
	DurationModifierMinutes int
	Position                int
}

func (variationOptionRow) TableName() string { return "variation_options" }

type employeeRow struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"not null;index"`
	Name     string
}

func (employeeRow) TableName() string { return "employees" }

type branchEmployeeRow struct {
	BranchID   string `gorm:"primaryKey"`
	EmployeeID string `gorm:"primaryKey"`
	IsActive   bool
}

func (branchEmployeeRow) TableName() string { return "branch_employees" }

type employeeServiceRow struct {
	EmployeeID string `gorm:"primaryKey"`
	ServiceID  string `gorm:"primaryKey"`
}

func (employeeServiceRow) TableName() string { return "employee_services" }

type customerRow struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"not null;index:idx_customers_phone"`
	Name      string
	Phone     string `gorm:"index:idx_customers_phone"`
	Email     string
	Anonymous bool
}

func (customerRow) TableName() string { return "customers" }

type bookingRow struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"not null;index:idx_bookings_resource"`
	BranchID      string `gorm:"not null;index"`
	ServiceID     string `gorm:"not null"`
	EmployeeID    string
	ResourceID    string `gorm:"not null;index:idx_bookings_resource"`
	CustomerID    string
	Mode          string `gorm:"not null"`
	Date          string `gorm:"not null;index:idx_bookings_resource"`
	EndDate       string `gorm:"not null"`
	StartTime     string
	EndTime       string
	CheckOutDate  string
	StartAt       time.Time
	EndAt         time.Time
	TotalNights   int
	TotalPrice    string   `gorm:"type:text"`
	DepositAmount string   `gorm:"type:text"`
	OptionIDs     []string `gorm:"serializer:json"`
	Status        string   `gorm:"not null;index"`
	Notes         string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (bookingRow) TableName() string { return "bookings" }

type idempotencyRow struct {
	TenantID    string `gorm:"primaryKey"`
	Key         string `gorm:"column:idempotency_key;primaryKey"`
	Fingerprint string `gorm:"not null"`
	BookingID   string
	CreatedAt   time.Time
}

func (idempotencyRow) TableName() string { return "booking_idempotency_keys" }

type planLimitsRow struct {
	TenantID         string `gorm:"primaryKey"`
	Tier             string `gorm:"not null"`
	MaxBookingsMonth int
	MaxBranches      int
	MaxEmployees     int
	MaxServices      int
	MaxCustomers     int
	UpdatedAt        time.Time
}

func (planLimitsRow) TableName() string { return "tenant_plan_limits" }

type outboxRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	EventID       string `gorm:"not null;uniqueIndex"`
	AggregateType string
	AggregateID   string
	EventType     string `gorm:"not null"`
	TenantID      string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
	PublishedAt   *time.Time `gorm:"index"`
}

func (outboxRow) TableName() string { return "outbox_events" }

type inboxRow struct {
	EventID    string `gorm:"primaryKey"`
	EventType  string
	ReceivedAt time.Time
}

func (inboxRow) TableName() string { return "inbox_events" }

func allRows() []any {
	return []any{
		&tenantRow{}, &branchRow{}, &scheduleRow{}, &blockedDateRow{},
		&serviceRow{}, &variationGroupRow{}, &variationOptionRow{},
		&employeeRow{}, &branchEmployeeRow{}, &employeeServiceRow{},
		&customerRow{}, &bookingRow{}, &idempotencyRow{}, &planLimitsRow{},
		&outboxRow{}, &inboxRow{},
	}
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r tenantRow) toModel() model.Tenant {
	return model.Tenant{
		ID: r.ID,
		Settings: model.TenantSettings{
			Timezone:               r.Timezone,
			BookingMode:            model.BookingMode(r.BookingMode),
			BufferMinutes:          r.BufferMinutes,
			MaxAdvanceDays:         r.MaxAdvanceDays,
			MinAdvanceHours:        r.MinAdvanceHours,
			CancellationHoursLimit: r.CancellationHoursLimit,
			RequireDeposit:         r.RequireDeposit,
			DepositPercentage:      parseDecimal(r.DepositPercentage),
		},
	}
}

func fromTenant(t model.Tenant) tenantRow {
	s := t.Settings
	return tenantRow{
		ID:                     t.ID,
		Timezone:               s.Timezone,
		BookingMode:            string(s.BookingMode),
		BufferMinutes:          s.BufferMinutes,
		MaxAdvanceDays:         s.MaxAdvanceDays,
		MinAdvanceHours:        s.MinAdvanceHours,
		CancellationHoursLimit: s.CancellationHoursLimit,
		RequireDeposit:         s.RequireDeposit,
		DepositPercentage:      s.DepositPercentage.String(),
	}
}

func (r branchRow) toModel() model.Branch {
	return model.Branch{ID: r.ID, TenantID: r.TenantID, Name: r.Name, IsMain: r.IsMain}
}

func (r customerRow) toModel() model.Customer {
	return model.Customer{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Phone: r.Phone, Email: r.Email, Anonymous: r.Anonymous}
}

func (r bookingRow) toModel() model.Booking {
	b := model.Booking{
		ID:            r.ID,
		TenantID:      r.TenantID,
		BranchID:      r.BranchID,
		ServiceID:     r.ServiceID,
		EmployeeID:    r.EmployeeID,
		ResourceID:    r.ResourceID,
		CustomerID:    r.CustomerID,
		Mode:          model.BookingMode(r.Mode),
		Date:          r.Date,
		EndDate:       r.EndDate,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		CheckOutDate:  r.CheckOutDate,
		StartAt:       r.StartAt.UTC(),
		EndAt:         r.EndAt.UTC(),
		TotalNights:   r.TotalNights,
		TotalPrice:    parseDecimal(r.TotalPrice),
		DepositAmount: parseDecimal(r.DepositAmount),
		OptionIDs:     r.OptionIDs,
		Status:        model.Status(r.Status),
		Notes:         r.Notes,
		CancelReason:  r.CancelReason,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.CancelledAt != nil {
		t := r.CancelledAt.UTC()
		b.CancelledAt = &t
	}
	return b
}

func fromBooking(b model.Booking) bookingRow {
	return bookingRow{
		ID:            b.ID,
		TenantID:      b.TenantID,
		BranchID:      b.BranchID,
		ServiceID:     b.ServiceID,
		EmployeeID:    b.EmployeeID,
		ResourceID:    b.ResourceID,
		CustomerID:    b.CustomerID,
		Mode:          string(b.Mode),
		Date:          b.Date,
		EndDate:       b.EndDate,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		CheckOutDate:  b.CheckOutDate,
		StartAt:       b.StartAt.UTC(),
		EndAt:         b.EndAt.UTC(),
		TotalNights:   b.TotalNights,
		TotalPrice:    b.TotalPrice.String(),
		DepositAmount: b.DepositAmount.String(),
		OptionIDs:     b.OptionIDs,
		Status:        string(b.Status),
		Notes:         b.Notes,
		CancelledAt:   b.CancelledAt,
		CancelReason:  b.CancelReason,
		CreatedAt:     b.CreatedAt.UTC(),
	}
}

func (r planLimitsRow) toModel() quota.PlanLimits {
	return quota.PlanLimits{
		TenantID:         r.TenantID,
		Tier:             r.Tier,
		MaxBookingsMonth: r.MaxBookingsMonth,
		MaxBranches:      r.MaxBranches,
		MaxEmployees:     r.MaxEmployees,
		MaxServices:      r.MaxServices,
		MaxCustomers:     r.MaxCustomers,
	}
}
