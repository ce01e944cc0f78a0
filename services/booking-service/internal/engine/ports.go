package engine

import (
	"context"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/resources"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/schedule"
)

// Reader is the lock-free read side of the store. Missing or foreign-tenant entities
// come back as model.ErrNotFound.
type Reader interface {
	schedule.Source
	resources.Source

	GetTenant(ctx context.Context, tenantID string) (model.Tenant, error)
	GetBranch(ctx context.Context, tenantID, branchID string) (model.Branch, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (model.Employee, error)
	GetServiceWithVariations(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	// ListActiveBookingsForResource returns PENDING/CONFIRMED bookings on resourceID whose
	// date range [Date, EndDate] intersects [from, to].
	ListActiveBookingsForResource(ctx context.Context, tenantID, resourceID, from, to string) ([]model.Booking, error)
	GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
	ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error)
	// FindIdempotencyKey reads a key without locking it; found is false for unknown keys.
	FindIdempotencyKey(ctx context.Context, tenantID, key string) (rec IdempotencyRecord, found bool, err error)
}

type IdempotencyRecord struct {
	Fingerprint string
	BookingID   string
}

// CommitTx is one atomic unit. Everything done through it commits or rolls back together.
type CommitTx interface {
	quota.Ledger
	// Customers created for a commit are written in the same transaction.
	customers.Tx

	// LockKey blocks until the transaction holds an exclusive lock on key.
	LockKey(ctx context.Context, key string) error
	// LockIdempotencyKey locks (creating if needed) the key row. existed reports whether
	// the row was there before this call.
	LockIdempotencyKey(ctx context.Context, tenantID, key, fingerprint string) (rec IdempotencyRecord, existed bool, err error)
	FinalizeIdempotencyKey(ctx context.Context, tenantID, key, bookingID string) error

	ListActiveBookingsForResource(ctx context.Context, tenantID, resourceID, from, to string) ([]model.Booking, error)
	GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
	GetBookingForUpdate(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
	InsertBooking(ctx context.Context, b model.Booking) error
	UpdateBookingStatus(ctx context.Context, b model.Booking) error
}

type Store interface {
	Reader
	// WithinCommit runs fn in one transaction. fn must only use tx.
	WithinCommit(ctx context.Context, fn func(tx CommitTx) error) error
}

// CustomerDirectory resolves a commit's customer identity to a stored customer.
type CustomerDirectory interface {
	Resolve(ctx context.Context, tenantID string, id model.CustomerIdentity) (model.Customer, error)
}

// TxCustomerDirectory resolves customers inside the commit unit, so a commit that fails
// leaves no customer behind.
type TxCustomerDirectory interface {
	ResolveTx(ctx context.Context, tx customers.Tx, tenantID string, id model.CustomerIdentity) (c model.Customer, created bool, err error)
}

// Notifier is told about bookings after their transaction commits. It is never awaited
// and its errors never affect the booking.
type Notifier interface {
	BookingCommitted(ctx context.Context, b model.Booking) error
	BookingStatusChanged(ctx context.Context, b model.Booking, from model.Status) error
}

func ResourceLockKey(tenantID, resourceID, date string) string {
	return "booking:" + tenantID + ":" + resourceID + ":" + date
}
