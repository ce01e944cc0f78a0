// Package customers resolves the customer on a commit: an existing id, lookup-or-create by
// phone, or the tenant's anonymous placeholder.
package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// Directory is implemented by Local and Remote.
type Directory interface {
	Resolve(ctx context.Context, tenantID string, id model.CustomerIdentity) (model.Customer, error)
}

type Tx interface {
	quota.Ledger

	LockKey(ctx context.Context, key string) error
	GetTenantSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	GetCustomer(ctx context.Context, tenantID, customerID string) (model.Customer, error)
	FindCustomerByPhone(ctx context.Context, tenantID, phone string) (model.Customer, bool, error)
	InsertCustomer(ctx context.Context, c model.Customer) error
}

type Store interface {
	WithinCustomers(ctx context.Context, fn func(tx Tx) error) error
}

// Local keeps customers in the booking store. New customers count against the plan's
// customer limit; the anonymous placeholder does not.
type Local struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewLocal(store Store, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{store: store, logger: logger, now: time.Now}
}

// AnonymousID is the deterministic placeholder id for a tenant.
func AnonymousID(tenantID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bookwell:anonymous:"+tenantID)).String()
}

func (l *Local) Resolve(ctx context.Context, tenantID string, id model.CustomerIdentity) (model.Customer, error) {
	var out model.Customer
	created := false
	err := l.store.WithinCustomers(ctx, func(tx Tx) error {
		// Same lock order as a booking commit: tenant quota first, then the phone.
		if err := tx.LockKey(ctx, quota.LockKey(tenantID)); err != nil {
			return fmt.Errorf("lock quota: %w", err)
		}
		var err error
		out, created, err = l.ResolveTx(ctx, tx, tenantID, id)
		return err
	})
	if err != nil {
		return model.Customer{}, err
	}
	if created {
		l.logger.Info("customer created", "tenant_id", tenantID, "customer_id", out.ID, "phone_ref", model.Redact(out.Phone))
	}
	return out, nil
}

// ResolveTx resolves within the caller's transaction. created reports a new phone customer;
// it is only durable once the caller commits.
func (l *Local) ResolveTx(ctx context.Context, tx Tx, tenantID string, id model.CustomerIdentity) (model.Customer, bool, error) {
	id = id.Normalize()
	switch {
	case id.CustomerID != "":
		c, err := tx.GetCustomer(ctx, tenantID, id.CustomerID)
		return c, false, err

	case id.Phone != "":
		if err := tx.LockKey(ctx, "customer-phone:"+tenantID+":"+id.Phone); err != nil {
			return model.Customer{}, false, fmt.Errorf("lock customer phone: %w", err)
		}
		c, found, err := tx.FindCustomerByPhone(ctx, tenantID, id.Phone)
		if err != nil {
			return model.Customer{}, false, fmt.Errorf("find customer: %w", err)
		}
		if found {
			return c, false, nil
		}
		if err := l.checkQuota(ctx, tx, tenantID); err != nil {
			return model.Customer{}, false, err
		}
		c = model.Customer{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Name:     id.Name,
			Phone:    id.Phone,
			Email:    id.Email,
		}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return model.Customer{}, false, err
		}
		return c, true, nil

	default:
		anonID := AnonymousID(tenantID)
		if err := tx.LockKey(ctx, "customer-anon:"+tenantID); err != nil {
			return model.Customer{}, false, fmt.Errorf("lock anonymous customer: %w", err)
		}
		c, err := tx.GetCustomer(ctx, tenantID, anonID)
		if err == nil {
			return c, false, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return model.Customer{}, false, err
		}
		c = model.Customer{ID: anonID, TenantID: tenantID, Name: "Anonymous", Anonymous: true}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return model.Customer{}, false, err
		}
		return c, false, nil
	}
}

func (l *Local) checkQuota(ctx context.Context, tx Tx, tenantID string) error {
	settings, err := tx.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return err
	}
	loc, err := settings.Location()
	if err != nil {
		return err
	}
	if err := tx.LockKey(ctx, quota.LockKey(tenantID)); err != nil {
		return fmt.Errorf("lock quota: %w", err)
	}
	return quota.Check(ctx, tx, tenantID, quota.CounterCustomers, l.now(), loc)
}
