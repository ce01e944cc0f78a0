package embedded

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// txQueries is the write side, bound to one transaction.
type txQueries struct {
	queries
}

// LockKey is a no-op: the single connection already serializes transactions.
func (t *txQueries) LockKey(context.Context, string) error {
	return nil
}

// FindIdempotencyKey reads a key without locking it.
func (q queries) FindIdempotencyKey(ctx context.Context, tenantID, key string) (engine.IdempotencyRecord, bool, error) {
	var rows []idempotencyRow
	if err := q.db.WithContext(ctx).Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).Limit(1).Find(&rows).Error; err != nil {
		return engine.IdempotencyRecord{}, false, fmt.Errorf("find idempotency key: %w", err)
	}
	if len(rows) == 0 {
		return engine.IdempotencyRecord{}, false, nil
	}
	return engine.IdempotencyRecord{Fingerprint: rows[0].Fingerprint, BookingID: rows[0].BookingID}, true, nil
}

func (t *txQueries) LockIdempotencyKey(ctx context.Context, tenantID, key, fingerprint string) (engine.IdempotencyRecord, bool, error) {
	db := t.db.WithContext(ctx)
	var rows []idempotencyRow
	if err := db.Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).Limit(1).Find(&rows).Error; err != nil {
		return engine.IdempotencyRecord{}, false, err
	}
	if len(rows) == 1 {
		return engine.IdempotencyRecord{Fingerprint: rows[0].Fingerprint, BookingID: rows[0].BookingID}, true, nil
	}
	row := idempotencyRow{TenantID: tenantID, Key: key, Fingerprint: fingerprint, CreatedAt: time.Now().UTC()}
	if err := db.Create(&row).Error; err != nil {
		return engine.IdempotencyRecord{}, false, err
	}
	return engine.IdempotencyRecord{Fingerprint: fingerprint}, false, nil
}

func (t *txQueries) FinalizeIdempotencyKey(ctx context.Context, tenantID, key, bookingID string) error {
	return t.db.WithContext(ctx).
		Model(&idempotencyRow{}).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		Update("booking_id", bookingID).Error
}

func (t *txQueries) GetBookingForUpdate(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	return t.GetBooking(ctx, tenantID, bookingID)
}

func (t *txQueries) InsertBooking(ctx context.Context, b model.Booking) error {
	row := fromBooking(b)
	return t.db.WithContext(ctx).Create(&row).Error
}

func (t *txQueries) UpdateBookingStatus(ctx context.Context, b model.Booking) error {
	res := t.db.WithContext(ctx).
		Model(&bookingRow{}).
		Where("id = ? AND tenant_id = ?", b.ID, b.TenantID).
		Updates(map[string]any{
			"status":        string(b.Status),
			"cancelled_at":  b.CancelledAt,
			"cancel_reason": b.CancelReason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.NotFoundf("booking %s", b.ID)
	}
	return nil
}

func (t *txQueries) PlanLimits(ctx context.Context, tenantID string) (quota.PlanLimits, bool, error) {
	var row planLimitsRow
	err := t.db.WithContext(ctx).First(&row, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quota.PlanLimits{}, false, nil
	}
	if err != nil {
		return quota.PlanLimits{}, false, err
	}
	return row.toModel(), true, nil
}

func (t *txQueries) CountUsage(ctx context.Context, tenantID string, c quota.Counter, p quota.Period) (int, error) {
	db := t.db.WithContext(ctx)
	var n int64
	var err error
	switch c {
	case quota.CounterBookingsMonth:
		q := db.Model(&bookingRow{}).Where("tenant_id = ? AND status IN ?", tenantID, activeStatuses())
		if !p.From.IsZero() {
			q = q.Where("created_at >= ? AND created_at < ?", p.From.UTC(), p.To.UTC())
		}
		err = q.Count(&n).Error
	case quota.CounterBranches:
		err = db.Model(&branchRow{}).Where("tenant_id = ?", tenantID).Count(&n).Error
	case quota.CounterEmployees:
		err = db.Model(&branchEmployeeRow{}).
			Joins("JOIN employees ON employees.id = branch_employees.employee_id").
			Where("employees.tenant_id = ? AND branch_employees.is_active = ?", tenantID, true).
			Distinct("branch_employees.employee_id").
			Count(&n).Error
	case quota.CounterServices:
		err = db.Model(&serviceRow{}).Where("tenant_id = ?", tenantID).Count(&n).Error
	case quota.CounterCustomers:
		err = db.Model(&customerRow{}).Where("tenant_id = ? AND anonymous = ?", tenantID, false).Count(&n).Error
	default:
		return 0, fmt.Errorf("unknown counter %q", c)
	}
	return int(n), err
}

func (t *txQueries) GetCustomer(ctx context.Context, tenantID, customerID string) (model.Customer, error) {
	var row customerRow
	if err := t.db.WithContext(ctx).First(&row, "id = ? AND tenant_id = ?", customerID, tenantID).Error; err != nil {
		return model.Customer{}, notFound(err, "customer %s", customerID)
	}
	return row.toModel(), nil
}

func (t *txQueries) FindCustomerByPhone(ctx context.Context, tenantID, phone string) (model.Customer, bool, error) {
	var rows []customerRow
	if err := t.db.WithContext(ctx).Where("tenant_id = ? AND phone = ?", tenantID, phone).Limit(1).Find(&rows).Error; err != nil {
		return model.Customer{}, false, err
	}
	if len(rows) == 0 {
		return model.Customer{}, false, nil
	}
	return rows[0].toModel(), true, nil
}

func (t *txQueries) InsertCustomer(ctx context.Context, c model.Customer) error {
	row := customerRow{ID: c.ID, TenantID: c.TenantID, Name: c.Name, Phone: c.Phone, Email: c.Email, Anonymous: c.Anonymous}
	return t.db.WithContext(ctx).Create(&row).Error
}

func (t *txQueries) GetBranchForUpdate(ctx context.Context, tenantID, branchID string) (model.Branch, error) {
	return t.GetBranch(ctx, tenantID, branchID)
}

func (t *txQueries) SwapMainBranch(ctx context.Context, tenantID, branchID string) error {
	db := t.db.WithContext(ctx)
	if err := db.Model(&branchRow{}).
		Where("tenant_id = ? AND id <> ?", tenantID, branchID).
		Update("is_main", false).Error; err != nil {
		return err
	}
	return db.Model(&branchRow{}).
		Where("tenant_id = ? AND id = ?", tenantID, branchID).
		Update("is_main", true).Error
}

func (t *txQueries) CountMainBranches(ctx context.Context, tenantID string) (int, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&branchRow{}).Where("tenant_id = ? AND is_main = ?", tenantID, true).Count(&n).Error
	return int(n), err
}

func (t *txQueries) MissingEmployees(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	var found []string
	if err := t.db.WithContext(ctx).Model(&employeeRow{}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return missing(ids, found), nil
}

func (t *txQueries) MissingServices(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	var found []string
	if err := t.db.WithContext(ctx).Model(&serviceRow{}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return missing(ids, found), nil
}

func (t *txQueries) UpsertBranchAssignments(ctx context.Context, branchID string, employeeIDs []string, active bool) error {
	if len(employeeIDs) == 0 {
		return nil
	}
	rows := make([]branchEmployeeRow, 0, len(employeeIDs))
	for _, id := range employeeIDs {
		rows = append(rows, branchEmployeeRow{BranchID: branchID, EmployeeID: id, IsActive: active})
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "branch_id"}, {Name: "employee_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_active"}),
		}).
		Create(&rows).Error
}

func (t *txQueries) ReplaceEmployeeServices(ctx context.Context, employeeID string, serviceIDs []string) error {
	db := t.db.WithContext(ctx)
	if err := db.Where("employee_id = ?", employeeID).Delete(&employeeServiceRow{}).Error; err != nil {
		return err
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	rows := make([]employeeServiceRow, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		rows = append(rows, employeeServiceRow{EmployeeID: employeeID, ServiceID: id})
	}
	return db.Create(&rows).Error
}

func (t *txQueries) CountActiveBookingsForBranch(ctx context.Context, tenantID, branchID string) (int, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&bookingRow{}).
		Where("tenant_id = ? AND branch_id = ? AND status IN ?", tenantID, branchID, activeStatuses()).
		Count(&n).Error
	return int(n), err
}

func (t *txQueries) DeleteBranchDependents(ctx context.Context, branchID string) (admin.CleanupResult, error) {
	db := t.db.WithContext(ctx)
	var out admin.CleanupResult
	res := db.Where("branch_id = ?", branchID).Delete(&scheduleRow{})
	if res.Error != nil {
		return admin.CleanupResult{}, res.Error
	}
	out.Schedules = int(res.RowsAffected)
	res = db.Where("branch_id = ?", branchID).Delete(&blockedDateRow{})
	if res.Error != nil {
		return admin.CleanupResult{}, res.Error
	}
	out.BlockedDates = int(res.RowsAffected)
	res = db.Where("branch_id = ?", branchID).Delete(&branchEmployeeRow{})
	if res.Error != nil {
		return admin.CleanupResult{}, res.Error
	}
	out.Assignments = int(res.RowsAffected)
	return out, nil
}

func missing(want, found []string) []string {
	have := make(map[string]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var out []string
	for _, id := range want {
		if !have[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
