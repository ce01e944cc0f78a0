// Package embedded is the single-node store: gorm over sqlite. It serializes every
// transaction on one connection, so named locks are implicit.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type Store struct {
	queries
	root *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates it. Use ":memory:"
// for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db.DB(): %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(allRows()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{queries: queries{db: db}, root: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.root.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.root.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) within(ctx context.Context, fn func(t *txQueries) error) error {
	return s.root.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txQueries{queries: queries{db: tx}})
	})
}

func (s *Store) WithinCommit(ctx context.Context, fn func(tx engine.CommitTx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

func (s *Store) WithinAdmin(ctx context.Context, fn func(tx admin.Tx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

func (s *Store) WithinCustomers(ctx context.Context, fn func(tx customers.Tx) error) error {
	return s.within(ctx, func(t *txQueries) error { return fn(t) })
}

// queries are the reads shared by the store and its transactions.
type queries struct {
	db *gorm.DB
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NotFoundf(format, args...)
	}
	return err
}

func (q queries) GetTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	var row tenantRow
	if err := q.db.WithContext(ctx).First(&row, "id = ?", tenantID).Error; err != nil {
		return model.Tenant{}, notFound(err, "tenant %s", tenantID)
	}
	return row.toModel(), nil
}

func (q queries) GetTenantSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	t, err := q.GetTenant(ctx, tenantID)
	if err != nil {
		return model.TenantSettings{}, err
	}
	return t.Settings, nil
}

func (q queries) GetBranch(ctx context.Context, tenantID, branchID string) (model.Branch, error) {
	var row branchRow
	err := q.db.WithContext(ctx).First(&row, "id = ? AND tenant_id = ?", branchID, tenantID).Error
	if err != nil {
		return model.Branch{}, notFound(err, "branch %s", branchID)
	}
	return row.toModel(), nil
}

func (q queries) GetEmployee(ctx context.Context, tenantID, employeeID string) (model.Employee, error) {
	var row employeeRow
	err := q.db.WithContext(ctx).First(&row, "id = ? AND tenant_id = ?", employeeID, tenantID).Error
	if err != nil {
		return model.Employee{}, notFound(err, "employee %s", employeeID)
	}
	return model.Employee{ID: row.ID, TenantID: row.TenantID, Name: row.Name}, nil
}

func (q queries) GetServiceWithVariations(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	db := q.db.WithContext(ctx)
	var row serviceRow
	if err := db.First(&row, "id = ? AND tenant_id = ?", serviceID, tenantID).Error; err != nil {
		return model.Service{}, notFound(err, "service %s", serviceID)
	}
	svc := model.Service{
		ID:              row.ID,
		TenantID:        row.TenantID,
		Name:            row.Name,
		Price:           parseDecimal(row.Price),
		DurationMinutes: row.DurationMinutes,
	}

	var groups []variationGroupRow
	if err := db.Where("service_id = ?", serviceID).Order("position, id").Find(&groups).Error; err != nil {
		return model.Service{}, fmt.Errorf("list variation groups: %w", err)
	}
	if len(groups) == 0 {
		return svc, nil
	}
	groupIDs := make([]string, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	var options []variationOptionRow
	if err := db.Where("group_id IN ?", groupIDs).Order("position, id").Find(&options).Error; err != nil {
		return model.Service{}, fmt.Errorf("list variation options: %w", err)
	}
	byGroup := make(map[string][]model.VariationOption, len(groups))
	for _, o := range options {
		byGroup[o.GroupID] = append(byGroup[o.GroupID], model.VariationOption{
			ID:                      o.ID,
			GroupID:                 o.GroupID,
			Name:                    o.Name,
			PriceModifier:           parseDecimal(o.PriceModifier),
			PricingType:             model.PricingType(o.PricingType),
			DurationModifierMinutes: o.DurationModifierMinutes,
			Position:                o.Position,
		})
	}
	for _, g := range groups {
		svc.Groups = append(svc.Groups, model.VariationGroup{
			ID:            g.ID,
			ServiceID:     g.ServiceID,
			Name:          g.Name,
			SelectionType: model.SelectionType(g.SelectionType),
			Required:      g.Required,
			Position:      g.Position,
			Options:       byGroup[g.ID],
		})
	}
	return svc, nil
}

func (q queries) GetSchedule(ctx context.Context, tenantID, branchID string, weekday int) (model.Schedule, bool, error) {
	var rows []scheduleRow
	err := q.db.WithContext(ctx).
		Model(&scheduleRow{}).
		Joins("JOIN branches ON branches.id = branch_schedules.branch_id").
		Where("branches.tenant_id = ? AND branch_schedules.branch_id = ? AND branch_schedules.weekday = ?", tenantID, branchID, weekday).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return model.Schedule{}, false, fmt.Errorf("get schedule: %w", err)
	}
	if len(rows) == 0 {
		return model.Schedule{}, false, nil
	}
	r := rows[0]
	return model.Schedule{BranchID: r.BranchID, Weekday: r.Weekday, StartMinute: r.StartMinute, EndMinute: r.EndMinute, IsActive: r.IsActive}, true, nil
}

func (q queries) IsBlocked(ctx context.Context, tenantID, branchID, date string) (bool, error) {
	var n int64
	err := q.db.WithContext(ctx).
		Model(&blockedDateRow{}).
		Joins("JOIN branches ON branches.id = branch_blocked_dates.branch_id").
		Where("branches.tenant_id = ? AND branch_blocked_dates.branch_id = ? AND branch_blocked_dates.date = ?", tenantID, branchID, date).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check blocked date: %w", err)
	}
	return n > 0, nil
}

func (q queries) ListEligibleEmployees(ctx context.Context, tenantID, branchID, serviceID string) ([]string, error) {
	var ids []string
	err := q.db.WithContext(ctx).
		Model(&branchEmployeeRow{}).
		Joins("JOIN employees ON employees.id = branch_employees.employee_id").
		Joins("JOIN employee_services ON employee_services.employee_id = branch_employees.employee_id").
		Where("employees.tenant_id = ? AND branch_employees.branch_id = ? AND branch_employees.is_active = ? AND employee_services.service_id = ?",
			tenantID, branchID, true, serviceID).
		Order("branch_employees.employee_id").
		Pluck("branch_employees.employee_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list eligible employees: %w", err)
	}
	return ids, nil
}

func (q queries) ListActiveBookingsForResource(ctx context.Context, tenantID, resourceID, from, to string) ([]model.Booking, error) {
	var rows []bookingRow
	err := q.db.WithContext(ctx).
		Where("tenant_id = ? AND resource_id = ? AND status IN ? AND date <= ? AND end_date >= ?",
			tenantID, resourceID, activeStatuses(), to, from).
		Order("start_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return toBookings(rows), nil
}

func (q queries) GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	var row bookingRow
	if err := q.db.WithContext(ctx).First(&row, "id = ? AND tenant_id = ?", bookingID, tenantID).Error; err != nil {
		return model.Booking{}, notFound(err, "booking %s", bookingID)
	}
	return row.toModel(), nil
}

func (q queries) ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error) {
	var rows []bookingRow
	err := q.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return toBookings(rows), nil
}

// ListAllActiveBookings returns every PENDING/CONFIRMED booking of a tenant.
func (q queries) ListAllActiveBookings(ctx context.Context, tenantID string) ([]model.Booking, error) {
	var rows []bookingRow
	err := q.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, activeStatuses()).
		Order("resource_id, start_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return toBookings(rows), nil
}

func activeStatuses() []string {
	out := make([]string, 0, len(model.ActiveStatuses))
	for _, s := range model.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}

func toBookings(rows []bookingRow) []model.Booking {
	out := make([]model.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
