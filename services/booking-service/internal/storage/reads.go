package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type queries struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

const bookingColumns = `id, tenant_id, branch_id, service_id, employee_id, resource_id, customer_id, mode,
	date::text, end_date::text, start_time, end_time, COALESCE(check_out_date::text, ''),
	start_at, end_at, total_nights, total_price::text, deposit_amount::text, option_ids,
	status, notes, cancelled_at, cancel_reason, created_at`

func scanBooking(row scanner) (model.Booking, error) {
	var b model.Booking
	var mode, status, total, deposit string
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.BranchID,
		&b.ServiceID,
		&b.EmployeeID,
		&b.ResourceID,
		&b.CustomerID,
		&mode,
		&b.Date,
		&b.EndDate,
		&b.StartTime,
		&b.EndTime,
		&b.CheckOutDate,
		&b.StartAt,
		&b.EndAt,
		&b.TotalNights,
		&total,
		&deposit,
		&b.OptionIDs,
		&status,
		&b.Notes,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.Mode = model.BookingMode(mode)
	b.Status = model.Status(status)
	b.TotalPrice = parseDecimal(total)
	b.DepositAmount = parseDecimal(deposit)
	b.StartAt, b.EndAt, b.CreatedAt = b.StartAt.UTC(), b.EndAt.UTC(), b.CreatedAt.UTC()
	if cancelledAt != nil {
		t := cancelledAt.UTC()
		b.CancelledAt = &t
	}
	return b, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (r queries) listBookings(ctx context.Context, sql string, args ...any) ([]model.Booking, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r queries) GetTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	t := model.Tenant{ID: tenantID}
	s := &t.Settings
	var mode, pct string
	err := r.q.QueryRow(ctx, `
		SELECT timezone, booking_mode, buffer_minutes, max_advance_days, min_advance_hours,
			cancellation_hours_limit, require_deposit, deposit_percentage::text
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&s.Timezone, &mode, &s.BufferMinutes, &s.MaxAdvanceDays, &s.MinAdvanceHours,
		&s.CancellationHoursLimit, &s.RequireDeposit, &pct)
	if err != nil {
		return model.Tenant{}, notFound(err, "tenant %s", tenantID)
	}
	s.BookingMode = model.BookingMode(mode)
	s.DepositPercentage = parseDecimal(pct)
	return t, nil
}

func (r queries) GetTenantSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	t, err := r.GetTenant(ctx, tenantID)
	if err != nil {
		return model.TenantSettings{}, err
	}
	return t.Settings, nil
}

func (r queries) getBranch(ctx context.Context, tenantID, branchID, suffix string) (model.Branch, error) {
	var b model.Branch
	err := r.q.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_main
		FROM branches
		WHERE id = $1 AND tenant_id = $2
	`+suffix, branchID, tenantID).Scan(&b.ID, &b.TenantID, &b.Name, &b.IsMain)
	if err != nil {
		return model.Branch{}, notFound(err, "branch %s", branchID)
	}
	return b, nil
}

func (r queries) GetBranch(ctx context.Context, tenantID, branchID string) (model.Branch, error) {
	return r.getBranch(ctx, tenantID, branchID, "")
}

func (r queries) GetEmployee(ctx context.Context, tenantID, employeeID string) (model.Employee, error) {
	var e model.Employee
	err := r.q.QueryRow(ctx, `
		SELECT id, tenant_id, name
		FROM employees
		WHERE id = $1 AND tenant_id = $2
	`, employeeID, tenantID).Scan(&e.ID, &e.TenantID, &e.Name)
	if err != nil {
		return model.Employee{}, notFound(err, "employee %s", employeeID)
	}
	return e, nil
}

func (r queries) GetServiceWithVariations(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	svc := model.Service{ID: serviceID, TenantID: tenantID}
	var price string
	err := r.q.QueryRow(ctx, `
		SELECT name, price::text, duration_minutes
		FROM services
		WHERE id = $1 AND tenant_id = $2
	`, serviceID, tenantID).Scan(&svc.Name, &price, &svc.DurationMinutes)
	if err != nil {
		return model.Service{}, notFound(err, "service %s", serviceID)
	}
	svc.Price = parseDecimal(price)

	rows, err := r.q.Query(ctx, `
		SELECT g.id, g.name, g.selection_type, g.required, g.position,
			COALESCE(o.id, ''), COALESCE(o.name, ''), COALESCE(o.price_modifier::text, '0'),
			COALESCE(o.pricing_type, ''), COALESCE(o.duration_modifier_minutes, 0), COALESCE(o.position, 0)
		FROM variation_groups g
		LEFT JOIN variation_options o ON o.group_id = g.id
		WHERE g.service_id = $1
		ORDER BY g.position, g.id, o.position, o.id
	`, serviceID)
	if err != nil {
		return model.Service{}, fmt.Errorf("list variations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g model.VariationGroup
		var o model.VariationOption
		var selection, pricing, modifier string
		if err := rows.Scan(&g.ID, &g.Name, &selection, &g.Required, &g.Position,
			&o.ID, &o.Name, &modifier, &pricing, &o.DurationModifierMinutes, &o.Position); err != nil {
			return model.Service{}, err
		}
		n := len(svc.Groups)
		if n == 0 || svc.Groups[n-1].ID != g.ID {
			g.ServiceID = serviceID
			g.SelectionType = model.SelectionType(selection)
			svc.Groups = append(svc.Groups, g)
			n++
		}
		if o.ID == "" {
			continue
		}
		o.GroupID = g.ID
		o.PricingType = model.PricingType(pricing)
		o.PriceModifier = parseDecimal(modifier)
		svc.Groups[n-1].Options = append(svc.Groups[n-1].Options, o)
	}
	if rows.Err() != nil {
		return model.Service{}, rows.Err()
	}
	return svc, nil
}

func (r queries) GetSchedule(ctx context.Context, tenantID, branchID string, weekday int) (model.Schedule, bool, error) {
	s := model.Schedule{BranchID: branchID, Weekday: weekday}
	err := r.q.QueryRow(ctx, `
		SELECT s.start_minute, s.end_minute, s.is_active
		FROM branch_schedules s
		JOIN branches b ON b.id = s.branch_id
		WHERE b.tenant_id = $1 AND s.branch_id = $2 AND s.weekday = $3
	`, tenantID, branchID, weekday).Scan(&s.StartMinute, &s.EndMinute, &s.IsActive)
	if err != nil {
		if IsNotFound(err) {
			return model.Schedule{}, false, nil
		}
		return model.Schedule{}, false, err
	}
	return s, true, nil
}

func (r queries) IsBlocked(ctx context.Context, tenantID, branchID, date string) (bool, error) {
	var blocked bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM branch_blocked_dates d
			JOIN branches b ON b.id = d.branch_id
			WHERE b.tenant_id = $1 AND d.branch_id = $2 AND d.date = $3::date
		)
	`, tenantID, branchID, date).Scan(&blocked)
	return blocked, err
}

func (r queries) ListEligibleEmployees(ctx context.Context, tenantID, branchID, serviceID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT be.employee_id
		FROM branch_employees be
		JOIN employees e ON e.id = be.employee_id
		JOIN employee_services es ON es.employee_id = be.employee_id
		WHERE e.tenant_id = $1
			AND be.branch_id = $2
			AND be.is_active
			AND es.service_id = $3
		ORDER BY be.employee_id
	`, tenantID, branchID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

func (r queries) ListActiveBookingsForResource(ctx context.Context, tenantID, resourceID, from, to string) ([]model.Booking, error) {
	return r.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1
			AND resource_id = $2
			AND status IN ('PENDING', 'CONFIRMED')
			AND date <= $4::date
			AND end_date >= $3::date
		ORDER BY start_at, id
	`, tenantID, resourceID, from, to)
}

func (r queries) GetBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND tenant_id = $2
	`, bookingID, tenantID))
	if err != nil {
		return model.Booking{}, notFound(err, "booking %s", bookingID)
	}
	return b, nil
}

func (r queries) ListBookings(ctx context.Context, tenantID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tenantID, limit)
}

// ListAllActiveBookings returns every PENDING/CONFIRMED booking of a tenant.
func (r queries) ListAllActiveBookings(ctx context.Context, tenantID string) ([]model.Booking, error) {
	return r.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1 AND status IN ('PENDING', 'CONFIRMED')
		ORDER BY resource_id, start_at
	`, tenantID)
}
