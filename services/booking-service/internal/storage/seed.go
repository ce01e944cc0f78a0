package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Reference data loaders. Catalog ownership lives elsewhere; these keep the read model in
// sync and seed fixtures.

func (s *Store) UpsertTenant(ctx context.Context, t model.Tenant) error {
	st := t.Settings
	mode := st.BookingMode
	if mode == "" {
		mode = model.ModeHourly
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (id, timezone, booking_mode, buffer_minutes, max_advance_days, min_advance_hours,
			cancellation_hours_limit, require_deposit, deposit_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric)
		ON CONFLICT (id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			booking_mode = EXCLUDED.booking_mode,
			buffer_minutes = EXCLUDED.buffer_minutes,
			max_advance_days = EXCLUDED.max_advance_days,
			min_advance_hours = EXCLUDED.min_advance_hours,
			cancellation_hours_limit = EXCLUDED.cancellation_hours_limit,
			require_deposit = EXCLUDED.require_deposit,
			deposit_percentage = EXCLUDED.deposit_percentage
	`, t.ID, st.Timezone, string(mode), st.BufferMinutes, st.MaxAdvanceDays, st.MinAdvanceHours,
		st.CancellationHoursLimit, st.RequireDeposit, st.DepositPercentage.String())
	return err
}

func (s *Store) UpsertBranch(ctx context.Context, b model.Branch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branches (id, tenant_id, name, is_main)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_main = EXCLUDED.is_main
	`, b.ID, b.TenantID, b.Name, b.IsMain)
	return err
}

func (s *Store) SetSchedule(ctx context.Context, sch model.Schedule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branch_schedules (branch_id, weekday, start_minute, end_minute, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (branch_id, weekday) DO UPDATE SET
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			is_active = EXCLUDED.is_active
	`, sch.BranchID, sch.Weekday, sch.StartMinute, sch.EndMinute, sch.IsActive)
	return err
}

func (s *Store) BlockDate(ctx context.Context, d model.BlockedDate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branch_blocked_dates (branch_id, date, reason)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (branch_id, date) DO UPDATE SET reason = EXCLUDED.reason
	`, d.BranchID, d.Date, d.Reason)
	return err
}

func (s *Store) UpsertEmployee(ctx context.Context, e model.Employee) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (id, tenant_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, e.ID, e.TenantID, e.Name)
	return err
}

func (s *Store) AssignEmployee(ctx context.Context, a model.BranchAssignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO branch_employees (branch_id, employee_id, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (branch_id, employee_id) DO UPDATE SET is_active = EXCLUDED.is_active
	`, a.BranchID, a.EmployeeID, a.IsActive)
	return err
}

func (s *Store) AssignService(ctx context.Context, employeeID, serviceID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employee_services (employee_id, service_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, employeeID, serviceID)
	return err
}

// UpsertService replaces the service together with its variation groups and options.
func (s *Store) UpsertService(ctx context.Context, svc model.Service) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, tenant_id, name, price, duration_minutes)
			VALUES ($1, $2, $3, $4::numeric, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				duration_minutes = EXCLUDED.duration_minutes
		`, svc.ID, svc.TenantID, svc.Name, svc.Price.String(), svc.DurationMinutes); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM variation_groups WHERE service_id = $1`, svc.ID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, g := range svc.Groups {
			batch.Queue(`
				INSERT INTO variation_groups (id, service_id, name, selection_type, required, position)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, g.ID, svc.ID, g.Name, string(g.SelectionType), g.Required, g.Position)
			for _, o := range g.Options {
				pricing := o.PricingType
				if pricing == "" {
					pricing = model.PricingRelative
				}
				batch.Queue(`
					INSERT INTO variation_options (id, group_id, name, price_modifier, pricing_type, duration_modifier_minutes, position)
					VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
				`, o.ID, g.ID, o.Name, o.PriceModifier.String(), string(pricing), o.DurationModifierMinutes, o.Position)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
