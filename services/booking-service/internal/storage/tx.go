package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/bookwell/libs/db"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

type txQueries struct {
	queries
	tx pgx.Tx
}

func (t *txQueries) LockKey(ctx context.Context, key string) error {
	return db.AdvisoryXactLock(ctx, t.tx, key)
}

// FindIdempotencyKey reads a key without locking it.
func (r queries) FindIdempotencyKey(ctx context.Context, tenantID, key string) (engine.IdempotencyRecord, bool, error) {
	var rec engine.IdempotencyRecord
	err := r.q.QueryRow(ctx, `
		SELECT fingerprint, COALESCE(booking_id, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key).Scan(&rec.Fingerprint, &rec.BookingID)
	if IsNotFound(err) {
		return engine.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return engine.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (t *txQueries) LockIdempotencyKey(ctx context.Context, tenantID, key, fingerprint string) (engine.IdempotencyRecord, bool, error) {
	var inserted bool
	err := t.tx.QueryRow(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key, fingerprint)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
		RETURNING true
	`, tenantID, key, fingerprint).Scan(&inserted)
	if err != nil && !IsNotFound(err) {
		return engine.IdempotencyRecord{}, false, err
	}

	var rec engine.IdempotencyRecord
	err = t.tx.QueryRow(ctx, `
		SELECT fingerprint, COALESCE(booking_id, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, tenantID, key).Scan(&rec.Fingerprint, &rec.BookingID)
	if err != nil {
		return engine.IdempotencyRecord{}, false, err
	}
	return rec, !inserted, nil
}

func (t *txQueries) FinalizeIdempotencyKey(ctx context.Context, tenantID, key, bookingID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key, bookingID)
	return err
}

func (t *txQueries) GetBookingForUpdate(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, bookingID, tenantID))
	if err != nil {
		return model.Booking{}, notFound(err, "booking %s", bookingID)
	}
	return b, nil
}

func (t *txQueries) InsertBooking(ctx context.Context, b model.Booking) error {
	optionIDs := b.OptionIDs
	if optionIDs == nil {
		optionIDs = []string{}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bookings (
			id, tenant_id, branch_id, service_id, employee_id, resource_id, customer_id, mode,
			date, end_date, start_time, end_time, check_out_date,
			start_at, end_at, total_nights, total_price, deposit_amount, option_ids,
			status, notes, cancelled_at, cancel_reason, created_at
		)
		VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9::date, $10::date, $11, $12, NULLIF($13, '')::date,
			$14, $15, $16, $17::numeric, $18::numeric, $19,
			$20, $21, $22, $23, $24
		)
	`,
		b.ID, b.TenantID, b.BranchID, b.ServiceID, b.EmployeeID, b.ResourceID, b.CustomerID, string(b.Mode),
		b.Date, b.EndDate, b.StartTime, b.EndTime, b.CheckOutDate,
		b.StartAt, b.EndAt, b.TotalNights, b.TotalPrice.String(), b.DepositAmount.String(), optionIDs,
		string(b.Status), b.Notes, b.CancelledAt, b.CancelReason, b.CreatedAt,
	)
	return err
}

func (t *txQueries) UpdateBookingStatus(ctx context.Context, b model.Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = $3, cancelled_at = $4, cancel_reason = $5
		WHERE id = $1 AND tenant_id = $2
	`, b.ID, b.TenantID, string(b.Status), b.CancelledAt, b.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("booking %s", b.ID)
	}
	return nil
}

func (t *txQueries) PlanLimits(ctx context.Context, tenantID string) (quota.PlanLimits, bool, error) {
	l := quota.PlanLimits{TenantID: tenantID}
	err := t.tx.QueryRow(ctx, `
		SELECT tier, max_bookings_month, max_branches, max_employees, max_services, max_customers
		FROM tenant_plan_limits
		WHERE tenant_id = $1
	`, tenantID).Scan(&l.Tier, &l.MaxBookingsMonth, &l.MaxBranches, &l.MaxEmployees, &l.MaxServices, &l.MaxCustomers)
	if err != nil {
		if IsNotFound(err) {
			return quota.PlanLimits{}, false, nil
		}
		return quota.PlanLimits{}, false, err
	}
	return l, true, nil
}

func (t *txQueries) CountUsage(ctx context.Context, tenantID string, c quota.Counter, p quota.Period) (int, error) {
	var sql string
	args := []any{tenantID}
	switch c {
	case quota.CounterBookingsMonth:
		sql = `SELECT count(*) FROM bookings WHERE tenant_id = $1 AND status IN ('PENDING', 'CONFIRMED')`
		if !p.From.IsZero() {
			sql += ` AND created_at >= $2 AND created_at < $3`
			args = append(args, p.From, p.To)
		}
	case quota.CounterBranches:
		sql = `SELECT count(*) FROM branches WHERE tenant_id = $1`
	case quota.CounterEmployees:
		sql = `
			SELECT count(DISTINCT be.employee_id)
			FROM branch_employees be
			JOIN employees e ON e.id = be.employee_id
			WHERE e.tenant_id = $1 AND be.is_active`
	case quota.CounterServices:
		sql = `SELECT count(*) FROM services WHERE tenant_id = $1`
	case quota.CounterCustomers:
		sql = `SELECT count(*) FROM customers WHERE tenant_id = $1 AND NOT anonymous`
	default:
		return 0, fmt.Errorf("unknown counter %q", c)
	}
	var n int
	err := t.tx.QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

func (t *txQueries) GetCustomer(ctx context.Context, tenantID, customerID string) (model.Customer, error) {
	c, err := scanCustomer(t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, anonymous
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID))
	if err != nil {
		return model.Customer{}, notFound(err, "customer %s", customerID)
	}
	return c, nil
}

func (t *txQueries) FindCustomerByPhone(ctx context.Context, tenantID, phone string) (model.Customer, bool, error) {
	c, err := scanCustomer(t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, name, phone, email, anonymous
		FROM customers
		WHERE tenant_id = $1 AND phone = $2
	`, tenantID, phone))
	if err != nil {
		if IsNotFound(err) {
			return model.Customer{}, false, nil
		}
		return model.Customer{}, false, err
	}
	return c, true, nil
}

func (t *txQueries) InsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO customers (id, tenant_id, name, phone, email, anonymous)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.TenantID, c.Name, c.Phone, c.Email, c.Anonymous)
	return err
}

func scanCustomer(row scanner) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Email, &c.Anonymous)
	return c, err
}

func (t *txQueries) GetBranchForUpdate(ctx context.Context, tenantID, branchID string) (model.Branch, error) {
	return t.getBranch(ctx, tenantID, branchID, " FOR UPDATE")
}

// SwapMainBranch clears before it sets so the partial unique index on is_main never
// sees two main branches.
func (t *txQueries) SwapMainBranch(ctx context.Context, tenantID, branchID string) error {
	if _, err := t.tx.Exec(ctx, `
		UPDATE branches SET is_main = false
		WHERE tenant_id = $1 AND id <> $2 AND is_main
	`, tenantID, branchID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE branches SET is_main = true
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, branchID)
	return err
}

func (t *txQueries) CountMainBranches(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM branches WHERE tenant_id = $1 AND is_main`, tenantID).Scan(&n)
	return n, err
}

func (t *txQueries) MissingEmployees(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	return t.missing(ctx, `SELECT id FROM employees WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
}

func (t *txQueries) MissingServices(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	return t.missing(ctx, `SELECT id FROM services WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
}

func (t *txQueries) missing(ctx context.Context, sql, tenantID string, ids []string) ([]string, error) {
	rows, err := t.tx.Query(ctx, sql, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	var out []string
	for _, id := range ids {
		if !found[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (t *txQueries) UpsertBranchAssignments(ctx context.Context, branchID string, employeeIDs []string, active bool) error {
	if len(employeeIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO branch_employees (branch_id, employee_id, is_active)
		SELECT $1, unnest($2::text[]), $3
		ON CONFLICT (branch_id, employee_id) DO UPDATE SET is_active = EXCLUDED.is_active
	`, branchID, employeeIDs, active)
	return err
}

func (t *txQueries) ReplaceEmployeeServices(ctx context.Context, employeeID string, serviceIDs []string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM employee_services WHERE employee_id = $1`, employeeID); err != nil {
		return err
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO employee_services (employee_id, service_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, employeeID, serviceIDs)
	return err
}

func (t *txQueries) CountActiveBookingsForBranch(ctx context.Context, tenantID, branchID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM bookings
		WHERE tenant_id = $1 AND branch_id = $2 AND status IN ('PENDING', 'CONFIRMED')
	`, tenantID, branchID).Scan(&n)
	return n, err
}

func (t *txQueries) DeleteBranchDependents(ctx context.Context, branchID string) (admin.CleanupResult, error) {
	var out admin.CleanupResult
	counts := []struct {
		sql string
		n   *int
	}{
		{`DELETE FROM branch_schedules WHERE branch_id = $1`, &out.Schedules},
		{`DELETE FROM branch_blocked_dates WHERE branch_id = $1`, &out.BlockedDates},
		{`DELETE FROM branch_employees WHERE branch_id = $1`, &out.Assignments},
	}
	for _, c := range counts {
		tag, err := t.tx.Exec(ctx, c.sql, branchID)
		if err != nil {
			return admin.CleanupResult{}, err
		}
		*c.n = int(tag.RowsAffected())
	}
	return out, nil
}
