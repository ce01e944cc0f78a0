package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

func (s *Store) InsertOutbox(ctx context.Context, evt outbox.Event, traceparent, tracestate string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, tenant_id, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.EventID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.TenantID, evt.Payload, traceparent, tracestate)
	return err
}

// DrainOutbox hands up to limit unpublished events to publish and marks them published
// when it succeeds. Concurrent drainers skip rows another one holds.
func (s *Store) DrainOutbox(ctx context.Context, limit int, publish func([]outbox.Record) error) (int, error) {
	n := 0
	err := s.pool.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_id, aggregate_type, aggregate_id, event_type, tenant_id, payload,
				COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
			FROM outbox_events
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}

		var records []outbox.Record
		var ids []int64
		for rows.Next() {
			var r outbox.Record
			if err := rows.Scan(&r.ID, &r.EventID, &r.AggregateType, &r.AggregateID, &r.EventType,
				&r.TenantID, &r.Payload, &r.Traceparent, &r.Tracestate, &r.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			records = append(records, r)
			ids = append(ids, r.ID)
		}
		rows.Close()
		if rows.Err() != nil {
			return rows.Err()
		}
		if len(records) == 0 {
			return nil
		}

		if err := publish(records); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return err
		}
		n = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) UpsertPlanLimits(ctx context.Context, l quota.PlanLimits) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_plan_limits (tenant_id, tier, max_bookings_month, max_branches, max_employees, max_services, max_customers, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			max_bookings_month = EXCLUDED.max_bookings_month,
			max_branches = EXCLUDED.max_branches,
			max_employees = EXCLUDED.max_employees,
			max_services = EXCLUDED.max_services,
			max_customers = EXCLUDED.max_customers,
			updated_at = now()
	`, l.TenantID, l.Tier, l.MaxBookingsMonth, l.MaxBranches, l.MaxEmployees, l.MaxServices, l.MaxCustomers)
	return err
}
