// Package quota enforces subscription plan ceilings by counting live records at commit time.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Ledger is read inside the caller's atomic unit, after the tenant quota lock is held.
type Ledger interface {
	PlanLimits(ctx context.Context, tenantID string) (PlanLimits, bool, error)
	CountUsage(ctx context.Context, tenantID string, c Counter, p Period) (int, error)
}

// LockKey names the per-tenant lock every quota check takes before counting.
func LockKey(tenantID string) string {
	return "quota:" + tenantID
}

// Period is a half-open UTC range [From, To). Zero means all time.
type Period struct {
	From time.Time
	To   time.Time
}

// MonthPeriod is the calendar month containing now in loc.
func MonthPeriod(now time.Time, loc *time.Location) Period {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{From: start.UTC(), To: start.AddDate(0, 1, 0).UTC()}
}

func PeriodFor(c Counter, now time.Time, loc *time.Location) Period {
	if c == CounterBookingsMonth {
		return MonthPeriod(now, loc)
	}
	return Period{}
}

// Check rejects with model.ErrQuotaExceeded once usage has reached the limit.
func Check(ctx context.Context, l Ledger, tenantID string, c Counter, now time.Time, loc *time.Location) error {
	return CheckAdd(ctx, l, tenantID, c, 1, now, loc)
}

// CheckAdd rejects when current usage plus n would exceed the limit. Callers that have
// already applied their change inside the transaction pass n = 0.
func CheckAdd(ctx context.Context, l Ledger, tenantID string, c Counter, n int, now time.Time, loc *time.Location) error {
	limits, ok, err := l.PlanLimits(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("plan limits: %w", err)
	}
	if !ok {
		limits = LimitsForTier("free")
	}
	max := limits.Limit(c)
	if max <= 0 {
		return nil
	}
	used, err := l.CountUsage(ctx, tenantID, c, PeriodFor(c, now, loc))
	if err != nil {
		return fmt.Errorf("count %s: %w", c, err)
	}
	if used+n > max {
		return fmt.Errorf("%w: %s limit %d reached on %s plan", model.ErrQuotaExceeded, c, max, limits.Tier)
	}
	return nil
}
