// Package admin holds the all-or-nothing administrative mutations: main-branch swaps,
// bulk assignments and branch cleanup. Each runs in a single transaction.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

type Tx interface {
	quota.Ledger

	LockKey(ctx context.Context, key string) error
	GetTenantSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	GetBranchForUpdate(ctx context.Context, tenantID, branchID string) (model.Branch, error)
	GetEmployee(ctx context.Context, tenantID, employeeID string) (model.Employee, error)
	// SwapMainBranch clears isMain on every other branch of the tenant and sets it on branchID.
	SwapMainBranch(ctx context.Context, tenantID, branchID string) error
	CountMainBranches(ctx context.Context, tenantID string) (int, error)
	MissingEmployees(ctx context.Context, tenantID string, ids []string) ([]string, error)
	MissingServices(ctx context.Context, tenantID string, ids []string) ([]string, error)
	UpsertBranchAssignments(ctx context.Context, branchID string, employeeIDs []string, active bool) error
	ReplaceEmployeeServices(ctx context.Context, employeeID string, serviceIDs []string) error
	CountActiveBookingsForBranch(ctx context.Context, tenantID, branchID string) (int, error)
	DeleteBranchDependents(ctx context.Context, branchID string) (CleanupResult, error)
}

type Store interface {
	WithinAdmin(ctx context.Context, fn func(tx Tx) error) error
}

type CleanupResult struct {
	Schedules    int
	BlockedDates int
	Assignments  int
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// SetMainBranch makes branchID the tenant's only main branch.
func (s *Service) SetMainBranch(ctx context.Context, tenantID, branchID string) error {
	if tenantID == "" || branchID == "" {
		return model.Validationf("tenant_id and branch_id are required")
	}
	err := s.store.WithinAdmin(ctx, func(tx Tx) error {
		if err := tx.LockKey(ctx, "main-branch:"+tenantID); err != nil {
			return fmt.Errorf("lock main branch: %w", err)
		}
		if _, err := tx.GetBranchForUpdate(ctx, tenantID, branchID); err != nil {
			return err
		}
		if err := tx.SwapMainBranch(ctx, tenantID, branchID); err != nil {
			return fmt.Errorf("swap main branch: %w", err)
		}
		n, err := tx.CountMainBranches(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("count main branches: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("main branch invariant violated for tenant %s: %d main branches", tenantID, n)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("main branch set", "tenant_id", tenantID, "branch_id", branchID)
	return nil
}

// AssignEmployeesToBranch upserts every assignment or none. Unknown employees abort the
// batch with model.ErrNotFound; activating past the plan's employee limit aborts with
// model.ErrQuotaExceeded.
func (s *Service) AssignEmployeesToBranch(ctx context.Context, tenantID, branchID string, employeeIDs []string, active bool) error {
	ids, err := normalizeIDs(employeeIDs)
	if err != nil {
		return err
	}
	if tenantID == "" || branchID == "" {
		return model.Validationf("tenant_id and branch_id are required")
	}
	err = s.store.WithinAdmin(ctx, func(tx Tx) error {
		if _, err := tx.GetBranchForUpdate(ctx, tenantID, branchID); err != nil {
			return err
		}
		missing, err := tx.MissingEmployees(ctx, tenantID, ids)
		if err != nil {
			return fmt.Errorf("check employees: %w", err)
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: employees %v", model.ErrNotFound, missing)
		}
		if err := tx.UpsertBranchAssignments(ctx, branchID, ids, active); err != nil {
			return fmt.Errorf("upsert assignments: %w", err)
		}
		if !active {
			return nil
		}
		return s.checkAfterApply(ctx, tx, tenantID, quota.CounterEmployees)
	})
	if err != nil {
		return err
	}
	s.logger.Info("branch employees assigned", "tenant_id", tenantID, "branch_id", branchID, "count", len(ids), "active", active)
	return nil
}

// AssignServicesToEmployee replaces the employee's service set, all or nothing.
func (s *Service) AssignServicesToEmployee(ctx context.Context, tenantID, employeeID string, serviceIDs []string) error {
	if tenantID == "" || employeeID == "" {
		return model.Validationf("tenant_id and employee_id are required")
	}
	ids, err := normalizeIDs(serviceIDs)
	if err != nil {
		return err
	}
	err = s.store.WithinAdmin(ctx, func(tx Tx) error {
		if _, err := tx.GetEmployee(ctx, tenantID, employeeID); err != nil {
			return err
		}
		if err := tx.LockKey(ctx, "employee-services:"+tenantID+":"+employeeID); err != nil {
			return fmt.Errorf("lock employee services: %w", err)
		}
		missing, err := tx.MissingServices(ctx, tenantID, ids)
		if err != nil {
			return fmt.Errorf("check services: %w", err)
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: services %v", model.ErrNotFound, missing)
		}
		return tx.ReplaceEmployeeServices(ctx, employeeID, ids)
	})
	if err != nil {
		return err
	}
	s.logger.Info("employee services assigned", "tenant_id", tenantID, "employee_id", employeeID, "count", len(ids))
	return nil
}

// CleanupBranch removes a branch's schedules, blocked dates and employee assignments ahead
// of the branch's deletion. Bookings are never removed, so a branch still holding active
// bookings is refused.
func (s *Service) CleanupBranch(ctx context.Context, tenantID, branchID string) (CleanupResult, error) {
	if tenantID == "" || branchID == "" {
		return CleanupResult{}, model.Validationf("tenant_id and branch_id are required")
	}
	var out CleanupResult
	err := s.store.WithinAdmin(ctx, func(tx Tx) error {
		if _, err := tx.GetBranchForUpdate(ctx, tenantID, branchID); err != nil {
			return err
		}
		active, err := tx.CountActiveBookingsForBranch(ctx, tenantID, branchID)
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active > 0 {
			return model.Validationf("branch %s still has %d active bookings", branchID, active)
		}
		out, err = tx.DeleteBranchDependents(ctx, branchID)
		return err
	})
	if err != nil {
		return CleanupResult{}, err
	}
	s.logger.Info("branch cleaned up", "tenant_id", tenantID, "branch_id", branchID,
		"schedules", out.Schedules, "blocked_dates", out.BlockedDates, "assignments", out.Assignments)
	return out, nil
}

func (s *Service) checkAfterApply(ctx context.Context, tx Tx, tenantID string, c quota.Counter) error {
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
	return quota.CheckAdd(ctx, tx, tenantID, c, 0, s.now(), loc)
}

func normalizeIDs(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, model.Validationf("at least one id is required")
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id == "" {
			return nil, model.Validationf("ids must not be empty")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
