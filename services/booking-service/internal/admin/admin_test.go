package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

type memState struct {
	branches    map[string]model.Branch
	employees   map[string]bool
	services    map[string]bool
	assignments map[string]bool // branch|employee -> active
	empServices map[string][]string
	schedules   map[string]int
	activeByBr  map[string]int
	limits      quota.PlanLimits
}

func (s memState) clone() memState {
	out := s
	out.branches = map[string]model.Branch{}
	for k, v := range s.branches {
		out.branches[k] = v
	}
	out.assignments = map[string]bool{}
	for k, v := range s.assignments {
		out.assignments[k] = v
	}
	out.empServices = map[string][]string{}
	for k, v := range s.empServices {
		out.empServices[k] = append([]string(nil), v...)
	}
	out.schedules = map[string]int{}
	for k, v := range s.schedules {
		out.schedules[k] = v
	}
	return out
}

// memStore commits the callback's changes only when it returns nil.
type memStore struct {
	state memState
}

func (m *memStore) WithinAdmin(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

type memTx struct {
	state memState
}

func (t *memTx) PlanLimits(context.Context, string) (quota.PlanLimits, bool, error) {
	return t.state.limits, t.state.limits.Tier != "", nil
}

func (t *memTx) CountUsage(_ context.Context, _ string, c quota.Counter, _ quota.Period) (int, error) {
	if c != quota.CounterEmployees {
		return 0, nil
	}
	active := map[string]bool{}
	for k, on := range t.state.assignments {
		if on {
			active[k[len(k)-2:]] = true
		}
	}
	return len(active), nil
}

func (t *memTx) LockKey(context.Context, string) error { return nil }

func (t *memTx) GetTenantSettings(context.Context, string) (model.TenantSettings, error) {
	return model.TenantSettings{Timezone: "UTC"}, nil
}

func (t *memTx) GetBranchForUpdate(_ context.Context, tenantID, branchID string) (model.Branch, error) {
	b, ok := t.state.branches[branchID]
	if !ok || b.TenantID != tenantID {
		return model.Branch{}, model.NotFoundf("branch %s", branchID)
	}
	return b, nil
}

func (t *memTx) GetEmployee(_ context.Context, tenantID, id string) (model.Employee, error) {
	if !t.state.employees[id] {
		return model.Employee{}, model.NotFoundf("employee %s", id)
	}
	return model.Employee{ID: id, TenantID: tenantID}, nil
}

func (t *memTx) SwapMainBranch(_ context.Context, tenantID, branchID string) error {
	for id, b := range t.state.branches {
		if b.TenantID == tenantID {
			b.IsMain = id == branchID
			t.state.branches[id] = b
		}
	}
	return nil
}

func (t *memTx) CountMainBranches(_ context.Context, tenantID string) (int, error) {
	n := 0
	for _, b := range t.state.branches {
		if b.TenantID == tenantID && b.IsMain {
			n++
		}
	}
	return n, nil
}

func (t *memTx) MissingEmployees(_ context.Context, _ string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if !t.state.employees[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (t *memTx) MissingServices(_ context.Context, _ string, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if !t.state.services[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (t *memTx) UpsertBranchAssignments(_ context.Context, branchID string, ids []string, active bool) error {
	for _, id := range ids {
		t.state.assignments[branchID+"|"+id] = active
	}
	return nil
}

func (t *memTx) ReplaceEmployeeServices(_ context.Context, employeeID string, ids []string) error {
	t.state.empServices[employeeID] = append([]string(nil), ids...)
	return nil
}

func (t *memTx) CountActiveBookingsForBranch(_ context.Context, _ string, branchID string) (int, error) {
	return t.state.activeByBr[branchID], nil
}

func (t *memTx) DeleteBranchDependents(_ context.Context, branchID string) (CleanupResult, error) {
	out := CleanupResult{Schedules: t.state.schedules[branchID]}
	delete(t.state.schedules, branchID)
	for k := range t.state.assignments {
		if len(k) > len(branchID) && k[:len(branchID)+1] == branchID+"|" {
			delete(t.state.assignments, k)
			out.Assignments++
		}
	}
	return out, nil
}

// Employee ids in these tests are two characters so CountUsage can recover them from keys.
func newStore() *memStore {
	return &memStore{state: memState{
		branches: map[string]model.Branch{
			"b1": {ID: "b1", TenantID: "t1", IsMain: true},
			"b2": {ID: "b2", TenantID: "t1"},
			"x9": {ID: "x9", TenantID: "t2", IsMain: true},
		},
		employees:   map[string]bool{"e1": true, "e2": true, "e3": true},
		services:    map[string]bool{"s1": true, "s2": true},
		assignments: map[string]bool{},
		empServices: map[string][]string{},
		schedules:   map[string]int{"b2": 7},
		activeByBr:  map[string]int{},
	}}
}

func TestSetMainBranch(t *testing.T) {
	store := newStore()
	svc := NewService(store, nil)

	if err := svc.SetMainBranch(context.Background(), "t1", "b2"); err != nil {
		t.Fatalf("set main: %v", err)
	}
	if store.state.branches["b1"].IsMain || !store.state.branches["b2"].IsMain {
		t.Fatalf("expected b2 to be the only main branch: %+v", store.state.branches)
	}
	if !store.state.branches["x9"].IsMain {
		t.Fatalf("other tenants must be untouched")
	}

	err := svc.SetMainBranch(context.Background(), "t1", "x9")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for foreign branch, got %v", err)
	}
	if !store.state.branches["b2"].IsMain {
		t.Fatalf("failed swap must leave state unchanged")
	}
}

func TestAssignEmployeesToBranch_AllOrNothing(t *testing.T) {
	store := newStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	err := svc.AssignEmployeesToBranch(ctx, "t1", "b1", []string{"e1", "zz"}, true)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.state.assignments) != 0 {
		t.Fatalf("partial batch persisted: %v", store.state.assignments)
	}

	if err := svc.AssignEmployeesToBranch(ctx, "t1", "b1", []string{"e2", "e1", "e1"}, true); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(store.state.assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %v", store.state.assignments)
	}

	if err := svc.AssignEmployeesToBranch(ctx, "t1", "b1", nil, true); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
}

func TestAssignEmployeesToBranch_Quota(t *testing.T) {
	store := newStore()
	store.state.limits = quota.PlanLimits{Tier: "starter", MaxEmployees: 2}
	svc := NewService(store, nil)
	ctx := context.Background()

	if err := svc.AssignEmployeesToBranch(ctx, "t1", "b1", []string{"e1", "e2"}, true); err != nil {
		t.Fatalf("assign within limit: %v", err)
	}
	// reassigning the same employees to another branch does not add headcount
	if err := svc.AssignEmployeesToBranch(ctx, "t1", "b2", []string{"e1"}, true); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	err := svc.AssignEmployeesToBranch(ctx, "t1", "b2", []string{"e3"}, true)
	if !errors.Is(err, model.ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	if _, ok := store.state.assignments["b2|e3"]; ok {
		t.Fatalf("rejected assignment persisted")
	}
	// deactivation is never blocked by the limit
	if err := svc.AssignEmployeesToBranch(ctx, "t1", "b2", []string{"e3"}, false); err != nil {
		t.Fatalf("inactive assignment: %v", err)
	}
}

func TestAssignServicesToEmployee(t *testing.T) {
	store := newStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	if err := svc.AssignServicesToEmployee(ctx, "t1", "e1", []string{"s2", "s1"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got := store.state.empServices["e1"]
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Fatalf("unexpected services %v", got)
	}
	if err := svc.AssignServicesToEmployee(ctx, "t1", "e1", []string{"s1", "nope"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.state.empServices["e1"]) != 2 {
		t.Fatalf("failed replace must keep the previous set")
	}
	if err := svc.AssignServicesToEmployee(ctx, "t1", "ghost", []string{"s1"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found for unknown employee, got %v", err)
	}
}

func TestCleanupBranch(t *testing.T) {
	store := newStore()
	store.state.assignments["b2|e1"] = true
	store.state.activeByBr["b2"] = 1
	svc := NewService(store, nil)
	ctx := context.Background()

	if _, err := svc.CleanupBranch(ctx, "t1", "b2"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected refusal with active bookings, got %v", err)
	}
	if store.state.schedules["b2"] != 7 {
		t.Fatalf("refused cleanup must not delete anything")
	}

	store.state.activeByBr["b2"] = 0
	res, err := svc.CleanupBranch(ctx, "t1", "b2")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.Schedules != 7 || res.Assignments != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
