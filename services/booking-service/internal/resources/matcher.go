// Package resources decides which employees, or the branch itself, may serve a service.
package resources

import (
	"context"
	"fmt"
	"sort"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Source lists employees holding an active branch assignment and a service assignment.
type Source interface {
	ListEligibleEmployees(ctx context.Context, tenantID, branchID, serviceID string) ([]string, error)
}

type Matcher struct {
	src Source
}

func NewMatcher(src Source) *Matcher {
	return &Matcher{src: src}
}

// Match returns the resource pool in ascending id order. A requested employee must be
// eligible; otherwise the pool is every eligible employee, falling back to the branch.
func (m *Matcher) Match(ctx context.Context, tenantID, branchID, serviceID, employeeID string) ([]model.Resource, error) {
	ids, err := m.src.ListEligibleEmployees(ctx, tenantID, branchID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list eligible employees: %w", err)
	}
	return Pool(branchID, employeeID, ids)
}

// Pool is the pure part of Match.
func Pool(branchID, employeeID string, eligible []string) ([]model.Resource, error) {
	if employeeID != "" {
		for _, id := range eligible {
			if id == employeeID {
				return []model.Resource{{Kind: model.ResourceEmployee, ID: employeeID}}, nil
			}
		}
		return nil, fmt.Errorf("%w: employee %s is not assigned to this branch and service", model.ErrNotEligible, employeeID)
	}
	if len(eligible) == 0 {
		return []model.Resource{{Kind: model.ResourceBranch, ID: branchID}}, nil
	}
	sorted := append([]string(nil), eligible...)
	sort.Strings(sorted)
	out := make([]model.Resource, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		out = append(out, model.Resource{Kind: model.ResourceEmployee, ID: id})
	}
	return out, nil
}
