// Package fixtures loads tenant reference data (settings, branches, hours, catalog, staff,
// plan limits) from a JSON document into a store.
package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// Seeder is implemented by both the Postgres and the embedded store.
type Seeder interface {
	UpsertTenant(ctx context.Context, t model.Tenant) error
	UpsertBranch(ctx context.Context, b model.Branch) error
	SetSchedule(ctx context.Context, s model.Schedule) error
	BlockDate(ctx context.Context, d model.BlockedDate) error
	UpsertService(ctx context.Context, svc model.Service) error
	UpsertEmployee(ctx context.Context, e model.Employee) error
	AssignEmployee(ctx context.Context, a model.BranchAssignment) error
	AssignService(ctx context.Context, employeeID, serviceID string) error
	UpsertPlanLimits(ctx context.Context, l quota.PlanLimits) error
}

type Document struct {
	Tenants    []Tenant     `json:"tenants" validate:"dive"`
	Branches   []Branch     `json:"branches" validate:"dive"`
	Services   []Service    `json:"services" validate:"dive"`
	Employees  []Employee   `json:"employees" validate:"dive"`
	PlanLimits []PlanLimits `json:"plan_limits" validate:"dive"`
}

type Tenant struct {
	ID                     string          `json:"id" validate:"required"`
	Timezone               string          `json:"timezone"`
	BookingMode            string          `json:"booking_mode" validate:"omitempty,oneof=HOURLY DAILY"`
	BufferMinutes          int             `json:"buffer_minutes" validate:"min=0"`
	MaxAdvanceDays         int             `json:"max_advance_days"`
	MinAdvanceHours        int             `json:"min_advance_hours"`
	CancellationHoursLimit int             `json:"cancellation_hours_limit"`
	RequireDeposit         bool            `json:"require_deposit"`
	DepositPercentage      decimal.Decimal `json:"deposit_percentage"`
}

type Hours struct {
	Weekday int    `json:"weekday" validate:"min=0,max=6"`
	Open    string `json:"open" validate:"required,datetime=15:04"`
	Close   string `json:"close" validate:"required,datetime=15:04"`
	Closed  bool   `json:"closed"`
}

type Blocked struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason"`
}

type Branch struct {
	ID       string    `json:"id" validate:"required"`
	TenantID string    `json:"tenant_id" validate:"required"`
	Name     string    `json:"name"`
	IsMain   bool      `json:"is_main"`
	Hours    []Hours   `json:"hours" validate:"dive"`
	Blocked  []Blocked `json:"blocked_dates" validate:"dive"`
}

type Option struct {
	ID              string          `json:"id" validate:"required"`
	Name            string          `json:"name"`
	PriceModifier   decimal.Decimal `json:"price_modifier"`
	PricingType     string          `json:"pricing_type" validate:"omitempty,oneof=relative absolute"`
	DurationMinutes int             `json:"duration_modifier_minutes"`
}

type Group struct {
	ID            string   `json:"id" validate:"required"`
	Name          string   `json:"name"`
	SelectionType string   `json:"selection_type" validate:"required,oneof=single multi"`
	Required      bool     `json:"required"`
	Options       []Option `json:"options" validate:"dive"`
}

type Service struct {
	ID              string          `json:"id" validate:"required"`
	TenantID        string          `json:"tenant_id" validate:"required"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes" validate:"min=0"`
	Groups          []Group         `json:"groups" validate:"dive"`
}

type Employee struct {
	ID       string   `json:"id" validate:"required"`
	TenantID string   `json:"tenant_id" validate:"required"`
	Name     string   `json:"name"`
	Branches []string `json:"branches"`
	Services []string `json:"services"`
}

type PlanLimits struct {
	TenantID         string `json:"tenant_id" validate:"required"`
	Tier             string `json:"tier" validate:"required"`
	MaxBookingsMonth *int   `json:"max_bookings_month"`
	MaxBranches      *int   `json:"max_branches"`
	MaxEmployees     *int   `json:"max_employees"`
	MaxServices      *int   `json:"max_services"`
	MaxCustomers     *int   `json:"max_customers"`
}

func LoadFile(ctx context.Context, path string, s Seeder) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Load(ctx, f, s)
}

// Load applies the document in dependency order. It is safe to run repeatedly.
func Load(ctx context.Context, r io.Reader, s Seeder) error {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return fmt.Errorf("invalid fixtures: %w", err)
	}

	for _, t := range doc.Tenants {
		mode := model.BookingMode(t.BookingMode)
		if mode == "" {
			mode = model.ModeHourly
		}
		if err := s.UpsertTenant(ctx, model.Tenant{ID: t.ID, Settings: model.TenantSettings{
			Timezone:               t.Timezone,
			BookingMode:            mode,
			BufferMinutes:          t.BufferMinutes,
			MaxAdvanceDays:         t.MaxAdvanceDays,
			MinAdvanceHours:        t.MinAdvanceHours,
			CancellationHoursLimit: t.CancellationHoursLimit,
			RequireDeposit:         t.RequireDeposit,
			DepositPercentage:      t.DepositPercentage,
		}}); err != nil {
			return fmt.Errorf("tenant %s: %w", t.ID, err)
		}
	}

	for _, b := range doc.Branches {
		if err := s.UpsertBranch(ctx, model.Branch{ID: b.ID, TenantID: b.TenantID, Name: b.Name, IsMain: b.IsMain}); err != nil {
			return fmt.Errorf("branch %s: %w", b.ID, err)
		}
		for _, h := range b.Hours {
			open, err := model.ParseClock(h.Open)
			if err != nil {
				return err
			}
			closeAt, err := model.ParseClock(h.Close)
			if err != nil {
				return err
			}
			if err := s.SetSchedule(ctx, model.Schedule{
				BranchID:    b.ID,
				Weekday:     h.Weekday,
				StartMinute: open,
				EndMinute:   closeAt,
				IsActive:    !h.Closed,
			}); err != nil {
				return fmt.Errorf("branch %s hours: %w", b.ID, err)
			}
		}
		for _, d := range b.Blocked {
			if err := s.BlockDate(ctx, model.BlockedDate{BranchID: b.ID, Date: d.Date, Reason: d.Reason}); err != nil {
				return fmt.Errorf("branch %s blocked date: %w", b.ID, err)
			}
		}
	}

	for _, svc := range doc.Services {
		if err := s.UpsertService(ctx, toService(svc)); err != nil {
			return fmt.Errorf("service %s: %w", svc.ID, err)
		}
	}

	for _, e := range doc.Employees {
		if err := s.UpsertEmployee(ctx, model.Employee{ID: e.ID, TenantID: e.TenantID, Name: e.Name}); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
		for _, branchID := range e.Branches {
			if err := s.AssignEmployee(ctx, model.BranchAssignment{BranchID: branchID, EmployeeID: e.ID, IsActive: true}); err != nil {
				return fmt.Errorf("employee %s branch %s: %w", e.ID, branchID, err)
			}
		}
		for _, serviceID := range e.Services {
			if err := s.AssignService(ctx, e.ID, serviceID); err != nil {
				return fmt.Errorf("employee %s service %s: %w", e.ID, serviceID, err)
			}
		}
	}

	for _, p := range doc.PlanLimits {
		l := quota.LimitsForTier(p.Tier)
		l.TenantID = p.TenantID
		l.Tier = p.Tier
		set(&l.MaxBookingsMonth, p.MaxBookingsMonth)
		set(&l.MaxBranches, p.MaxBranches)
		set(&l.MaxEmployees, p.MaxEmployees)
		set(&l.MaxServices, p.MaxServices)
		set(&l.MaxCustomers, p.MaxCustomers)
		if err := s.UpsertPlanLimits(ctx, l); err != nil {
			return fmt.Errorf("plan limits %s: %w", p.TenantID, err)
		}
	}
	return nil
}

func toService(svc Service) model.Service {
	out := model.Service{
		ID:              svc.ID,
		TenantID:        svc.TenantID,
		Name:            svc.Name,
		Price:           svc.Price,
		DurationMinutes: svc.DurationMinutes,
	}
	for gi, g := range svc.Groups {
		group := model.VariationGroup{
			ID:            g.ID,
			ServiceID:     svc.ID,
			Name:          g.Name,
			SelectionType: model.SelectionType(g.SelectionType),
			Required:      g.Required,
			Position:      gi,
		}
		for oi, o := range g.Options {
			pricing := model.PricingType(o.PricingType)
			if pricing == "" {
				pricing = model.PricingRelative
			}
			group.Options = append(group.Options, model.VariationOption{
				ID:                      o.ID,
				GroupID:                 g.ID,
				Name:                    o.Name,
				PriceModifier:           o.PriceModifier,
				PricingType:             pricing,
				DurationModifierMinutes: o.DurationMinutes,
				Position:                oi,
			})
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

func set(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
