package embedded

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// The methods below load reference data: tenants, branches, hours, catalog and staff.

func (s *Store) upsert(ctx context.Context, row any) error {
	return s.root.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (s *Store) UpsertTenant(ctx context.Context, t model.Tenant) error {
	row := fromTenant(t)
	return s.upsert(ctx, &row)
}

func (s *Store) UpsertBranch(ctx context.Context, b model.Branch) error {
	row := branchRow{ID: b.ID, TenantID: b.TenantID, Name: b.Name, IsMain: b.IsMain}
	return s.upsert(ctx, &row)
}

func (s *Store) SetSchedule(ctx context.Context, sch model.Schedule) error {
	row := scheduleRow{
		BranchID:    sch.BranchID,
		Weekday:     sch.Weekday,
		StartMinute: sch.StartMinute,
		EndMinute:   sch.EndMinute,
		IsActive:    sch.IsActive,
	}
	return s.upsert(ctx, &row)
}

func (s *Store) BlockDate(ctx context.Context, d model.BlockedDate) error {
	row := blockedDateRow{BranchID: d.BranchID, Date: d.Date, Reason: d.Reason}
	return s.upsert(ctx, &row)
}

func (s *Store) UpsertEmployee(ctx context.Context, e model.Employee) error {
	row := employeeRow{ID: e.ID, TenantID: e.TenantID, Name: e.Name}
	return s.upsert(ctx, &row)
}

func (s *Store) AssignEmployee(ctx context.Context, a model.BranchAssignment) error {
	row := branchEmployeeRow{BranchID: a.BranchID, EmployeeID: a.EmployeeID, IsActive: a.IsActive}
	return s.upsert(ctx, &row)
}

func (s *Store) AssignService(ctx context.Context, employeeID, serviceID string) error {
	row := employeeServiceRow{EmployeeID: employeeID, ServiceID: serviceID}
	return s.root.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// UpsertService replaces the service together with its variation groups and options.
func (s *Store) UpsertService(ctx context.Context, svc model.Service) error {
	return s.root.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := serviceRow{
			ID:              svc.ID,
			TenantID:        svc.TenantID,
			Name:            svc.Name,
			Price:           svc.Price.String(),
			DurationMinutes: svc.DurationMinutes,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}

		var oldGroups []string
		if err := tx.Model(&variationGroupRow{}).Where("service_id = ?", svc.ID).Pluck("id", &oldGroups).Error; err != nil {
			return err
		}
		if len(oldGroups) > 0 {
			if err := tx.Where("group_id IN ?", oldGroups).Delete(&variationOptionRow{}).Error; err != nil {
				return err
			}
			if err := tx.Where("service_id = ?", svc.ID).Delete(&variationGroupRow{}).Error; err != nil {
				return err
			}
		}

		for _, g := range svc.Groups {
			grow := variationGroupRow{
				ID:            g.ID,
				ServiceID:     svc.ID,
				Name:          g.Name,
				SelectionType: string(g.SelectionType),
				Required:      g.Required,
				Position:      g.Position,
			}
			if err := tx.Create(&grow).Error; err != nil {
				return err
			}
			for _, o := range g.Options {
				orow := variationOptionRow{
					ID:                      o.ID,
					GroupID:                 g.ID,
					Name:                    o.Name,
					PriceModifier:           o.PriceModifier.String(),
					PricingType:             string(o.PricingType),
					DurationModifierMinutes: o.DurationModifierMinutes,
					Position:                o.Position,
				}
				if err := tx.Create(&orow).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
