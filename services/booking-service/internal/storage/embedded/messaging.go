package embedded

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

func (s *Store) InsertOutbox(ctx context.Context, evt outbox.Event, traceparent, tracestate string) error {
	row := outboxRow{
		EventID:       evt.EventID,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		TenantID:      evt.TenantID,
		Payload:       evt.Payload,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     time.Now().UTC(),
	}
	return s.root.WithContext(ctx).Create(&row).Error
}

func (s *Store) DrainOutbox(ctx context.Context, limit int, publish func([]outbox.Record) error) (int, error) {
	n := 0
	err := s.root.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []outboxRow
		if err := tx.Where("published_at IS NULL").Order("id").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		records := make([]outbox.Record, 0, len(rows))
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			records = append(records, outbox.Record{
				ID:            r.ID,
				EventID:       r.EventID,
				AggregateType: r.AggregateType,
				AggregateID:   r.AggregateID,
				EventType:     r.EventType,
				TenantID:      r.TenantID,
				Payload:       r.Payload,
				Traceparent:   r.Traceparent,
				Tracestate:    r.Tracestate,
				CreatedAt:     r.CreatedAt,
			})
			ids = append(ids, r.ID)
		}
		if err := publish(records); err != nil {
			return err
		}
		n = len(records)
		return tx.Model(&outboxRow{}).Where("id IN ?", ids).Update("published_at", time.Now().UTC()).Error
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) RecordInbox(ctx context.Context, eventID, eventType string) (bool, error) {
	row := inboxRow{EventID: eventID, EventType: eventType, ReceivedAt: time.Now().UTC()}
	err := s.root.WithContext(ctx).Create(&row).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return false, nil
	}
	return false, err
}

func (s *Store) ForgetInbox(ctx context.Context, eventID string) error {
	return s.root.WithContext(ctx).Where("event_id = ?", eventID).Delete(&inboxRow{}).Error
}

func (s *Store) UpsertPlanLimits(ctx context.Context, l quota.PlanLimits) error {
	row := planLimitsRow{
		TenantID:         l.TenantID,
		Tier:             l.Tier,
		MaxBookingsMonth: l.MaxBookingsMonth,
		MaxBranches:      l.MaxBranches,
		MaxEmployees:     l.MaxEmployees,
		MaxServices:      l.MaxServices,
		MaxCustomers:     l.MaxCustomers,
		UpdatedAt:        time.Now().UTC(),
	}
	return s.root.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}
