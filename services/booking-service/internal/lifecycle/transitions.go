// Package lifecycle validates booking status changes. Terminal statuses never move.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// transitionMap lists, per target status, the statuses it may be entered from.
var transitionMap = map[model.Status][]model.Status{
	model.StatusConfirmed: {model.StatusPending},
	model.StatusCancelled: {model.StatusPending, model.StatusConfirmed},
	model.StatusCompleted: {model.StatusConfirmed},
	model.StatusNoShow:    {model.StatusConfirmed},
}

func ValidTransition(from, to model.Status) bool {
	allowed, ok := transitionMap[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

// InitialStatus is PENDING while a deposit is outstanding.
func InitialStatus(s model.TenantSettings) model.Status {
	if s.RequireDeposit {
		return model.StatusPending
	}
	return model.StatusConfirmed
}

// Apply moves b to status to at now. changed is false when b already has that status.
// A confirmed booking may only be cancelled until cancellationHoursLimit before its start.
func Apply(b model.Booking, to model.Status, settings model.TenantSettings, now time.Time, reason string) (model.Booking, bool, error) {
	if b.Status == to {
		return b, false, nil
	}
	if !ValidTransition(b.Status, to) {
		return b, false, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, b.Status, to)
	}
	if b.Status == model.StatusConfirmed && to == model.StatusCancelled && settings.CancellationHoursLimit > 0 {
		deadline := b.StartAt.Add(-time.Duration(settings.CancellationHoursLimit) * time.Hour)
		if now.After(deadline) {
			return b, false, fmt.Errorf("%w: cancellation closed %d hours before start", model.ErrInvalidTransition, settings.CancellationHoursLimit)
		}
	}

	b.Status = to
	if to == model.StatusCancelled {
		at := now.UTC()
		b.CancelledAt = &at
		b.CancelReason = reason
	}
	return b, true, nil
}
