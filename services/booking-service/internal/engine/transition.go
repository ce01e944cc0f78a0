package engine

import (
	"context"

	otelx "github.com/md-rashed-zaman/bookwell/libs/otel"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type TransitionRequest struct {
	TenantID  string
	BookingID string
	To        model.Status
	Reason    string
}

// Transition moves a booking to another status under a row lock. Moving a booking to the
// status it already has returns it unchanged.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (out model.Booking, err error) {
	ctx, span := otelx.Start(ctx, tracerName, "engine.Transition", req.TenantID)
	defer func() { otelx.End(span, err) }()

	if req.TenantID == "" || req.BookingID == "" {
		return model.Booking{}, model.Validationf("tenant_id and booking_id are required")
	}
	if _, err := model.ParseStatus(string(req.To)); err != nil {
		return model.Booking{}, err
	}
	tenant, _, err := e.tenantContext(ctx, req.TenantID)
	if err != nil {
		return model.Booking{}, err
	}

	var from model.Status
	changed := false
	now := e.now()
	err = e.store.WithinCommit(ctx, func(tx CommitTx) error {
		current, err := tx.GetBookingForUpdate(ctx, req.TenantID, req.BookingID)
		if err != nil {
			return err
		}
		from = current.Status
		next, ok, err := lifecycle.Apply(current, req.To, tenant.Settings, now, req.Reason)
		if err != nil {
			return err
		}
		out, changed = next, ok
		if !changed {
			return nil
		}
		return tx.UpdateBookingStatus(ctx, next)
	})
	if err != nil {
		return model.Booking{}, err
	}
	if !changed {
		return out, nil
	}

	e.logger.Info("booking status changed",
		"tenant_id", out.TenantID,
		"booking_id", out.ID,
		"from", from,
		"to", out.Status,
	)
	b := out
	e.dispatch(ctx, "booking.status_changed", func(ctx context.Context) error {
		return e.notifier.BookingStatusChanged(ctx, b, from)
	})
	return out, nil
}
