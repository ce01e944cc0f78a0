// Package deposits settles booking deposits from Stripe payment webhooks.
package deposits

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// Metadata keys the payment intent must carry.
const (
	MetadataTenantID  = "tenant_id"
	MetadataBookingID = "booking_id"
)

type Transitioner interface {
	Transition(ctx context.Context, req engine.TransitionRequest) (model.Booking, error)
}

type Handler struct {
	bookings  Transitioner
	secret    string
	tolerance time.Duration
	logger    *slog.Logger
}

func NewHandler(bookings Transitioner, secret string, tolerance time.Duration, logger *slog.Logger) *Handler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Handler{bookings: bookings, secret: secret, tolerance: tolerance, logger: logger}
}

// StripeWebhook handles Stripe webhooks (signature verification is the auth).
// Domain rejections are acknowledged with 200 so Stripe does not retry them;
// infrastructure failures return 500 and are retried.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "not_configured", "stripe webhook not configured")
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "missing Stripe-Signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.secret, webhook.ConstructEventOptions{
		Tolerance:                h.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid signature")
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("deposit provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	var to model.Status
	switch evtType {
	case "payment_intent.succeeded":
		to = model.StatusConfirmed
	case "payment_intent.canceled":
		to = model.StatusCancelled
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
		h.logger.Error("stripe: invalid payment intent payload", "err", err, "provider_event_id", evt.ID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	tenantID := strings.TrimSpace(intent.Metadata[MetadataTenantID])
	bookingID := strings.TrimSpace(intent.Metadata[MetadataBookingID])
	if tenantID == "" || bookingID == "" {
		h.logger.Warn("stripe: missing metadata on payment intent (tenant_id/booking_id)", "payment_intent", intent.ID)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	b, err := h.bookings.Transition(r.Context(), engine.TransitionRequest{
		TenantID:  tenantID,
		BookingID: bookingID,
		To:        to,
		Reason:    "deposit " + strings.TrimPrefix(evtType, "payment_intent."),
	})
	if err != nil {
		if isDomainError(err) {
			h.logger.Warn("deposit event rejected", "err", err, "tenant_id", tenantID, "booking_id", bookingID, "event_type", evtType)
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "rejected", "error": model.Kind(err)})
			return
		}
		h.logger.Error("deposit transition failed", "err", err, "tenant_id", tenantID, "booking_id", bookingID)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "failed to apply deposit event")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "applied",
		"booking_id": b.ID,
		"booking":    string(b.Status),
	})
}

func isDomainError(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && model.Kind(err) != "internal"
}
