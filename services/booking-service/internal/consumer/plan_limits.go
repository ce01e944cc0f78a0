package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/quota"
)

// Topics published by the billing side.
const (
	TopicSubscriptionActivated = "billing.subscription.activated.v1"
	TopicSubscriptionCanceled  = "billing.subscription.canceled.v1"
)

type PlanLimitsWriter interface {
	UpsertPlanLimits(ctx context.Context, limits quota.PlanLimits) error
}

type planLimitsPayload struct {
	TenantID         string `json:"tenant_id"`
	Tier             string `json:"tier"`
	MaxBookingsMonth *int   `json:"max_bookings_month"`
	MaxBranches      *int   `json:"max_branches"`
	MaxEmployees     *int   `json:"max_employees"`
	MaxServices      *int   `json:"max_services"`
	MaxCustomers     *int   `json:"max_customers"`
}

// PlanLimitsHandler keeps the local plan-limit copy in step with subscription events.
// Limits missing from the payload default to the tier's published limits; a canceled
// subscription falls back to the free tier. Malformed payloads are logged and skipped.
func PlanLimitsHandler(store PlanLimitsWriter, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p planLimitsPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if msg.Topic == TopicSubscriptionCanceled {
			p.Tier = "free"
		}
		if p.TenantID == "" || p.Tier == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}

		limits := quota.LimitsForTier(p.Tier)
		limits.TenantID = p.TenantID
		override(&limits.MaxBookingsMonth, p.MaxBookingsMonth)
		override(&limits.MaxBranches, p.MaxBranches)
		override(&limits.MaxEmployees, p.MaxEmployees)
		override(&limits.MaxServices, p.MaxServices)
		override(&limits.MaxCustomers, p.MaxCustomers)

		if err := store.UpsertPlanLimits(ctx, limits); err != nil {
			return err
		}
		logger.Info("plan limits updated", "tenant_id", limits.TenantID, "tier", limits.Tier)
		return nil
	}
}

func override(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
