package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const depositWebhookPath = "/api/v1/deposits/webhooks/stripe"

func depositSimCmd() *cobra.Command {
	var (
		secret   string
		outcome  string
		amount   int64
		currency string
	)

	cmd := &cobra.Command{
		Use:   "deposit-sim <booking-id>",
		Short: "Send a signed Stripe payment_intent webhook for a booking deposit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret (or STRIPE_WEBHOOK_SECRET) is required")
			}
			var eventType string
			switch outcome {
			case "succeeded", "canceled":
				eventType = "payment_intent." + outcome
			default:
				return fmt.Errorf("--outcome must be succeeded or canceled")
			}

			payload, err := buildDepositEvent(eventType, tenant, args[0], amount, currency, time.Now())
			if err != nil {
				return err
			}
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
				Payload:   payload,
				Secret:    secret,
				Timestamp: time.Now(),
				Scheme:    "v1",
			})

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			status, body, err := newClient().PostRaw(ctx, depositWebhookPath, signed.Payload, map[string]string{
				"Stripe-Signature": signed.Header,
			})
			if err != nil {
				return err
			}
			fmt.Printf("status: %d\n", status)
			if len(body) > 0 {
				fmt.Printf("body: %s\n", string(body))
			}
			if status >= 300 {
				return fmt.Errorf("webhook rejected with status %d", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "Stripe webhook signing secret")
	cmd.Flags().StringVar(&outcome, "outcome", "succeeded", "succeeded (confirms) or canceled (cancels)")
	cmd.Flags().Int64Var(&amount, "amount", 2000, "Deposit amount in minor units")
	cmd.Flags().StringVar(&currency, "currency", "usd", "Currency")
	return cmd
}

func buildDepositEvent(eventType, tenantID, bookingID string, amount int64, currency string, now time.Time) ([]byte, error) {
	evt := map[string]any{
		"id":          "evt_" + uuid.NewString(),
		"object":      "event",
		"created":     now.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "pi_" + uuid.NewString(),
				"object":   "payment_intent",
				"amount":   amount,
				"currency": currency,
				"status":   paymentIntentStatus(eventType),
				"metadata": map[string]string{
					"tenant_id":  tenantID,
					"booking_id": bookingID,
				},
			},
		},
	}
	return json.Marshal(evt)
}

func paymentIntentStatus(eventType string) string {
	if eventType == "payment_intent.canceled" {
		return "canceled"
	}
	return "succeeded"
}
