package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	otelx "github.com/md-rashed-zaman/bookwell/libs/otel"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

type Writer interface {
	InsertOutbox(ctx context.Context, evt Event, traceparent, tracestate string) error
}

// Notifier records booking events in the outbox. The Publisher delivers them.
type Notifier struct {
	store Writer
	now   func() time.Time
}

func NewNotifier(store Writer) *Notifier {
	return &Notifier{store: store, now: time.Now}
}

type bookingPayload struct {
	BookingID      string   `json:"booking_id"`
	TenantID       string   `json:"tenant_id"`
	BranchID       string   `json:"branch_id"`
	ServiceID      string   `json:"service_id"`
	EmployeeID     string   `json:"employee_id,omitempty"`
	ResourceID     string   `json:"resource_id"`
	CustomerID     string   `json:"customer_id"`
	Mode           string   `json:"mode"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	CheckOutDate   string   `json:"check_out_date,omitempty"`
	StartAt        string   `json:"start_at"`
	EndAt          string   `json:"end_at"`
	TotalPrice     string   `json:"total_price"`
	DepositAmount  string   `json:"deposit_amount"`
	OptionIDs      []string `json:"option_ids,omitempty"`
	Status         string   `json:"status"`
	PreviousStatus string   `json:"previous_status,omitempty"`
	CancelReason   string   `json:"cancel_reason,omitempty"`
	OccurredAt     string   `json:"occurred_at"`
}

func (n *Notifier) BookingCommitted(ctx context.Context, b model.Booking) error {
	return n.write(ctx, EventBookingCommitted, b, "")
}

func (n *Notifier) BookingStatusChanged(ctx context.Context, b model.Booking, from model.Status) error {
	return n.write(ctx, EventBookingStatusChanged, b, from)
}

func (n *Notifier) write(ctx context.Context, eventType string, b model.Booking, from model.Status) error {
	payload, err := json.Marshal(bookingPayload{
		BookingID:      b.ID,
		TenantID:       b.TenantID,
		BranchID:       b.BranchID,
		ServiceID:      b.ServiceID,
		EmployeeID:     b.EmployeeID,
		ResourceID:     b.ResourceID,
		CustomerID:     b.CustomerID,
		Mode:           string(b.Mode),
		Date:           b.Date,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		CheckOutDate:   b.CheckOutDate,
		StartAt:        b.StartAt.UTC().Format(time.RFC3339),
		EndAt:          b.EndAt.UTC().Format(time.RFC3339),
		TotalPrice:     b.TotalPrice.StringFixed(2),
		DepositAmount:  b.DepositAmount.StringFixed(2),
		OptionIDs:      b.OptionIDs,
		Status:         string(b.Status),
		PreviousStatus: string(from),
		CancelReason:   b.CancelReason,
		OccurredAt:     n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return n.store.InsertOutbox(ctx, Event{
		EventID:       uuid.NewString(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		TenantID:      b.TenantID,
		Payload:       payload,
	}, traceparent, tracestate)
}
