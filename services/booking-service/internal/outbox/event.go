package outbox

import "time"

// Event types written by the booking service. The Kafka topic name equals the event type.
const (
	EventBookingCommitted     = "booking.committed.v1"
	EventBookingStatusChanged = "booking.status_changed.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	TenantID      string
	Payload       []byte
}

// Record is an outbox row waiting to be published.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	TenantID      string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}
